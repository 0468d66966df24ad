// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/authkit/internal/models"
	"codeberg.org/oliverandrich/authkit/internal/repository"
	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"codeberg.org/oliverandrich/authkit/internal/services/token"
	"codeberg.org/oliverandrich/authkit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*token.Service, *repository.Repository) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	codec := token.NewCodec(nil)
	ledger := token.NewLedger(repo)
	return token.NewService(codec, ledger, nil), repo
}

func TestIssueAndRecord(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)

	require.NoError(t, err)
	require.NotEmpty(t, raw)

	hash := password.HashString(raw, models.PurposeEmailVerification.String())
	rec, err := repo.GetTokenRecord(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, user.ID, rec.UserID)
	assert.Equal(t, models.StatusPending, rec.Status)
}

func TestIssueAndRecord_SupersedesPrevious(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	first, err := svc.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)
	require.NoError(t, err)
	require.NoError(t, svc.MarkIssued(ctx, first, models.PurposeEmailVerification))

	_, err = svc.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)
	require.NoError(t, err)

	// The first token was superseded and can no longer be redeemed.
	firstHash := password.HashString(first, models.PurposeEmailVerification.String())
	rec, err := repo.GetTokenRecord(ctx, firstHash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReplaced, rec.Status)

	_, err = svc.Validate(ctx, first, models.PurposeEmailVerification, testSecret)
	assert.ErrorIs(t, err, token.ErrValidation)
}

func TestValidate(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)
	require.NoError(t, err)
	require.NoError(t, svc.MarkIssued(ctx, raw, models.PurposeEmailVerification))

	userID, err := svc.Validate(ctx, raw, models.PurposeEmailVerification, testSecret)

	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestValidate_SingleUse(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)
	require.NoError(t, err)
	require.NoError(t, svc.MarkIssued(ctx, raw, models.PurposeEmailVerification))

	_, err = svc.Validate(ctx, raw, models.PurposeEmailVerification, testSecret)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, raw, models.PurposeEmailVerification, testSecret)
	assert.ErrorIs(t, err, token.ErrValidation)
}

func TestValidate_PendingNotRedeemable(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	// Never marked issued: delivery was not confirmed.
	raw, err := svc.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, raw, models.PurposeEmailVerification, testSecret)

	assert.ErrorIs(t, err, token.ErrValidation)
}

func TestValidate_UnrecordedToken(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	// Cryptographically valid but never recorded in the ledger.
	raw, err := token.NewCodec(nil).Issue(user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, raw, models.PurposeEmailVerification, testSecret)

	assert.ErrorIs(t, err, token.ErrValidation)
}

func TestValidate_ExpiredBeforeLedger(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	now := time.Now()
	clock := func() time.Time { return now }
	codec := token.NewCodec(clock)
	ledger := token.NewLedger(repo)
	svc := token.NewService(codec, ledger, clock)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, 15*time.Minute, testSecret)
	require.NoError(t, err)
	require.NoError(t, svc.MarkIssued(ctx, raw, models.PurposeEmailVerification))

	now = now.Add(16 * time.Minute)

	_, err = svc.Validate(ctx, raw, models.PurposeEmailVerification, testSecret)
	assert.ErrorIs(t, err, token.ErrExpired)

	// Expiry was caught at decode time; the ledger record is untouched.
	hash := password.HashString(raw, models.PurposeEmailVerification.String())
	rec, err := repo.GetTokenRecord(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIssued, rec.Status)
}
