// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/authkit/internal/models"
	"codeberg.org/oliverandrich/authkit/internal/repository"
	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"github.com/google/uuid"
)

// Ledger tracks issued tokens by their purpose-namespaced hash and enforces
// the PENDING -> ISSUED -> REDEEMED state machine. The raw token never
// touches storage.
type Ledger struct {
	repo *repository.Repository
}

// NewLedger creates a Ledger over the given repository.
func NewLedger(repo *repository.Repository) *Ledger {
	return &Ledger{repo: repo}
}

// hash computes the purpose-namespaced digest used as the storage key.
func (l *Ledger) hash(raw string, purpose models.TokenPurpose) string {
	return password.HashString(raw, purpose.String())
}

// RecordPending inserts a PENDING record for the raw token. A hash collision
// is an internal error, never a user-facing condition.
func (l *Ledger) RecordPending(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, raw string) (int64, error) {
	id, err := l.repo.CreateTokenRecord(ctx, userID, l.hash(raw, purpose), purpose)
	if err != nil {
		return 0, fmt.Errorf("recording pending token: %w", err)
	}
	return id, nil
}

// MarkIssued transitions the matching PENDING record to ISSUED. A missing
// record signals an issuance-ordering bug upstream and is surfaced as-is.
func (l *Ledger) MarkIssued(ctx context.Context, raw string, purpose models.TokenPurpose) error {
	err := l.repo.TransitionTokenStatus(ctx, l.hash(raw, purpose), models.StatusPending, models.StatusIssued)
	if err != nil {
		return fmt.Errorf("marking token issued: %w", err)
	}
	return nil
}

// Redeem consumes the matching ISSUED record and returns the owning user.
// The underlying conditional update guarantees that of two concurrent calls
// with the same raw token, exactly one succeeds. All rejection causes
// collapse to ErrValidation; the specific cause is logged for diagnostics.
func (l *Ledger) Redeem(ctx context.Context, raw string, purpose models.TokenPurpose, at time.Time) (uuid.UUID, error) {
	userID, err := l.repo.RedeemToken(ctx, l.hash(raw, purpose), at)
	if err == nil {
		return userID, nil
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		slog.Warn("token_redeem_rejected", "purpose", purpose, "reason", "not_recorded")
	case errors.Is(err, repository.ErrStaleStatus):
		slog.Warn("token_redeem_rejected", "purpose", purpose, "reason", "not_redeemable")
	default:
		return uuid.Nil, fmt.Errorf("redeeming token: %w", err)
	}
	return uuid.Nil, ErrValidation
}

// ReplaceActive marks any PENDING or ISSUED record for the user and purpose
// as REPLACED, enforcing the single-active-token invariant before a new
// token is recorded.
func (l *Ledger) ReplaceActive(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose) error {
	n, err := l.repo.ReplaceActiveTokens(ctx, userID, purpose)
	if err != nil {
		return fmt.Errorf("replacing active tokens: %w", err)
	}
	if n > 0 {
		slog.Debug("tokens_replaced", "user_id", userID, "purpose", purpose, "count", n)
	}
	return nil
}
