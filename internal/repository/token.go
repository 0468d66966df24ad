// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"codeberg.org/oliverandrich/authkit/internal/models"
	"github.com/google/uuid"
)

// ErrStaleStatus is returned when a conditional status transition matched a
// record whose current status no longer allows the transition. The caller
// lost a race or is replaying an already-applied transition.
var ErrStaleStatus = errors.New("record not in expected status")

// CreateTokenRecord inserts a PENDING ledger record for the given hash.
// Returns ErrConflict if a record with the same hash already exists.
func (r *Repository) CreateTokenRecord(ctx context.Context, userID uuid.UUID, tokenHash string, purpose models.TokenPurpose) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (user_id, token_hash, purpose, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, tokenHash, purpose, models.StatusPending, time.Now().UTC())
	if err != nil {
		return 0, wrapError(err)
	}
	return res.LastInsertId()
}

// GetTokenRecord retrieves a ledger record by hash.
func (r *Repository) GetTokenRecord(ctx context.Context, tokenHash string) (*models.TokenRecord, error) {
	var rec models.TokenRecord
	if err := r.db.GetContext(ctx, &rec, `SELECT * FROM auth_tokens WHERE token_hash = ?`, tokenHash); err != nil {
		return nil, wrapError(err)
	}
	return &rec, nil
}

// GetActiveTokenRecord returns the PENDING or ISSUED record for a user and
// purpose, if one exists.
func (r *Repository) GetActiveTokenRecord(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose) (*models.TokenRecord, error) {
	var rec models.TokenRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM auth_tokens WHERE user_id = ? AND purpose = ? AND status IN (?, ?)
		 ORDER BY created_at DESC LIMIT 1`,
		userID, purpose, models.StatusPending, models.StatusIssued)
	if err != nil {
		return nil, wrapError(err)
	}
	return &rec, nil
}

// TransitionTokenStatus moves a record from one status to another as a single
// conditional update. Returns ErrNotFound if no record has the hash and
// ErrStaleStatus if the record exists but is not in the from status.
func (r *Repository) TransitionTokenStatus(ctx context.Context, tokenHash string, from, to models.TokenStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_tokens SET status = ? WHERE token_hash = ? AND status = ?`,
		to, tokenHash, from)
	if err != nil {
		return wrapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, getErr := r.GetTokenRecord(ctx, tokenHash); getErr != nil {
			return getErr
		}
		return ErrStaleStatus
	}
	return nil
}

// RedeemToken atomically consumes an ISSUED record. The conditional update is
// the linearization point: two concurrent calls on the same hash see exactly
// one row update succeed. Returns the owning user ID on success, ErrNotFound
// when no record matches the hash, and ErrStaleStatus when the record is not
// redeemable (wrong status or already redeemed).
func (r *Repository) RedeemToken(ctx context.Context, tokenHash string, at time.Time) (uuid.UUID, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_tokens SET status = ?, redeemed_at = ?
		 WHERE token_hash = ? AND status = ? AND redeemed_at IS NULL`,
		models.StatusRedeemed, at.UTC(), tokenHash, models.StatusIssued)
	if err != nil {
		return uuid.Nil, wrapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return uuid.Nil, err
	}
	if rows == 0 {
		if _, getErr := r.GetTokenRecord(ctx, tokenHash); getErr != nil {
			return uuid.Nil, getErr
		}
		return uuid.Nil, ErrStaleStatus
	}

	rec, err := r.GetTokenRecord(ctx, tokenHash)
	if err != nil {
		return uuid.Nil, err
	}
	return rec.UserID, nil
}

// ReplaceActiveTokens marks all PENDING and ISSUED records for a user and
// purpose as REPLACED. Returns the number of records superseded.
func (r *Repository) ReplaceActiveTokens(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_tokens SET status = ? WHERE user_id = ? AND purpose = ? AND status IN (?, ?)`,
		models.StatusReplaced, userID, purpose, models.StatusPending, models.StatusIssued)
	if err != nil {
		return 0, wrapError(err)
	}
	return res.RowsAffected()
}
