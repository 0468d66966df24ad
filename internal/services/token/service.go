// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/authkit/internal/models"
	"github.com/google/uuid"
)

// Service pairs the codec with the ledger so every issued token has a
// matching ledger record and every validation passes both the cryptographic
// and the single-use check.
type Service struct {
	codec  *Codec
	ledger *Ledger
	now    Clock
}

// NewService creates a Service. A nil clock defaults to time.Now.
func NewService(codec *Codec, ledger *Ledger, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{codec: codec, ledger: ledger, now: clock}
}

// IssueAndRecord mints a token and records it as PENDING. Any previously
// active token for the same user and purpose is superseded first, so at most
// one token per (user, purpose) can ever be redeemed. If recording fails the
// raw token is discarded and never reaches the caller.
func (s *Service) IssueAndRecord(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, ttl time.Duration, secret string) (string, error) {
	if err := s.ledger.ReplaceActive(ctx, userID, purpose); err != nil {
		return "", err
	}

	raw, err := s.codec.Issue(userID, purpose, ttl, secret)
	if err != nil {
		return "", err
	}

	if _, err := s.ledger.RecordPending(ctx, userID, purpose, raw); err != nil {
		return "", err
	}

	return raw, nil
}

// MarkIssued confirms delivery of a previously recorded token.
func (s *Service) MarkIssued(ctx context.Context, raw string, purpose models.TokenPurpose) error {
	return s.ledger.MarkIssued(ctx, raw, purpose)
}

// Validate runs both validation layers: the codec checks signature, expiry
// and embedded purpose; the ledger then consumes the single use. Expiry
// detected at decode time blocks redemption without mutating the stored
// status. Callers must present all failures uniformly to end users but may
// branch on ErrDecode, ErrExpired and ErrValidation for diagnostics.
func (s *Service) Validate(ctx context.Context, raw string, purpose models.TokenPurpose, secret string) (uuid.UUID, error) {
	claims, err := s.codec.Decode(raw, purpose, secret)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpired):
			slog.Warn("token_rejected", "purpose", purpose, "reason", "expired")
		default:
			slog.Warn("token_rejected", "purpose", purpose, "reason", "decode_failed")
		}
		return uuid.Nil, err
	}

	userID, err := s.ledger.Redeem(ctx, raw, purpose, s.now())
	if err != nil {
		return uuid.Nil, err
	}

	if userID != claims.UserID() {
		// A ledger record keyed by this token's hash but owned by another
		// user means the ledger was corrupted; fail closed.
		slog.Error("token_subject_mismatch", "purpose", purpose, "claims_user", claims.UserID(), "ledger_user", userID)
		return uuid.Nil, ErrValidation
	}

	return userID, nil
}
