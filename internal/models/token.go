// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose is the intended single use of a token. It is embedded in the
// signed token itself and checked again against the ledger record.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
	PurposeSession           TokenPurpose = "auth_session"
	PurposeRefresh           TokenPurpose = "auth_refresh"
)

// Valid reports whether p is one of the known purposes.
func (p TokenPurpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposeSession, PurposeRefresh:
		return true
	}
	return false
}

func (p TokenPurpose) String() string { return string(p) }

// TokenStatus is the lifecycle state of a ledger record. The happy path is
// PENDING -> ISSUED -> REDEEMED; everything else is a terminal failure state
// reachable only through explicit administrative transitions.
type TokenStatus string

const (
	StatusPending   TokenStatus = "pending"
	StatusIssued    TokenStatus = "issued"
	StatusRedeemed  TokenStatus = "redeemed"
	StatusExpired   TokenStatus = "expired"
	StatusInvalid   TokenStatus = "invalid"
	StatusCancelled TokenStatus = "cancelled"
	StatusFailed    TokenStatus = "failed"
	StatusReplaced  TokenStatus = "replaced"
)

// Valid reports whether s is one of the known statuses.
func (s TokenStatus) Valid() bool {
	switch s {
	case StatusPending, StatusIssued, StatusRedeemed, StatusExpired,
		StatusInvalid, StatusCancelled, StatusFailed, StatusReplaced:
		return true
	}
	return false
}

func (s TokenStatus) String() string { return string(s) }

// TokenRecord is the persisted ledger entry for an issued token. Only the
// purpose-namespaced hash of the raw token is ever stored.
type TokenRecord struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64        `db:"id" json:"id"`
	UserID     uuid.UUID    `db:"user_id" json:"user_id"`
	TokenHash  string       `db:"token_hash" json:"-"`
	Purpose    TokenPurpose `db:"purpose" json:"purpose"`
	Status     TokenStatus  `db:"status" json:"status"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	RedeemedAt *time.Time   `db:"redeemed_at" json:"redeemed_at,omitempty"`
}
