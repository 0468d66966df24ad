// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token implements the purpose-bound token lifecycle: a stateless
// HMAC-signed codec, a persistent single-use ledger and the service that
// orchestrates the two.
package token

import (
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/authkit/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrDecode is returned when a token's signature, payload or embedded
	// purpose is invalid.
	ErrDecode = errors.New("token decode failed")
	// ErrExpired is returned when a token's embedded expiry has passed.
	// The check happens at decode time, before the ledger is consulted.
	ErrExpired = errors.New("token expired")
	// ErrValidation is returned when the ledger rejects a token: unknown,
	// not in ISSUED state, or already redeemed.
	ErrValidation = errors.New("token validation failed")
)

// Clock supplies the current time. Injectable for tests.
type Clock func() time.Time

// Claims is the signed payload of every token. Purpose binding at the
// cryptographic layer keeps a captured token from being replayed against a
// different channel, regardless of ledger state.
type Claims struct {
	Purpose models.TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Codec creates and decodes signed, purpose-bound, expiring tokens. It holds
// no mutable state and is safe for concurrent use.
type Codec struct {
	now Clock
}

// NewCodec creates a Codec. A nil clock defaults to time.Now.
func NewCodec(clock Clock) *Codec {
	if clock == nil {
		clock = time.Now
	}
	return &Codec{now: clock}
}

// Issue produces a signed token embedding the subject, expiry and purpose.
// The secret must be specific to the purpose's channel.
func (c *Codec) Issue(userID uuid.UUID, purpose models.TokenPurpose, ttl time.Duration, secret string) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return raw, nil
}

// Decode verifies the signature and expiry and checks that the embedded
// purpose matches the expected one. Returns ErrExpired for valid-but-stale
// tokens and ErrDecode for everything else that fails.
func (c *Codec) Decode(raw string, expected models.TokenPurpose, secret string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrDecode
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrDecode
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrDecode
	}
	if claims.Purpose != expected {
		return nil, ErrDecode
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrDecode
	}

	return claims, nil
}

// UserID returns the token subject as a UUID. Decode has already validated
// the format.
func (cl *Claims) UserID() uuid.UUID {
	id, _ := uuid.Parse(cl.Subject)
	return id
}
