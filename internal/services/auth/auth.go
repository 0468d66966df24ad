// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements credential verification and session/refresh token
// issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"codeberg.org/oliverandrich/authkit/internal/config"
	"codeberg.org/oliverandrich/authkit/internal/models"
	"codeberg.org/oliverandrich/authkit/internal/repository"
	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"codeberg.org/oliverandrich/authkit/internal/services/token"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account is locked")
)

// dummyHash is verified against when the account does not exist, so a login
// attempt takes the same time whether or not the identifier is known.
var dummyHash = sync.OnceValue(func() string {
	h, err := password.NewHasher(password.DefaultParams()).Hash("dummy-password-for-timing")
	if err != nil {
		return ""
	}
	return h
})

// Service authenticates users and mints session/refresh tokens.
type Service struct {
	repo   *repository.Repository
	hasher *password.Hasher
	codec  *token.Codec
	cfg    *config.AuthConfig
}

// NewService creates an auth Service.
func NewService(repo *repository.Repository, hasher *password.Hasher, codec *token.Codec, cfg *config.AuthConfig) *Service {
	return &Service{repo: repo, hasher: hasher, codec: codec, cfg: cfg}
}

// LoginResult is returned on successful authentication. The refresh token
// fields are populated only when the caller asked to be remembered.
type LoginResult struct {
	User             *models.User
	SessionToken     string
	ExpiresIn        int64 // seconds
	RefreshToken     string
	RefreshExpiresIn int64 // seconds
}

// Login verifies the identifier/password pair and issues tokens. The
// identifier is treated as an email address when it contains '@', otherwise
// as a username. Session and refresh tokens are signed with their own
// secrets and are not ledger-tracked; their validity is purely time-bounded.
func (s *Service) Login(ctx context.Context, identifier, plaintext string, rememberMe bool) (*LoginResult, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	user, err := s.lookup(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Equalize timing with a real verification
			s.hasher.Verify(plaintext, dummyHash())
			slog.Warn("login_failed", "identifier", identifier, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if user.Locked {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "locked")
		return nil, ErrLocked
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	s.maybeRehash(ctx, user, plaintext)

	sessionToken, err := s.codec.Issue(user.ID, models.PurposeSession, s.cfg.SessionExpiry, s.cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}

	result := &LoginResult{
		User:         user,
		SessionToken: sessionToken,
		ExpiresIn:    int64(s.cfg.SessionExpiry.Seconds()),
	}

	if rememberMe {
		refreshToken, err := s.codec.Issue(user.ID, models.PurposeRefresh, s.cfg.RefreshExpiry, s.cfg.RefreshSecret)
		if err != nil {
			return nil, fmt.Errorf("issuing refresh token: %w", err)
		}
		result.RefreshToken = refreshToken
		result.RefreshExpiresIn = int64(s.cfg.RefreshExpiry.Seconds())
	}

	slog.Info("login_success", "user_id", user.ID)
	return result, nil
}

// Authenticate decodes a session token and loads its user. Used by the
// request middleware guarding authenticated endpoints.
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (*models.User, error) {
	claims, err := s.codec.Decode(sessionToken, models.PurposeSession, s.cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByID(ctx, claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("loading session user: %w", err)
	}
	return user, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return s.repo.GetUserByEmail(ctx, identifier)
	}
	return s.repo.GetUserByUsername(ctx, identifier)
}

// maybeRehash upgrades the stored hash when its cost parameters are
// outdated. Failure here never fails the login.
func (s *Service) maybeRehash(ctx context.Context, user *models.User, plaintext string) {
	if !s.hasher.NeedsRehash(user.PasswordHash) {
		return
	}

	rehashed, err := s.hasher.Hash(plaintext)
	if err == nil {
		err = s.repo.UpdateUserPassword(ctx, user.ID, rehashed)
	}
	if err != nil {
		slog.Warn("password_rehash_failed", "user_id", user.ID, "error", err)
		return
	}

	user.PasswordHash = rehashed
	slog.Info("password_rehashed", "user_id", user.ID)
}
