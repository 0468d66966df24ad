// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package onboarding sequences user creation, verification token issuance,
// email delivery and delivery confirmation, with compensating handling for
// partial failure.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/authkit/internal/config"
	"codeberg.org/oliverandrich/authkit/internal/models"
	"codeberg.org/oliverandrich/authkit/internal/repository"
	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"codeberg.org/oliverandrich/authkit/internal/services/token"
	"github.com/google/uuid"
)

var (
	ErrDuplicateUser = errors.New("username or email already exists")
	ErrInvalidEmail  = errors.New("invalid email format")
)

// Mailer delivers the verification email. Constructed once at startup and
// passed in explicitly; failures are recoverable via resend.
type Mailer interface {
	SendVerification(ctx context.Context, user *models.User, rawToken string) error
}

// Clock supplies the current time. Injectable for tests.
type Clock = token.Clock

// Orchestrator drives the onboarding workflow.
type Orchestrator struct {
	repo      *repository.Repository
	tokens    *token.Service
	mailer    Mailer
	hasher    *password.Hasher
	validator *password.Validator
	cfg       *config.AuthConfig
	now       Clock
}

// New creates an Orchestrator. A nil clock defaults to time.Now.
func New(repo *repository.Repository, tokens *token.Service, mailer Mailer, hasher *password.Hasher, cfg *config.AuthConfig, clock Clock) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{
		repo:      repo,
		tokens:    tokens,
		mailer:    mailer,
		hasher:    hasher,
		validator: password.DefaultValidator(),
		cfg:       cfg,
		now:       clock,
	}
}

// RegisterParams holds the parameters for user registration.
type RegisterParams struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
}

// Register creates the user and starts email verification. A duplicate
// username or email aborts before any token work. If token recording fails
// after the user was created, the user record persists and the error is
// surfaced; Resend can recover such accounts. A failed email delivery is
// deliberately not surfaced: the token stays PENDING and registration still
// succeeds, so the response does not leak delivery-channel state.
func (o *Orchestrator) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := o.validator.Validate(params.Password); err != nil {
		return nil, err
	}

	passwordHash, err := o.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Username:     strings.ToLower(strings.TrimSpace(params.Username)),
		Email:        email,
		DisplayName:  params.DisplayName,
		PasswordHash: passwordHash,
	}

	if err := o.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if err := o.startVerification(ctx, user); err != nil {
		// The user exists without a deliverable token; Resend recovers this.
		return nil, err
	}

	slog.Info("register_success", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// startVerification issues and records a verification token, delivers it and
// confirms delivery. The record is created before the raw token leaves the
// process; a delivery failure leaves it PENDING for a later resend.
func (o *Orchestrator) startVerification(ctx context.Context, user *models.User) error {
	raw, err := o.tokens.IssueAndRecord(ctx, user.ID, models.PurposeEmailVerification, o.cfg.EmailTokenExpiry, o.cfg.EmailTokenSecret)
	if err != nil {
		return fmt.Errorf("recording verification token: %w", err)
	}

	if err := o.mailer.SendVerification(ctx, user, raw); err != nil {
		slog.Warn("verification_email_failed", "user_id", user.ID, "error", err)
		return nil
	}

	if err := o.tokens.MarkIssued(ctx, raw, models.PurposeEmailVerification); err != nil {
		return fmt.Errorf("confirming token issuance: %w", err)
	}

	return nil
}

// Resend restarts verification for an existing, unverified account. It is
// intentionally silent about whether the account exists or is already
// verified, so the caller can always acknowledge generically. Any previously
// active token is superseded by the new one.
func (o *Orchestrator) Resend(ctx context.Context, identifier string) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = o.repo.GetUserByEmail(ctx, identifier)
	} else {
		user, err = o.repo.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("resend_lookup_failed", "error", err)
		}
		return
	}
	if user.Verified {
		return
	}

	if err := o.startVerification(ctx, user); err != nil {
		slog.Error("resend_failed", "user_id", user.ID, "error", err)
	}
}

// Verify redeems an email verification token and marks its owner verified.
// Both validation layers must pass; the verified flag flips at most once.
func (o *Orchestrator) Verify(ctx context.Context, rawToken string) (uuid.UUID, error) {
	userID, err := o.tokens.Validate(ctx, rawToken, models.PurposeEmailVerification, o.cfg.EmailTokenSecret)
	if err != nil {
		return uuid.Nil, err
	}

	if err := o.repo.SetUserVerified(ctx, userID, o.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Token was redeemed but the account is already verified; the
			// redemption itself stands.
			slog.Warn("verify_already_verified", "user_id", userID)
			return userID, nil
		}
		return uuid.Nil, fmt.Errorf("marking user verified: %w", err)
	}

	slog.Info("email_verified", "user_id", userID)
	return userID, nil
}
