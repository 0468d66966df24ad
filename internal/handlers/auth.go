// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/authkit/internal/i18n"
	"codeberg.org/oliverandrich/authkit/internal/services/auth"
	"codeberg.org/oliverandrich/authkit/internal/services/onboarding"
	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"codeberg.org/oliverandrich/authkit/internal/services/token"
	"github.com/labstack/echo/v4"
)

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Username    string `json:"username" validate:"required,min=3,max=32"`
	DisplayName string `json:"display_name" validate:"required,max=64"`
}

// Register creates a new account and starts email verification.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return bindingError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return bindingError(c, err)
	}

	user, err := h.onboarding.Register(c.Request().Context(), onboarding.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		var pwErr *password.ValidationError
		switch {
		case errors.As(err, &pwErr):
			return passwordError(c, pwErr)
		case errors.Is(err, onboarding.ErrInvalidEmail):
			return registrationError(c, http.StatusBadRequest, "INVALID_EMAIL", "email", msgRegistrationFailed)
		case errors.Is(err, onboarding.ErrDuplicateUser):
			return registrationError(c, http.StatusConflict, "DUPLICATE_USER", "", msgDuplicateUser)
		}
		slog.Error("register_failed", "error", err)
		return internalError(c)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message":                   "Registration successful. Verification email sent.",
		"userId":                    user.ID,
		"emailVerificationRequired": true,
	})
}

// Verify redeems an email verification token passed as a query parameter.
// Decode, expiry and ledger failures all collapse into the same generic
// response; only the logs know the difference.
func (h *Handlers) Verify(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": msgInvalidToken})
	}

	userID, err := h.onboarding.Verify(c.Request().Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrDecode), errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrValidation):
			return c.JSON(http.StatusBadRequest, map[string]string{"message": msgInvalidToken})
		}
		slog.Error("verify_failed", "error", err)
		return internalError(c)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Your email has been successfully verified.",
		"userId":  userID,
	})
}

// ResendRequest is the request body for resending the verification email.
type ResendRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

// ResendVerification restarts verification for an unverified account. The
// response is always the same acknowledgment so account existence cannot be
// probed.
func (h *Handlers) ResendVerification(c echo.Context) error {
	var req ResendRequest
	if err := c.Bind(&req); err == nil {
		if err := c.Validate(&req); err == nil {
			h.onboarding.Resend(c.Request().Context(), req.Identifier)
		}
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": i18n.T(c.Request().Context(), "resend_acknowledgment"),
	})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// Login authenticates with a username or email plus password and returns a
// session token, with a refresh token when remember_me is set.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return bindingError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return bindingError(c, err)
	}

	result, err := h.auth.Login(c.Request().Context(), req.Identifier, req.Password, req.RememberMe)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": msgInvalidCredentials})
		case errors.Is(err, auth.ErrLocked):
			return c.JSON(http.StatusForbidden, map[string]string{"message": msgAccountLocked})
		}
		slog.Error("login_failed", "error", err)
		return internalError(c)
	}

	body := map[string]any{
		"sessionToken": result.SessionToken,
		"expiresIn":    result.ExpiresIn,
	}
	if result.RefreshToken != "" {
		body["refreshToken"] = result.RefreshToken
		body["refreshTokenExpiresIn"] = result.RefreshExpiresIn
	}

	return c.JSON(http.StatusOK, body)
}

// Me returns the authenticated user set by the session middleware.
func (h *Handlers) Me(c echo.Context) error {
	user := CurrentUser(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
	}
	return c.JSON(http.StatusOK, user)
}
