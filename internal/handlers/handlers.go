// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the JSON HTTP handlers.
package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/authkit/internal/services/auth"
	"codeberg.org/oliverandrich/authkit/internal/services/onboarding"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	onboarding *onboarding.Orchestrator
	auth       *auth.Service
}

// New creates a new Handlers instance.
func New(onb *onboarding.Orchestrator, authService *auth.Service) *Handlers {
	return &Handlers{onboarding: onb, auth: authService}
}

// Validator adapts go-playground/validator to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
