// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/authkit/internal/ctxkeys"
	"codeberg.org/oliverandrich/authkit/internal/models"
	"codeberg.org/oliverandrich/authkit/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// RequireSession authenticates the request via a bearer session token and
// stores the user in the request context.
func RequireSession(authService *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
			}

			user, err := authService.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "not authenticated"})
			}

			ctx := context.WithValue(c.Request().Context(), ctxkeys.User{}, user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user from the request context, or
// nil if the request is unauthenticated.
func CurrentUser(c echo.Context) *models.User {
	if user, ok := c.Request().Context().Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}
