// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/authkit/internal/services/password"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// errorResponse is the sanitized error shape crossing the API boundary.
// Only stable codes and generic messages leave the process; the underlying
// error detail stays in the logs.
type errorResponse struct {
	Error        string `json:"error"`
	ErrorCode    string `json:"errorCode"`
	Field        string `json:"field,omitempty"`
	ErrorMessage string `json:"errorMessage"`
}

const (
	msgRegistrationFailed = "Registration could not be completed. Please check your input and try again."
	msgDuplicateUser      = "Username or email already exists."
	msgInvalidToken       = "This verification link is invalid or has expired."
	msgInvalidCredentials = "Incorrect username or password."
	msgAccountLocked      = "This account is locked."
	msgInternal           = "Something went wrong."
)

func registrationError(c echo.Context, status int, code, field, message string) error {
	return c.JSON(status, errorResponse{
		Error:        "REGISTRATION_FAILED",
		ErrorCode:    code,
		Field:        field,
		ErrorMessage: message,
	})
}

// bindingError maps request binding and validation failures to a structured
// field + code response.
func bindingError(c echo.Context, err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		first := validationErrs[0]
		code := "VALIDATION_ERROR"
		if first.Tag() == "email" {
			code = "INVALID_EMAIL"
		}
		return registrationError(c, http.StatusBadRequest, code, fieldName(first), msgRegistrationFailed)
	}
	return registrationError(c, http.StatusBadRequest, "VALIDATION_ERROR", "", msgRegistrationFailed)
}

// passwordError maps password strength failures to their stable code.
func passwordError(c echo.Context, err *password.ValidationError) error {
	return registrationError(c, http.StatusBadRequest, err.Code, "password", msgRegistrationFailed)
}

func internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, errorResponse{
		Error:        "INTERNAL_ERROR",
		ErrorCode:    "UNKNOWN_ERROR",
		ErrorMessage: msgInternal,
	})
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Email":
		return "email"
	case "Password":
		return "password"
	case "Username":
		return "username"
	case "DisplayName":
		return "display_name"
	case "Identifier":
		return "identifier"
	}
	return fe.Field()
}
