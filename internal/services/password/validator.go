// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package password

import "unicode"

// Validator validates password strength before hashing.
type Validator struct {
	MinLength int
	MaxLength int
}

// DefaultValidator returns a validator with the production rules: 8-128
// characters with at least one uppercase letter, lowercase letter, digit
// and special character.
func DefaultValidator() *Validator {
	return &Validator{
		MinLength: 8,
		MaxLength: 128,
	}
}

// ValidationError carries a stable machine-readable code alongside a
// human-readable message. The code is what crosses the API boundary.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the password against the configured rules. It returns a
// *ValidationError with code INVALID_PASSWORD on the first failed rule.
func (v *Validator) Validate(password string) error {
	if len(password) < v.MinLength {
		return &ValidationError{Code: "INVALID_PASSWORD", Message: "password is too short"}
	}
	if len(password) > v.MaxLength {
		return &ValidationError{Code: "INVALID_PASSWORD", Message: "password is too long"}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return &ValidationError{
			Code:    "INVALID_PASSWORD",
			Message: "password must contain uppercase, lowercase, digit and special characters",
		}
	}

	return nil
}
