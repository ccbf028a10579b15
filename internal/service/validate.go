package service

import (
	"regexp"
	"unicode"
)

// emailRe is intentionally loose: real validation happens when the mailer
// worker tries to deliver. It only rejects obviously malformed addresses.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// PasswordPolicy documents the rules enforced at registration and password
// change. It is exposed on a public endpoint so the SPA can render hints
// before submitting.
type PasswordPolicy struct {
	MinLength      int  `json:"min_length"`
	RequireUpper   bool `json:"require_upper"`
	RequireLower   bool `json:"require_lower"`
	RequireDigit   bool `json:"require_digit"`
}

// DefaultPasswordPolicy is the per-install policy. Kept as a value rather
// than configuration because the SPA hardcodes matching hints.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:    8,
	RequireUpper: true,
	RequireLower: true,
	RequireDigit: true,
}

func validateEmail(email string) *ValidationError {
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRe.MatchString(email) {
		return &ValidationError{Field: "email", Message: "email is not a valid address"}
	}
	return nil
}

// validatePassword checks the rules in a fixed order and reports the first
// one violated, so clients always show the same message for the same input.
func validatePassword(pw string) *ValidationError {
	p := DefaultPasswordPolicy
	if len(pw) < p.MinLength {
		return &ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if p.RequireUpper && !hasUpper {
		return &ValidationError{Field: "password", Message: "password must contain an uppercase letter"}
	}
	if p.RequireLower && !hasLower {
		return &ValidationError{Field: "password", Message: "password must contain a lowercase letter"}
	}
	if p.RequireDigit && !hasDigit {
		return &ValidationError{Field: "password", Message: "password must contain a digit"}
	}
	return nil
}
