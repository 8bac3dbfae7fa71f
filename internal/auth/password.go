package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password strengths. Only StrengthValid is accepted at registration.
const (
	StrengthInvalid  = "invalid"
	StrengthTooShort = "too short"
	StrengthValid    = "valid"
	StrengthNormal   = "normal"
	StrengthWeak     = "weak"
)

const passwordSymbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"

// PasswordStrength grades a password.
func PasswordStrength(password string) string {
	if strings.TrimSpace(password) == "" {
		return StrengthInvalid
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	if len(password) < 8 {
		return StrengthTooShort
	}
	switch {
	case lower && upper && digit && symbol:
		return StrengthValid
	case lower && (digit || upper || symbol):
		return StrengthNormal
	case lower || upper || digit || symbol:
		return StrengthWeak
	default:
		return StrengthInvalid
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
