// Package auth issues and verifies the JWTs of the admin and app systems.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Systems a token can be issued for. Each has its own signing secret.
const (
	SystemAdmin = "admin"
	SystemApp   = "app"
)

// ErrUnknownSystem is returned for a system without a configured secret.
var ErrUnknownSystem = errors.New("unknown token system")

// Claims is the token payload. Role carries the role id.
type Claims struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	System  string `json:"system"`
	Project string `json:"project"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with HS256.
type Issuer struct {
	secrets map[string][]byte
	project string
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer builds an Issuer for the given per-system secrets.
func NewIssuer(adminSecret, appSecret, project string, ttl time.Duration) *Issuer {
	return &Issuer{
		secrets: map[string][]byte{
			SystemAdmin: []byte(strings.TrimSpace(adminSecret)),
			SystemApp:   []byte(strings.TrimSpace(appSecret)),
		},
		project: project,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Project is the tag every token must carry.
func (i *Issuer) Project() string {
	return i.project
}

// Issue signs a token for a subject in system.
func (i *Issuer) Issue(id, roleID, system string) (string, error) {
	secret, err := i.secret(system)
	if err != nil {
		return "", err
	}
	now := i.now()
	claims := Claims{
		ID:      id,
		Role:    roleID,
		System:  system,
		Project: i.project,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse verifies signature and expiry against the secret of system.
func (i *Issuer) Parse(tokenString, system string) (*Claims, error) {
	secret, err := i.secret(system)
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (i *Issuer) secret(system string) ([]byte, error) {
	secret, ok := i.secrets[system]
	if !ok || len(secret) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, system)
	}
	return secret, nil
}
