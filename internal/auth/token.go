// ABOUTME: Bearer token lookup and identity extraction for API requests
// ABOUTME: Reads the JWT from env, config or token file and decodes its subject claim

package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrNoToken      = errors.New("no token configured")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing required claim")
)

// DefaultTokenEnv is the environment variable consulted first for the token.
const DefaultTokenEnv = "STAKEHOLDER_CHAT_TOKEN"

// Tokens resolves the bearer token for the backend.
// Priority: environment variable > static value > token file.
type Tokens struct {
	EnvVar string
	Static string
	File   string
}

// Token returns the current token, or "" when none is configured. The file is
// re-read on every call so a refreshed token is picked up without restart.
func (t Tokens) Token() string {
	if t.EnvVar != "" {
		if token := os.Getenv(t.EnvVar); token != "" {
			return strings.TrimSpace(token)
		}
	}

	if t.Static != "" {
		return strings.TrimSpace(t.Static)
	}

	if t.File == "" {
		return ""
	}
	data, err := os.ReadFile(t.File)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Identity is the authenticated user described by a token.
type Identity struct {
	Subject   string
	Email     string
	ExpiresAt *time.Time
}

// Expired reports whether the token's exp claim is in the past relative to now.
func (id Identity) Expired(now time.Time) bool {
	return id.ExpiresAt != nil && now.After(*id.ExpiresAt)
}

// ParseIdentity decodes the claims of a JWT without verifying its signature.
// The client never holds the signing secret; the server remains the authority
// and this is only used to scope locally persisted per-user state.
func ParseIdentity(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	id := Identity{Subject: sub}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		id.ExpiresAt = &t
	}

	return id, nil
}
