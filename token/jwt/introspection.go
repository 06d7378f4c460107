package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-task-client/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims are the fields the client reads from an access token. Signatures are
// never verified client side: the backend is the authority and the client only
// needs identity hints and the expiry.
type Claims struct {
	UserID      int64  `json:"user_id"`                // Backend user ID
	Username    string `json:"username,omitempty"`     // Login name
	IsSuperuser bool   `json:"is_superuser,omitempty"` // Elevated privilege flag
	TokenType   string `json:"token_type,omitempty"`   // "access" or "refresh"
	jwtlib.RegisteredClaims
}

// Identity converts the claims to the user record the session holds.
func (c *Claims) Identity() *users.User {
	return &users.User{
		ID:          c.UserID,
		Username:    c.Username,
		IsSuperuser: c.IsSuperuser,
	}
}

// Decode extracts the claims from rawToken without verifying its signature.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("empty token")
	}

	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// Expiry returns the token's exp claim. ok is false when the token cannot be
// decoded or carries no exp.
func Expiry(rawToken string) (exp time.Time, ok bool) {
	claims, err := Decode(rawToken)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsExpired reports whether rawToken's exp claim is at or before now. A token
// that cannot be decoded counts as expired; one without exp never expires.
func IsExpired(rawToken string, now time.Time) bool {
	claims, err := Decode(rawToken)
	if err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
