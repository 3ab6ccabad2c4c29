package authlink

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenState classifies an access token at the moment it is about to be used.
type TokenState int

const (
	TokenAbsent TokenState = iota
	TokenValid
	TokenExpired
	TokenMalformed
)

func (s TokenState) String() string {
	switch s {
	case TokenAbsent:
		return "absent"
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	case TokenMalformed:
		return "malformed"
	}
	return fmt.Sprintf("TokenState(%d)", int(s))
}

// NeedsRefresh reports whether a token in this state must be refreshed before use.
func (s TokenState) NeedsRefresh() bool {
	return s != TokenValid
}

// ErrEmptyToken is returned by Claims for an empty token.
var ErrEmptyToken = errors.New("empty token")

// AccessTokenClaims are the claims the client reads from an access token.
type AccessTokenClaims struct {
	// UserID is the identity claim issued by the API server.
	UserID any `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the identity carried by the token: userId if present,
// otherwise the subject. Returns "" if the token carries neither.
func (c *AccessTokenClaims) Identity() string {
	switch v := c.UserID.(type) {
	case nil:
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
	return c.Subject
}

// Validator decodes access tokens and classifies their expiry. It never
// verifies signatures: only the server holds the key.
type Validator struct {
	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time

	parser *jwt.Parser
}

// NewValidator creates a Validator using the given clock (nil for time.Now).
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{
		Now:    now,
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
	}
}

// Claims decodes the token's claims without verifying its signature.
func (v *Validator) Claims(token string) (*AccessTokenClaims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	claims := &AccessTokenClaims{}
	if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// Classify returns the state of token. It has no side effects and malformed
// input is a result, never an error.
func (v *Validator) Classify(token string) TokenState {
	if token == "" {
		return TokenAbsent
	}
	claims, err := v.Claims(token)
	if err != nil {
		return TokenMalformed
	}
	// no exp claim means the token does not expire
	if claims.ExpiresAt == nil {
		return TokenValid
	}
	if !v.Now().Before(claims.ExpiresAt.Time) {
		return TokenExpired
	}
	return TokenValid
}

// ExpiresAt returns the token's expiry, or the zero time if it has none or
// cannot be decoded.
func (v *Validator) ExpiresAt(token string) time.Time {
	claims, err := v.Claims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
