package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no bearer token is held.
	ErrNoToken = errors.New("no session token")
	// ErrOpaqueToken is returned when the token is not a decodable JWT.
	ErrOpaqueToken = errors.New("session token is not a JWT")
)

// Claims are the informational fields of the bearer token. They are decoded
// without signature verification and must not be used for authorization.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Claims decodes the current token.
func (s *Store) Claims() (Claims, error) {
	token := s.Token()
	if token == "" {
		return Claims{}, ErrNoToken
	}
	return ParseClaims(token)
}

// ParseClaims decodes a JWT without verifying it.
func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	var out Claims
	out.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	out.Email, _ = mc["email"].(string)
	out.Name, _ = mc["name"].(string)
	return out, nil
}
