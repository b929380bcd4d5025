package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// State models the client-side authentication lifecycle.
type State int

const (
	// Anonymous means no usable session exists.
	Anonymous State = iota
	// Authenticating means a login request is in flight.
	Authenticating
	// Authenticated means a stored token exists and has not expired.
	Authenticated
	// Expired means the stored token's lifetime has lapsed; a refresh may
	// still recover the session.
	Expired
)

// String returns the state name for logs and tests.
func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is an immutable snapshot of an authenticated session. A refresh
// produces a new Session that replaces the old one wholesale; no Session is
// ever mutated in place.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the session exists and has not expired at the
// given instant.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

var errNoExpiry = errors.New("token carries no expiry claim")

// Expiry decodes the token's exp claim without verifying the signature.
// Signature verification is the server's job; the client only needs the
// lifetime. Any decode failure, including a missing claim, is an error the
// caller must treat as an expired token.
func Expiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// newSession builds a Session from a freshly issued token. A token whose
// expiry cannot be decoded yields an error rather than a session that would
// immediately fail validation.
func newSession(token string) (Session, error) {
	expires, err := Expiry(token)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires}, nil
}
