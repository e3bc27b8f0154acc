package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair holds the access/refresh tokens and the access token's expiry.
// Tokens are opaque bearer credentials issued by the auth backend; this
// package manages their lifecycle, never their cryptography.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the pair may be stored. A pair without an access
// token is invalid.
func (p TokenPair) Valid() bool {
	return p.AccessToken != ""
}

// ExpiresWithin reports whether the access token expires within buffer of
// now. False when the expiry is unknown.
func (p TokenPair) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	return p.ExpiresAt.Sub(now) < buffer
}

// NewTokenPair derives the expiry from the issuing response: expiresIn
// seconds from now. When the response omits it, the unverified JWT exp claim
// serves as a fallback hint.
func NewTokenPair(accessToken, refreshToken string, expiresIn int64, now time.Time) TokenPair {
	pair := TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}
	if expiresIn > 0 {
		pair.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	} else if hint, ok := ExpiryHint(accessToken); ok {
		pair.ExpiresAt = hint
	}
	return pair
}

// ExpiryHint decodes the exp claim of a JWT-shaped token WITHOUT verifying
// its signature. That makes it a scheduling hint only: it may steer when we
// refresh or skip a doomed round trip, but it is never an input to an
// authorization decision — the server validates the token on every call.
func ExpiryHint(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
