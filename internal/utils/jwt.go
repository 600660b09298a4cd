package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by TokenExpiry for tokens without an exp claim.
var ErrNoExpiry = errors.New("token carries no expiry")

// DefaultTokenLifetime is assumed when neither expires_in nor the token
// itself tells when it expires.
const DefaultTokenLifetime = time.Hour

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The client never holds the server's signing key; the value is only used to
// schedule refreshes.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("error parsing access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.UTC(), nil
}

// AccessTokenExpiry decides when an access token obtained at now expires:
// expires_in seconds when the server sent it, then the token's exp claim,
// then DefaultTokenLifetime.
func AccessTokenExpiry(token string, expiresIn int, now time.Time) time.Time {
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second).UTC()
	}
	if exp, err := TokenExpiry(token); err == nil {
		return exp
	}
	return now.Add(DefaultTokenLifetime).UTC()
}

// ExpiresWithin reports whether a token expiring at expiresAt is already
// expired or will be within window of now. A zero expiresAt counts as
// expired.
func ExpiresWithin(expiresAt, now time.Time, window time.Duration) bool {
	if expiresAt.IsZero() {
		return true
	}
	return !now.Add(window).Before(expiresAt)
}
