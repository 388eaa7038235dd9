package session

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// expiry reads the exp claim without verifying the signature; only the server
// can verify it. ok is false when the token is not a JWT or carries no exp.
func expiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether token carries an exp claim at or before now.
// Opaque tokens are never considered expired here.
func Expired(token string, now time.Time) bool {
	exp, ok := expiry(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
