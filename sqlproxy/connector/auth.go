package connector

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

func normalizeAuthToken(token string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
}

// checkAuthToken rejects JWT auth tokens whose exp claim has already passed,
// so the caller gets a connect error instead of an opaque 401 on first use.
// The signature is not checked; only the server can do that. Tokens that are
// not JWTs are passed through untouched.
func checkAuthToken(token string, now time.Time) error {
	if token == "" || strings.Count(token, ".") != 2 {
		return nil
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return types.NewError(types.KindConnect, "auth token expired at %s", claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}
