package auth

import (
	"context"
	"net/http"
	"strings"

	"nanochat/internal/identity"
)

type ctxKey int

const userKey ctxKey = 0

// UserFrom extracts the authenticated user injected by Middleware.
func UserFrom(ctx context.Context) (identity.AuthenticatedUser, bool) {
	u, ok := ctx.Value(userKey).(identity.AuthenticatedUser)
	return u, ok
}

// Middleware verifies an Authorization: Bearer access token and, on success,
// injects the embedded user view into the request context.
//
// A missing header, malformed scheme, bad signature, wrong algorithm or
// expired token all leave the request unauthenticated rather than rejecting
// it; route-level RequireUser decides whether that matters.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := bearerToken(r); ok {
				if user, err := tokens.VerifyAccess(raw); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), userKey, user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser answers 401 for requests that carry no verified identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", false
	}
	return tok, true
}
