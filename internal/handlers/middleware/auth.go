package middleware

import (
	"net/http"
	"strings"

	"github.com/vparshin/authgate/internal/handlers"
	"github.com/vparshin/authgate/internal/handlers/render"
)

type accessParser interface {
	// Validate access token and return the username it was issued for
	ParseAccess(access string) (username string, err error)
}

// AuthMiddleware is a pure per-request gate: no state, no storage.
// Missing or malformed credential is 401, a presented but bad one is 403.
// Expired and tampered tokens answer the same to avoid oracle leakage.
func AuthMiddleware(parser accessParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			username, err := parser.ParseAccess(token)
			if err != nil {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}

			ctx := handlers.NewContextWithUsername(r.Context(), username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from 'Authorization: Bearer <token>'
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}

	return token, true
}
