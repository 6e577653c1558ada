package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/tourguide/internal/auth"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserID returns the authenticated user ID stored by RequireAuth
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// RequireAuth rejects requests without a valid bearer token
func RequireAuth(tokens auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tok, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(tok) == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			userID, err := tokens.Verify(strings.TrimSpace(tok))
			if err != nil {
				hlog.FromRequest(r).Info().Err(err).Msg("rejected token")
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserIDKey, userID)))
		})
	}
}
