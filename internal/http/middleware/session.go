package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"ourdates/internal/auth"
	"ourdates/internal/logging"
)

// SessionResolver builds the request session for an authenticated user.
type SessionResolver interface {
	Session(ctx context.Context, userID uint64) (auth.Session, error)
}

// RequireSession runs after auth.RequireAuth and stores the caller's
// auth.Session in the request context.
func RequireSession(res SessionResolver, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				jsonError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			sess, err := res.Session(r.Context(), uid)
			if err != nil {
				// token outlived its user
				log.Warn(r.Context(), "session lookup failed", "user_id", uid, "err", err)
				jsonError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}

// RequireCouple rejects sessions that have not created or joined a couple
// yet with 409 "setup required".
func RequireCouple(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.SessionFromContext(r.Context())
		if !ok || !sess.HasCouple() {
			jsonError(w, http.StatusConflict, "setup required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
