package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bunkhouselabs/bunkhouse/internal/auth"
	"github.com/bunkhouselabs/bunkhouse/internal/store"
)

// RequireAuth validates the bearer token and populates AuthContext. A token
// passes only if its signature checks out AND a matching session is still
// active AND the deadline has not passed; every validation failure produces
// the same 401 so callers cannot tell which check tripped. Storage errors
// are not validation failures and surface as a 500 instead.
func RequireAuth(jwtSecret []byte, sessions *store.SessionStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			claims, err := auth.ParseToken(token, jwtSecret)
			if err != nil {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetActiveByToken(token)
			if err != nil {
				logger.Error("session lookup", "error", err)
				internalError(w)
				return
			}
			if sess == nil {
				unauthorized(w)
				return
			}

			// Best-effort activity bump; the deadline never moves, and a
			// failed bump must not cost the caller a valid session.
			if err := sessions.Touch(sess.ID); err != nil {
				logger.Warn("session touch", "session_id", sess.ID, "error", err)
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				Email:     claims.Subject,
				Role:      claims.Role,
				SessionID: sess.ID,
				Token:     token,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole restricts a route to the given roles. Runs after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := auth.Role(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "forbidden", "message": "insufficient rights"},
			})
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": "authentication required"},
	})
}

func internalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "internal_error", "message": "internal server error"},
	})
}
