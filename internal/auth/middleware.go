package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware stores the verified State in the request context. Requests whose
// credentials fail verification are rejected with 401.
func Middleware(v Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, err := v.Verify(r)
			if err != nil {
				logger.Info("request authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
				deny(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithState(r.Context(), state)))
		})
	}
}

// RequireAdmin lets through signed-in requests whose state carries the admin
// claim or whose account is listed in accounts. It runs after Middleware.
func RequireAdmin(accounts []string, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		if a = strings.TrimSpace(a); a != "" {
			allowed[a] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := FromContext(r.Context())
			if !state.Authenticated() {
				deny(w, http.StatusUnauthorized, "UNAUTHENTICATED", "sign in required")
				return
			}
			if _, ok := allowed[state.AccountID]; !ok && !state.Admin {
				logger.Warn("admin access denied", zap.String("account_id", state.AccountID), zap.String("path", r.URL.Path))
				deny(w, http.StatusForbidden, "FORBIDDEN", "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
