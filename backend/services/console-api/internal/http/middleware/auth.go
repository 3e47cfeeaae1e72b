package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
)

// Authenticator resolves a bearer token to the caller.
type Authenticator interface {
	Authenticate(token string) (authz.Principal, error)
}

// AuthMiddleware requires a valid bearer JWT and stores the caller's principal in the request
// context. Websocket upgrades may pass the token as ?token= since browsers cannot set headers there.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r)
			if !ok {
				writeUnauthenticated(w, "missing or malformed authorization header")
				return
			}
			principal, err := auth.Authenticate(tokenStr)
			if err != nil {
				writeUnauthenticated(w, "invalid or expired token")
				return
			}
			ctx := authz.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		tok := strings.TrimSpace(parts[1])
		return tok, tok != ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		tok := strings.TrimSpace(r.URL.Query().Get("token"))
		return tok, tok != ""
	}
	return "", false
}

func writeUnauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="evconsole"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  string(apperr.KindUnauthenticated),
	})
}
