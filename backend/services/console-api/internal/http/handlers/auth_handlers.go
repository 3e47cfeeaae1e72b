package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/service"
)

// NewLoginHandler handles POST /auth/login.
func NewLoginHandler(authService *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	type request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	type response struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
		UserID    string `json:"userId"`
		Username  string `json:"username"`
		Role      string `json:"role"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req, false); err != nil {
			writeAppError(w, logger, err)
			return
		}

		token, user, err := authService.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeAppError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, response{
			Token:     token,
			TokenType: "Bearer",
			UserID:    user.ID,
			Username:  user.Username,
			Role:      string(user.Role),
		})
	}
}
