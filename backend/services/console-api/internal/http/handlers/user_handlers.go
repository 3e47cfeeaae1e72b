package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/service"
)

// UserHandlers serves console account administration.
type UserHandlers struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewUserHandlers returns handler set.
func NewUserHandlers(users *service.UserService, logger *zap.Logger) *UserHandlers {
	return &UserHandlers{users: users, logger: logger}
}

// List handles GET /users.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), principal(r))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Create handles POST /users.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in models.UserInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	user, err := h.users.Create(r.Context(), principal(r), in)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Update handles PUT /users/{id}.
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in models.UserInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	user, err := h.users.Update(r.Context(), principal(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SetStatus handles PATCH /users/{id}/status?isActive=bool.
func (h *UserHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	active, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("isActive")))
	if err != nil {
		writeAppError(w, h.logger, apperr.Validation("isActive must be true or false"))
		return
	}
	user, err := h.users.SetActive(r.Context(), principal(r), mux.Vars(r)["id"], active)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /users/{id}.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), principal(r), mux.Vars(r)["id"]); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
