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

// StationHandlers serves the station directory.
type StationHandlers struct {
	stations *service.StationService
	logger   *zap.Logger
}

// NewStationHandlers returns handler set.
func NewStationHandlers(stations *service.StationService, logger *zap.Logger) *StationHandlers {
	return &StationHandlers{stations: stations, logger: logger}
}

// List handles GET /stations.
func (h *StationHandlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.stations.List(r.Context(), principal(r))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /stations/{id}.
func (h *StationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.stations.Get(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Create handles POST /stations.
func (h *StationHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in models.Station
	if err := decodeJSON(r, &in, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	st, err := h.stations.Create(r.Context(), principal(r), in)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// Update handles PUT /stations/{id}. The path id wins over any id in the body.
func (h *StationHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in models.Station
	if err := decodeJSON(r, &in, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	in.StationID = mux.Vars(r)["id"]
	st, err := h.stations.Update(r.Context(), principal(r), in)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SetSlots handles PATCH /stations/{id}/slots?availableSlots=n.
func (h *StationHandlers) SetSlots(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("availableSlots"))
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeAppError(w, h.logger, apperr.Validation("availableSlots must be an integer"))
		return
	}
	st, err := h.stations.SetSlots(r.Context(), principal(r), mux.Vars(r)["id"], n)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SetStatus handles PATCH /stations/{id}/status?isActive=bool.
func (h *StationHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	active, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("isActive")))
	if err != nil {
		writeAppError(w, h.logger, apperr.Validation("isActive must be true or false"))
		return
	}
	st, err := h.stations.SetActive(r.Context(), principal(r), mux.Vars(r)["id"], active)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Delete handles DELETE /stations/{id}.
func (h *StationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.stations.Delete(r.Context(), principal(r), mux.Vars(r)["id"]); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignOperators handles PUT /stations/{id}/operators.
func (h *StationHandlers) AssignOperators(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorUserIDs []string `json:"operatorUserIds"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	st, err := h.stations.AssignOperators(r.Context(), principal(r), mux.Vars(r)["id"], req.OperatorUserIDs)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// EligibleOperators handles GET /users/operators.
func (h *StationHandlers) EligibleOperators(w http.ResponseWriter, r *http.Request) {
	users, err := h.stations.EligibleOperators(r.Context(), principal(r))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
