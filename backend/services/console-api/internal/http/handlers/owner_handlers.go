package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/service"
)

// NewOwnerHandler handles GET /evowners/{nic}.
func NewOwnerHandler(owners *service.OwnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := owners.Get(r.Context(), principal(r), mux.Vars(r)["nic"])
		if err != nil {
			writeAppError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, owner)
	}
}

// NewOwnerListHandler handles GET /evowners.
func NewOwnerListHandler(owners *service.OwnerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := owners.List(r.Context(), principal(r))
		if err != nil {
			writeAppError(w, logger, err)
			return
		}
		if list == nil {
			list = []models.Owner{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
