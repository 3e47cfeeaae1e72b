package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code apperr.Kind, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: string(code)})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInvalidTransition, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidToken:
		return http.StatusUnprocessableEntity
	case apperr.KindNotAuthorized:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError renders classified errors with their own message and hides everything else.
func writeAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		writeError(w, StatusFor(appErr.Kind), appErr.Kind, appErr.Message)
		return
	}
	logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "", "internal error")
}

// decodeJSON reads a JSON body into dst. An empty body is allowed when optional is true.
func decodeJSON(r *http.Request, dst interface{}, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}
	return nil
}

func principal(r *http.Request) authz.Principal {
	p, _ := authz.PrincipalFromContext(r.Context())
	return p
}
