package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/lifecycle"
	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/qrtoken"
	"evconsole/backend/services/console-api/internal/service"
)

const qrImageSize = 256

// BookingHandlers serves bookings, approval and the session protocol.
type BookingHandlers struct {
	bookings *service.BookingService
	logger   *zap.Logger
}

// NewBookingHandlers returns handler set.
func NewBookingHandlers(bookings *service.BookingService, logger *zap.Logger) *BookingHandlers {
	return &BookingHandlers{bookings: bookings, logger: logger}
}

// List handles GET /bookings?status=&stationId=&ownerNic=&date=YYYY-MM-DD.
func (h *BookingHandlers) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	list, err := h.bookings.List(r.Context(), principal(r), filter)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// ListByStation handles GET /bookings/station/{id}.
func (h *BookingHandlers) ListByStation(w http.ResponseWriter, r *http.Request) {
	list, err := h.bookings.ListByStation(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// Get handles GET /bookings/{id}.
func (h *BookingHandlers) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), principal(r), mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, b, err)
}

// Create handles POST /bookings.
func (h *BookingHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookingInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	b, err := h.bookings.Create(r.Context(), principal(r), in)
	h.respond(w, http.StatusCreated, b, err)
}

// Decide handles PATCH /bookings/{id}/approve with body {approve, reason, expectedStatus}.
func (h *BookingHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve        *bool  `json:"approve"`
		Reason         string `json:"reason"`
		ExpectedStatus string `json:"expectedStatus"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if req.Approve == nil {
		writeAppError(w, h.logger, apperr.Validation("approve is required"))
		return
	}
	d := service.Decision{Approve: *req.Approve, Reason: req.Reason}
	if req.ExpectedStatus != "" {
		status, ok := lifecycle.ParseStatus(req.ExpectedStatus)
		if !ok {
			writeAppError(w, h.logger, apperr.Validation("unknown expectedStatus %q", req.ExpectedStatus))
			return
		}
		d.Expected = status
	}
	b, err := h.bookings.Decide(r.Context(), principal(r), mux.Vars(r)["id"], d)
	h.respond(w, http.StatusOK, b, err)
}

// Start handles PATCH /bookings/{id}/start with body {qrCode}.
func (h *BookingHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRCode string `json:"qrCode"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	b, err := h.bookings.Start(r.Context(), principal(r), mux.Vars(r)["id"], req.QRCode)
	h.respond(w, http.StatusOK, b, err)
}

// Complete handles PATCH /bookings/{id}/complete.
func (h *BookingHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Complete(r.Context(), principal(r), mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, b, err)
}

// Cancel handles PATCH /bookings/{id}/cancel.
func (h *BookingHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Cancel(r.Context(), principal(r), mux.Vars(r)["id"])
	h.respond(w, http.StatusOK, b, err)
}

// Delete handles DELETE /bookings/{id}.
func (h *BookingHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.Delete(r.Context(), principal(r), mux.Vars(r)["id"]); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QRCode handles GET /bookings/{id}/qrcode and returns a PNG.
func (h *BookingHandlers) QRCode(w http.ResponseWriter, r *http.Request) {
	token, err := h.bookings.QRCode(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	png, err := qrtoken.PNG(token, qrImageSize)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Session handles GET /bookings/{id}/session.
func (h *BookingHandlers) Session(w http.ResponseWriter, r *http.Request) {
	session, err := h.bookings.ActiveSession(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *BookingHandlers) respond(w http.ResponseWriter, status int, b *models.Booking, err error) {
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, status, b)
}

func parseFilter(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	filter := models.BookingFilter{
		StationID: strings.TrimSpace(q.Get("stationId")),
		OwnerNIC:  strings.TrimSpace(q.Get("ownerNic")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := lifecycle.ParseStatus(raw)
		if !ok {
			return filter, apperr.Validation("unknown status %q", raw)
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, apperr.Validation("date must be YYYY-MM-DD")
		}
		filter.Day = &day
	}
	return filter, nil
}

func nonNil(list []models.Booking) []models.Booking {
	if list == nil {
		return []models.Booking{}
	}
	return list
}
