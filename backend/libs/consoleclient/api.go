package consoleclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Booking mirrors the console booking resource.
type Booking struct {
	ID              string    `json:"id"`
	OwnerNIC        string    `json:"ownerNic"`
	StationID       string    `json:"stationId"`
	StartTimeUTC    time.Time `json:"startTimeUtc"`
	EndTimeUTC      time.Time `json:"endTimeUtc"`
	Status          string    `json:"status"`
	QRCode          string    `json:"qrCode,omitempty"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	CreatedUTC      time.Time `json:"createdUtc"`
	UpdatedUTC      time.Time `json:"updatedUtc"`
}

// Station mirrors the console station resource.
type Station struct {
	StationID       string    `json:"stationId"`
	Name            string    `json:"name"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Address         string    `json:"address"`
	Type            string    `json:"type"`
	AvailableSlots  int       `json:"availableSlots"`
	IsActive        bool      `json:"isActive"`
	OperatorUserIDs []string  `json:"operatorUserIds"`
	CreatedUTC      time.Time `json:"createdUtc"`
	UpdatedUTC      time.Time `json:"updatedUtc"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// BookingQuery filters ListBookings. Zero fields are ignored.
type BookingQuery struct {
	Status    string
	StationID string
	Date      time.Time
}

// Login exchanges credentials for a session. Use WithCredential(ctx, session.Token) afterwards.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var s Session
	err := c.call(ctx, request{
		method:     http.MethodPost,
		path:       "/auth/login",
		in:         map[string]string{"username": username, "password": password},
		out:        &s,
		replayable: true,
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStations returns the stations visible to the caller.
func (c *Client) ListStations(ctx context.Context) ([]Station, error) {
	var out []Station
	return out, c.read(ctx, "/stations", &out)
}

// ListBookings returns bookings matching q.
func (c *Client) ListBookings(ctx context.Context, q BookingQuery) ([]Booking, error) {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.StationID != "" {
		values.Set("stationId", q.StationID)
	}
	if !q.Date.IsZero() {
		values.Set("date", q.Date.Format("2006-01-02"))
	}
	path := "/bookings"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var out []Booking
	return out, c.read(ctx, path, &out)
}

// ListStationBookings returns bookings of one station.
func (c *Client) ListStationBookings(ctx context.Context, stationID string) ([]Booking, error) {
	var out []Booking
	return out, c.read(ctx, "/bookings/station/"+url.PathEscape(stationID), &out)
}

// GetBooking returns one booking.
func (c *Client) GetBooking(ctx context.Context, id string) (*Booking, error) {
	var b Booking
	if err := c.read(ctx, "/bookings/"+url.PathEscape(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Decide approves or rejects a booking. expected is the status the decision was based on;
// pass "" to skip that check. It is sent once.
func (c *Client) Decide(ctx context.Context, id string, approve bool, reason, expected string) (*Booking, error) {
	body := map[string]interface{}{"approve": approve, "reason": reason}
	if expected != "" {
		body["expectedStatus"] = expected
	}
	return c.transition(ctx, id, "/approve", body, false)
}

// Start begins a charging session with the scanned QR code. Whitespace picked up by the
// scanner or keyboard is trimmed here; the server compares exactly.
func (c *Client) Start(ctx context.Context, id, qrCode string) (*Booking, error) {
	return c.transition(ctx, id, "/start", map[string]string{"qrCode": strings.TrimSpace(qrCode)}, true)
}

// Complete ends a charging session. It is sent once.
func (c *Client) Complete(ctx context.Context, id string) (*Booking, error) {
	return c.transition(ctx, id, "/complete", nil, false)
}

// Cancel withdraws a booking. It is sent once.
func (c *Client) Cancel(ctx context.Context, id string) (*Booking, error) {
	return c.transition(ctx, id, "/cancel", nil, false)
}

// DeleteBooking removes a booking. It is sent once.
func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	return c.call(ctx, request{
		method:        http.MethodDelete,
		path:          "/bookings/" + url.PathEscape(id),
		authenticated: true,
	})
}

// SetSlots sets a station's available slots.
func (c *Client) SetSlots(ctx context.Context, stationID string, n int) (*Station, error) {
	return c.stationUpdate(ctx, fmt.Sprintf("/stations/%s/slots?availableSlots=%d", url.PathEscape(stationID), n))
}

// SetStationActive toggles a station's activation.
func (c *Client) SetStationActive(ctx context.Context, stationID string, active bool) (*Station, error) {
	return c.stationUpdate(ctx, fmt.Sprintf("/stations/%s/status?isActive=%t", url.PathEscape(stationID), active))
}

func (c *Client) read(ctx context.Context, path string, out interface{}) error {
	return c.call(ctx, request{method: http.MethodGet, path: path, out: out, authenticated: true, replayable: true})
}

// stationUpdate sets an absolute value, so repeating it is harmless.
func (c *Client) stationUpdate(ctx context.Context, path string) (*Station, error) {
	var st Station
	if err := c.call(ctx, request{method: http.MethodPatch, path: path, out: &st, authenticated: true, replayable: true}); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) transition(ctx context.Context, id, suffix string, body interface{}, replayable bool) (*Booking, error) {
	var b Booking
	err := c.call(ctx, request{
		method:        http.MethodPatch,
		path:          "/bookings/" + url.PathEscape(id) + suffix,
		in:            body,
		out:           &b,
		authenticated: true,
		replayable:    replayable,
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}
