package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/lifecycle"
	"evconsole/backend/services/console-api/internal/metrics"
	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/qrtoken"
)

// CreateBookingInput carries the fields of a new reservation.
type CreateBookingInput struct {
	OwnerNIC     string    `json:"ownerNic" validate:"notblank"`
	StationID    string    `json:"stationId" validate:"notblank"`
	StartTimeUTC time.Time `json:"startTimeUtc" validate:"required"`
	EndTimeUTC   time.Time `json:"endTimeUtc" validate:"required"`
}

// BookingService owns booking reads, approval and the charging session protocol.
type BookingService struct {
	bookings BookingStore
	stations StationStore
	sessions SessionCache
	events   EventPublisher
	logger   *zap.Logger

	now        func() time.Time
	issueToken func() (string, error)
}

// BookingOption customises BookingService.
type BookingOption func(*BookingService)

// WithSessionCache attaches the active-session cache.
func WithSessionCache(cache SessionCache) BookingOption {
	return func(s *BookingService) { s.sessions = cache }
}

// WithEventPublisher attaches a publisher for committed transitions.
func WithEventPublisher(p EventPublisher) BookingOption {
	return func(s *BookingService) { s.events = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) BookingOption {
	return func(s *BookingService) { s.now = now }
}

// WithTokenIssuer overrides QR token generation.
func WithTokenIssuer(issue func() (string, error)) BookingOption {
	return func(s *BookingService) { s.issueToken = issue }
}

// NewBookingService builds BookingService.
func NewBookingService(bookings BookingStore, stations StationStore, logger *zap.Logger, opts ...BookingOption) *BookingService {
	s := &BookingService{
		bookings:   bookings,
		stations:   stations,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		issueToken: qrtoken.Issue,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a Pending booking with a pre-issued QR token.
func (s *BookingService) Create(ctx context.Context, actor authz.Principal, in CreateBookingInput) (*models.Booking, error) {
	if !actor.Can(authz.ActionCreateBooking, nil) {
		return nil, apperr.NotAuthorized()
	}
	in.OwnerNIC = strings.TrimSpace(in.OwnerNIC)
	in.StationID = strings.TrimSpace(in.StationID)
	if err := models.CheckFields(in); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if !in.StartTimeUTC.Before(in.EndTimeUTC) {
		return nil, apperr.Validation("startTimeUtc must be before endTimeUtc")
	}

	token, err := s.issueToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	b := &models.Booking{
		ID:           uuid.NewString(),
		OwnerNIC:     in.OwnerNIC,
		StationID:    in.StationID,
		StartTimeUTC: in.StartTimeUTC.UTC(),
		EndTimeUTC:   in.EndTimeUTC.UTC(),
		Status:       models.BookingPending,
		QRCode:       token,
		CreatedUTC:   now,
		UpdatedUTC:   now,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("station_id", b.StationID),
		zap.String("actor_id", actor.UserID),
	)
	s.publish(models.BookingEvent{
		BookingID:        b.ID,
		StationID:        b.StationID,
		Action:           "create",
		To:               b.Status,
		ActorID:          actor.UserID,
		At:               now,
		StationOperators: s.stationOperators(ctx, b.StationID),
	})
	return b, nil
}

// Get returns a booking to Backoffice or to an Operator assigned to its station.
// Operators never see the QR token.
func (s *BookingService) Get(ctx context.Context, actor authz.Principal, id string) (*models.Booking, error) {
	b, _, err := s.loadFor(ctx, actor, authz.ActionReadStation, id)
	if err != nil {
		return nil, err
	}
	return redact(actor, b), nil
}

// List returns bookings matching filter. Backoffice only.
func (s *BookingService) List(ctx context.Context, actor authz.Principal, filter models.BookingFilter) ([]models.Booking, error) {
	if !actor.Can(authz.ActionReadAllBookings, nil) {
		return nil, apperr.NotAuthorized()
	}
	return s.bookings.List(ctx, filter)
}

// ListByStation returns bookings of one station.
func (s *BookingService) ListByStation(ctx context.Context, actor authz.Principal, stationID string) ([]models.Booking, error) {
	if !actor.CanAny(authz.ActionReadStation) {
		return nil, apperr.NotAuthorized()
	}
	station, err := s.stations.Get(ctx, stationID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) && !global(actor, authz.ActionReadStation) {
			return nil, apperr.NotAuthorized()
		}
		return nil, err
	}
	if !actor.Can(authz.ActionReadStation, station.OperatorUserIDs) {
		return nil, apperr.NotAuthorized()
	}
	list, err := s.bookings.List(ctx, models.BookingFilter{StationID: stationID})
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = *redact(actor, &list[i])
	}
	return list, nil
}

// Delete physically removes a booking. Unlike Cancel it leaves no record behind.
func (s *BookingService) Delete(ctx context.Context, actor authz.Principal, id string) error {
	if !actor.Can(authz.ActionDeleteBooking, nil) {
		return apperr.NotAuthorized()
	}
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.bookings.Delete(ctx, id); err != nil {
		return err
	}
	s.dropSession(ctx, id)
	s.logger.Info("booking deleted",
		zap.String("booking_id", id),
		zap.String("status", string(b.Status)),
		zap.String("actor_id", actor.UserID),
	)
	s.publish(models.BookingEvent{
		BookingID:        id,
		StationID:        b.StationID,
		Action:           "delete",
		From:             b.Status,
		ActorID:          actor.UserID,
		At:               s.now(),
		StationOperators: s.stationOperators(ctx, b.StationID),
	})
	return nil
}

// QRCode returns the token of a booking for rendering. Backoffice only.
func (s *BookingService) QRCode(ctx context.Context, actor authz.Principal, id string) (string, error) {
	if !actor.Can(authz.ActionDecide, nil) {
		return "", apperr.NotAuthorized()
	}
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if b.QRCode == "" {
		return "", apperr.NotFound("booking %s has no qr code", id)
	}
	return b.QRCode, nil
}

// loadFor fetches a booking and its station after checking actor may perform action there.
// For actors without global scope a missing booking or station is NotAuthorized.
func (s *BookingService) loadFor(ctx context.Context, actor authz.Principal, action authz.Action, id string) (*models.Booking, *models.Station, error) {
	if !actor.CanAny(action) {
		return nil, nil, apperr.NotAuthorized()
	}
	hide := func(err error) error {
		if errors.Is(err, apperr.ErrNotFound) && !global(actor, action) {
			return apperr.NotAuthorized()
		}
		return err
	}
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, nil, hide(err)
	}
	station, err := s.stations.Get(ctx, b.StationID)
	if err != nil {
		return nil, nil, hide(err)
	}
	if !actor.Can(action, station.OperatorUserIDs) {
		return nil, nil, apperr.NotAuthorized()
	}
	return b, station, nil
}

// commit applies change with compare-and-swap and records the outcome.
func (s *BookingService) commit(ctx context.Context, actor authz.Principal, b *models.Booking, action lifecycle.Action, change models.StatusChange, operators []string) (*models.Booking, error) {
	updated, err := s.bookings.CompareAndSwapStatus(ctx, b.ID, change)
	if err != nil {
		s.refuse(action, err)
		return nil, err
	}
	if operators == nil {
		operators = s.stationOperators(ctx, updated.StationID)
	}
	metrics.ObserveTransition(string(action), string(updated.Status))
	s.logger.Info("booking transitioned",
		zap.String("booking_id", updated.ID),
		zap.String("action", string(action)),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
		zap.String("actor_id", actor.UserID),
	)
	s.publish(models.BookingEvent{
		BookingID:        updated.ID,
		StationID:        updated.StationID,
		Action:           string(action),
		From:             change.From,
		To:               change.To,
		ActorID:          actor.UserID,
		At:               change.At,
		StationOperators: operators,
	})
	return updated, nil
}

func (s *BookingService) refuse(action lifecycle.Action, err error) {
	metrics.IncOperationError(string(action), string(apperr.KindOf(err)))
}

func (s *BookingService) publish(event models.BookingEvent) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

// stationOperators resolves who may follow events of a station. Lookup failures only narrow
// the audience.
func (s *BookingService) stationOperators(ctx context.Context, stationID string) []string {
	if s.events == nil {
		return nil
	}
	station, err := s.stations.Get(ctx, stationID)
	if err != nil {
		s.logger.Warn("failed to resolve station operators", zap.String("station_id", stationID), zap.Error(err))
		return nil
	}
	return station.OperatorUserIDs
}

func (s *BookingService) dropSession(ctx context.Context, bookingID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Delete(ctx, bookingID); err != nil {
		s.logger.Warn("failed to drop cached session", zap.String("booking_id", bookingID), zap.Error(err))
	}
}

func global(actor authz.Principal, action authz.Action) bool {
	return authz.ScopeOf(actor.Role, action) == authz.Global
}

func redact(actor authz.Principal, b *models.Booking) *models.Booking {
	if actor.Role == authz.RoleBackoffice {
		return b
	}
	cp := *b
	cp.QRCode = ""
	return &cp
}
