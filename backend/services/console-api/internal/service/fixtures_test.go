package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/models"
	redisstore "evconsole/backend/services/console-api/internal/redis"
	"evconsole/backend/services/console-api/internal/repository/memory"
)

var (
	backoffice = authz.Principal{UserID: "bo-1", Username: "admin", Role: authz.RoleBackoffice}
	operator   = authz.Principal{UserID: "op-1", Username: "olga", Role: authz.RoleOperator}
	stranger   = authz.Principal{UserID: "op-2", Username: "oscar", Role: authz.RoleOperator}
	owner      = authz.Principal{UserID: "ow-1", Username: "nimal", Role: authz.RoleOwner}
)

const correctToken = "Tok-3xA9"

type fakeCache struct {
	mu       sync.Mutex
	sessions map[string]redisstore.ActiveSession
	started  map[string]string
	fail     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{sessions: map[string]redisstore.ActiveSession{}, started: map[string]string{}}
}

func (c *fakeCache) Save(_ context.Context, s redisstore.ActiveSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sessions[s.BookingID] = s
	return nil
}

func (c *fakeCache) Get(_ context.Context, id string) (*redisstore.ActiveSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	s, ok := c.sessions[id]
	if !ok {
		return nil, redisstore.ErrMiss
	}
	return &s, nil
}

func (c *fakeCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	delete(c.sessions, id)
	delete(c.started, id)
	return nil
}

func (c *fakeCache) MarkStarted(_ context.Context, id, operatorID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return false, c.fail
	}
	if _, ok := c.started[id]; ok {
		return false, nil
	}
	c.started[id] = operatorID
	return true, nil
}

type recorder struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (r *recorder) Publish(e models.BookingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type harness struct {
	store    *memory.Store
	stations *StationService
	bookings *BookingService
	cache    *fakeCache
	events   *recorder
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{
		store:  memory.New(),
		cache:  newFakeCache(),
		events: &recorder{},
		now:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, u := range []models.User{
		{ID: "op-1", Username: "olga", Role: authz.RoleOperator, IsActive: true},
		{ID: "op-2", Username: "oscar", Role: authz.RoleOperator, IsActive: true},
		{ID: "op-3", Username: "retired", Role: authz.RoleOperator},
		{ID: "bo-1", Username: "admin", Role: authz.RoleBackoffice, IsActive: true},
	} {
		u := u
		if err := h.store.Users.Create(ctx, &u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	for _, st := range []models.Station{
		{StationID: "S1", Name: "Colombo 1", Type: models.StationAC, AvailableSlots: 2, IsActive: true, OperatorUserIDs: []string{"op-1"}},
		{StationID: "S2", Name: "Kandy", Type: models.StationDC, AvailableSlots: 3, IsActive: true, OperatorUserIDs: []string{"op-2"}},
	} {
		st := st
		if err := h.store.Stations.Create(ctx, &st); err != nil {
			t.Fatalf("seed station: %v", err)
		}
	}

	logger := zap.NewNop()
	h.stations = NewStationService(h.store.Stations, h.store.Users, logger)
	h.bookings = NewBookingService(h.store.Bookings, h.store.Stations, logger,
		WithSessionCache(h.cache),
		WithEventPublisher(h.events),
		WithClock(func() time.Time { return h.now }),
		WithTokenIssuer(func() (string, error) { return correctToken, nil }),
	)
	return h
}

func (h *harness) book(t *testing.T, stationID string) *models.Booking {
	t.Helper()
	b, err := h.bookings.Create(context.Background(), backoffice, CreateBookingInput{
		OwnerNIC:     "991234567V",
		StationID:    stationID,
		StartTimeUTC: h.now.Add(time.Hour),
		EndTimeUTC:   h.now.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (h *harness) status(t *testing.T, id string) models.BookingStatus {
	t.Helper()
	b, err := h.store.Bookings.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	return b.Status
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
