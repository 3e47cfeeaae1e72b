// Package memory is an in-process store with the same conditional-update contract as the
// Postgres repositories. It backs local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/lifecycle"
	"evconsole/backend/services/console-api/internal/models"
)

type state struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
	stations map[string]models.Station
	users    map[string]models.User
	owners   map[string]models.Owner
	now      func() time.Time
}

// Store groups the per-entity views over one shared state.
type Store struct {
	Bookings *BookingStore
	Stations *StationStore
	Users    *UserStore
	Owners   *OwnerStore
}

// New returns an empty store.
func New() *Store {
	st := &state{
		bookings: make(map[string]models.Booking),
		stations: make(map[string]models.Station),
		users:    make(map[string]models.User),
		owners:   make(map[string]models.Owner),
		now:      func() time.Time { return time.Now().UTC() },
	}
	return &Store{
		Bookings: &BookingStore{st: st},
		Stations: &StationStore{st: st},
		Users:    &UserStore{st: st},
		Owners:   &OwnerStore{st: st},
	}
}

// BookingStore keeps bookings.
type BookingStore struct {
	st *state
}

// Create inserts a booking against an existing, active station.
func (s *BookingStore) Create(_ context.Context, b *models.Booking) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	station, ok := s.st.stations[b.StationID]
	if !ok {
		return apperr.NotFound("station %s not found", b.StationID)
	}
	if !station.IsActive {
		return apperr.Conflict("station %s is not active", b.StationID)
	}
	if _, exists := s.st.bookings[b.ID]; exists {
		return apperr.Conflict("booking %s already exists", b.ID)
	}
	s.st.bookings[b.ID] = *b
	return nil
}

// Get returns a copy of the booking.
func (s *BookingStore) Get(_ context.Context, id string) (*models.Booking, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	b, ok := s.st.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking %s not found", id)
	}
	return &b, nil
}

// List returns bookings matching filter, newest first.
func (s *BookingStore) List(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var out []models.Booking
	for _, b := range s.st.bookings {
		if filter.Match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedUTC.Equal(out[j].CreatedUTC) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedUTC.After(out[j].CreatedUTC)
	})
	return out, nil
}

// CompareAndSwapStatus applies change only while the stored status equals change.From.
func (s *BookingStore) CompareAndSwapStatus(_ context.Context, id string, change models.StatusChange) (*models.Booking, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	b, ok := s.st.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking %s not found", id)
	}
	if err := lifecycle.Apply(&b, change); err != nil {
		return nil, err
	}
	s.st.bookings[id] = b
	return &b, nil
}

// Delete removes the booking.
func (s *BookingStore) Delete(_ context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.bookings[id]; !ok {
		return apperr.NotFound("booking %s not found", id)
	}
	delete(s.st.bookings, id)
	return nil
}

// StationStore keeps stations.
type StationStore struct {
	st *state
}

// Create inserts a station.
func (s *StationStore) Create(_ context.Context, station *models.Station) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.stations[station.StationID]; ok {
		return apperr.Conflict("station %s already exists", station.StationID)
	}
	now := s.st.now()
	station.CreatedUTC, station.UpdatedUTC = now, now
	station.OperatorUserIDs = copyIDs(station.OperatorUserIDs)
	s.st.stations[station.StationID] = *station
	return nil
}

// Get returns a copy of the station.
func (s *StationStore) Get(_ context.Context, stationID string) (*models.Station, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	station, ok := s.st.stations[stationID]
	if !ok {
		return nil, apperr.NotFound("station %s not found", stationID)
	}
	station.OperatorUserIDs = copyIDs(station.OperatorUserIDs)
	return &station, nil
}

// List returns all stations ordered by id.
func (s *StationStore) List(_ context.Context) ([]models.Station, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	out := make([]models.Station, 0, len(s.st.stations))
	for _, station := range s.st.stations {
		station.OperatorUserIDs = copyIDs(station.OperatorUserIDs)
		out = append(out, station)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out, nil
}

// Update rewrites descriptive attributes.
func (s *StationStore) Update(_ context.Context, station *models.Station) (*models.Station, error) {
	return s.mutate(station.StationID, func(cur *models.Station) error {
		cur.Name = station.Name
		cur.Latitude = station.Latitude
		cur.Longitude = station.Longitude
		cur.Address = station.Address
		cur.Type = station.Type
		return nil
	})
}

// SetSlots stores the slot count.
func (s *StationStore) SetSlots(_ context.Context, stationID string, slots int) (*models.Station, error) {
	return s.mutate(stationID, func(cur *models.Station) error {
		cur.AvailableSlots = slots
		return nil
	})
}

// SetActive toggles activation, refusing deactivation while non-terminal bookings exist.
func (s *StationStore) SetActive(_ context.Context, stationID string, active bool) (*models.Station, error) {
	return s.mutate(stationID, func(cur *models.Station) error {
		if !active {
			for _, b := range s.st.bookings {
				if b.StationID == stationID && !lifecycle.IsTerminal(b.Status) {
					return apperr.Conflict("station %s has active bookings and cannot be deactivated", stationID)
				}
			}
		}
		cur.IsActive = active
		return nil
	})
}

// SetOperators replaces the operator assignment.
func (s *StationStore) SetOperators(_ context.Context, stationID string, userIDs []string) (*models.Station, error) {
	return s.mutate(stationID, func(cur *models.Station) error {
		cur.OperatorUserIDs = copyIDs(userIDs)
		return nil
	})
}

// Delete removes a station that no booking references.
func (s *StationStore) Delete(_ context.Context, stationID string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.stations[stationID]; !ok {
		return apperr.NotFound("station %s not found", stationID)
	}
	for _, b := range s.st.bookings {
		if b.StationID == stationID {
			return apperr.Conflict("station %s has bookings and cannot be deleted", stationID)
		}
	}
	delete(s.st.stations, stationID)
	return nil
}

func (s *StationStore) mutate(stationID string, fn func(cur *models.Station) error) (*models.Station, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	cur, ok := s.st.stations[stationID]
	if !ok {
		return nil, apperr.NotFound("station %s not found", stationID)
	}
	if err := fn(&cur); err != nil {
		return nil, err
	}
	cur.UpdatedUTC = s.st.now()
	s.st.stations[stationID] = cur
	cur.OperatorUserIDs = copyIDs(cur.OperatorUserIDs)
	return &cur, nil
}

// UserStore keeps console accounts.
type UserStore struct {
	st *state
}

// Create inserts a user keyed by lower-cased username.
func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	for _, u := range s.st.users {
		if u.Username == user.Username {
			return apperr.Conflict("username %s already exists", user.Username)
		}
	}
	user.CreatedUTC = s.st.now()
	s.st.users[user.ID] = *user
	return nil
}

// Get fetches a user by id.
func (s *UserStore) Get(_ context.Context, id string) (*models.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	u, ok := s.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return &u, nil
}

// GetByUsername fetches a user by username.
func (s *UserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, u := range s.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

// ListEligibleOperators returns active Operator accounts ordered by username.
func (s *UserStore) ListEligibleOperators(_ context.Context) ([]models.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var out []models.User
	for _, u := range s.st.users {
		if u.EligibleOperator() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// List returns every account ordered by username.
func (s *UserStore) List(_ context.Context) ([]models.User, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	out := make([]models.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Update rewrites username, role, password hash and activation.
func (s *UserStore) Update(_ context.Context, user *models.User) (*models.User, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	cur, ok := s.st.users[user.ID]
	if !ok {
		return nil, apperr.NotFound("user %s not found", user.ID)
	}
	username := strings.ToLower(strings.TrimSpace(user.Username))
	for id, u := range s.st.users {
		if id != user.ID && u.Username == username {
			return nil, apperr.Conflict("username %s already exists", username)
		}
	}
	cur.Username = username
	cur.Role = user.Role
	cur.PasswordHash = user.PasswordHash
	cur.IsActive = user.IsActive
	s.st.users[user.ID] = cur
	return &cur, nil
}

// SetActive toggles activation.
func (s *UserStore) SetActive(_ context.Context, id string, active bool) (*models.User, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	cur, ok := s.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	cur.IsActive = active
	s.st.users[id] = cur
	return &cur, nil
}

// Delete removes a user that no station lists as operator.
func (s *UserStore) Delete(_ context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.users[id]; !ok {
		return apperr.NotFound("user %s not found", id)
	}
	for _, station := range s.st.stations {
		for _, opID := range station.OperatorUserIDs {
			if opID == id {
				return apperr.Conflict("user %s is assigned to station %s", id, station.StationID)
			}
		}
	}
	delete(s.st.users, id)
	return nil
}

// OwnerStore keeps EV owner profiles.
type OwnerStore struct {
	st *state
}

// Put stores an owner profile.
func (s *OwnerStore) Put(_ context.Context, owner models.Owner) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.owners[owner.NIC] = owner
}

// Get returns owner by NIC.
func (s *OwnerStore) Get(_ context.Context, nic string) (*models.Owner, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	o, ok := s.st.owners[nic]
	if !ok {
		return nil, apperr.NotFound("owner %s not found", nic)
	}
	return &o, nil
}

// List returns every owner ordered by NIC.
func (s *OwnerStore) List(_ context.Context) ([]models.Owner, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	out := make([]models.Owner, 0, len(s.st.owners))
	for _, o := range s.st.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NIC < out[j].NIC })
	return out, nil
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
