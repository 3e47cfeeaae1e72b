package service

import (
	"context"

	"evconsole/backend/services/console-api/internal/models"
	redisstore "evconsole/backend/services/console-api/internal/redis"
)

// BookingStore persists bookings. CompareAndSwapStatus must apply change only while the stored
// status equals change.From and report InvalidTransition otherwise.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	Get(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	CompareAndSwapStatus(ctx context.Context, id string, change models.StatusChange) (*models.Booking, error)
	Delete(ctx context.Context, id string) error
}

// StationStore persists stations. SetActive(false) must fail with Conflict while the station
// has non-terminal bookings; Delete must fail with Conflict while any booking references it.
type StationStore interface {
	Create(ctx context.Context, s *models.Station) error
	Get(ctx context.Context, stationID string) (*models.Station, error)
	List(ctx context.Context) ([]models.Station, error)
	Update(ctx context.Context, s *models.Station) (*models.Station, error)
	SetSlots(ctx context.Context, stationID string, slots int) (*models.Station, error)
	SetActive(ctx context.Context, stationID string, active bool) (*models.Station, error)
	SetOperators(ctx context.Context, stationID string, userIDs []string) (*models.Station, error)
	Delete(ctx context.Context, stationID string) error
}

// UserStore persists console accounts. Usernames are unique case-insensitively; Delete must
// fail with Conflict while the user is assigned to a station.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	ListEligibleOperators(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// OwnerStore reads EV owner profiles.
type OwnerStore interface {
	Get(ctx context.Context, nic string) (*models.Owner, error)
	List(ctx context.Context) ([]models.Owner, error)
}

// SessionCache keeps a fast view of charging sessions. Failures never fail a request.
type SessionCache interface {
	Save(ctx context.Context, session redisstore.ActiveSession) error
	Get(ctx context.Context, bookingID string) (*redisstore.ActiveSession, error)
	Delete(ctx context.Context, bookingID string) error
	MarkStarted(ctx context.Context, bookingID, operatorID string) (bool, error)
}

// EventPublisher fans booking events out to live subscribers.
type EventPublisher interface {
	Publish(event models.BookingEvent)
}
