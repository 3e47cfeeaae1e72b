package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent from the cache.
var ErrMiss = errors.New("redisstore: cache miss")

// ActiveSession is the cached view of a booking that is charging.
type ActiveSession struct {
	BookingID  string    `json:"bookingId"`
	StationID  string    `json:"stationId"`
	OwnerNIC   string    `json:"ownerNic"`
	OperatorID string    `json:"operatorId"`
	StartedUTC time.Time `json:"startedUtc"`
}

// Store keeps active sessions and first-start markers in redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func sessionKey(bookingID string) string {
	return fmt.Sprintf("console:sessions:active:%s", bookingID)
}

func startKey(bookingID string) string {
	return fmt.Sprintf("console:sessions:started:%s", bookingID)
}

// Save caches session.
func (s *Store) Save(ctx context.Context, session ActiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.BookingID), data, s.ttl).Err()
}

// Get returns cached session or ErrMiss.
func (s *Store) Get(ctx context.Context, bookingID string) (*ActiveSession, error) {
	result, err := s.client.Get(ctx, sessionKey(bookingID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes cached session and its start marker.
func (s *Store) Delete(ctx context.Context, bookingID string) error {
	return s.client.Del(ctx, sessionKey(bookingID), startKey(bookingID)).Err()
}

// MarkStarted records the first start of a booking. It reports false when a marker already existed.
func (s *Store) MarkStarted(ctx context.Context, bookingID, operatorID string) (bool, error) {
	return s.client.SetNX(ctx, startKey(bookingID), operatorID, s.ttl).Result()
}
