package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/lifecycle"
	"evconsole/backend/services/console-api/internal/models"
	"evconsole/backend/services/console-api/internal/qrtoken"
	redisstore "evconsole/backend/services/console-api/internal/redis"
)

// Start begins charging on an Approved booking after the operator presents its QR token.
// The token must equal the stored one byte for byte and is checked before the status, so any
// other token, including an empty or padded one, is InvalidToken whatever the status.
// Repeating a start with the right token on a booking already InProgress succeeds without
// a second transition.
func (s *BookingService) Start(ctx context.Context, actor authz.Principal, id, token string) (*models.Booking, error) {
	if !actor.CanAny(authz.ActionSession) {
		s.refuse(lifecycle.ActionStart, apperr.ErrNotAuthorized)
		return nil, apperr.NotAuthorized()
	}
	b, station, err := s.loadFor(ctx, actor, authz.ActionSession, id)
	if err != nil {
		s.refuse(lifecycle.ActionStart, err)
		return nil, err
	}
	if !qrtoken.Equal(b.QRCode, token) {
		err := apperr.InvalidToken("qr code does not match booking")
		s.refuse(lifecycle.ActionStart, err)
		return nil, err
	}
	if b.Status == models.BookingInProgress {
		s.logger.Info("session start repeated", zap.String("booking_id", b.ID), zap.String("actor_id", actor.UserID))
		return redact(actor, b), nil
	}

	change, err := lifecycle.Change(*b, lifecycle.ActionStart, s.now())
	if err != nil {
		s.refuse(lifecycle.ActionStart, err)
		return nil, err
	}
	updated, err := s.commit(ctx, actor, b, lifecycle.ActionStart, change, station.OperatorUserIDs)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidTransition) {
			// A concurrent start with the same token won the race.
			if cur, getErr := s.bookings.Get(ctx, id); getErr == nil && cur.Status == models.BookingInProgress {
				return redact(actor, cur), nil
			}
		}
		return nil, err
	}
	s.cacheSession(ctx, actor, updated)
	return redact(actor, updated), nil
}

// Complete ends charging on an InProgress booking.
func (s *BookingService) Complete(ctx context.Context, actor authz.Principal, id string) (*models.Booking, error) {
	b, station, err := s.loadFor(ctx, actor, authz.ActionSession, id)
	if err != nil {
		s.refuse(lifecycle.ActionComplete, err)
		return nil, err
	}
	change, err := lifecycle.Change(*b, lifecycle.ActionComplete, s.now())
	if err != nil {
		s.refuse(lifecycle.ActionComplete, err)
		return nil, err
	}
	updated, err := s.commit(ctx, actor, b, lifecycle.ActionComplete, change, station.OperatorUserIDs)
	if err != nil {
		return nil, err
	}
	s.dropSession(ctx, id)
	return redact(actor, updated), nil
}

// ActiveSession returns the charging session of an InProgress booking, from cache when possible.
func (s *BookingService) ActiveSession(ctx context.Context, actor authz.Principal, id string) (*redisstore.ActiveSession, error) {
	b, _, err := s.loadFor(ctx, actor, authz.ActionReadStation, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingInProgress {
		return nil, apperr.NotFound("booking %s has no active session", id)
	}
	if s.sessions != nil {
		session, err := s.sessions.Get(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, redisstore.ErrMiss) {
			s.logger.Warn("failed to read cached session", zap.String("booking_id", id), zap.Error(err))
		}
	}
	return &redisstore.ActiveSession{
		BookingID:  b.ID,
		StationID:  b.StationID,
		OwnerNIC:   b.OwnerNIC,
		StartedUTC: b.UpdatedUTC,
	}, nil
}

func (s *BookingService) cacheSession(ctx context.Context, actor authz.Principal, b *models.Booking) {
	if s.sessions == nil {
		return
	}
	first, err := s.sessions.MarkStarted(ctx, b.ID, actor.UserID)
	if err != nil {
		s.logger.Warn("failed to mark session start", zap.String("booking_id", b.ID), zap.Error(err))
	} else if !first {
		return
	}
	session := redisstore.ActiveSession{
		BookingID:  b.ID,
		StationID:  b.StationID,
		OwnerNIC:   b.OwnerNIC,
		OperatorID: actor.UserID,
		StartedUTC: b.UpdatedUTC,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("failed to cache session", zap.String("booking_id", b.ID), zap.Error(err))
	}
}
