package service

import (
	"context"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/lifecycle"
	"evconsole/backend/services/console-api/internal/models"
)

// Decision is a back-office verdict on a booking.
type Decision struct {
	Approve bool
	// Reason is stored verbatim on rejection and ignored on approval.
	Reason string
	// Expected, when set, is the status the caller based its decision on. The decision fails
	// with InvalidTransition if the booking has moved on, so two racing decisions made from
	// the same view cannot both win.
	Expected models.BookingStatus
}

// Decide approves or rejects a booking. Approval issues a QR token when none exists yet;
// rejection accepts Pending or Approved bookings.
func (s *BookingService) Decide(ctx context.Context, actor authz.Principal, id string, d Decision) (*models.Booking, error) {
	action := lifecycle.ActionReject
	if d.Approve {
		action = lifecycle.ActionApprove
	}
	if !actor.Can(authz.ActionDecide, nil) {
		s.refuse(action, apperr.ErrNotAuthorized)
		return nil, apperr.NotAuthorized()
	}
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Expected != "" && b.Status != d.Expected {
		err := apperr.InvalidTransition("booking %s is %s, expected %s", b.ID, b.Status, d.Expected)
		s.refuse(action, err)
		return nil, err
	}
	change, err := lifecycle.Change(*b, action, s.now())
	if err != nil {
		s.refuse(action, err)
		return nil, err
	}
	if d.Approve {
		if b.QRCode == "" {
			token, err := s.issueToken()
			if err != nil {
				return nil, err
			}
			change.QRCode = &token
		}
	} else {
		reason := d.Reason
		change.RejectionReason = &reason
	}
	return s.commit(ctx, actor, b, action, change, nil)
}

// Cancel withdraws a Pending or Approved booking.
func (s *BookingService) Cancel(ctx context.Context, actor authz.Principal, id string) (*models.Booking, error) {
	if !actor.Can(authz.ActionCancel, nil) {
		s.refuse(lifecycle.ActionCancel, apperr.ErrNotAuthorized)
		return nil, apperr.NotAuthorized()
	}
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := lifecycle.Change(*b, lifecycle.ActionCancel, s.now())
	if err != nil {
		s.refuse(lifecycle.ActionCancel, err)
		return nil, err
	}
	return s.commit(ctx, actor, b, lifecycle.ActionCancel, change, nil)
}
