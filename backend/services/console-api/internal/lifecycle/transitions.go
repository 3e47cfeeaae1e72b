// Package lifecycle is the single authority on booking status transitions.
package lifecycle

import (
	"time"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/models"
)

// Action is an event that moves a booking between statuses.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Actions lists every lifecycle action.
var Actions = []Action{ActionApprove, ActionReject, ActionStart, ActionComplete, ActionCancel}

// Statuses lists every booking status.
var Statuses = []models.BookingStatus{
	models.BookingPending,
	models.BookingApproved,
	models.BookingInProgress,
	models.BookingCompleted,
	models.BookingRejected,
	models.BookingCancelled,
}

// Transition is a single allowed edge.
type Transition struct {
	From   models.BookingStatus
	To     models.BookingStatus
	Action Action
}

var transitionsTable = []Transition{
	{From: models.BookingPending, To: models.BookingApproved, Action: ActionApprove},
	{From: models.BookingPending, To: models.BookingRejected, Action: ActionReject},
	// Re-decision before the session starts.
	{From: models.BookingApproved, To: models.BookingRejected, Action: ActionReject},
	{From: models.BookingApproved, To: models.BookingInProgress, Action: ActionStart},
	{From: models.BookingInProgress, To: models.BookingCompleted, Action: ActionComplete},
	{From: models.BookingPending, To: models.BookingCancelled, Action: ActionCancel},
	{From: models.BookingApproved, To: models.BookingCancelled, Action: ActionCancel},
}

// TransitionFor returns the allowed transition for from+action.
func TransitionFor(from models.BookingStatus, action Action) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Action == action {
			return tr, true
		}
	}
	return Transition{}, false
}

// Next resolves the target status or fails with InvalidStateTransition.
func Next(from models.BookingStatus, action Action) (models.BookingStatus, error) {
	tr, ok := TransitionFor(from, action)
	if !ok {
		return "", apperr.InvalidTransition("cannot %s a booking in status %s", action, from)
	}
	return tr.To, nil
}

// Change builds the conditional update for action applied to b at now.
func Change(b models.Booking, action Action, now time.Time) (models.StatusChange, error) {
	to, err := Next(b.Status, action)
	if err != nil {
		return models.StatusChange{}, err
	}
	return models.StatusChange{From: b.Status, To: to, At: now.UTC()}, nil
}

// Apply mutates b in place. It leaves b untouched on error.
func Apply(b *models.Booking, change models.StatusChange) error {
	if b.Status != change.From {
		return apperr.InvalidTransition("booking %s is %s, expected %s", b.ID, b.Status, change.From)
	}
	if !Allowed(change.From, change.To) {
		return apperr.InvalidTransition("no transition from %s to %s", change.From, change.To)
	}
	b.Status = change.To
	if change.QRCode != nil {
		b.QRCode = *change.QRCode
	}
	if change.RejectionReason != nil {
		b.RejectionReason = *change.RejectionReason
	}
	b.UpdatedUTC = change.At
	return nil
}

// Allowed reports whether some action moves a booking from one status to the other.
func Allowed(from, to models.BookingStatus) bool {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status models.BookingStatus) bool {
	for _, tr := range transitionsTable {
		if tr.From == status {
			return false
		}
	}
	return true
}

// NonTerminal lists the statuses that still have outgoing transitions.
func NonTerminal() []models.BookingStatus {
	var out []models.BookingStatus
	for _, s := range Statuses {
		if !IsTerminal(s) {
			out = append(out, s)
		}
	}
	return out
}

// ParseStatus validates a status name.
func ParseStatus(value string) (models.BookingStatus, bool) {
	for _, s := range Statuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}
