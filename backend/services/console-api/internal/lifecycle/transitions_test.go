package lifecycle

import (
	"errors"
	"testing"
	"time"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/models"
)

func TestTransitionTableIsExhaustive(t *testing.T) {
	allowed := map[models.BookingStatus]map[Action]models.BookingStatus{
		models.BookingPending: {
			ActionApprove: models.BookingApproved,
			ActionReject:  models.BookingRejected,
			ActionCancel:  models.BookingCancelled,
		},
		models.BookingApproved: {
			ActionReject: models.BookingRejected,
			ActionStart:  models.BookingInProgress,
			ActionCancel: models.BookingCancelled,
		},
		models.BookingInProgress: {
			ActionComplete: models.BookingCompleted,
		},
	}

	for _, from := range Statuses {
		for _, action := range Actions {
			want, ok := allowed[from][action]
			got, err := Next(from, action)
			if ok {
				if err != nil || got != want {
					t.Errorf("%s/%s: got %q %v, want %q", from, action, got, err, want)
				}
				continue
			}
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("%s/%s: expected invalid transition, got %v", from, action, err)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[models.BookingStatus]bool{
		models.BookingCompleted: true,
		models.BookingRejected:  true,
		models.BookingCancelled: true,
	}
	for _, s := range Statuses {
		if IsTerminal(s) != terminal[s] {
			t.Errorf("%s: terminal=%v", s, IsTerminal(s))
		}
	}
	if len(NonTerminal()) != 3 {
		t.Fatalf("expected 3 non-terminal statuses, got %v", NonTerminal())
	}
}

func TestApplyRefreshesUpdatedOnly(t *testing.T) {
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	b := models.Booking{ID: "b1", Status: models.BookingPending, CreatedUTC: created, UpdatedUTC: created}
	now := created.Add(time.Hour)

	change, err := Change(b, ActionReject, now)
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	reason := "duplicate"
	change.RejectionReason = &reason
	if err := Apply(&b, change); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b.Status != models.BookingRejected || b.RejectionReason != "duplicate" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if !b.UpdatedUTC.Equal(now) || !b.CreatedUTC.Equal(created) {
		t.Fatalf("timestamps wrong: created=%s updated=%s", b.CreatedUTC, b.UpdatedUTC)
	}
}

func TestApplyStaleChangeLeavesBooking(t *testing.T) {
	b := models.Booking{ID: "b1", Status: models.BookingApproved}
	stale := models.StatusChange{From: models.BookingPending, To: models.BookingRejected, At: time.Now()}
	if err := Apply(&b, stale); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if b.Status != models.BookingApproved {
		t.Fatalf("booking mutated: %s", b.Status)
	}
}

func TestNoBackwardTransitions(t *testing.T) {
	rank := map[models.BookingStatus]int{
		models.BookingPending:    0,
		models.BookingApproved:   1,
		models.BookingInProgress: 2,
		models.BookingCompleted:  3,
		models.BookingRejected:   3,
		models.BookingCancelled:  3,
	}
	for _, tr := range transitionsTable {
		if rank[tr.To] <= rank[tr.From] {
			t.Errorf("transition %s -> %s moves backward", tr.From, tr.To)
		}
	}
}
