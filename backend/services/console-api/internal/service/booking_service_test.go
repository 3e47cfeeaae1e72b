package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/lifecycle"
	"evconsole/backend/services/console-api/internal/models"
)

func TestBookingLifecycleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "S1")

	if _, err := h.bookings.Decide(ctx, backoffice, b.ID, Decision{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := h.status(t, b.ID); got != models.BookingApproved {
		t.Fatalf("expected Approved, got %s", got)
	}

	_, err := h.bookings.Start(ctx, operator, b.ID, "wrong")
	wantKind(t, err, apperr.ErrInvalidToken)
	if got := h.status(t, b.ID); got != models.BookingApproved {
		t.Fatalf("wrong token must leave Approved, got %s", got)
	}

	started, err := h.bookings.Start(ctx, operator, b.ID, correctToken)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.BookingInProgress || started.QRCode != "" {
		t.Fatalf("unexpected started booking %+v", started)
	}

	if _, err := h.bookings.Complete(ctx, operator, b.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = h.bookings.Complete(ctx, operator, b.ID)
	wantKind(t, err, apperr.ErrInvalidTransition)
	if got := h.status(t, b.ID); got != models.BookingCompleted {
		t.Fatalf("expected Completed after failed second complete, got %s", got)
	}

	want := []string{"create", "approve", "start", "complete"}
	got := h.events.actions()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
}

func TestStartChecksTokenBeforeStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.book(t, "S1")
	_, err := h.bookings.Start(ctx, operator, pending.ID, "wrong")
	wantKind(t, err, apperr.ErrInvalidToken)
	_, err = h.bookings.Start(ctx, operator, pending.ID, correctToken)
	wantKind(t, err, apperr.ErrInvalidTransition)

	cancelled := h.book(t, "S1")
	if _, err := h.bookings.Cancel(ctx, backoffice, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = h.bookings.Start(ctx, operator, cancelled.ID, "nope")
	wantKind(t, err, apperr.ErrInvalidToken)
	_, err = h.bookings.Start(ctx, operator, cancelled.ID, correctToken)
	wantKind(t, err, apperr.ErrInvalidTransition)

	_, err = h.bookings.Start(ctx, operator, pending.ID, "")
	wantKind(t, err, apperr.ErrInvalidToken)
	_, err = h.bookings.Start(ctx, operator, pending.ID, "   ")
	wantKind(t, err, apperr.ErrInvalidToken)
	_, err = h.bookings.Start(ctx, operator, pending.ID, correctToken[:4]+"x"+correctToken[5:])
	wantKind(t, err, apperr.ErrInvalidToken)
}

func TestStartComparesTokenExactly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "S1")
	if _, err := h.bookings.Decide(ctx, backoffice, b.ID, Decision{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	for _, presented := range []string{" " + correctToken + "\n", correctToken + " ", "\t" + correctToken, ""} {
		_, err := h.bookings.Start(ctx, operator, b.ID, presented)
		wantKind(t, err, apperr.ErrInvalidToken)
		if got := h.status(t, b.ID); got != models.BookingApproved {
			t.Fatalf("token %q moved booking to %s", presented, got)
		}
	}
	if _, err := h.bookings.Start(ctx, operator, b.ID, correctToken); err != nil {
		t.Fatalf("start with exact token: %v", err)
	}
}

func TestStartRetryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "S1")
	if _, err := h.bookings.Decide(ctx, backoffice, b.ID, Decision{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	first, err := h.bookings.Start(ctx, operator, b.ID, correctToken)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.now = h.now.Add(time.Minute)
	again, err := h.bookings.Start(ctx, operator, b.ID, correctToken)
	if err != nil {
		t.Fatalf("retried start: %v", err)
	}
	if !again.UpdatedUTC.Equal(first.UpdatedUTC) {
		t.Fatalf("retry must not transition again")
	}
	starts := 0
	for _, a := range h.events.actions() {
		if a == string(lifecycle.ActionStart) {
			starts++
		}
	}
	if starts != 1 {
		t.Fatalf("expected one start event, got %d", starts)
	}

	_, err = h.bookings.Start(ctx, operator, b.ID, "wrong")
	wantKind(t, err, apperr.ErrInvalidToken)
}

func TestUnassignedOperatorIsRefused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "S1")
	if _, err := h.bookings.Decide(ctx, backoffice, b.ID, Decision{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := h.bookings.Start(ctx, stranger, b.ID, correctToken)
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.bookings.Start(ctx, stranger, "no-such-booking", correctToken)
	missing := err
	wantKind(t, missing, apperr.ErrNotAuthorized)
	_, err = h.bookings.Start(ctx, stranger, b.ID, correctToken)
	if err.Error() != missing.Error() {
		t.Fatalf("unassigned and missing must read the same: %q vs %q", err, missing)
	}
	_, err = h.bookings.Start(ctx, backoffice, b.ID, correctToken)
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.stations.SetSlots(ctx, stranger, "S1", 1)
	wantKind(t, err, apperr.ErrNotAuthorized)

	if _, err := h.bookings.Start(ctx, operator, b.ID, correctToken); err != nil {
		t.Fatalf("assigned start: %v", err)
	}
	_, err = h.bookings.Complete(ctx, stranger, b.ID)
	wantKind(t, err, apperr.ErrNotAuthorized)
	if got := h.status(t, b.ID); got != models.BookingInProgress {
		t.Fatalf("refused complete must not mutate, got %s", got)
	}
}

func TestTransitionTableByActorAndStatus(t *testing.T) {
	type op struct {
		action lifecycle.Action
		run    func(h *harness, id string) error
	}
	ctx := context.Background()
	ops := []op{
		{lifecycle.ActionApprove, func(h *harness, id string) error {
			_, err := h.bookings.Decide(ctx, backoffice, id, Decision{Approve: true})
			return err
		}},
		{lifecycle.ActionReject, func(h *harness, id string) error {
			_, err := h.bookings.Decide(ctx, backoffice, id, Decision{Reason: "no"})
			return err
		}},
		{lifecycle.ActionStart, func(h *harness, id string) error {
			_, err := h.bookings.Start(ctx, operator, id, correctToken)
			return err
		}},
		{lifecycle.ActionComplete, func(h *harness, id string) error {
			_, err := h.bookings.Complete(ctx, operator, id)
			return err
		}},
		{lifecycle.ActionCancel, func(h *harness, id string) error {
			_, err := h.bookings.Cancel(ctx, backoffice, id)
			return err
		}},
	}
	// paths reach each status from Pending.
	paths := map[models.BookingStatus][]lifecycle.Action{
		models.BookingPending:    nil,
		models.BookingApproved:   {lifecycle.ActionApprove},
		models.BookingInProgress: {lifecycle.ActionApprove, lifecycle.ActionStart},
		models.BookingCompleted:  {lifecycle.ActionApprove, lifecycle.ActionStart, lifecycle.ActionComplete},
		models.BookingRejected:   {lifecycle.ActionReject},
		models.BookingCancelled:  {lifecycle.ActionCancel},
	}
	byAction := map[lifecycle.Action]op{}
	for _, o := range ops {
		byAction[o.action] = o
	}

	for _, from := range lifecycle.Statuses {
		for _, o := range ops {
			h := newHarness(t)
			b := h.book(t, "S1")
			for _, step := range paths[from] {
				if err := byAction[step].run(h, b.ID); err != nil {
					t.Fatalf("reach %s via %s: %v", from, step, err)
				}
			}
			err := o.run(h, b.ID)
			tr, defined := lifecycle.TransitionFor(from, o.action)
			retriedStart := from == models.BookingInProgress && o.action == lifecycle.ActionStart
			switch {
			case defined:
				if err != nil {
					t.Errorf("%s from %s: unexpected error %v", o.action, from, err)
				} else if got := h.status(t, b.ID); got != tr.To {
					t.Errorf("%s from %s: status %s, want %s", o.action, from, got, tr.To)
				}
			case retriedStart:
				if err != nil {
					t.Errorf("retried start should succeed, got %v", err)
				}
			default:
				wantKind(t, err, apperr.ErrInvalidTransition)
				if got := h.status(t, b.ID); got != from {
					t.Errorf("%s from %s mutated status to %s", o.action, from, got)
				}
			}
		}
	}
}

func TestConcurrentDecisionsSerialize(t *testing.T) {
	for i := 0; i < 25; i++ {
		h := newHarness(t)
		ctx := context.Background()
		b := h.book(t, "S2")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = h.bookings.Decide(ctx, backoffice, b.ID, Decision{Approve: true, Expected: models.BookingPending})
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = h.bookings.Decide(ctx, backoffice, b.ID, Decision{Reason: "duplicate", Expected: models.BookingPending})
		}()
		wg.Wait()

		switch {
		case errs[0] == nil && errs[1] != nil:
			wantKind(t, errs[1], apperr.ErrInvalidTransition)
			if got := h.status(t, b.ID); got != models.BookingApproved {
				t.Fatalf("approve won but status is %s", got)
			}
		case errs[1] == nil && errs[0] != nil:
			wantKind(t, errs[0], apperr.ErrInvalidTransition)
			stored, _ := h.store.Bookings.Get(ctx, b.ID)
			if stored.Status != models.BookingRejected || stored.RejectionReason != "duplicate" {
				t.Fatalf("reject won but booking is %+v", stored)
			}
		default:
			t.Fatalf("expected exactly one winner, got %v and %v", errs[0], errs[1])
		}
	}
}

func TestDecideRejectionReasonAndApprovalToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, "S1")
	rejected, err := h.bookings.Decide(ctx, backoffice, b.ID, Decision{Reason: "  station closed for repair "})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason != "  station closed for repair " {
		t.Fatalf("reason must be stored verbatim, got %q", rejected.RejectionReason)
	}
	_, err = h.bookings.Decide(ctx, backoffice, b.ID, Decision{Approve: true})
	wantKind(t, err, apperr.ErrInvalidTransition)

	approvedThenRejected := h.book(t, "S1")
	if _, err := h.bookings.Decide(ctx, backoffice, approvedThenRejected.ID, Decision{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = h.bookings.Decide(ctx, backoffice, approvedThenRejected.ID, Decision{Approve: true})
	wantKind(t, err, apperr.ErrInvalidTransition)
	if _, err := h.bookings.Decide(ctx, backoffice, approvedThenRejected.ID, Decision{}); err != nil {
		t.Fatalf("reject approved: %v", err)
	}

	_, err = h.bookings.Decide(ctx, operator, b.ID, Decision{Approve: true})
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.bookings.Decide(ctx, owner, b.ID, Decision{Approve: true})
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.bookings.Decide(ctx, backoffice, "missing", Decision{Approve: true})
	wantKind(t, err, apperr.ErrNotFound)
}

func TestApproveIssuesTokenWhenMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.now
	legacy := models.Booking{
		ID: "legacy", OwnerNIC: "1", StationID: "S1", Status: models.BookingPending,
		StartTimeUTC: now, EndTimeUTC: now.Add(time.Hour), CreatedUTC: now, UpdatedUTC: now,
	}
	if err := h.store.Bookings.Create(ctx, &legacy); err != nil {
		t.Fatalf("seed: %v", err)
	}
	approved, err := h.bookings.Decide(ctx, backoffice, "legacy", Decision{Approve: true})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.QRCode != correctToken {
		t.Fatalf("expected token to be issued, got %q", approved.QRCode)
	}
}

func TestCreateValidatesAndChecksStation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := CreateBookingInput{OwnerNIC: "1", StationID: "S1", StartTimeUTC: h.now, EndTimeUTC: h.now.Add(time.Hour)}

	bad := base
	bad.EndTimeUTC = bad.StartTimeUTC
	_, err := h.bookings.Create(ctx, backoffice, bad)
	wantKind(t, err, apperr.ErrValidation)

	bad = base
	bad.StationID = "missing"
	_, err = h.bookings.Create(ctx, backoffice, bad)
	wantKind(t, err, apperr.ErrNotFound)

	_, err = h.bookings.Create(ctx, operator, base)
	wantKind(t, err, apperr.ErrNotAuthorized)

	b, err := h.bookings.Create(ctx, backoffice, base)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != models.BookingPending || b.QRCode != correctToken || b.ID == "" {
		t.Fatalf("unexpected booking %+v", b)
	}
}

func TestReadsAreScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b1 := h.book(t, "S1")
	h.book(t, "S2")

	all, err := h.bookings.List(ctx, backoffice, models.BookingFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("backoffice list: %v %d", err, len(all))
	}
	_, err = h.bookings.List(ctx, operator, models.BookingFilter{})
	wantKind(t, err, apperr.ErrNotAuthorized)

	mine, err := h.bookings.ListByStation(ctx, operator, "S1")
	if err != nil || len(mine) != 1 || mine[0].QRCode != "" {
		t.Fatalf("operator station list: %v %+v", err, mine)
	}
	_, err = h.bookings.ListByStation(ctx, operator, "S2")
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.bookings.ListByStation(ctx, operator, "S404")
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.bookings.ListByStation(ctx, backoffice, "S404")
	wantKind(t, err, apperr.ErrNotFound)

	got, err := h.bookings.Get(ctx, backoffice, b1.ID)
	if err != nil || got.QRCode != correctToken {
		t.Fatalf("backoffice get: %v %+v", err, got)
	}
	_, err = h.bookings.Get(ctx, stranger, b1.ID)
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.bookings.Get(ctx, owner, b1.ID)
	wantKind(t, err, apperr.ErrNotAuthorized)

	token, err := h.bookings.QRCode(ctx, backoffice, b1.ID)
	if err != nil || token != correctToken {
		t.Fatalf("qr code: %v %q", err, token)
	}
	_, err = h.bookings.QRCode(ctx, operator, b1.ID)
	wantKind(t, err, apperr.ErrNotAuthorized)
}

func TestDeleteRemovesBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "S1")

	wantKind(t, h.bookings.Delete(ctx, operator, b.ID), apperr.ErrNotAuthorized)
	if err := h.bookings.Delete(ctx, backoffice, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := h.store.Bookings.Get(ctx, b.ID)
	wantKind(t, err, apperr.ErrNotFound)
	wantKind(t, h.bookings.Delete(ctx, backoffice, b.ID), apperr.ErrNotFound)
}

func TestActiveSessionCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "S1")
	if _, err := h.bookings.Decide(ctx, backoffice, b.ID, Decision{Approve: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err := h.bookings.ActiveSession(ctx, operator, b.ID)
	wantKind(t, err, apperr.ErrNotFound)

	if _, err := h.bookings.Start(ctx, operator, b.ID, correctToken); err != nil {
		t.Fatalf("start: %v", err)
	}
	session, err := h.bookings.ActiveSession(ctx, operator, b.ID)
	if err != nil || session.OperatorID != operator.UserID {
		t.Fatalf("cached session: %v %+v", err, session)
	}

	h.cache.fail = context.DeadlineExceeded
	session, err = h.bookings.ActiveSession(ctx, backoffice, b.ID)
	if err != nil || session.BookingID != b.ID || session.OperatorID != "" {
		t.Fatalf("fallback session: %v %+v", err, session)
	}
	if _, err := h.bookings.Complete(ctx, operator, b.ID); err != nil {
		t.Fatalf("complete must not fail on cache errors: %v", err)
	}
}

func TestOwnerRoleIsDeniedEverywhere(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "S1")

	_, err := h.bookings.Cancel(ctx, owner, b.ID)
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.bookings.Start(ctx, owner, b.ID, correctToken)
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.stations.List(ctx, owner)
	wantKind(t, err, apperr.ErrNotAuthorized)
	_, err = h.stations.SetSlots(ctx, owner, "S1", 1)
	wantKind(t, err, apperr.ErrNotAuthorized)
	if h.status(t, b.ID) != models.BookingPending {
		t.Fatalf("owner calls must not mutate")
	}
}
