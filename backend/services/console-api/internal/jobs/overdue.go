// Package jobs runs periodic maintenance for the console.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/metrics"
	"evconsole/backend/services/console-api/internal/models"
)

// BookingLister reads bookings by filter.
type BookingLister interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

// OverdueReport counts bookings whose slot has already ended.
type OverdueReport struct {
	// NoShows are Approved bookings that were never started.
	NoShows []string
	// Overruns are sessions still InProgress after their end time.
	Overruns []string
}

// OverdueSweep reports bookings past their end time. It never changes booking state.
type OverdueSweep struct {
	bookings BookingLister
	logger   *zap.Logger
	now      func() time.Time
}

// NewOverdueSweep builds the sweep.
func NewOverdueSweep(bookings BookingLister, logger *zap.Logger) *OverdueSweep {
	return &OverdueSweep{bookings: bookings, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Run performs one sweep and publishes the counts as gauges.
func (s *OverdueSweep) Run(ctx context.Context) (OverdueReport, error) {
	var report OverdueReport
	now := s.now()

	approved, err := s.bookings.List(ctx, models.BookingFilter{Status: models.BookingApproved})
	if err != nil {
		return report, err
	}
	for _, b := range approved {
		if b.EndTimeUTC.Before(now) {
			report.NoShows = append(report.NoShows, b.ID)
		}
	}

	running, err := s.bookings.List(ctx, models.BookingFilter{Status: models.BookingInProgress})
	if err != nil {
		return report, err
	}
	for _, b := range running {
		if b.EndTimeUTC.Before(now) {
			report.Overruns = append(report.Overruns, b.ID)
		}
	}

	metrics.SetOverdue(string(models.BookingApproved), len(report.NoShows))
	metrics.SetOverdue(string(models.BookingInProgress), len(report.Overruns))
	if len(report.NoShows) > 0 || len(report.Overruns) > 0 {
		s.logger.Warn("overdue bookings found",
			zap.Strings("no_shows", report.NoShows),
			zap.Strings("overruns", report.Overruns),
		)
	}
	return report, nil
}
