package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "Pending"
	BookingApproved   BookingStatus = "Approved"
	BookingInProgress BookingStatus = "InProgress"
	BookingCompleted  BookingStatus = "Completed"
	BookingRejected   BookingStatus = "Rejected"
	BookingCancelled  BookingStatus = "Cancelled"
)

// Booking is a time-bound charging reservation at a station.
type Booking struct {
	ID              string        `db:"id" json:"id"`
	OwnerNIC        string        `db:"owner_nic" json:"ownerNic"`
	StationID       string        `db:"station_id" json:"stationId"`
	StartTimeUTC    time.Time     `db:"start_time_utc" json:"startTimeUtc"`
	EndTimeUTC      time.Time     `db:"end_time_utc" json:"endTimeUtc"`
	Status          BookingStatus `db:"status" json:"status"`
	QRCode          string        `db:"qr_code" json:"qrCode,omitempty"`
	RejectionReason string        `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedUTC      time.Time     `db:"created_utc" json:"createdUtc"`
	UpdatedUTC      time.Time     `db:"updated_utc" json:"updatedUtc"`
}

// Overlaps reports whether the booking window intersects [from, to).
func (b Booking) Overlaps(from, to time.Time) bool {
	return b.StartTimeUTC.Before(to) && b.EndTimeUTC.After(from)
}

// BookingFilter narrows booking listings. Zero fields match everything.
type BookingFilter struct {
	Status    BookingStatus
	StationID string
	OwnerNIC  string
	// Day keeps bookings that touch the UTC day starting at Day.
	Day *time.Time
}

// Match applies the filter in memory.
func (f BookingFilter) Match(b Booking) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.StationID != "" && b.StationID != f.StationID {
		return false
	}
	if f.OwnerNIC != "" && b.OwnerNIC != f.OwnerNIC {
		return false
	}
	if f.Day != nil {
		start := f.Day.UTC().Truncate(24 * time.Hour)
		if !b.Overlaps(start, start.Add(24*time.Hour)) {
			return false
		}
	}
	return true
}

// StatusChange is a conditional status update: it applies only while the stored status
// still equals From.
type StatusChange struct {
	From            BookingStatus
	To              BookingStatus
	QRCode          *string
	RejectionReason *string
	At              time.Time
}

// BookingEvent describes a committed transition.
type BookingEvent struct {
	BookingID string        `json:"bookingId"`
	StationID string        `json:"stationId"`
	Action    string        `json:"action"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	ActorID   string        `json:"actorId"`
	At        time.Time     `json:"at"`
	// StationOperators scopes delivery to operators of the station.
	StationOperators []string `json:"-"`
}
