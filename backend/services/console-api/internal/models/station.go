package models

import "time"

// StationType is the charger current type.
type StationType string

const (
	StationAC StationType = "AC"
	StationDC StationType = "DC"
)

// Station is a charging location with an operator-declared slot count.
type Station struct {
	StationID       string      `db:"station_id" json:"stationId" validate:"notblank"`
	Name            string      `db:"name" json:"name" validate:"notblank"`
	Latitude        float64     `db:"latitude" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude       float64     `db:"longitude" json:"longitude" validate:"gte=-180,lte=180"`
	Address         string      `db:"address" json:"address"`
	Type            StationType `db:"type" json:"type" validate:"oneof=AC DC"`
	AvailableSlots  int         `db:"available_slots" json:"availableSlots" validate:"gte=0"`
	IsActive        bool        `db:"is_active" json:"isActive"`
	OperatorUserIDs []string    `db:"operator_user_ids" json:"operatorUserIds"`
	CreatedUTC      time.Time   `db:"created_utc" json:"createdUtc"`
	UpdatedUTC      time.Time   `db:"updated_utc" json:"updatedUtc"`
}

// Validate checks the station invariants.
func (s Station) Validate() error {
	return CheckFields(s)
}
