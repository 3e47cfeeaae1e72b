package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/models"
)

const (
	stationInsertColumns = `station_id, name, latitude, longitude, address, type, available_slots, is_active, operator_user_ids, created_utc, updated_utc`
	// operator_user_ids is read back in its text form, which pq.Array parses.
	stationColumns = `station_id, name, latitude, longitude, address, type, available_slots, is_active, operator_user_ids::text, created_utc, updated_utc`
)

// StationRepository manages charging station persistence.
type StationRepository struct {
	db *sql.DB
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

// Create inserts a station; a duplicate id is a conflict.
func (r *StationRepository) Create(ctx context.Context, s *models.Station) error {
	const query = `
		INSERT INTO stations (` + stationInsertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text[], $10, $10)
		ON CONFLICT (station_id) DO NOTHING
	`
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		s.StationID,
		s.Name,
		s.Latitude,
		s.Longitude,
		s.Address,
		s.Type,
		s.AvailableSlots,
		s.IsActive,
		pq.Array(s.OperatorUserIDs),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert station: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Conflict("station %s already exists", s.StationID)
	}
	s.CreatedUTC, s.UpdatedUTC = now, now
	return nil
}

// Get returns station by id.
func (r *StationRepository) Get(ctx context.Context, stationID string) (*models.Station, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM stations WHERE station_id = $1`, stationID)
	s, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("station %s not found", stationID)
	}
	return s, err
}

// List returns all stations ordered by id.
func (r *StationRepository) List(ctx context.Context) ([]models.Station, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+stationColumns+` FROM stations ORDER BY station_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stations, nil
}

// Update rewrites descriptive attributes. Slots, activation and operators have their own calls.
func (r *StationRepository) Update(ctx context.Context, s *models.Station) (*models.Station, error) {
	const query = `
		UPDATE stations
		SET name = $2,
		    latitude = $3,
		    longitude = $4,
		    address = $5,
		    type = $6,
		    updated_utc = NOW()
		WHERE station_id = $1
		RETURNING ` + stationColumns
	row := r.db.QueryRowContext(ctx, query, s.StationID, s.Name, s.Latitude, s.Longitude, s.Address, s.Type)
	return r.scanOrNotFound(row, s.StationID)
}

// SetSlots stores the operator-declared slot count.
func (r *StationRepository) SetSlots(ctx context.Context, stationID string, slots int) (*models.Station, error) {
	const query = `
		UPDATE stations
		SET available_slots = $2,
		    updated_utc = NOW()
		WHERE station_id = $1
		RETURNING ` + stationColumns
	return r.scanOrNotFound(r.db.QueryRowContext(ctx, query, stationID, slots), stationID)
}

// SetActive toggles activation. Deactivation is refused while the station has bookings
// in a non-terminal status; the check and the update are one statement.
func (r *StationRepository) SetActive(ctx context.Context, stationID string, active bool) (*models.Station, error) {
	const query = `
		UPDATE stations
		SET is_active = $2,
		    updated_utc = NOW()
		WHERE station_id = $1
		  AND ($2 OR NOT EXISTS (
		      SELECT 1 FROM bookings
		      WHERE bookings.station_id = $1
		        AND bookings.status = ANY($3::text[])
		  ))
		RETURNING ` + stationColumns
	row := r.db.QueryRowContext(ctx, query, stationID, active, pq.Array(nonTerminalStatuses()))
	s, err := scanStation(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update station status: %w", err)
	}
	if _, getErr := r.Get(ctx, stationID); getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Conflict("station %s has active bookings and cannot be deactivated", stationID)
}

// SetOperators replaces the operator assignment.
func (r *StationRepository) SetOperators(ctx context.Context, stationID string, userIDs []string) (*models.Station, error) {
	const query = `
		UPDATE stations
		SET operator_user_ids = $2::text[],
		    updated_utc = NOW()
		WHERE station_id = $1
		RETURNING ` + stationColumns
	return r.scanOrNotFound(r.db.QueryRowContext(ctx, query, stationID, pq.Array(userIDs)), stationID)
}

// Delete removes a station that no booking references.
func (r *StationRepository) Delete(ctx context.Context, stationID string) error {
	const query = `
		DELETE FROM stations
		WHERE station_id = $1
		  AND NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.station_id = $1)
	`
	result, err := r.db.ExecContext(ctx, query, stationID)
	if err != nil {
		return fmt.Errorf("delete station: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, stationID); err != nil {
		return err
	}
	return apperr.Conflict("station %s has bookings and cannot be deleted", stationID)
}

func (r *StationRepository) scanOrNotFound(row *sql.Row, stationID string) (*models.Station, error) {
	s, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("station %s not found", stationID)
	}
	return s, err
}

func scanStation(row rowScanner) (*models.Station, error) {
	var s models.Station
	var operators []string
	if err := row.Scan(
		&s.StationID,
		&s.Name,
		&s.Latitude,
		&s.Longitude,
		&s.Address,
		&s.Type,
		&s.AvailableSlots,
		&s.IsActive,
		pq.Array(&operators),
		&s.CreatedUTC,
		&s.UpdatedUTC,
	); err != nil {
		return nil, err
	}
	if operators == nil {
		operators = []string{}
	}
	s.OperatorUserIDs = operators
	s.CreatedUTC = s.CreatedUTC.UTC()
	s.UpdatedUTC = s.UpdatedUTC.UTC()
	return &s, nil
}
