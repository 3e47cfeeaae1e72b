package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	libdb "evconsole/backend/libs/db"
	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/lifecycle"
	"evconsole/backend/services/console-api/internal/models"
)

const bookingColumns = `id, owner_nic, station_id, start_time_utc, end_time_utc, status, qr_code, rejection_reason, created_utc, updated_utc`

// BookingRepository persists bookings in Postgres.
type BookingRepository struct {
	db *sql.DB
}

// NewBookingRepository returns repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a Pending booking after checking the station exists and is active.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	return libdb.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var active bool
		err := tx.QueryRowContext(ctx,
			`SELECT is_active FROM stations WHERE station_id = $1 FOR SHARE`, b.StationID,
		).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("station %s not found", b.StationID)
		}
		if err != nil {
			return fmt.Errorf("lock station: %w", err)
		}
		if !active {
			return apperr.Conflict("station %s is not active", b.StationID)
		}

		const query = `
			INSERT INTO bookings (` + bookingColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err = tx.ExecContext(ctx, query,
			b.ID,
			b.OwnerNIC,
			b.StationID,
			b.StartTimeUTC,
			b.EndTimeUTC,
			b.Status,
			b.QRCode,
			b.RejectionReason,
			b.CreatedUTC,
			b.UpdatedUTC,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
}

// Get returns booking by id.
func (r *BookingRepository) Get(ctx context.Context, id string) (*models.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// List returns bookings matching filter, newest first.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.StationID != "" {
		add("station_id = $%d", filter.StationID)
	}
	if filter.OwnerNIC != "" {
		add("owner_nic = $%d", filter.OwnerNIC)
	}
	if filter.Day != nil {
		start := filter.Day.UTC().Truncate(24 * time.Hour)
		add("start_time_utc < $%d", start.Add(24*time.Hour))
		add("end_time_utc > $%d", start)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_utc DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// CompareAndSwapStatus applies change only while the stored status equals change.From.
// A concurrent writer that got there first makes this call fail with InvalidStateTransition.
func (r *BookingRepository) CompareAndSwapStatus(ctx context.Context, id string, change models.StatusChange) (*models.Booking, error) {
	if !lifecycle.Allowed(change.From, change.To) {
		return nil, apperr.InvalidTransition("no transition from %s to %s", change.From, change.To)
	}

	const query = `
		UPDATE bookings
		SET status = $3,
		    qr_code = COALESCE($4, qr_code),
		    rejection_reason = COALESCE($5, rejection_reason),
		    updated_utc = $6
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns
	row := r.db.QueryRowContext(ctx, query,
		id,
		change.From,
		change.To,
		nullable(change.QRCode),
		nullable(change.RejectionReason),
		change.At,
	)
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperr.InvalidTransition("booking %s is %s, expected %s", id, current.Status, change.From)
}

// Delete removes the booking row.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFound("booking %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	if err := row.Scan(
		&b.ID,
		&b.OwnerNIC,
		&b.StationID,
		&b.StartTimeUTC,
		&b.EndTimeUTC,
		&b.Status,
		&b.QRCode,
		&b.RejectionReason,
		&b.CreatedUTC,
		&b.UpdatedUTC,
	); err != nil {
		return nil, err
	}
	b.StartTimeUTC = b.StartTimeUTC.UTC()
	b.EndTimeUTC = b.EndTimeUTC.UTC()
	b.CreatedUTC = b.CreatedUTC.UTC()
	b.UpdatedUTC = b.UpdatedUTC.UTC()
	return &b, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
