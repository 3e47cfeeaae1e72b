package repository

import (
	"context"
	"database/sql"
	"errors"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/models"
)

// OwnerRepository reads EV owner profiles.
type OwnerRepository struct {
	db *sql.DB
}

// NewOwnerRepository returns repository.
func NewOwnerRepository(db *sql.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

const ownerColumns = `nic, first_name, last_name, email, phone, is_active`

// Get returns owner by NIC.
func (r *OwnerRepository) Get(ctx context.Context, nic string) (*models.Owner, error) {
	o, err := scanOwner(r.db.QueryRowContext(ctx, `SELECT `+ownerColumns+` FROM ev_owners WHERE nic = $1`, nic))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("owner %s not found", nic)
	}
	return o, err
}

// List returns every owner ordered by NIC.
func (r *OwnerRepository) List(ctx context.Context) ([]models.Owner, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ownerColumns+` FROM ev_owners ORDER BY nic`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := []models.Owner{}
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		owners = append(owners, *o)
	}
	return owners, rows.Err()
}

func scanOwner(row rowScanner) (*models.Owner, error) {
	var o models.Owner
	if err := row.Scan(&o.NIC, &o.FirstName, &o.LastName, &o.Email, &o.Phone, &o.IsActive); err != nil {
		return nil, err
	}
	return &o, nil
}
