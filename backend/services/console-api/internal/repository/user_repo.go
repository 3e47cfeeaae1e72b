package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"evconsole/backend/services/console-api/internal/apperr"
	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/models"
)

const userColumns = `id, username, password_hash, role, is_active, created_utc`

// UserRepository persists console accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository returns repository instance.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user, lower-casing the username.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	const query = `
		INSERT INTO users (id, username, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING
		RETURNING created_utc
	`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.Role, user.IsActive).
		Scan(&user.CreatedUTC)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Conflict("username %s already exists", user.Username)
	}
	return err
}

// GetByUsername fetches a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1 LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(username)))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user not found")
	}
	return user, err
}

// ListEligibleOperators returns active Operator accounts.
func (r *UserRepository) ListEligibleOperators(ctx context.Context) ([]models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 AND is_active ORDER BY username`
	return r.queryUsers(ctx, query, authz.RoleOperator)
}

// Get fetches a user by id.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return user, err
}

// List returns every account ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
}

// Update rewrites username, role, password hash and activation. The username check and the
// update are one statement.
func (r *UserRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	const query = `
		UPDATE users
		SET username = $2,
		    role = $3,
		    password_hash = $4,
		    is_active = $5
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM users other WHERE other.username = $2 AND other.id <> $1)
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, query, user.ID, username, user.Role, user.PasswordHash, user.IsActive)
	updated, err := scanUser(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if _, getErr := r.Get(ctx, user.ID); getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Conflict("username %s already exists", username)
}

// SetActive toggles activation.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE users SET is_active = $2 WHERE id = $1 RETURNING `+userColumns, id, active)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return user, err
}

// Delete removes a user that no station lists as operator.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `
		DELETE FROM users
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM stations WHERE $1 = ANY(operator_user_ids))
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict("user %s is assigned to a station", id)
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedUTC); err != nil {
		return nil, err
	}
	u.CreatedUTC = u.CreatedUTC.UTC()
	return &u, nil
}
