package models

import (
	"time"

	"evconsole/backend/services/console-api/internal/authz"
)

// User is a console account.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         authz.Role `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	CreatedUTC   time.Time  `db:"created_utc" json:"createdUtc"`
}

// EligibleOperator reports whether the user may be assigned to a station.
func (u User) EligibleOperator() bool {
	return u.IsActive && u.Role == authz.RoleOperator
}

// UserInput carries account fields from the administration surface. An empty Password on
// update keeps the stored hash; a nil IsActive keeps the current activation.
type UserInput struct {
	Username string     `json:"username" validate:"notblank"`
	Password string     `json:"password"`
	Role     authz.Role `json:"role" validate:"oneof=Backoffice Operator"`
	IsActive *bool      `json:"isActive"`
}

// Validate checks the account fields.
func (in UserInput) Validate() error {
	return CheckFields(in)
}
