package authz

import "strings"

// Role is the closed set of console roles.
type Role string

const (
	RoleBackoffice Role = "Backoffice"
	RoleOperator   Role = "Operator"
	// RoleOwner is carried by EV owner credentials issued elsewhere; the console grants it nothing.
	RoleOwner Role = "Owner"
)

// Roles lists every role, for exhaustive checks.
var Roles = []Role{RoleBackoffice, RoleOperator, RoleOwner}

// ParseRole accepts a role name case-insensitively.
func ParseRole(value string) (Role, bool) {
	for _, r := range Roles {
		if strings.EqualFold(strings.TrimSpace(value), string(r)) {
			return r, true
		}
	}
	return "", false
}
