package authz

import "context"

// Principal is the authenticated caller of a console operation.
type Principal struct {
	UserID   string
	Username string
	Role     Role
}

// Can checks action against a station's operator set.
func (p Principal) Can(action Action, stationOperators []string) bool {
	return Permit(p.Role, action, p.AssignedTo(stationOperators))
}

// CanAny reports whether the role holds action on at least some station.
func (p Principal) CanAny(action Action) bool {
	return ScopeOf(p.Role, action) != Denied
}

// AssignedTo reports whether the principal is an operator listed in operators.
func (p Principal) AssignedTo(operators []string) bool {
	if p.Role != RoleOperator || p.UserID == "" {
		return false
	}
	for _, id := range operators {
		if id == p.UserID {
			return true
		}
	}
	return false
}

type contextKey string

const principalKey contextKey = "authz.principal"

// WithPrincipal stores the caller in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
