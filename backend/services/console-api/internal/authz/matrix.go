package authz

// Action is a guarded console capability.
type Action string

const (
	ActionDecide          Action = "booking.decide"
	ActionCancel          Action = "booking.cancel"
	ActionDeleteBooking   Action = "booking.delete"
	ActionCreateBooking   Action = "booking.create"
	ActionReadAllBookings Action = "booking.read_all"
	ActionSession         Action = "booking.session"
	ActionReadStation     Action = "station.read_bookings"
	ActionEditCapacity    Action = "station.edit_capacity"
	ActionManageStations  Action = "station.manage"
	ActionReadOwners      Action = "owner.read"
	ActionManageUsers     Action = "user.manage"
)

// Actions lists every action, for exhaustive checks.
var Actions = []Action{
	ActionDecide,
	ActionCancel,
	ActionDeleteBooking,
	ActionCreateBooking,
	ActionReadAllBookings,
	ActionSession,
	ActionReadStation,
	ActionEditCapacity,
	ActionManageStations,
	ActionReadOwners,
	ActionManageUsers,
}

// Scope says how far a grant reaches.
type Scope int

const (
	// Denied grants nothing.
	Denied Scope = iota
	// Assigned grants only on stations whose operator set contains the caller.
	Assigned
	// Global grants on every station.
	Global
)

// ScopeOf is the role x action matrix. Unknown roles and actions are denied.
func ScopeOf(role Role, action Action) Scope {
	switch role {
	case RoleBackoffice:
		switch action {
		case ActionDecide, ActionCancel, ActionDeleteBooking, ActionCreateBooking,
			ActionReadAllBookings, ActionReadStation, ActionEditCapacity,
			ActionManageStations, ActionReadOwners, ActionManageUsers:
			return Global
		case ActionSession:
			return Denied
		}
	case RoleOperator:
		switch action {
		case ActionSession, ActionReadStation, ActionEditCapacity:
			return Assigned
		}
	case RoleOwner:
		// Owners read their own bookings through the owner-facing surface only.
		return Denied
	}
	return Denied
}

// Permit reports whether role may perform action; assigned says whether the caller is in
// the target station's operator set.
func Permit(role Role, action Action, assigned bool) bool {
	switch ScopeOf(role, action) {
	case Global:
		return true
	case Assigned:
		return assigned
	default:
		return false
	}
}
