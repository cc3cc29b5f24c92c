package rbac

// Role names. Keep these stable; they are embedded in issued tokens.
const (
	RoleAdmin     = "admin"
	RoleOperator  = "operator"
	RoleViewer    = "viewer"
	RoleScheduler = "scheduler" // service tokens used by the external dispatch trigger
)

var knownRoles = map[string]struct{}{
	RoleAdmin:     {},
	RoleOperator:  {},
	RoleViewer:    {},
	RoleScheduler: {},
}

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsKnown reports whether role may be minted into a token.
func IsKnown(role string) bool {
	_, ok := knownRoles[role]
	return ok
}
