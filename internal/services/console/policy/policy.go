// Package policy implements the console's request authorization core: the
// role and account-status vocabulary, the role→route table, and the pure
// decision function the gateway evaluates on every request.
package policy

// Role names a closed set of operator privilege levels. The gateway treats
// role as read-only input; only higher-privileged management flows change it.
type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleModerator  Role = "Moderator"
	RoleSupport    Role = "Support"

	// RoleNone marks a principal whose directory record could not be
	// resolved. It matches no role-gated route.
	RoleNone Role = ""
)

// ParseRole maps a stored string onto a known role, or RoleNone.
func ParseRole(value string) Role {
	switch Role(value) {
	case RoleSuperAdmin, RoleAdmin, RoleModerator, RoleSupport:
		return Role(value)
	default:
		return RoleNone
	}
}

// Status is the account state observed by the gateway. Transitions happen
// exclusively through admin management actions; the gateway never writes it.
type Status string

const (
	StatusActive     Status = "Active"
	StatusRestricted Status = "Restricted"
	StatusBanned     Status = "Banned"

	// StatusUnknown marks a principal without a resolvable account. An
	// unknown status cannot prove restriction, so it is barred from the
	// limited area and otherwise subject to normal route policy.
	StatusUnknown Status = ""
)

// ParseStatus maps a stored string onto a known status, or StatusUnknown.
func ParseStatus(value string) Status {
	switch Status(value) {
	case StatusActive, StatusRestricted, StatusBanned:
		return Status(value)
	default:
		return StatusUnknown
	}
}

// Limited reports whether the status confines the account to the limited area.
func (s Status) Limited() bool {
	return s == StatusRestricted || s == StatusBanned
}
