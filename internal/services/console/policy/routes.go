package policy

import (
	"strings"

	"github.com/engagehq/console/internal/services/console/routepath"
)

// RoutePolicy is the immutable role→permitted-prefix table plus the limited
// area prefix. Built once at startup; a change requires a restart or an
// explicit reload with an atomic swap of the whole value.
type RoutePolicy struct {
	routes      map[Role][]string
	limitedArea string
}

// NewRoutePolicy copies the supplied table so later mutation of the caller's
// map cannot leak into authorization decisions.
func NewRoutePolicy(routes map[Role][]string, limitedArea string) RoutePolicy {
	copied := make(map[Role][]string, len(routes))
	for role, prefixes := range routes {
		copied[role] = append([]string(nil), prefixes...)
	}
	return RoutePolicy{routes: copied, limitedArea: limitedArea}
}

// Default returns the console's standing route table.
//
// SuperAdmin and Admin see every group, Moderator is excluded from user and
// admin management, Support sees only dashboard, users, and profile. The
// limited area is not listed under any role.
func Default() RoutePolicy {
	full := []string{
		routepath.Dashboard,
		routepath.Users,
		routepath.Tasks,
		routepath.Engagement,
		routepath.Admins,
		routepath.Logs,
		routepath.Profile,
	}
	return NewRoutePolicy(map[Role][]string{
		RoleSuperAdmin: full,
		RoleAdmin:      full,
		RoleModerator: {
			routepath.Dashboard,
			routepath.Tasks,
			routepath.Engagement,
			routepath.Profile,
		},
		RoleSupport: {
			routepath.Dashboard,
			routepath.Users,
			routepath.Profile,
		},
	}, routepath.Support)
}

// LimitedArea returns the prefix reachable only by restricted or banned
// accounts.
func (p RoutePolicy) LimitedArea() string {
	return p.limitedArea
}

// RolePermits reports whether the role's route set contains the path.
func (p RoutePolicy) RolePermits(role Role, path string) bool {
	for _, prefix := range p.routes[role] {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// isProtected reports whether any role's route set claims the path. Paths in
// no set are deliberately open to authenticated, non-restricted principals.
func (p RoutePolicy) isProtected(path string) bool {
	for _, prefixes := range p.routes {
		for _, prefix := range prefixes {
			if matchesPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}

// inLimitedArea reports whether the path falls under the limited prefix.
func (p RoutePolicy) inLimitedArea(path string) bool {
	return p.limitedArea != "" && matchesPrefix(path, p.limitedArea)
}

// matchesPrefix matches a path against a route group prefix: equality or a
// segment-aligned prefix. "/users" claims "/users" and "/users/42" but not
// "/usersearch".
func matchesPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
