// Package routepath centralizes the console's route constants so handlers,
// policy configuration, and templates agree on paths.
package routepath

import (
	"net/url"
	"strings"
)

const (
	Root = "/"
)

const (
	StaticPrefix = "/static/"
	ImagesPrefix = "/images/"
	FontsPrefix  = "/fonts/"
	APIPrefix    = "/api/"
)

const (
	AuthPrefix = "/auth/"
	SignIn     = "/auth/signin"
	SignOut    = "/auth/signout"
)

const (
	Dashboard = "/dashboard"
)

const (
	Users       = "/users"
	UsersPrefix = "/users/"
)

const (
	Tasks       = "/tasks"
	TasksPrefix = "/tasks/"
)

const (
	Engagement       = "/engagement"
	EngagementPrefix = "/engagement/"
)

const (
	Admins       = "/admins"
	AdminsCreate = "/admins/create"
	AdminsPrefix = "/admins/"
)

const (
	Profile               = "/profile"
	ProfileChangePassword = "/profile/change-password"
)

const (
	Logs = "/logs"
)

// Support is the limited area reachable only by restricted or banned
// accounts. It is deliberately absent from every role's route set.
const Support = "/support"

// Forbidden is the access-denied landing page.
const Forbidden = "/403"

func Admin(adminID string) string {
	return Admins + "/" + escapeSegment(adminID)
}

func AdminBanUnban(adminID string) string {
	return Admin(adminID) + "/ban-unban"
}

func AdminRestrict(adminID string) string {
	return Admin(adminID) + "/restrict"
}

func AdminEditRole(adminID string) string {
	return Admin(adminID) + "/edit-role"
}

func escapeSegment(raw string) string {
	return url.PathEscape(strings.TrimSpace(raw))
}
