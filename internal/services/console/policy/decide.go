package policy

import (
	"strings"

	"github.com/engagehq/console/internal/services/console/routepath"
)

// Decision is the gateway outcome for one request. Every pipeline branch
// terminates in exactly one of these values.
type Decision int

const (
	// DecisionAllow lets the request reach its handler.
	DecisionAllow Decision = iota
	// DecisionLogin redirects to the sign-in page. It covers missing,
	// invalid, and expired sessions as well as failed directory reads, so
	// directory health is not distinguishable from the outside.
	DecisionLogin
	// DecisionLimitedArea redirects restricted and banned accounts to the
	// limited area.
	DecisionLimitedArea
	// DecisionForbidden redirects to the access-denied page.
	DecisionForbidden
	// DecisionDashboard redirects an already-authenticated request away
	// from the sign-in page, preventing re-login loops.
	DecisionDashboard
)

// String returns a log-friendly name for the decision.
func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionLogin:
		return "redirect-login"
	case DecisionLimitedArea:
		return "redirect-limited-area"
	case DecisionForbidden:
		return "redirect-forbidden"
	case DecisionDashboard:
		return "redirect-dashboard"
	default:
		return "unknown"
	}
}

// Subject is the authorization view of a request after session decoding and
// directory enrichment.
type Subject struct {
	Authenticated bool
	Role          Role
	Status        Status
}

// Decide evaluates the authorization pipeline for one request, short-circuiting
// on the first matching rule. It is a pure function of (subject, path, policy);
// no storage or network call happens here. Enrichment runs once upstream.
func (p RoutePolicy) Decide(subject Subject, path string) Decision {
	if IsBypassPath(path) {
		return DecisionAllow
	}

	if isAuthPath(path) {
		// Sign-out must stay reachable for authenticated sessions or a
		// principal could never end one.
		if path == routepath.SignOut {
			return DecisionAllow
		}
		if subject.Authenticated {
			return DecisionDashboard
		}
		return DecisionAllow
	}
	if !subject.Authenticated {
		return DecisionLogin
	}

	if subject.Status.Limited() {
		if p.inLimitedArea(path) {
			return DecisionAllow
		}
		return DecisionLimitedArea
	}
	if p.inLimitedArea(path) {
		// Active or unknown status cannot prove restriction; the limited
		// area is exclusively for non-active accounts.
		return DecisionForbidden
	}

	if !p.isProtected(path) {
		return DecisionAllow
	}
	if p.RolePermits(subject.Role, path) {
		return DecisionAllow
	}
	return DecisionForbidden
}

// IsBypassPath reports whether the path skips authorization entirely: static
// assets, public API namespaces, and the access-denied page itself.
func IsBypassPath(path string) bool {
	if strings.HasPrefix(path, routepath.StaticPrefix) ||
		strings.HasPrefix(path, routepath.ImagesPrefix) ||
		strings.HasPrefix(path, routepath.FontsPrefix) ||
		strings.HasPrefix(path, routepath.APIPrefix) {
		return true
	}
	if matchesPrefix(path, routepath.Forbidden) {
		return true
	}
	return hasFileExtension(path)
}

// isAuthPath reports whether the path belongs to the sign-in surface.
func isAuthPath(path string) bool {
	return path == strings.TrimSuffix(routepath.AuthPrefix, "/") ||
		strings.HasPrefix(path, routepath.AuthPrefix)
}

// hasFileExtension reports whether the final path segment looks like an asset
// file (favicon.ico, logo.png, and similar).
func hasFileExtension(path string) bool {
	last := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		last = path[idx+1:]
	}
	return strings.Contains(last, ".")
}
