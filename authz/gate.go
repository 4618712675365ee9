package authz

import (
	"net/url"
	"strings"
)

// AuthState is the coarse per-request state the route gate transitions on.
type AuthState string

const (
	StateUnauthenticated AuthState = "unauthenticated"
	StateNoProfile       AuthState = "authenticated_no_profile"
	StateStaff           AuthState = "authenticated_staff"
	StateResident        AuthState = "authenticated_resident"
)

// Decision is the gate's verdict for one request: pass through or redirect.
type Decision struct {
	Pass     bool   `json:"pass"`
	Redirect string `json:"redirect,omitempty"`
}

// Well-known routes the gate redirects to.
const (
	LoginRoute      = "/login"
	DashboardRoute  = "/"
	ResidentRoute   = "/resident"
	OnboardingRoute = "/onboarding"
)

// Gate applies a coarse allow/deny per URL path before any handler logic
// runs. It is deliberately not a substitute for per-resource authorization:
// handlers still consult the Engine for every mutation.
type Gate struct {
	publicRoutes []string
	authRoutes   []string
	staffRoutes  []string
}

// NewGate creates a Gate with the application's route classes.
func NewGate() *Gate {
	return &Gate{
		// Routes reachable without a session.
		publicRoutes: []string{
			"/login",
			"/register",
			"/forgot-password",
			"/reset-password",
			"/verify-email",
			"/setup",
			"/setup-admin",
			"/api/health",
		},
		// Login/registration-only routes: logged-in users are sent away.
		authRoutes: []string{
			"/login",
			"/register",
			"/forgot-password",
			"/reset-password",
		},
		// Staff-only surfaces: directory, reports, community management,
		// admin screens.
		staffRoutes: []string{
			"/staff",
			"/reports",
			"/communities",
			"/tasks",
			"/admin",
		},
	}
}

// Decide runs the decision table for one (path, state) pair.
func (g *Gate) Decide(path string, state AuthState) Decision {
	switch state {
	case StateUnauthenticated:
		if g.isPublic(path) {
			return Decision{Pass: true}
		}
		// Preserve the originally requested path for the post-login
		// redirect.
		return Decision{Redirect: LoginRoute + "?redirectTo=" + url.QueryEscape(path)}

	case StateNoProfile:
		if g.isAuthPage(path) {
			return Decision{Redirect: DashboardRoute}
		}
		if g.isStaffOnly(path) {
			// Incomplete accounts belong in the approval workflow, not on
			// staff-only content.
			return Decision{Redirect: OnboardingRoute}
		}
		return Decision{Pass: true}

	case StateResident:
		if g.isAuthPage(path) {
			return Decision{Redirect: DashboardRoute}
		}
		if g.isStaffOnly(path) {
			return Decision{Redirect: ResidentRoute}
		}
		return Decision{Pass: true}

	case StateStaff:
		if g.isAuthPage(path) {
			return Decision{Redirect: DashboardRoute}
		}
		return Decision{Pass: true}

	default:
		// Unknown state fails closed like everything else.
		return Decision{Redirect: LoginRoute + "?redirectTo=" + url.QueryEscape(path)}
	}
}

// StateFor derives the gate state from a session and a resolved profile.
// Callers must only pass a profile that actually resolved; a failed lookup is
// a 503 upstream, never a state here.
func StateFor(authenticated bool, profile *Profile) AuthState {
	if !authenticated {
		return StateUnauthenticated
	}
	switch {
	case profile.IsStaff():
		return StateStaff
	case profile.IsResident():
		return StateResident
	default:
		return StateNoProfile
	}
}

func (g *Gate) isPublic(path string) bool {
	return matchesPrefix(g.publicRoutes, path)
}

func (g *Gate) isAuthPage(path string) bool {
	return matchesPrefix(g.authRoutes, path)
}

func (g *Gate) isStaffOnly(path string) bool {
	return matchesPrefix(g.staffRoutes, path)
}

func matchesPrefix(routes []string, path string) bool {
	for _, route := range routes {
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}
