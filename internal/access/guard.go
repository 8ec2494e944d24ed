package access

import (
	"log/slog"
	"net/http"

	"github.com/certchain/certchain/internal/shared"
)

// LoginPath is where unauthenticated visitors are sent. The attempted target
// is discarded.
const LoginPath = "/auth/login"

// GuardState classifies the outcome of one guarded navigation.
type GuardState int

const (
	// StateAuthorized renders the guarded content.
	StateAuthorized GuardState = iota
	// StateUnauthenticated redirects to the login route.
	StateUnauthenticated
	// StateUnauthorized redirects to the principal's own default home.
	StateUnauthorized
)

// Decision is the terminal result of the guard state machine.
type Decision struct {
	State    GuardState
	Redirect string
}

// Decide evaluates the route guard for a navigation once authentication
// status and effective role are known. RoleAny admits any authenticated
// principal. An unauthorized principal is bounced to the home of their
// actual effective role, never to a fixed page.
func Decide(authenticated bool, effective, required Role) Decision {
	if !authenticated {
		return Decision{State: StateUnauthenticated, Redirect: LoginPath}
	}
	if required == RoleAny || HasAccess(effective, required) {
		return Decision{State: StateAuthorized}
	}
	return Decision{State: StateUnauthorized, Redirect: HomePath(effective)}
}

// Guard gates routes on a required role using the session for authentication
// and the Resolver for the effective role.
type Guard struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireRole returns middleware enforcing the required role for a route
// subtree. Pass RoleAny to require authentication only. The effective role
// is re-resolved (through the bounded cache) on every guarded entry.
func (g Guard) RequireRole(required Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID := ""
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				principalID = sess.User()
			}
			authenticated := principalID != ""

			effective := RoleCandidate
			if authenticated {
				effective = g.Resolver.EffectiveRole(r.Context(), principalID)
			}

			decision := Decide(authenticated, effective, required)
			if decision.State != StateAuthorized {
				http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
				return
			}
			ctx := ContextWithRole(r.Context(), effective)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
