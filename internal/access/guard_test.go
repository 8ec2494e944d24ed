package access_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/shared"
)

func TestDecideUnauthenticated(t *testing.T) {
	d := access.Decide(false, access.RoleCandidate, access.RoleInstructor)
	assert.Equal(t, access.StateUnauthenticated, d.State)
	assert.Equal(t, access.LoginPath, d.Redirect)
}

func TestDecideUnauthorizedBouncesToOwnHome(t *testing.T) {
	d := access.Decide(true, access.RoleInstructor, access.RoleInstitutionAdmin)
	assert.Equal(t, access.StateUnauthorized, d.State)
	assert.Equal(t, "/instructor/dashboard", d.Redirect)
}

func TestDecideAuthorized(t *testing.T) {
	d := access.Decide(true, access.RoleCandidate, access.RoleCandidate)
	assert.Equal(t, access.StateAuthorized, d.State)
	assert.Empty(t, d.Redirect)
}

func TestDecideRoleAnyAdmitsAuthenticated(t *testing.T) {
	d := access.Decide(true, access.RoleCandidate, access.RoleAny)
	assert.Equal(t, access.StateAuthorized, d.State)

	d = access.Decide(false, access.RoleCandidate, access.RoleAny)
	assert.Equal(t, access.StateUnauthenticated, d.State)
}

type guardFixture struct {
	guard    access.Guard
	sessions *shared.SessionManager
	store    *stubStore
}

func newGuardFixture(t *testing.T) guardFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &stubStore{assignments: map[string][]string{}}
	resolver := access.NewResolver(store, access.NewRoleCache(client, time.Minute), slog.Default())
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	return guardFixture{
		guard:    access.Guard{Resolver: resolver, Logger: slog.Default()},
		sessions: sessions,
		store:    store,
	}
}

func (f guardFixture) request(t *testing.T, principalID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/institution_admin/dashboard", nil)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if principalID != "" {
		sess.SetUser(principalID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

// Scenario: instructor requests an institution_admin route and lands on the
// instructor dashboard, not a fixed page.
func TestGuardRedirectsUnderprivilegedToOwnDashboard(t *testing.T) {
	f := newGuardFixture(t)
	f.store.assignments["p1"] = []string{"instructor"}

	next, called := okHandler()
	res := httptest.NewRecorder()
	f.guard.RequireRole(access.RoleInstitutionAdmin)(next).ServeHTTP(res, f.request(t, "p1"))

	assert.False(t, *called)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/instructor/dashboard", res.Header().Get("Location"))
}

// Scenario: a principal with no assignment rows still passes a candidate
// gate through the default role.
func TestGuardDefaultCandidateSatisfiesCandidateGate(t *testing.T) {
	f := newGuardFixture(t)

	next, called := okHandler()
	res := httptest.NewRecorder()
	f.guard.RequireRole(access.RoleCandidate)(next).ServeHTTP(res, f.request(t, "p2"))

	assert.True(t, *called)
	assert.Equal(t, http.StatusOK, res.Code)
}

// Scenario: unauthenticated visitors are sent to login for any guarded route.
func TestGuardUnauthenticatedRedirectsToLogin(t *testing.T) {
	f := newGuardFixture(t)

	next, called := okHandler()
	res := httptest.NewRecorder()
	f.guard.RequireRole(access.RoleCandidate)(next).ServeHTTP(res, f.request(t, ""))

	assert.False(t, *called)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, access.LoginPath, res.Header().Get("Location"))
}

func TestGuardStoresRoleInContext(t *testing.T) {
	f := newGuardFixture(t)
	f.store.assignments["p3"] = []string{"institution_admin", "candidate"}

	var seen access.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = access.RoleFromContext(r.Context())
	})
	res := httptest.NewRecorder()
	f.guard.RequireRole(access.RoleInstitutionAdmin)(next).ServeHTTP(res, f.request(t, "p3"))

	assert.Equal(t, access.RoleInstitutionAdmin, seen)
}

func TestGuardMissingSessionTreatedAsUnauthenticated(t *testing.T) {
	f := newGuardFixture(t)

	next, called := okHandler()
	req := httptest.NewRequest(http.MethodGet, "/candidate/dashboard", nil)
	res := httptest.NewRecorder()
	f.guard.RequireRole(access.RoleAny)(next).ServeHTTP(res, req)

	assert.False(t, *called)
	assert.Equal(t, access.LoginPath, res.Header().Get("Location"))
}
