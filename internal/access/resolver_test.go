package access_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certchain/certchain/internal/access"
)

type stubStore struct {
	assignments map[string][]string
	err         error
	calls       int
}

func (s *stubStore) ListRoleAssignments(ctx context.Context, principalID string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.assignments[principalID], nil
}

func newResolver(t *testing.T, store access.RoleStore) (*access.Resolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := access.NewRoleCache(client, time.Minute)
	return access.NewResolver(store, cache, slog.Default()), mr
}

func TestResolverResolvesAndCaches(t *testing.T) {
	store := &stubStore{assignments: map[string][]string{"p1": {"candidate", "instructor"}}}
	resolver, _ := newResolver(t, store)

	role := resolver.EffectiveRole(context.Background(), "p1")
	require.Equal(t, access.RoleInstructor, role)
	require.Equal(t, 1, store.calls)

	// Second lookup is served from cache.
	role = resolver.EffectiveRole(context.Background(), "p1")
	assert.Equal(t, access.RoleInstructor, role)
	assert.Equal(t, 1, store.calls)
}

func TestResolverInvalidateForcesRefetch(t *testing.T) {
	store := &stubStore{assignments: map[string][]string{"p1": {"instructor"}}}
	resolver, _ := newResolver(t, store)

	require.Equal(t, access.RoleInstructor, resolver.EffectiveRole(context.Background(), "p1"))

	store.assignments["p1"] = []string{"institution_admin"}
	resolver.Invalidate(context.Background(), "p1")

	assert.Equal(t, access.RoleInstitutionAdmin, resolver.EffectiveRole(context.Background(), "p1"))
	assert.Equal(t, 2, store.calls)
}

func TestResolverTTLExpiryRefetches(t *testing.T) {
	store := &stubStore{assignments: map[string][]string{"p1": {"super_admin"}}}
	resolver, mr := newResolver(t, store)

	require.Equal(t, access.RoleSuperAdmin, resolver.EffectiveRole(context.Background(), "p1"))
	mr.FastForward(2 * time.Minute)

	assert.Equal(t, access.RoleSuperAdmin, resolver.EffectiveRole(context.Background(), "p1"))
	assert.Equal(t, 2, store.calls)
}

func TestResolverStoreFailureDegradesToCandidate(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	resolver, _ := newResolver(t, store)

	assert.Equal(t, access.RoleCandidate, resolver.EffectiveRole(context.Background(), "p1"))
}

func TestResolverFailureIsNotCached(t *testing.T) {
	store := &stubStore{err: errors.New("temporarily down")}
	resolver, _ := newResolver(t, store)

	require.Equal(t, access.RoleCandidate, resolver.EffectiveRole(context.Background(), "p1"))

	store.err = nil
	store.assignments = map[string][]string{"p1": {"institution_admin"}}
	assert.Equal(t, access.RoleInstitutionAdmin, resolver.EffectiveRole(context.Background(), "p1"))
}

func TestResolverEmptyPrincipal(t *testing.T) {
	store := &stubStore{}
	resolver, _ := newResolver(t, store)

	assert.Equal(t, access.RoleCandidate, resolver.EffectiveRole(context.Background(), ""))
	assert.Zero(t, store.calls)
}

type blockingStore struct{}

func (blockingStore) ListRoleAssignments(ctx context.Context, principalID string) ([]string, error) {
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
	return []string{"super_admin"}, nil
}

// A navigation abandoned mid-fetch must not apply the late-arriving result.
func TestResolverCancelledContextReturnsLeastPrivilege(t *testing.T) {
	resolver, _ := newResolver(t, blockingStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, access.RoleCandidate, resolver.EffectiveRole(ctx, "p1"))
}
