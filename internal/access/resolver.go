package access

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// RoleStore lists the raw role assignment strings held by a principal. The
// identity module provides the PostgreSQL implementation.
type RoleStore interface {
	ListRoleAssignments(ctx context.Context, principalID string) ([]string, error)
}

// Resolver computes and caches the effective role for a principal. A store
// failure degrades to RoleCandidate: authorization fails toward least
// privilege, never toward an error page.
type Resolver struct {
	store  RoleStore
	cache  *RoleCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewResolver constructs a Resolver.
func NewResolver(store RoleStore, cache *RoleCache, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, logger: logger}
}

// EffectiveRole returns the principal's effective role, consulting the cache
// first. Concurrent fetches for the same principal are collapsed; a caller
// whose request is cancelled mid-fetch gets the least-privilege default
// instead of a late-arriving result.
func (r *Resolver) EffectiveRole(ctx context.Context, principalID string) Role {
	if r == nil || principalID == "" {
		return RoleCandidate
	}

	if role, hit, err := r.cache.Get(ctx, principalID); err == nil && hit {
		return role
	} else if err != nil && r.logger != nil {
		r.logger.Warn("role cache read", slog.String("principal", principalID), slog.Any("error", err))
	}

	resultChan := r.group.DoChan(principalID, func() (any, error) {
		assignments, err := r.store.ListRoleAssignments(ctx, principalID)
		if err != nil {
			return nil, err
		}
		return ResolveEffectiveRole(assignments), nil
	})

	select {
	case <-ctx.Done():
		return RoleCandidate
	case res := <-resultChan:
		if res.Err != nil {
			if r.logger != nil {
				r.logger.Warn("resolve effective role", slog.String("principal", principalID), slog.Any("error", res.Err))
			}
			return RoleCandidate
		}
		role := res.Val.(Role)
		if err := r.cache.Put(ctx, principalID, role); err != nil && r.logger != nil {
			r.logger.Warn("role cache write", slog.String("principal", principalID), slog.Any("error", err))
		}
		return role
	}
}

// Invalidate drops the cached role so the next check refetches assignments.
// Called after grant, revoke, replace, and sign-out.
func (r *Resolver) Invalidate(ctx context.Context, principalID string) {
	if r == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, principalID); err != nil && r.logger != nil {
		r.logger.Warn("role cache invalidate", slog.String("principal", principalID), slog.Any("error", err))
	}
}
