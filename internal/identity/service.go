package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/certchain/certchain/internal/access"
	"github.com/certchain/certchain/internal/shared"
)

// AuditRecorder persists audit entries for role changes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RoleInvalidator drops cached effective roles after assignment changes.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, principalID string)
}

// Service handles principal and role assignment business logic.
type Service struct {
	repo     Repository
	audit    AuditRecorder
	resolver RoleInvalidator
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, audit AuditRecorder, resolver RoleInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, resolver: resolver, logger: logger}
}

// ListPrincipals returns a page of principals.
func (s *Service) ListPrincipals(ctx context.Context, page, perPage int) ([]Principal, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	principals, total, err := s.repo.ListPrincipals(ctx, pagination)
	if err != nil {
		return nil, pagination, err
	}
	return principals, shared.NewPagination(page, perPage, total), nil
}

// GetPrincipal fetches a principal by ID.
func (s *Service) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	return s.repo.GetPrincipal(ctx, id)
}

// GrantRole assigns a role to a principal and invalidates the role cache.
func (s *Service) GrantRole(ctx context.Context, actorID, principalID, roleName string) error {
	if _, ok := access.Canonical(access.Role(roleName)); !ok {
		return fmt.Errorf("%w: unknown role %q", shared.ErrValidation, roleName)
	}
	if err := s.repo.GrantRole(ctx, principalID, roleName, actorID); err != nil {
		return err
	}
	s.invalidate(ctx, principalID)
	s.record(ctx, actorID, "role.grant", principalID, map[string]any{"role": roleName})
	return nil
}

// RevokeRole removes a role from a principal and invalidates the role cache.
func (s *Service) RevokeRole(ctx context.Context, actorID, principalID, roleName string) error {
	if err := s.repo.RevokeRole(ctx, principalID, roleName); err != nil {
		return err
	}
	s.invalidate(ctx, principalID)
	s.record(ctx, actorID, "role.revoke", principalID, map[string]any{"role": roleName})
	return nil
}

// ReplaceRoles swaps a principal's assignment set.
func (s *Service) ReplaceRoles(ctx context.Context, actorID, principalID string, roleNames []string) error {
	for _, name := range roleNames {
		if _, ok := access.Canonical(access.Role(name)); !ok {
			return fmt.Errorf("%w: unknown role %q", shared.ErrValidation, name)
		}
	}
	if err := s.repo.ReplaceRoles(ctx, principalID, roleNames, actorID); err != nil {
		return err
	}
	s.invalidate(ctx, principalID)
	s.record(ctx, actorID, "role.replace", principalID, map[string]any{"roles": roleNames})
	return nil
}

// SetActive toggles a principal's ability to sign in.
func (s *Service) SetActive(ctx context.Context, actorID, principalID string, active bool) error {
	if err := s.repo.SetActive(ctx, principalID, active); err != nil {
		return err
	}
	s.invalidate(ctx, principalID)
	action := "principal.deactivate"
	if active {
		action = "principal.activate"
	}
	s.record(ctx, actorID, action, principalID, nil)
	return nil
}

func (s *Service) invalidate(ctx context.Context, principalID string) {
	if s.resolver != nil {
		s.resolver.Invalidate(ctx, principalID)
	}
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "principal",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
