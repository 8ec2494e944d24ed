package institutions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/certchain/certchain/internal/shared"
)

// AuditRecorder persists audit entries for institution changes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles institution business logic.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns all institutions.
func (s *Service) List(ctx context.Context) ([]Institution, error) {
	return s.repo.List(ctx)
}

// Get fetches one institution.
func (s *Service) Get(ctx context.Context, id string) (*Institution, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new institution.
func (s *Service) Create(ctx context.Context, actorID string, inst Institution) (*Institution, error) {
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.Name == "" {
		return nil, fmt.Errorf("%w: institution name required", shared.ErrValidation)
	}
	inst.ID = uuid.NewString()
	if err := s.repo.Create(ctx, inst); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "institution.create", inst.ID, map[string]any{"name": inst.Name})
	return &inst, nil
}

// Update persists profile changes.
func (s *Service) Update(ctx context.Context, actorID string, inst Institution) error {
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.Name == "" {
		return fmt.Errorf("%w: institution name required", shared.ErrValidation)
	}
	if err := s.repo.Update(ctx, inst); err != nil {
		return err
	}
	s.record(ctx, actorID, "institution.update", inst.ID, nil)
	return nil
}

// Archive deactivates an institution without deleting its history.
func (s *Service) Archive(ctx context.Context, actorID, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, actorID, "institution.archive", id, nil)
	return nil
}

// Restore reactivates an archived institution.
func (s *Service) Restore(ctx context.Context, actorID, id string) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.record(ctx, actorID, "institution.restore", id, nil)
	return nil
}

// ListStaff returns staff of an institution.
func (s *Service) ListStaff(ctx context.Context, institutionID string) ([]StaffMember, error) {
	return s.repo.ListStaff(ctx, institutionID)
}

// AddStaff attaches a principal after verifying the actor manages the
// institution. Super admin actors bypass the membership check.
func (s *Service) AddStaff(ctx context.Context, actorID string, actorIsSuper bool, member StaffMember) error {
	if !actorIsSuper {
		if err := s.requireMembership(ctx, actorID, member.InstitutionID); err != nil {
			return err
		}
	}
	member.AddedBy = actorID
	if err := s.repo.AddStaff(ctx, member); err != nil {
		return err
	}
	s.record(ctx, actorID, "staff.add", member.InstitutionID, map[string]any{"principal": member.PrincipalID, "title": member.Title})
	return nil
}

// RemoveStaff detaches a principal with the same scoping rule as AddStaff.
func (s *Service) RemoveStaff(ctx context.Context, actorID string, actorIsSuper bool, institutionID, principalID string) error {
	if !actorIsSuper {
		if err := s.requireMembership(ctx, actorID, institutionID); err != nil {
			return err
		}
	}
	if err := s.repo.RemoveStaff(ctx, institutionID, principalID); err != nil {
		return err
	}
	s.record(ctx, actorID, "staff.remove", institutionID, map[string]any{"principal": principalID})
	return nil
}

// InstitutionsFor exposes membership for scoping decisions elsewhere.
func (s *Service) InstitutionsFor(ctx context.Context, principalID string) ([]string, error) {
	return s.repo.InstitutionsFor(ctx, principalID)
}

func (s *Service) requireMembership(ctx context.Context, actorID, institutionID string) error {
	ids, err := s.repo.InstitutionsFor(ctx, actorID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == institutionID {
			return nil
		}
	}
	return shared.ErrForbidden
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "institution",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
