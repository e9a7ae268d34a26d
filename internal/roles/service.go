package roles

import (
	"context"

	"github.com/clinea-his/clinea-his/internal/shared"
)

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns one role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role with its master switches.
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	if input.Name == shared.AdminRoleName {
		return Role{}, ErrDuplicateName
	}
	return s.repo.CreateRole(ctx, input)
}

// UpdateRole rewrites a role. Roles flagged record_editable=false refuse
// renames but still accept switch changes; the administrator role cannot be
// renamed away from its reserved name.
func (s *Service) UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error) {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if input.Name != current.Name {
		if !current.RecordEditable || current.Name == shared.AdminRoleName {
			return Role{}, ErrRoleProtected
		}
	}
	return s.repo.UpdateRole(ctx, id, input)
}

// DeleteRole removes a role unless it is protected or still referenced by
// users.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if !current.RecordDeletable || current.Name == shared.AdminRoleName {
		return ErrRoleProtected
	}
	n, err := s.repo.CountUsers(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrRoleInUse
	}
	return s.repo.DeleteRole(ctx, id)
}
