package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinea-his/clinea-his/internal/shared"
	"github.com/clinea-his/clinea-his/internal/users"
)

// Service wraps authentication business rules. The principal it builds is a
// login-time snapshot of the role's master switches and capability grants;
// authorization checks never reread them until Refresh or the next login.
type Service struct {
	userDir  UserDirectory
	roleDir  RoleDirectory
	grants   GrantSource
	sessions SessionRepository
}

// NewService constructs a new Service.
func NewService(userDir UserDirectory, roleDir RoleDirectory, grants GrantSource, sessions SessionRepository) *Service {
	return &Service{userDir: userDir, roleDir: roleDir, grants: grants, sessions: sessions}
}

// Authenticate validates username/password credentials and returns the fully
// resolved principal. Every failure collapses to ErrInvalidCredentials so the
// response does not leak which part was wrong.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*shared.Principal, error) {
	user, err := s.userDir.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return s.buildPrincipal(ctx, user)
}

// Refresh rebuilds the principal for an already authenticated user, picking
// up role switch and grant changes without forcing a new login.
func (s *Service) Refresh(ctx context.Context, userID int64) (*shared.Principal, error) {
	user, err := s.userDir.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return s.buildPrincipal(ctx, user)
}

func (s *Service) buildPrincipal(ctx context.Context, user users.User) (*shared.Principal, error) {
	role, err := s.roleDir.GetRole(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("resolve role %d: %w", user.RoleID, err)
	}
	grants, err := s.grants.GrantsForRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve grants for role %d: %w", role.ID, err)
	}
	return &shared.Principal{
		UserID:    user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		RoleID:    role.ID,
		RoleName:  role.Name,
		CanEdit:   role.CanEdit,
		CanDelete: role.CanDelete,
		CanPrint:  role.CanPrint,
		Grants:    grants,
	}, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.sessions.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}
