package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinea-his/clinea-his/internal/roles"
	"github.com/clinea-his/clinea-his/internal/shared"
	"github.com/clinea-his/clinea-his/internal/users"
)

type memoryDirectory struct {
	users  map[int64]users.User
	roles  map[int64]roles.Role
	grants map[int64]map[string]shared.GrantRights
}

func (d *memoryDirectory) GetUser(ctx context.Context, id int64) (users.User, error) {
	u, ok := d.users[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return u, nil
}

func (d *memoryDirectory) GetUserByUsername(ctx context.Context, username string) (users.User, error) {
	for _, u := range d.users {
		if u.Username == username {
			return u, nil
		}
	}
	return users.User{}, users.ErrUserNotFound
}

func (d *memoryDirectory) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	role, ok := d.roles[id]
	if !ok {
		return roles.Role{}, roles.ErrRoleNotFound
	}
	return role, nil
}

func (d *memoryDirectory) GrantsForRole(ctx context.Context, roleID int64) (map[string]shared.GrantRights, error) {
	return d.grants[roleID], nil
}

type memorySessions struct {
	created []string
	deleted []string
}

func (m *memorySessions) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	m.created = append(m.created, id)
	return nil
}

func (m *memorySessions) DeleteSession(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func fixtureDirectory(t *testing.T) *memoryDirectory {
	t.Helper()
	return &memoryDirectory{
		users: map[int64]users.User{
			1: {ID: 1, Username: "caissier1", FullName: "Awa Diop", RoleID: 10, IsActive: true, PasswordHash: hash(t, "secret123")},
			2: {ID: 2, Username: "dormant", RoleID: 10, IsActive: false, PasswordHash: hash(t, "secret123")},
		},
		roles: map[int64]roles.Role{
			10: {ID: 10, Name: "Caissier", CanEdit: true, CanDelete: false, CanPrint: true},
		},
		grants: map[int64]map[string]shared.GrantRights{
			10: {
				"CAISSE_VIEW":     {},
				"CAISSE_VALIDATE": {CanCreate: true, CanUpdate: true},
			},
		},
	}
}

func TestAuthenticateBuildsPrincipal(t *testing.T) {
	dir := fixtureDirectory(t)
	svc := NewService(dir, dir, dir, &memorySessions{})

	p, err := svc.Authenticate(context.Background(), "caissier1", "secret123")
	require.NoError(t, err)
	require.Equal(t, int64(1), p.UserID)
	require.Equal(t, "Caissier", p.RoleName)
	require.True(t, p.CanEdit)
	require.False(t, p.CanDelete)
	require.True(t, p.HasGrant("CAISSE_VIEW"))
	require.False(t, p.HasGrant("STOCK_VIEW"))
	require.False(t, p.IsAdmin())
}

func TestAuthenticateFailures(t *testing.T) {
	dir := fixtureDirectory(t)
	svc := NewService(dir, dir, dir, &memorySessions{})
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "caissier1", "wrongpass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "dormant", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRefreshPicksUpSwitchChanges(t *testing.T) {
	dir := fixtureDirectory(t)
	svc := NewService(dir, dir, dir, &memorySessions{})
	ctx := context.Background()

	p, err := svc.Refresh(ctx, 1)
	require.NoError(t, err)
	require.True(t, p.CanEdit)

	role := dir.roles[10]
	role.CanEdit = false
	dir.roles[10] = role

	p, err = svc.Refresh(ctx, 1)
	require.NoError(t, err)
	require.False(t, p.CanEdit)

	_, err = svc.Refresh(ctx, 2)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
