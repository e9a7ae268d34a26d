package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinea-his/clinea-his/internal/shared"
)

type memoryRoleRepo struct {
	roles  map[int64]Role
	users  map[int64]int
	nextID int64
}

var _ RepositoryPort = (*memoryRoleRepo)(nil)

func newMemoryRoleRepo() *memoryRoleRepo {
	return &memoryRoleRepo{roles: make(map[int64]Role), users: make(map[int64]int)}
}

func (r *memoryRoleRepo) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryRoleRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (r *memoryRoleRepo) GetRoleByName(ctx context.Context, name string) (Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (r *memoryRoleRepo) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	for _, role := range r.roles {
		if role.Name == input.Name {
			return Role{}, ErrDuplicateName
		}
	}
	r.nextID++
	role := Role{
		ID:              r.nextID,
		Name:            input.Name,
		Color:           input.Color,
		CanEdit:         input.CanEdit,
		CanDelete:       input.CanDelete,
		CanPrint:        input.CanPrint,
		RecordEditable:  true,
		RecordDeletable: true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	r.roles[role.ID] = role
	return role, nil
}

func (r *memoryRoleRepo) UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	for _, other := range r.roles {
		if other.ID != id && other.Name == input.Name {
			return Role{}, ErrDuplicateName
		}
	}
	role.Name = input.Name
	role.Color = input.Color
	role.CanEdit = input.CanEdit
	role.CanDelete = input.CanDelete
	role.CanPrint = input.CanPrint
	role.UpdatedAt = time.Now()
	r.roles[id] = role
	return role, nil
}

func (r *memoryRoleRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := r.roles[id]; !ok {
		return ErrRoleNotFound
	}
	delete(r.roles, id)
	return nil
}

func (r *memoryRoleRepo) CountUsers(ctx context.Context, roleID int64) (int, error) {
	return r.users[roleID], nil
}

func seedRole(t *testing.T, repo *memoryRoleRepo, name string, editable, deletable bool) Role {
	t.Helper()
	role, err := repo.CreateRole(context.Background(), CreateRoleInput{Name: name, CanEdit: true, CanDelete: true, CanPrint: true})
	require.NoError(t, err)
	role.RecordEditable = editable
	role.RecordDeletable = deletable
	repo.roles[role.ID] = role
	return role
}

func TestCreateRoleRejectsReservedName(t *testing.T) {
	svc := NewService(newMemoryRoleRepo())
	_, err := svc.CreateRole(context.Background(), CreateRoleInput{Name: shared.AdminRoleName})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestUpdateRoleProtectedRename(t *testing.T) {
	repo := newMemoryRoleRepo()
	svc := NewService(repo)
	locked := seedRole(t, repo, "Caissier", false, true)

	_, err := svc.UpdateRole(context.Background(), locked.ID, UpdateRoleInput{Name: "Autre"})
	require.ErrorIs(t, err, ErrRoleProtected)

	// Switch changes without a rename still go through.
	updated, err := svc.UpdateRole(context.Background(), locked.ID, UpdateRoleInput{Name: "Caissier", CanDelete: false, CanEdit: true, CanPrint: true})
	require.NoError(t, err)
	require.False(t, updated.CanDelete)
}

func TestDeleteRoleGuards(t *testing.T) {
	repo := newMemoryRoleRepo()
	svc := NewService(repo)
	ctx := context.Background()

	protected := seedRole(t, repo, "Medecin", true, false)
	require.ErrorIs(t, svc.DeleteRole(ctx, protected.ID), ErrRoleProtected)

	admin := seedRole(t, repo, shared.AdminRoleName, true, true)
	require.ErrorIs(t, svc.DeleteRole(ctx, admin.ID), ErrRoleProtected)

	busy := seedRole(t, repo, "Infirmier", true, true)
	repo.users[busy.ID] = 3
	require.ErrorIs(t, svc.DeleteRole(ctx, busy.ID), ErrRoleInUse)

	free := seedRole(t, repo, "Stagiaire", true, true)
	require.NoError(t, svc.DeleteRole(ctx, free.ID))
	_, err := svc.GetRole(ctx, free.ID)
	require.ErrorIs(t, err, ErrRoleNotFound)
}
