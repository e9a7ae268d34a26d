package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, input CreateRoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	CountUsers(ctx context.Context, roleID int64) (int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ RepositoryPort = (*Repository)(nil)

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, color, can_edit, can_delete, can_print, record_editable, record_deletable, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Color,
		&role.CanEdit,
		&role.CanDelete,
		&role.CanPrint,
		&role.RecordEditable,
		&role.RecordDeletable,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrRoleNotFound
	}
	return role, err
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches one role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// GetRoleByName fetches one role by its unique name.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRole(row)
}

// CreateRole inserts a new role. A unique violation on the name maps to
// ErrDuplicateName.
func (r *Repository) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, color, can_edit, can_delete, can_print)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+roleColumns,
		input.Name, input.Color, input.CanEdit, input.CanDelete, input.CanPrint,
	)
	role, err := scanRole(row)
	if isUniqueViolation(err) {
		return Role{}, ErrDuplicateName
	}
	return role, err
}

// UpdateRole rewrites the role's name, color and master switches.
func (r *Repository) UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, color = $3, can_edit = $4, can_delete = $5, can_print = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		id, input.Name, input.Color, input.CanEdit, input.CanDelete, input.CanPrint,
	)
	role, err := scanRole(row)
	if isUniqueViolation(err) {
		return Role{}, ErrDuplicateName
	}
	return role, err
}

// DeleteRole removes a role row.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// CountUsers reports how many users still reference the role.
func (r *Repository) CountUsers(ctx context.Context, roleID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&n)
	return n, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
