package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, input CreateUserInput, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, input UpdateUserInput, passwordHash *string) (User, error)
	DeactivateUser(ctx context.Context, id int64) error
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

const userColumns = `u.id, u.username, u.full_name, u.role_id, r.name, u.is_active, u.created_at, u.updated_at, u.password_hash`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FullName,
		&u.RoleID,
		&u.RoleName,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// ListUsers returns all users with their role name.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser fetches one user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	return scanUser(row)
}

// GetUserByUsername fetches one user by its unique username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.username = $1`, username)
	return scanUser(row)
}

// CreateUser inserts a new user with a pre-hashed password.
func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput, passwordHash string) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, full_name, password_hash, role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		input.Username, input.FullName, passwordHash, input.RoleID,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateUsername
		}
		return User{}, err
	}
	return r.GetUser(ctx, id)
}

// UpdateUser rewrites profile fields; the hash is replaced only when given.
func (r *Repository) UpdateUser(ctx context.Context, id int64, input UpdateUserInput, passwordHash *string) (User, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET full_name = $2,
		    role_id = $3,
		    is_active = $4,
		    password_hash = COALESCE($5, password_hash),
		    updated_at = NOW()
		WHERE id = $1`,
		id, input.FullName, input.RoleID, input.IsActive, passwordHash,
	)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrUserNotFound
	}
	return r.GetUser(ctx, id)
}

// DeactivateUser disables login without deleting history rows.
func (r *Repository) DeactivateUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
