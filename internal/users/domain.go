package users

import (
	"errors"
	"time"
)

// User is an account that can open a session. The password hash never leaves
// the package.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	RoleID       int64     `json:"role_id"`
	RoleName     string    `json:"role_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PasswordHash string    `json:"-"`
}

// CreateUserInput is the payload for creating a user.
type CreateUserInput struct {
	Username string
	FullName string
	Password string
	RoleID   int64
}

// UpdateUserInput is the payload for updating a user. A nil Password leaves
// the stored hash untouched.
type UpdateUserInput struct {
	FullName string
	RoleID   int64
	IsActive bool
	Password *string
}

var (
	ErrUserNotFound      = errors.New("users: user not found")
	ErrDuplicateUsername = errors.New("users: username already exists")
)
