package users

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser hashes the password and inserts the account.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, input, string(hash))
}

// UpdateUser rewrites profile fields, rehashing the password when one is
// supplied.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (User, error) {
	var hash *string
	if input.Password != nil {
		raw, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		h := string(raw)
		hash = &h
	}
	return s.repo.UpdateUser(ctx, id, input, hash)
}

// DeactivateUser disables login for the account.
func (s *Service) DeactivateUser(ctx context.Context, id int64) error {
	return s.repo.DeactivateUser(ctx, id)
}
