package users

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, user User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user User) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service wraps account management rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers an account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, name, email, password, role string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Insert(ctx, User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	})
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// UpdateRole changes the user's role.
func (s *Service) UpdateRole(ctx context.Context, id int64, role string) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	user.Role = role
	return s.repo.Update(ctx, user)
}

// Deactivate disables sign-in without deleting the account; existing
// references (movements, audit entries) stay intact.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// Activate re-enables sign-in.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}
