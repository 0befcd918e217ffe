package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stocksavvy/stocksavvy/internal/auth"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
	"github.com/stocksavvy/stocksavvy/internal/store"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
	FindByID(ctx context.Context, id string) (*auth.User, error)
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	CreateUser(ctx context.Context, user auth.User) (string, error)
	UpdateUser(ctx context.Context, id string, fields store.Document) error
	SetRole(ctx context.Context, id string, role rbac.Role) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context, actor rbac.Principal) ([]auth.User, error) {
	if err := actor.Authorize(rbac.PermUsersView); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// CreateUser registers a new account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, actor rbac.Principal, in CreateInput) (auth.User, error) {
	if err := actor.Authorize(rbac.PermUsersManage); err != nil {
		return auth.User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = auth.NormalizeEmail(in.Email)
	if err := validateAccount(in.Name, in.Email, in.Role); err != nil {
		return auth.User{}, err
	}
	if in.Password == "" {
		return auth.User{}, fmt.Errorf("%w: password is required", shared.ErrValidation)
	}
	if err := s.ensureEmailFree(ctx, in.Email, ""); err != nil {
		return auth.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return auth.User{}, err
	}
	user := auth.User{Name: in.Name, Email: in.Email, PasswordHash: hash, Role: in.Role, IsActive: true}
	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return auth.User{}, fmt.Errorf("users: create: %w", err)
	}
	user.ID = id
	s.logger.Info("user created", slog.String("user_id", id), slog.String("role", string(in.Role)), slog.String("actor", actor.Email))
	return user, nil
}

// UpdateUser changes profile fields, password, role or active flag.
func (s *Service) UpdateUser(ctx context.Context, actor rbac.Principal, id string, in UpdateInput) (auth.User, error) {
	if err := actor.Authorize(rbac.PermUsersManage); err != nil {
		return auth.User{}, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return auth.User{}, ErrNotFound
		}
		return auth.User{}, err
	}

	next := *current
	fields := store.Document{}
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
		fields["name"] = next.Name
	}
	if in.Email != nil {
		next.Email = auth.NormalizeEmail(*in.Email)
		fields["email"] = next.Email
	}
	if in.Role != nil {
		next.Role = *in.Role
	}
	if err := validateAccount(next.Name, next.Email, next.Role); err != nil {
		return auth.User{}, err
	}
	if in.Password != nil && *in.Password == "" {
		return auth.User{}, fmt.Errorf("%w: password must not be empty", shared.ErrValidation)
	}
	if next.Email != current.Email {
		if err := s.ensureEmailFree(ctx, next.Email, id); err != nil {
			return auth.User{}, err
		}
	}
	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return auth.User{}, err
		}
		next.PasswordHash = hash
		fields["passwordHash"] = hash
	}
	if in.IsActive != nil && *in.IsActive != current.IsActive {
		if !*in.IsActive {
			if err := s.ensureOtherActive(ctx, id); err != nil {
				return auth.User{}, err
			}
		}
		next.IsActive = *in.IsActive
		fields["isActive"] = next.IsActive
	}

	if err := s.repo.UpdateUser(ctx, id, fields); err != nil {
		return auth.User{}, fmt.Errorf("users: update: %w", err)
	}
	if next.Role != current.Role {
		if err := s.repo.SetRole(ctx, id, next.Role); err != nil {
			return auth.User{}, fmt.Errorf("users: set role: %w", err)
		}
	}
	s.logger.Info("user updated", slog.String("user_id", id), slog.String("actor", actor.Email))
	return next, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.ID != exceptID {
			return ErrEmailTaken
		}
		return nil
	case errors.Is(err, shared.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) ensureOtherActive(ctx context.Context, id string) error {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range all {
		if u.ID != id && u.IsActive {
			return nil
		}
	}
	return ErrLastActiveUser
}

var emailValidator = validator.New()

func validateAccount(name, email string, role rbac.Role) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if err := emailValidator.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: email is invalid", shared.ErrValidation)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: role must be admin or worker", shared.ErrValidation)
	}
	return nil
}
