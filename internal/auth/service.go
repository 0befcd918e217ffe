package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
	"github.com/stocksavvy/stocksavvy/internal/store"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.log().Error("lookup user", slog.Any("error", err))
		}
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignIn reports whether the credentials match an active account.
func (s *Service) SignIn(ctx context.Context, email, password string) (User, bool) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return User{}, false
	}
	return *user, true
}

// CurrentUser resolves the principal bound to the session in ctx.
func (s *Service) CurrentUser(ctx context.Context) (rbac.Principal, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return rbac.Principal{}, shared.ErrNoSession
	}
	user, err := s.repo.FindByID(ctx, sess.User())
	if err != nil {
		return rbac.Principal{}, err
	}
	if !user.IsActive {
		return rbac.Principal{}, shared.ErrNoSession
	}
	return user.Principal(), nil
}

// RoleOf implements rbac.Directory.
func (s *Service) RoleOf(ctx context.Context, userID string) (rbac.Role, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", rbac.ErrNotFound
		}
		return "", err
	}
	if !user.IsActive {
		return "", rbac.ErrNotFound
	}
	return user.Role, nil
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// SeedUsers creates the given accounts unless their email is already taken.
func SeedUsers(ctx context.Context, st store.Store, seeds []SeedUser, logger *slog.Logger) error {
	repo := NewRepository(st)
	for _, seed := range seeds {
		if seed.Email == "" || seed.Password == "" {
			continue
		}
		if _, err := repo.FindByEmail(ctx, seed.Email); err == nil {
			continue
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		hash, err := HashPassword(seed.Password)
		if err != nil {
			return err
		}
		role := rbac.ParseRole(string(seed.Role))
		id, err := st.Put(ctx, store.CollectionUsers, UserDocument(User{
			Name:         seed.Name,
			Email:        seed.Email,
			PasswordHash: hash,
			Role:         role,
			IsActive:     true,
		}))
		if err != nil {
			return fmt.Errorf("auth: seed %s: %w", seed.Email, err)
		}
		if _, err := st.Put(ctx, store.CollectionRoles, RoleDocument(id, role)); err != nil {
			return fmt.Errorf("auth: seed role %s: %w", seed.Email, err)
		}
		if logger != nil {
			logger.Info("seeded user", slog.String("email", NormalizeEmail(seed.Email)), slog.String("role", string(role)))
		}
	}
	return nil
}
