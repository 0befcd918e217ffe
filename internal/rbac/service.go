package rbac

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Directory resolves the role assigned to a user.
type Directory interface {
	RoleOf(ctx context.Context, userID string) (Role, error)
}

// Service answers permission questions using the fixed role table.
type Service struct {
	directory Directory
}

// NewService constructs a Service backed by the provided directory.
func NewService(directory Directory) *Service {
	return &Service{directory: directory}
}

// ListPermissions returns all permissions ordered as declared.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return Catalog(), nil
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNotFound
	}
	if s == nil || s.directory == nil {
		return nil, errors.New("rbac: directory not configured")
	}
	role, err := s.directory.RoleOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return PermissionsFor(role), nil
}
