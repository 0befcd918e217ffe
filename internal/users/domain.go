package users

import (
	"errors"

	"github.com/stocksavvy/stocksavvy/internal/rbac"
)

var (
	// ErrNotFound is returned for unknown user ids.
	ErrNotFound = errors.New("users: user not found")
	// ErrEmailTaken is returned when another account already uses the email.
	ErrEmailTaken = errors.New("users: email already in use")
	// ErrLastActiveUser protects the final active account from deactivation.
	ErrLastActiveUser = errors.New("users: cannot deactivate the last active user")
)

// CreateInput captures a new account.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     rbac.Role
}

// UpdateInput is a partial account update.
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *rbac.Role
	IsActive *bool
}
