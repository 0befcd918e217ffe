package auth

import (
	"time"

	"github.com/stocksavvy/stocksavvy/internal/rbac"
)

// User represents an authenticated user account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         rbac.Role `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal returns the identity handed to authorization checks.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

// SeedUser describes an account created at startup when missing.
type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     rbac.Role
}
