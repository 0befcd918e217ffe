package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForbidden is returned when a principal lacks a permission.
var ErrForbidden = errors.New("rbac: forbidden")

// Role represents a high-level permission grouping.
type Role string

const (
	// RoleAdmin may perform every action.
	RoleAdmin Role = "admin"
	// RoleWorker may browse, add and sell products.
	RoleWorker Role = "worker"
)

// Permission names.
const (
	PermProductsView    = "products.view"
	PermProductsCreate  = "products.create"
	PermProductsEdit    = "products.edit"
	PermProductsSell    = "products.sell"
	PermProductsArchive = "products.archive"
	PermAnalyticsView   = "analytics.view"
	PermUsersView       = "users.view"
	PermUsersManage     = "users.manage"
)

// Permission represents an atomic capability.
type Permission struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = []Permission{
	{Name: PermProductsView, Description: "Browse products, history and the dashboard"},
	{Name: PermProductsCreate, Description: "Add products to the inventory"},
	{Name: PermProductsEdit, Description: "Edit product details, stock and price"},
	{Name: PermProductsSell, Description: "Record product sales"},
	{Name: PermProductsArchive, Description: "Archive products"},
	{Name: PermAnalyticsView, Description: "View sales and purchase analytics"},
	{Name: PermUsersView, Description: "List user accounts"},
	{Name: PermUsersManage, Description: "Create users and change roles"},
}

var grants = map[Role][]string{
	RoleWorker: {PermProductsView, PermProductsCreate, PermProductsSell},
}

// ParseRole maps a stored role name onto a Role. Unknown or empty values
// fall back to RoleWorker.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleWorker
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleWorker
}

// Catalog returns every known permission.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// PermissionsFor returns the permission names granted to role.
func PermissionsFor(role Role) []string {
	if role == RoleAdmin {
		out := make([]string, 0, len(catalog))
		for _, p := range catalog {
			out = append(out, p.Name)
		}
		return out
	}
	granted := grants[ParseRole(string(role))]
	out := make([]string, len(granted))
	copy(out, granted)
	return out
}

// Principal describes the authenticated actor.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Can reports whether the principal holds perm.
func (p Principal) Can(perm string) bool {
	return newPermSet(PermissionsFor(p.Role)).has(perm)
}

// Authorize returns ErrForbidden when the principal lacks perm.
func (p Principal) Authorize(perm string) error {
	if p.ID == "" {
		return fmt.Errorf("%w: anonymous", ErrForbidden)
	}
	if !p.Can(perm) {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, p.Role, perm)
	}
	return nil
}
