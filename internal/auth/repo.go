package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
	"github.com/stocksavvy/stocksavvy/internal/store"
)

// Document fields of the users and roles collections.
const (
	fieldName         = "name"
	fieldEmail        = "email"
	fieldPasswordHash = "passwordHash"
	fieldRole         = "role"
	fieldIsActive     = "isActive"
	fieldCreatedAt    = "createdAt"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}

// StoreRepository implements Repository on top of the document store. A
// user's role is read from the roles collection first, then from the user
// document, and defaults to worker.
type StoreRepository struct {
	store store.Store
}

// NewRepository constructs a store backed repository.
func NewRepository(st store.Store) *StoreRepository {
	return &StoreRepository{store: st}
}

// FindByEmail fetches a user by email.
func (r *StoreRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	docs, err := r.store.ListWhere(ctx, store.CollectionUsers, store.Where(fieldEmail, store.OpEq, NormalizeEmail(email)))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, shared.ErrNotFound
	}
	user := DecodeUser(docs[0])
	if err := r.resolveRole(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID fetches a user by store id.
func (r *StoreRepository) FindByID(ctx context.Context, id string) (*User, error) {
	doc, err := r.store.Get(ctx, store.CollectionUsers, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user := DecodeUser(doc)
	if err := r.resolveRole(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *StoreRepository) resolveRole(ctx context.Context, user *User) error {
	doc, err := r.store.Get(ctx, store.CollectionRoles, user.ID)
	switch {
	case err == nil:
		if raw, ok := doc[fieldRole].(string); ok && raw != "" {
			user.Role = rbac.ParseRole(raw)
		}
		return nil
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("auth: read role: %w", err)
	}
}

// UserDocument encodes a user for the users collection.
func UserDocument(u User) store.Document {
	doc := store.Document{
		fieldName:         u.Name,
		fieldEmail:        NormalizeEmail(u.Email),
		fieldPasswordHash: u.PasswordHash,
		fieldRole:         string(u.Role),
		fieldIsActive:     u.IsActive,
		fieldCreatedAt:    store.ServerTimestamp,
	}
	if u.ID != "" {
		doc["id"] = u.ID
	}
	return doc
}

// RoleDocument encodes the roles collection entry for a user.
func RoleDocument(userID string, role rbac.Role) store.Document {
	return store.Document{"id": userID, fieldRole: string(role)}
}

// DecodeUser converts a users document. A missing role falls back to worker.
func DecodeUser(doc store.Document) User {
	u := User{ID: doc.ID(), IsActive: true}
	u.Name, _ = doc[fieldName].(string)
	u.Email, _ = doc[fieldEmail].(string)
	u.PasswordHash, _ = doc[fieldPasswordHash].(string)
	role, _ := doc[fieldRole].(string)
	u.Role = rbac.ParseRole(role)
	if active, ok := doc[fieldIsActive].(bool); ok {
		u.IsActive = active
	}
	switch v := doc[fieldCreatedAt].(type) {
	case time.Time:
		u.CreatedAt = v
	case string:
		u.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return u
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Repository = (*StoreRepository)(nil)
