package users

import (
	"context"
	"errors"

	"github.com/stocksavvy/stocksavvy/internal/auth"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/store"
)

// Repository persists accounts in the users and roles collections.
type Repository struct {
	store store.Store
	auth  *auth.StoreRepository
}

// NewRepository constructs a repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st, auth: auth.NewRepository(st)}
}

// ListUsers returns all users with their effective roles.
func (r *Repository) ListUsers(ctx context.Context) ([]auth.User, error) {
	docs, err := r.store.ListAll(ctx, store.CollectionUsers)
	if err != nil {
		return nil, err
	}
	out := make([]auth.User, 0, len(docs))
	for _, doc := range docs {
		user, err := r.auth.FindByID(ctx, doc.ID())
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, nil
}

// FindByID returns a single user.
func (r *Repository) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return r.auth.FindByID(ctx, id)
}

// FindByEmail returns the account registered under email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.auth.FindByEmail(ctx, email)
}

// CreateUser stores the user and its role document.
func (r *Repository) CreateUser(ctx context.Context, user auth.User) (string, error) {
	id, err := r.store.Put(ctx, store.CollectionUsers, auth.UserDocument(user))
	if err != nil {
		return "", err
	}
	if _, err := r.store.Put(ctx, store.CollectionRoles, auth.RoleDocument(id, user.Role)); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateUser writes changed user fields.
func (r *Repository) UpdateUser(ctx context.Context, id string, fields store.Document) error {
	if len(fields) == 0 {
		return nil
	}
	return r.store.Update(ctx, store.CollectionUsers, id, fields)
}

// SetRole upserts the role document and mirrors the role on the user.
func (r *Repository) SetRole(ctx context.Context, id string, role rbac.Role) error {
	doc := auth.RoleDocument(id, role)
	err := r.store.Update(ctx, store.CollectionRoles, id, store.Document{"role": string(role)})
	if errors.Is(err, store.ErrNotFound) {
		_, err = r.store.Put(ctx, store.CollectionRoles, doc)
	}
	if err != nil {
		return err
	}
	return r.store.Update(ctx, store.CollectionUsers, id, store.Document{"role": string(role)})
}
