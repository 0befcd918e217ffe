package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
	"github.com/stocksavvy/stocksavvy/internal/store"
	"github.com/stocksavvy/stocksavvy/internal/store/memory"
)

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, SeedUsers(ctx, st, []SeedUser{{Name: "Worker", Email: "worker@stocksavvy.com", Password: "worker123"}}, nil))
	svc := NewService(NewRepository(st), nil)

	user, ok := svc.SignIn(ctx, "worker@stocksavvy.com", "worker123")
	require.True(t, ok)
	require.Equal(t, rbac.RoleWorker, user.Role)

	_, ok = svc.SignIn(ctx, "worker@stocksavvy.com", "admin123")
	require.False(t, ok)
}

func TestSeedUsersIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seed := []SeedUser{{Name: "Admin", Email: "admin@stocksavvy.com", Password: "admin123", Role: rbac.RoleAdmin}}
	require.NoError(t, SeedUsers(ctx, st, seed, nil))
	require.NoError(t, SeedUsers(ctx, st, seed, nil))

	docs, err := st.ListAll(ctx, store.CollectionUsers)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestRoleFallback(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	repo := NewRepository(st)

	// Role document wins over the user document.
	id, err := st.Put(ctx, store.CollectionUsers, UserDocument(User{Email: "a@x.io", Role: rbac.RoleWorker, IsActive: true}))
	require.NoError(t, err)
	_, err = st.Put(ctx, store.CollectionRoles, RoleDocument(id, rbac.RoleAdmin))
	require.NoError(t, err)
	user, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, user.Role)

	// No role document: the user document decides.
	id, err = st.Put(ctx, store.CollectionUsers, UserDocument(User{Email: "b@x.io", Role: rbac.RoleAdmin, IsActive: true}))
	require.NoError(t, err)
	user, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, user.Role)

	// Neither: worker.
	id, err = st.Put(ctx, store.CollectionUsers, store.Document{fieldEmail: "c@x.io"})
	require.NoError(t, err)
	user, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, rbac.RoleWorker, user.Role)
	require.True(t, user.IsActive)
}

func TestRoleOfInactiveUser(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	id, err := st.Put(ctx, store.CollectionUsers, UserDocument(User{Email: "gone@x.io", Role: rbac.RoleAdmin, IsActive: false}))
	require.NoError(t, err)
	svc := NewService(NewRepository(st), nil)

	_, err = svc.RoleOf(ctx, id)
	require.ErrorIs(t, err, rbac.ErrNotFound)
	_, err = svc.RoleOf(ctx, "missing")
	require.ErrorIs(t, err, rbac.ErrNotFound)

	_, err = svc.CurrentUser(ctx)
	require.ErrorIs(t, err, shared.ErrNoSession)
}
