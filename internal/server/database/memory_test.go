package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryStore().Users()

	id, err := users.Create(ctx, &User{Username: "a", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = users.Create(ctx, &User{Username: "a", Email: "other@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateUser, "duplicate username")

	_, err = users.Create(ctx, &User{Username: "b", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateUser, "duplicate email")

	u, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "h", u.PasswordHash)

	_, err = users.GetByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryFiles(t *testing.T) {
	ctx := context.Background()
	files := NewMemoryStore().Files()

	id1, err := files.CreatePlaceholder(ctx, 1, "a.txt", "text/plain")
	require.NoError(t, err)
	id2, err := files.CreatePlaceholder(ctx, 2, "b.txt", "text/plain")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	f, err := files.Get(ctx, id1, 1)
	require.NoError(t, err)
	assert.True(t, f.Pending())

	require.NoError(t, files.FinalizeSize(ctx, id1, 5))
	assert.ErrorIs(t, files.FinalizeSize(ctx, id1, 6), ErrAlreadyFinalized, "size is written once")
	assert.ErrorIs(t, files.FinalizeSize(ctx, 999, 1), ErrAlreadyFinalized)

	f, err = files.Get(ctx, id1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *f.Size)

	_, err = files.Get(ctx, id1, 2)
	assert.ErrorIs(t, err, ErrFileNotFound, "lookup is owner scoped")

	list, err := files.ListForOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id1, list[0].ID)

	empty, err := files.ListForOwner(ctx, 42)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryFiles_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	files := NewMemoryStore().Files()

	id, err := files.CreatePlaceholder(ctx, 1, "a.txt", "text/plain")
	require.NoError(t, err)
	require.NoError(t, files.FinalizeSize(ctx, id, 5))

	f, err := files.Get(ctx, id, 1)
	require.NoError(t, err)
	*f.Size = 100
	f.Name = "changed"

	again, err := files.Get(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *again.Size)
	assert.Equal(t, "a.txt", again.Name)
}

func TestMemoryFiles_ListStalePlaceholders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	files := store.Files()

	stale, err := files.CreatePlaceholder(ctx, 1, "stale", "text/plain")
	require.NoError(t, err)
	done, err := files.CreatePlaceholder(ctx, 1, "done", "text/plain")
	require.NoError(t, err)
	require.NoError(t, files.FinalizeSize(ctx, done, 1))

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = files.CreatePlaceholder(ctx, 1, "fresh", "text/plain")
	require.NoError(t, err)

	got, err := files.ListStalePlaceholders(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale, got[0].ID)
}

func TestIsMemoryDSN(t *testing.T) {
	assert.True(t, IsMemoryDSN("memory"))
	assert.True(t, IsMemoryDSN(" MEMORY "))
	assert.False(t, IsMemoryDSN("postgres://localhost/passiflora"))
}
