package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"passiflora/internal/server/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLister struct{}

func (failingLister) ListStalePlaceholders(context.Context, time.Time) ([]*database.File, error) {
	return nil, errors.New("db down")
}

func TestReconciler_Scan(t *testing.T) {
	ctx := context.Background()
	mem := database.NewMemoryStore()
	files := mem.Files()
	blobs := NewFileSystemStore(t.TempDir())

	partial, err := files.CreatePlaceholder(ctx, 1, "partial.bin", "application/octet-stream")
	require.NoError(t, err)
	w, err := blobs.OpenWriter(1, partial)
	require.NoError(t, err)
	io.WriteString(w, "half")
	require.NoError(t, w.Close())

	_, err = files.CreatePlaceholder(ctx, 1, "nothing.bin", "application/octet-stream")
	require.NoError(t, err)

	done, err := files.CreatePlaceholder(ctx, 1, "done.bin", "application/octet-stream")
	require.NoError(t, err)
	require.NoError(t, files.FinalizeSize(ctx, done, 4))

	r := NewReconciler(files, blobs, time.Hour, time.Minute)
	r.now = func() time.Time { return time.Now().Add(time.Hour) }

	res := r.Scan(ctx)
	assert.Equal(t, ScanResult{Stale: 2, WithBlob: 1, WithoutBlob: 1}, res)

	f, err := files.Get(ctx, partial, 1)
	require.NoError(t, err)
	assert.True(t, f.Pending(), "scan must not modify rows")
	ok, err := blobs.Exists(1, partial)
	require.NoError(t, err)
	assert.True(t, ok, "scan must not remove blobs")
}

func TestReconciler_Scan_IgnoresFresh(t *testing.T) {
	ctx := context.Background()
	files := database.NewMemoryStore().Files()
	_, err := files.CreatePlaceholder(ctx, 1, "uploading.bin", "application/octet-stream")
	require.NoError(t, err)

	r := NewReconciler(files, NewFileSystemStore(t.TempDir()), time.Hour, 24*time.Hour)
	assert.Equal(t, ScanResult{}, r.Scan(ctx))
}

func TestReconciler_Scan_ListError(t *testing.T) {
	r := NewReconciler(failingLister{}, NewFileSystemStore(t.TempDir()), time.Hour, time.Hour)
	assert.Equal(t, ScanResult{}, r.Scan(context.Background()))
}

func TestReconciler_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReconciler(database.NewMemoryStore().Files(), NewFileSystemStore(t.TempDir()), time.Millisecond, time.Hour)

	r.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	cancel()

	stopped := make(chan struct{})
	go func() {
		r.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
