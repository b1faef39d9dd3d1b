package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStore_PathFor(t *testing.T) {
	store := NewFileSystemStore("/data")

	got := store.PathFor(3, 17)
	want := filepath.Join("/data", "3", "17")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestFileSystemStore_OpenWriter(t *testing.T) {
	t.Run("writes blob under owner directory", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		w, err := store.OpenWriter(1, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := io.WriteString(w, "hello"); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if w.Written() != 5 {
			t.Errorf("expected 5 bytes written, got %d", w.Written())
		}

		content, err := os.ReadFile(filepath.Join(dir, "1", "2"))
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "hello" {
			t.Errorf("expected 'hello', got %q", content)
		}
	})

	t.Run("counts across writes", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		w, err := store.OpenWriter(1, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer w.Close()

		large := strings.Repeat("x", 1024*1024)
		for i := 0; i < 3; i++ {
			if _, err := io.WriteString(w, large); err != nil {
				t.Fatalf("write failed: %v", err)
			}
		}
		if w.Written() != int64(3*len(large)) {
			t.Errorf("expected %d bytes, got %d", 3*len(large), w.Written())
		}
	})

	t.Run("truncates existing blob", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		os.MkdirAll(filepath.Join(dir, "4"), 0o755)
		os.WriteFile(filepath.Join(dir, "4", "9"), []byte("old contents"), 0o644)

		w, err := store.OpenWriter(4, 9)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		io.WriteString(w, "new")
		w.Close()

		content, _ := os.ReadFile(filepath.Join(dir, "4", "9"))
		if string(content) != "new" {
			t.Errorf("expected 'new', got %q", content)
		}
	})

	t.Run("fails when root is a file", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "not-a-dir")
		os.WriteFile(root, []byte("x"), 0o644)

		_, err := NewFileSystemStore(root).OpenWriter(1, 1)
		if err == nil {
			t.Error("expected error when owner directory cannot be created")
		}
	})
}

func TestFileSystemStore_OpenReader(t *testing.T) {
	t.Run("reads existing blob", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		w, _ := store.OpenWriter(2, 5)
		io.WriteString(w, "payload")
		w.Close()

		r, err := store.OpenReader(2, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer r.Close()

		got, _ := io.ReadAll(r)
		if string(got) != "payload" {
			t.Errorf("expected 'payload', got %q", got)
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		_, err := store.OpenReader(2, 6)
		if !errors.Is(err, ErrBlobNotFound) {
			t.Errorf("expected ErrBlobNotFound, got %v", err)
		}
	})
}

func TestFileSystemStore_Exists(t *testing.T) {
	store := NewFileSystemStore(t.TempDir())

	ok, err := store.Exists(1, 1)
	if err != nil || ok {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}

	w, _ := store.OpenWriter(1, 1)
	w.Close()

	ok, err = store.Exists(1, 1)
	if err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%v, %v)", ok, err)
	}
}

func TestFileSystemStore_EnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "storage")
	store := NewFileSystemStore(dir)

	if err := store.EnsureDir(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}
