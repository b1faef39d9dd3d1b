package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrBlobNotFound is returned when no blob exists for an (owner, file) pair.
var ErrBlobNotFound = errors.New("blob not found")

// FileSystemStore keeps uploaded blobs on the local filesystem under
// <root>/<owner_id>/<file_id>. Paths are derived from integer ids only;
// user-supplied names never reach the filesystem.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend rooted at basePath.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage root if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// PathFor returns the blob path for fileID owned by ownerID.
func (fs *FileSystemStore) PathFor(ownerID, fileID int64) string {
	return filepath.Join(fs.ownerDir(ownerID), strconv.FormatInt(fileID, 10))
}

func (fs *FileSystemStore) ownerDir(ownerID int64) string {
	return filepath.Join(fs.basePath, strconv.FormatInt(ownerID, 10))
}

// OpenWriter creates (or truncates) the blob for fileID and returns a
// writer that counts the bytes it accepts. The owner directory is created
// on demand; concurrent callers racing on it is harmless.
func (fs *FileSystemStore) OpenWriter(ownerID, fileID int64) (*BlobWriter, error) {
	if err := os.MkdirAll(fs.ownerDir(ownerID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create owner directory: %w", err)
	}

	path := fs.PathFor(ownerID, fileID)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}
	return &BlobWriter{f: f}, nil
}

// OpenReader opens the blob for reading. A missing blob yields ErrBlobNotFound.
func (fs *FileSystemStore) OpenReader(ownerID, fileID int64) (*os.File, error) {
	f, err := os.Open(fs.PathFor(ownerID, fileID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Exists reports whether a blob is present for fileID.
func (fs *FileSystemStore) Exists(ownerID, fileID int64) (bool, error) {
	_, err := os.Stat(fs.PathFor(ownerID, fileID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
}

// BlobWriter appends to an open blob and tracks how much was written.
type BlobWriter struct {
	f       *os.File
	written int64
}

func (w *BlobWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.written += int64(n)
	return n, err
}

// Written returns the number of bytes accepted so far.
func (w *BlobWriter) Written() int64 {
	return w.written
}

// Close releases the file handle.
func (w *BlobWriter) Close() error {
	return w.f.Close()
}
