package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"passiflora/internal/server/auth"
	"passiflora/internal/server/database"
	"passiflora/internal/server/storage"
)

const (
	// chunkSize bounds the memory held per in-flight upload.
	chunkSize = 32 * 1024

	defaultPartName = "file"
	defaultMimeType = "application/octet-stream"
)

// FileStore is the metadata persistence used by FileService.
type FileStore interface {
	CreatePlaceholder(ctx context.Context, ownerID int64, name, mimeType string) (int64, error)
	FinalizeSize(ctx context.Context, fileID, size int64) error
	ListForOwner(ctx context.Context, ownerID int64) ([]*database.File, error)
	Get(ctx context.Context, fileID, ownerID int64) (*database.File, error)
}

// BlobStore is the byte storage used by FileService.
type BlobStore interface {
	OpenWriter(ownerID, fileID int64) (*storage.BlobWriter, error)
	OpenReader(ownerID, fileID int64) (*os.File, error)
}

// PartSource yields multipart parts in order. *multipart.Reader satisfies it.
type PartSource interface {
	NextPart() (*multipart.Part, error)
}

// FileInfo is the public view of a stored file. Size is null while the
// upload is incomplete or after it failed.
type FileInfo struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Size      *int64    `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func newFileInfo(f *database.File) FileInfo {
	return FileInfo{
		ID:        f.ID,
		UserID:    f.OwnerID,
		Name:      f.Name,
		MimeType:  f.MimeType,
		Size:      f.Size,
		CreatedAt: f.CreatedAt,
	}
}

// Download is an open blob together with the metadata needed to serve it.
// The caller must close Body.
type Download struct {
	File FileInfo
	Body io.ReadCloser
	// Complete is false for uploads that never finalized; Body then holds
	// whatever bytes reached the disk.
	Complete bool
}

// FileService contains the upload, listing and download pipelines.
type FileService struct {
	guard *auth.Guard
	files FileStore
	blobs BlobStore
}

// NewFileService creates a new file service.
func NewFileService(guard *auth.Guard, files FileStore, blobs BlobStore) *FileService {
	return &FileService{guard: guard, files: files, blobs: blobs}
}

// List returns every file owned by ownerID. The caller must be ownerID.
func (s *FileService) List(ctx context.Context, authorization string, ownerID int64) ([]FileInfo, error) {
	if _, err := s.guard.Authorize(authorization, ownerID); err != nil {
		return nil, err
	}

	files, err := s.files.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, newFileInfo(f))
	}
	return out, nil
}

// Upload stores every part from parts for the authenticated user, one at a
// time. Each part gets a placeholder row before any byte is written and its
// size after the last byte. The first failure aborts the request; parts
// already finalized stay stored.
func (s *FileService) Upload(ctx context.Context, authorization string, parts PartSource) ([]FileInfo, error) {
	claims, err := s.guard.Authenticate(authorization)
	if err != nil {
		return nil, err
	}
	ownerID := claims.Subject

	buf := make([]byte, chunkSize)
	stored := []FileInfo{}
	for {
		part, err := parts.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &BadRequestError{Reason: "malformed multipart body", Err: err}
		}

		info, err := s.storePart(ctx, ownerID, part, buf)
		part.Close()
		if err != nil {
			return nil, err
		}
		stored = append(stored, info)
	}

	return stored, nil
}

func (s *FileService) storePart(ctx context.Context, ownerID int64, part *multipart.Part, buf []byte) (FileInfo, error) {
	name := rawFileName(part)
	if name == "" {
		name = defaultPartName
	}
	mimeType := DetectMimeType(name)

	fileID, err := s.files.CreatePlaceholder(ctx, ownerID, name, mimeType)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	w, err := s.blobs.OpenWriter(ownerID, fileID)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	copyErr := copyChunks(ctx, w, part, buf)
	closeErr := w.Close()
	if copyErr != nil {
		slog.Warn("upload interrupted",
			"file_id", fileID,
			"user_id", ownerID,
			"written", w.Written(),
			"error", copyErr,
		)
		return FileInfo{}, fmt.Errorf("%w: %w", ErrInternal, copyErr)
	}
	if closeErr != nil {
		return FileInfo{}, fmt.Errorf("%w: closing blob: %w", ErrInternal, closeErr)
	}

	size := w.Written()
	if err := s.files.FinalizeSize(ctx, fileID, size); err != nil {
		return FileInfo{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	slog.Info("file uploaded",
		"file_id", fileID,
		"user_id", ownerID,
		"name", name,
		"size", size,
	)

	return FileInfo{
		ID:        fileID,
		UserID:    ownerID,
		Name:      name,
		MimeType:  mimeType,
		Size:      &size,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// rawFileName returns the filename parameter exactly as the client sent it.
// Part.FileName strips directories, but the display name is stored verbatim
// and never used as a path.
func rawFileName(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

// copyChunks copies src to dst through buf, checking ctx before each read.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("writing blob: %w", werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("reading part: %w", rerr)
		}
	}
}

// Download opens fileID for streaming. The caller must be ownerID.
func (s *FileService) Download(ctx context.Context, authorization string, ownerID, fileID int64) (*Download, error) {
	if _, err := s.guard.Authorize(authorization, ownerID); err != nil {
		return nil, err
	}

	f, err := s.files.Get(ctx, fileID, ownerID)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	body, err := s.blobs.OpenReader(ownerID, fileID)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return &Download{File: newFileInfo(f), Body: body, Complete: !f.Pending()}, nil
}

// extraTypes fills gaps in the standard library table so detection does
// not depend on the host's mime.types files.
var extraTypes = map[string]string{
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

func init() {
	for ext, typ := range extraTypes {
		if err := mime.AddExtensionType(ext, typ); err != nil {
			panic(err)
		}
	}
}

// DetectMimeType guesses a content type from the extension of name.
// Unknown extensions yield application/octet-stream.
func DetectMimeType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return defaultMimeType
}
