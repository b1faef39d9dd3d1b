package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrFileNotFound = errors.New("file not found")
	// ErrAlreadyFinalized is returned when a size update matches no
	// placeholder row: the file is unknown or its size was already set.
	ErrAlreadyFinalized = errors.New("file size already finalized or file missing")
)

// FileRepository stores file metadata in the files table.
type FileRepository struct {
	db DBTX
}

// NewFileRepository creates a repository bound to db (*sql.DB or *sql.Tx).
func NewFileRepository(db DBTX) *FileRepository {
	return &FileRepository{db: db}
}

// CreatePlaceholder inserts a row with no size and returns its id.
func (r *FileRepository) CreatePlaceholder(ctx context.Context, ownerID int64, name, mimeType string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO files (user_id, name, mime_type)
		VALUES ($1, $2, $3)
		RETURNING id
	`, ownerID, name, mimeType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create file record: %w", err)
	}
	return id, nil
}

// FinalizeSize records the size of a completed upload. Only a placeholder
// row can be finalized, so the size is written at most once.
func (r *FileRepository) FinalizeSize(ctx context.Context, fileID, size int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE files SET size = $1 WHERE id = $2 AND size IS NULL", size, fileID)
	if err != nil {
		return fmt.Errorf("failed to finalize file size: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return ErrAlreadyFinalized
	}
	return nil
}

// ListForOwner returns every file owned by ownerID, oldest first.
// An owner without files yields an empty, non-nil slice.
func (r *FileRepository) ListForOwner(ctx context.Context, ownerID int64) ([]*File, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, mime_type, size, created_at
		FROM files WHERE user_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return scanFiles(rows)
}

// Get returns file fileID if it belongs to ownerID.
func (r *FileRepository) Get(ctx context.Context, fileID, ownerID int64) (*File, error) {
	f := &File{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, mime_type, size, created_at
		FROM files WHERE id = $1 AND user_id = $2
	`, fileID, ownerID).Scan(&f.ID, &f.OwnerID, &f.Name, &f.MimeType, &f.Size, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// ListStalePlaceholders returns rows still missing a size that were created
// before cutoff.
func (r *FileRepository) ListStalePlaceholders(ctx context.Context, cutoff time.Time) ([]*File, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, mime_type, size, created_at
		FROM files WHERE size IS NULL AND created_at < $1
		ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query placeholders: %w", err)
	}
	return scanFiles(rows)
}

func scanFiles(rows *sql.Rows) ([]*File, error) {
	defer rows.Close()

	files := []*File{}
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.MimeType, &f.Size, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return files, nil
}
