package database

import (
	"context"
	"database/sql"
	"time"
)

// User is a registered account. ID is the subject of issued tokens.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// File is the metadata row for a stored blob.
type File struct {
	ID       int64
	OwnerID  int64
	Name     string
	MimeType string
	Size     *int64 // nil until the upload has been finalized
	// CreatedAt is informational; it is zero when a query does not select it.
	CreatedAt time.Time
}

// Pending reports whether the upload for this row has not completed.
func (f *File) Pending() bool {
	return f.Size == nil
}

// DBTX is the subset of database/sql used by the repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
