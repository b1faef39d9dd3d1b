package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryDSN selects MemoryStore instead of PostgreSQL.
const MemoryDSN = "memory"

// MemoryStore is an in-process implementation of the user and file
// repositories for local development and tests. Data is lost on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[int64]*User
	files  map[int64]*File
	nextID struct{ user, file int64 }
	now    func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]*User),
		files: make(map[int64]*File),
		now:   time.Now,
	}
}

// Users returns the user repository view of the store.
func (m *MemoryStore) Users() *MemoryUsers { return (*MemoryUsers)(m) }

// Files returns the file repository view of the store.
func (m *MemoryStore) Files() *MemoryFiles { return (*MemoryFiles)(m) }

// MemoryUsers implements the user repository over a MemoryStore.
type MemoryUsers MemoryStore

func (u *MemoryUsers) Create(_ context.Context, user *User) (int64, error) {
	m := (*MemoryStore)(u)
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return 0, ErrDuplicateUser
		}
	}

	m.nextID.user++
	stored := *user
	stored.ID = m.nextID.user
	stored.CreatedAt = m.now().UTC()
	m.users[stored.ID] = &stored
	return stored.ID, nil
}

func (u *MemoryUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	m := (*MemoryStore)(u)
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

// MemoryFiles implements the file repository over a MemoryStore.
type MemoryFiles MemoryStore

func (f *MemoryFiles) CreatePlaceholder(_ context.Context, ownerID int64, name, mimeType string) (int64, error) {
	m := (*MemoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID.file++
	m.files[m.nextID.file] = &File{
		ID:        m.nextID.file,
		OwnerID:   ownerID,
		Name:      name,
		MimeType:  mimeType,
		CreatedAt: m.now().UTC(),
	}
	return m.nextID.file, nil
}

func (f *MemoryFiles) FinalizeSize(_ context.Context, fileID, size int64) error {
	m := (*MemoryStore)(f)
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.files[fileID]
	if !ok || rec.Size != nil {
		return ErrAlreadyFinalized
	}
	rec.Size = &size
	return nil
}

func (f *MemoryFiles) ListForOwner(_ context.Context, ownerID int64) ([]*File, error) {
	return f.filter(func(rec *File) bool { return rec.OwnerID == ownerID }), nil
}

func (f *MemoryFiles) Get(_ context.Context, fileID, ownerID int64) (*File, error) {
	m := (*MemoryStore)(f)
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.files[fileID]
	if !ok || rec.OwnerID != ownerID {
		return nil, ErrFileNotFound
	}
	return copyFile(rec), nil
}

func (f *MemoryFiles) ListStalePlaceholders(_ context.Context, cutoff time.Time) ([]*File, error) {
	return f.filter(func(rec *File) bool {
		return rec.Size == nil && rec.CreatedAt.Before(cutoff)
	}), nil
}

func (f *MemoryFiles) filter(keep func(*File) bool) []*File {
	m := (*MemoryStore)(f)
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*File{}
	for _, rec := range m.files {
		if keep(rec) {
			out = append(out, copyFile(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyFile(rec *File) *File {
	cp := *rec
	if rec.Size != nil {
		size := *rec.Size
		cp.Size = &size
	}
	return &cp
}

// IsMemoryDSN reports whether dsn selects the in-memory store.
func IsMemoryDSN(dsn string) bool {
	return strings.EqualFold(strings.TrimSpace(dsn), MemoryDSN)
}

// HealthCheck always succeeds for the in-memory store.
func (m *MemoryStore) HealthCheck(context.Context) error {
	return nil
}
