// Package annotate keeps user annotations (verse highlights, word-range
// highlights and passage notes) on top of a whole-blob key-value backend.
//
// Every mutation reads the full map from the backend, changes one key and
// writes the full map back. When the backend fails, the store logs once and
// continues in memory for the rest of the session.
package annotate

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Backend persists named blobs. Load returns nil data and no error when
// nothing has been saved under name yet.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func checkName(name string) error {
	if !validName.MatchString(name) {
		return errors.NewValidation("store", fmt.Sprintf("invalid store name %q", name))
	}
	return nil
}

// MemoryBackend keeps blobs in process memory.
type MemoryBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Save(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), data...)
	return nil
}

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// FileBackend stores each blob as <dir>/<name>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIO("create", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f *FileBackend) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIO("read", f.path(name), err)
	}
	return data, nil
}

// Save replaces the blob atomically via a temp file and rename.
func (f *FileBackend) Save(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	final := f.path(name)

	tempFile, err := os.CreateTemp(f.dir, "."+name+"-*")
	if err != nil {
		return errors.NewIO("create temp file in", f.dir, err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return errors.NewIO("write", tempPath, err)
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return errors.NewIO("close", tempPath, err)
	}
	if err := osRename(tempPath, final); err != nil {
		os.Remove(tempPath)
		return errors.NewIO("rename", final, err)
	}
	return nil
}

// SQLiteBackend stores blobs in an "annotations" table.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend creates the annotations table if it does not exist.
func NewSQLiteBackend(ctx context.Context, db *sql.DB) (*SQLiteBackend, error) {
	const ddl = `CREATE TABLE IF NOT EXISTS annotations (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, errors.Wrap(err, "create annotations table")
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM annotations WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	return data, nil
}

func (s *SQLiteBackend) Save(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (name, data) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data`, name, data)
	return errors.Wrapf(err, "save %s", name)
}
