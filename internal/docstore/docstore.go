// Package docstore reads and replaces the flat JSON documents (roster, menu,
// budgets) kept under the data directory.
//
// Every read returns a version token (hex SHA-256 of the file content, or ""
// when the file does not exist). Replace only succeeds when the caller's token
// still matches, and writes through a temp file plus rename so readers never
// observe a partial document.
package docstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"teamorders/internal/core"
	applog "teamorders/internal/log"
)

// Document file names.
const (
	UsersFile   = "users.json"
	MenuFile    = "structured_menu.json"
	BudgetsFile = "budgets.json"
)

// AnyVersion skips the optimistic version check on Replace.
const AnyVersion = "*"

var (
	ErrVersionConflict = errors.New("document changed since it was read")
	ErrUnknownDocument = errors.New("unknown document")
)

// Loader yields a fresh snapshot of the flat files on every call.
type Loader interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)
}

// Store is a directory of versioned JSON documents.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *applog.Logger
}

var _ Loader = (*Store)(nil)

// New opens the store rooted at dir, creating the directory if needed.
func New(dir string, logger *applog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Store{dir: dir, logger: logger.WithComponent(applog.ComponentDocs)}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) (string, error) {
	switch name {
	case UsersFile, MenuFile, BudgetsFile:
		return filepath.Join(s.dir, name), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDocument, name)
	}
}

// Version returns the token identifying data.
func Version(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Read returns the raw document and its version. A missing file reads as
// empty with version "".
func (s *Store) Read(ctx context.Context, name string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	return data, Version(data), nil
}

// Replace swaps the document for data if its current version equals expected
// (or expected is AnyVersion) and returns the new version.
func (s *Store) Replace(ctx context.Context, name string, data []byte, expected string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := s.path(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expected != AnyVersion {
		_, current, err := s.Read(ctx, name)
		if err != nil {
			return "", err
		}
		if current != expected {
			return "", fmt.Errorf("replace %s: %w", name, ErrVersionConflict)
		}
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("replace %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("replace %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("replace %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("replace %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("replace %s: %w", name, err)
	}

	version := Version(data)
	s.logger.InfoContext(ctx, "Document replaced",
		applog.FieldDocument, name,
		applog.FieldOperation, applog.OpReplace,
		"bytes", len(data))
	return version, nil
}

func (s *Store) decode(ctx context.Context, name string, v any) (string, error) {
	data, version, err := s.Read(ctx, name)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return version, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return version, nil
}

func (s *Store) encode(ctx context.Context, name string, v any, expected string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	buf.WriteByte('\n')
	return s.Replace(ctx, name, buf.Bytes(), expected)
}

// Directory reads users.json.
func (s *Store) Directory(ctx context.Context) (core.Directory, string, error) {
	var dir core.Directory
	version, err := s.decode(ctx, UsersFile, &dir)
	return dir, version, err
}

// Menu reads structured_menu.json.
func (s *Store) Menu(ctx context.Context) (core.Menu, string, error) {
	var menu core.Menu
	version, err := s.decode(ctx, MenuFile, &menu)
	return menu, version, err
}

// Budgets reads budgets.json. A missing file yields an empty set.
func (s *Store) Budgets(ctx context.Context) (core.Budgets, string, error) {
	budgets := core.Budgets{}
	version, err := s.decode(ctx, BudgetsFile, &budgets)
	return budgets, version, err
}

// SaveDirectory replaces users.json.
func (s *Store) SaveDirectory(ctx context.Context, dir core.Directory, expected string) (string, error) {
	return s.encode(ctx, UsersFile, dir, expected)
}

// SaveMenu replaces structured_menu.json.
func (s *Store) SaveMenu(ctx context.Context, menu core.Menu, expected string) (string, error) {
	return s.encode(ctx, MenuFile, menu, expected)
}

// SaveBudgets replaces budgets.json.
func (s *Store) SaveBudgets(ctx context.Context, budgets core.Budgets, expected string) (string, error) {
	return s.encode(ctx, BudgetsFile, budgets, expected)
}

// Snapshot reads all three documents. Nothing is cached between calls.
func (s *Store) Snapshot(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	var err error
	if snap.Directory, _, err = s.Directory(ctx); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Menu, _, err = s.Menu(ctx); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Budgets, _, err = s.Budgets(ctx); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}
