// Package prefs persists clet's client-side state: the access token, the
// last-viewed snippet id, and the UI theme. State is stored in
// ~/.config/clet/prefs.toml.
//
// Business logic never touches the file directly; it goes through the Store
// interface so tests can substitute an in-memory implementation.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// Store is the persistence boundary for session and view state. A zero
// LastSnippet means no snippet is remembered; an empty Token means no
// session is stored.
type Store interface {
	Token() string
	SetToken(token string) error
	ClearToken() error

	LastSnippet() int
	SetLastSnippet(id int) error
	ClearLastSnippet() error

	Theme() string
	SetTheme(name string) error
}

// data is the on-disk TOML shape.
type data struct {
	AccessToken string `toml:"access_token"`
	LastSnippet int    `toml:"last_snippet"`
	Theme       string `toml:"theme"`
}

const (
	defaultPrefsPath = "~/.config/clet/prefs.toml"
	defaultTheme     = "Midnight"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// FileStore is the production Store backed by a TOML file. It is safe for
// concurrent use; every mutation rewrites the whole file.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state data
}

// Open loads preferences from the given path, falling back to an empty
// state if the file is missing or unreadable. An empty path selects the
// default location.
func Open(path string) (*FileStore, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve prefs path: %w", err)
	}

	s := &FileStore{path: resolved, state: data{Theme: defaultTheme}}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(file)
	if err != nil {
		return s, nil // Graceful degradation
	}

	var loaded data
	if err := toml.Unmarshal(raw, &loaded); err != nil {
		return s, nil // Graceful degradation
	}
	if strings.TrimSpace(loaded.Theme) == "" {
		loaded.Theme = defaultTheme
	}
	s.state = loaded
	return s, nil
}

// Token returns the stored access token, or "" when none is stored.
func (s *FileStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken
}

// SetToken persists a new access token.
func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = token
	return s.save()
}

// ClearToken removes the stored access token.
func (s *FileStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = ""
	return s.save()
}

// LastSnippet returns the persisted snippet pointer, or 0 when absent.
func (s *FileStore) LastSnippet() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastSnippet
}

// SetLastSnippet persists the id of the snippet shown in the detail view.
func (s *FileStore) SetLastSnippet(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastSnippet = id
	return s.save()
}

// ClearLastSnippet forgets the persisted snippet pointer.
func (s *FileStore) ClearLastSnippet() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastSnippet = 0
	return s.save()
}

// Theme returns the persisted theme name.
func (s *FileStore) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Theme
}

// SetTheme persists the theme name.
func (s *FileStore) SetTheme(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Theme = name
	return s.save()
}

// save writes the state file. Caller holds the lock. The file carries the
// access token, so it is not group or world readable.
func (s *FileStore) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	raw, err := toml.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

// Memory is an in-memory Store for tests.
type Memory struct {
	mu    sync.Mutex
	state data
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: data{Theme: defaultTheme}}
}

func (m *Memory) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AccessToken
}

func (m *Memory) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.AccessToken = token
	return nil
}

func (m *Memory) ClearToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.AccessToken = ""
	return nil
}

func (m *Memory) LastSnippet() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LastSnippet
}

func (m *Memory) SetLastSnippet(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastSnippet = id
	return nil
}

func (m *Memory) ClearLastSnippet() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastSnippet = 0
	return nil
}

func (m *Memory) Theme() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Theme
}

func (m *Memory) SetTheme(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Theme = name
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*Memory)(nil)
)

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
