// Package session persists investigation state between turns.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inquest-labs/inquest/internal/agent/investigation"
)

// ErrNotFound is returned when no state exists for a session ID.
var ErrNotFound = errors.New("session not found")

// Store loads and saves investigation state between turns.
type Store interface {
	Load(ctx context.Context, sessionID string) (*investigation.State, error)
	Save(ctx context.Context, sessionID string, state *investigation.State) error
}

// FileStore persists sessions as JSON files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed session store rooted at dir,
// creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultDir returns the default session directory under the user's home.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".inquest", "sessions"), nil
}

// Load implements Store.Load.
func (s *FileStore) Load(ctx context.Context, sessionID string) (*investigation.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	var state investigation.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupted session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save implements Store.Save. The write goes through a temp file and rename
// so a crash never leaves a half-written session behind.
func (s *FileStore) Save(ctx context.Context, sessionID string, state *investigation.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sessionID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session %s: %w", sessionID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize session %s: %w", sessionID, err)
	}
	return nil
}

// path validates the session ID and maps it to a file path.
func (s *FileStore) path(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, "/\\") || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.dir, sessionID+".json"), nil
}

// MemoryStore keeps sessions in memory. Used in tests.
type MemoryStore struct {
	states map[string]*investigation.State
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*investigation.State)}
}

// Load implements Store.Load.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*investigation.State, error) {
	state, ok := s.states[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return state, nil
}

// Save implements Store.Save.
func (s *MemoryStore) Save(ctx context.Context, sessionID string, state *investigation.State) error {
	s.states[sessionID] = state
	return nil
}
