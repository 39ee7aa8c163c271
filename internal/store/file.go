package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
)

// FileStore keeps the ledger in a single JSON file. Saves write a temporary
// file next to the target and rename it into place, so a crash mid-write
// leaves the previous version intact.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the file the store reads and writes.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context) (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return Decode(data)
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.logger.Debug("ledger state saved",
		zap.String("path", s.path),
		zap.Int("blocks", len(st.Chain)),
		zap.Int("pending", len(st.PendingVotes)),
	)
	return nil
}

// Encode renders st in the on-disk format (4-space indented JSON).
func Encode(st *State) ([]byte, error) {
	// Clone normalises nil slices so they are written as [] rather than null.
	data, err := json.MarshalIndent(st.Clone(), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal ledger state: %w", err)
	}
	return data, nil
}

// Decode parses data in the on-disk format. A missing "chain" or
// "pending_votes" key decodes as an empty list.
func Decode(data []byte) (*State, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrCorrupt)
	}

	var st State
	if err := json.Unmarshal(trimmed, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, b := range st.Chain {
		if b.Index < 1 {
			return nil, fmt.Errorf("%w: block at position %d has index %d", ErrCorrupt, i+1, b.Index)
		}
	}
	return &st, nil
}
