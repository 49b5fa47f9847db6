package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// sanitizeThreadID replaces anything outside [A-Za-z0-9_-] so a threadID
// is always safe to use as a filename component (§6: "filename is a
// sanitised threadId + extension").
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func sanitizeThreadID(threadID string) string {
	return unsafeFilenameChars.ReplaceAllString(threadID, "_")
}

// FileStore is a Store backed by one JSON file per checkpoint, under
// <dir>/<namespace>/<sanitized-threadId>.json. Grounded on §6's explicit
// "Checkpoint file layout" (JSON per thread, one file per checkpoint,
// pretty-printed by default, compact mode optional) — the teacher has no
// direct file-store analogue, so this follows the spec's own wire format
// rather than a teacher pattern; stdlib-only per DESIGN.md (no
// serialization library is warranted for plain JSON files).
type FileStore struct {
	dir     string
	compact bool
	mu      sync.Mutex
}

var _ Store = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithCompactJSON disables pretty-printing; checkpoints are written as
// single-line JSON.
func WithCompactJSON() FileStoreOption {
	return func(s *FileStore) { s.compact = true }
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{dir: dir}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *FileStore) path(namespace, threadID string) string {
	return filepath.Join(s.dir, namespace, sanitizeThreadID(threadID)+".json")
}

// Init creates the root directory.
func (s *FileStore) Init(ctx context.Context) error {
	return os.MkdirAll(s.dir, 0o755)
}

// Close is a no-op; FileStore holds no open handles between calls.
func (s *FileStore) Close() error { return nil }

// Save marshals cp to JSON and writes it atomically (write-then-rename),
// preserving the original CreatedAt if a checkpoint already exists.
func (s *FileStore) Save(ctx context.Context, namespace string, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok, err := s.load(namespace, cp.ThreadID); err == nil && ok {
		cp.CreatedAt = existing.CreatedAt
	}

	path := s.path(namespace, cp.ThreadID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir: %w", err)
	}

	var data []byte
	var err error
	if s.compact {
		data, err = json.Marshal(cp)
	} else {
		data, err = json.MarshalIndent(cp, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

func (s *FileStore) load(namespace, threadID string) (Checkpoint, bool, error) {
	data, err := os.ReadFile(s.path(namespace, threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("checkpoint: read: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, &ErrInvalidCheckpoint{Namespace: namespace, ThreadID: threadID, Err: err}
	}
	return cp, true, nil
}

// Load reads and unmarshals the checkpoint for threadID, or reports
// (zero, false, nil) if the file does not exist. A structurally invalid
// file returns an *ErrInvalidCheckpoint.
func (s *FileStore) Load(ctx context.Context, namespace, threadID string) (Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(namespace, threadID)
}

// Exists reports whether a checkpoint file for threadID is present.
func (s *FileStore) Exists(ctx context.Context, namespace, threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path(namespace, threadID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete removes the checkpoint file for threadID, if any.
func (s *FileStore) Delete(ctx context.Context, namespace, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(namespace, threadID))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns every threadID with a stored checkpoint file in namespace.
func (s *FileStore) List(ctx context.Context, namespace string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: readdir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		cp, ok, err := s.load(namespace, name)
		if err != nil || !ok {
			continue
		}
		out = append(out, cp.ThreadID)
	}
	sort.Strings(out)
	return out, nil
}
