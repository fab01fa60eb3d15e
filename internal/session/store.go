package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/plan"
)

const snapshotExt = ".yaml"

// SnapshotStore persists plan snapshots as one YAML file per session.
type SnapshotStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewSnapshotStore creates a store rooted at baseDir, creating the directory
// if needed.
func NewSnapshotStore(baseDir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotStore{baseDir: baseDir}, nil
}

// Dir returns the directory snapshots are written to.
func (s *SnapshotStore) Dir() string { return s.baseDir }

// Save writes snap atomically and returns the file path.
func (s *SnapshotStore) Save(ctx context.Context, snap plan.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.pathFor(snap.SessionID)
	if err != nil {
		return "", err
	}
	data, err := snap.EncodeYAML()
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads the snapshot for sessionID.
func (s *SnapshotStore) Load(ctx context.Context, sessionID string) (plan.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return plan.Snapshot{}, err
	}
	path, err := s.pathFor(sessionID)
	if err != nil {
		return plan.Snapshot{}, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return plan.Snapshot{}, errors.NewNotFoundError("snapshot", sessionID)
		}
		return plan.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap plan.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return plan.Snapshot{}, fmt.Errorf("failed to parse snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

// List returns the stored session IDs in lexical order.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries, err := os.ReadDir(s.baseDir)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *SnapshotStore) pathFor(sessionID string) (string, error) {
	if sessionID == "" || sessionID != filepath.Base(sessionID) || strings.HasPrefix(sessionID, ".") {
		return "", errors.NewValidationError("invalid session id").WithField("session_id").WithValue(sessionID)
	}
	return filepath.Join(s.baseDir, sessionID+snapshotExt), nil
}

// atomicWriteFile writes to a temporary file in the same directory and
// renames it over path, so readers never see a partial snapshot.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
