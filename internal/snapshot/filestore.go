package snapshot

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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ruizrica/driftgate/internal/gate"
)

// keyPattern validates project keys used as directory names.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateProjectKey checks that a project key is safe for filesystem
// paths.
func ValidateProjectKey(key string) error {
	if key == "" {
		return ErrInvalidProjectKey
	}
	if len(key) > 255 {
		return fmt.Errorf("%w: key too long (max 255)", ErrInvalidProjectKey)
	}
	if key == "." || key == ".." || !keyPattern.MatchString(key) {
		return ErrInvalidProjectKey
	}
	for _, c := range key {
		if c == '/' || c == '\\' || c == '\x00' {
			return ErrInvalidProjectKey
		}
	}
	if filepath.Clean(key) != key {
		return ErrInvalidProjectKey
	}
	return nil
}

// FileStore is a file-backed Store. Each project owns a directory under
// the base path; each snapshot is one JSON file whose name sorts by
// creation time, written atomically via tmp+rename. A per-project mutex
// enforces the single-writer discipline; writes to different projects
// are independent.
type FileStore struct {
	basePath string
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a file store rooted at basePath. An empty
// basePath defaults to ~/.config/driftgate/snapshots.
func NewFileStore(basePath string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		basePath = filepath.Join(home, ".config", "driftgate", "snapshots")
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// BasePath returns the store's root directory.
func (s *FileStore) BasePath() string {
	return s.basePath
}

// projectLock returns the mutex serializing writes for one project.
func (s *FileStore) projectLock(projectKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[projectKey]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectKey] = l
	}
	return l
}

// Save persists a snapshot for the project.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) (*Snapshot, error) {
	if err := ValidateProjectKey(snap.ProjectKey); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := *snap
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	lock := s.projectLock(stored.ProjectKey)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Join(s.basePath, stored.ProjectKey)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}

	// File names sort lexicographically by creation time.
	name := fmt.Sprintf("%020d-%s.json", stored.CreatedAt.UnixNano(), shortID(stored.ID))
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("renaming snapshot: %w", err)
	}

	s.logger.Debug("saved snapshot",
		zap.String("project_key", stored.ProjectKey),
		zap.String("snapshot_id", stored.ID),
	)
	return &stored, nil
}

// Latest returns the most recent snapshot for the project.
func (s *FileStore) Latest(ctx context.Context, projectKey string) (*Snapshot, error) {
	snaps, err := s.List(ctx, projectKey, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: project %s", ErrNoBaseline, projectKey)
	}
	return snaps[0], nil
}

// List returns up to limit snapshots for the project, newest first.
// limit <= 0 returns all.
func (s *FileStore) List(ctx context.Context, projectKey string, limit int) ([]*Snapshot, error) {
	if err := ValidateProjectKey(projectKey); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.basePath, projectKey)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Snapshot{}, nil
		}
		return nil, fmt.Errorf("reading project directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	snaps := make([]*Snapshot, 0, len(names))
	for _, name := range names {
		snap, err := s.read(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// read decodes one snapshot file.
func (s *FileStore) read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, path, err)
	}
	if snap.GateResults == nil {
		snap.GateResults = make(map[gate.ID]gate.Result)
	}
	return &snap, nil
}

// shortID returns the first uuid segment for compact file names.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
