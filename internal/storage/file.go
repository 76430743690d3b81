package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"positionscope/internal/model"
)

type poolCacheFile struct {
	UpdatedAt time.Time          `json:"updatedAt"`
	Pools     []model.CachedPool `json:"pools"`
}

// FileStore keeps the discovered-pool cache in a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// LoadPools reads the cached pool list. A missing file is an empty cache,
// not an error.
func (s *FileStore) LoadPools(_ context.Context) ([]model.CachedPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pool cache: %w", err)
	}

	var cache poolCacheFile
	if err := json.Unmarshal(raw, &cache); err != nil {
		return nil, fmt.Errorf("decode pool cache: %w", err)
	}
	return cache.Pools, nil
}

// SavePools replaces the cached pool list atomically.
func (s *FileStore) SavePools(_ context.Context, pools []model.CachedPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	raw, err := json.MarshalIndent(poolCacheFile{UpdatedAt: time.Now().UTC(), Pools: pools}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pool cache: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write pool cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace pool cache: %w", err)
	}
	return nil
}
