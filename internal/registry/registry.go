// Package registry maintains the candidate pool set used for staked
// position discovery: a static allow-list unioned with pools discovered
// via the indexer and cached in a store.
package registry

import (
	"context"

	"go.uber.org/zap"

	"positionscope/internal/model"
	"positionscope/internal/storage"
)

// Registry merges the static allow-list with the cached discovery set.
type Registry struct {
	static  []model.PoolKey
	store   storage.Store
	maxSize int
	logger  *zap.Logger
}

// New builds a Registry. store may be nil, leaving only the allow-list.
func New(static []model.PoolKey, store storage.Store, maxSize int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Registry{static: static, store: store, maxSize: maxSize, logger: logger}
}

// Candidates returns the deduplicated candidate pool keys, allow-list
// first. A store failure degrades to the allow-list alone.
func (r *Registry) Candidates(ctx context.Context) []model.PoolKey {
	keys := make([]model.PoolKey, 0, len(r.static))
	seen := make(map[string]struct{}, len(r.static))

	for _, key := range r.static {
		if _, ok := seen[key.ID()]; ok {
			continue
		}
		seen[key.ID()] = struct{}{}
		keys = append(keys, key)
	}

	if r.store != nil {
		cached, err := r.store.LoadPools(ctx)
		if err != nil {
			r.logger.Warn("pool cache load failed", zap.Error(err))
		}
		for _, pool := range cached {
			if len(keys) >= r.maxSize {
				break
			}
			key := pool.Key()
			if _, ok := seen[key.ID()]; ok {
				continue
			}
			seen[key.ID()] = struct{}{}
			keys = append(keys, key)
		}
	}

	return keys
}

// SaveDiscovered persists discovered pools to the cache store.
func (r *Registry) SaveDiscovered(ctx context.Context, pools []model.CachedPool) error {
	if r.store == nil {
		return nil
	}
	if len(pools) > r.maxSize {
		pools = pools[:r.maxSize]
	}
	return r.store.SavePools(ctx, pools)
}
