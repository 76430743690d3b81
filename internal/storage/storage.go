package storage

import (
	"context"

	"positionscope/internal/model"
)

// Store persists the discovered-pool cache between runs.
type Store interface {
	LoadPools(ctx context.Context) ([]model.CachedPool, error)
	SavePools(ctx context.Context, pools []model.CachedPool) error
}
