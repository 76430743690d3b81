package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionscope/internal/model"
)

// Store provides Postgres persistence for the discovered-pool cache.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// LoadPools returns all cached pools, highest TVL first.
func (s *Store) LoadPools(ctx context.Context) ([]model.CachedPool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token0, token1, tick_spacing, pool_address, tvl_usd
		FROM cl_pool_cache
		ORDER BY tvl_usd DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.CachedPool
	for rows.Next() {
		var p model.CachedPool
		if err := rows.Scan(&p.Token0, &p.Token1, &p.TickSpacing, &p.Pool, &p.TVLUSD); err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// SavePools upserts the discovered pools.
func (s *Store) SavePools(ctx context.Context, pools []model.CachedPool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO cl_pool_cache (
				token0, token1, tick_spacing, pool_address, tvl_usd, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (token0, token1, tick_spacing)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				tvl_usd = EXCLUDED.tvl_usd,
				updated_at = now()
		`,
			p.Token0,
			p.Token1,
			p.TickSpacing,
			p.Pool,
			p.TVLUSD,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
