// Package resolver turns a wallet address into the set of position
// token ids it controls: ids held in the wallet plus ids staked into
// gauges of candidate pools.
package resolver

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionscope/internal/chain"
	"positionscope/internal/dex"
	"positionscope/internal/model"
	"positionscope/internal/registry"
)

// Resolved is one discovered position id and where it was found.
type Resolved struct {
	TokenID  *big.Int
	IsStaked bool
}

// Resolver performs position discovery over batched view calls.
type Resolver struct {
	batcher  chain.Batcher
	registry *registry.Registry
	npm      common.Address
	factory  common.Address
	logger   *zap.Logger
}

// New builds a Resolver.
func New(batcher chain.Batcher, reg *registry.Registry, npm, factory common.Address, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{batcher: batcher, registry: reg, npm: npm, factory: factory, logger: logger}
}

// Resolve returns every position id owned by the wallet, wallet-held ids
// first, staked ids after, deduplicated. A failure in staked discovery
// degrades to wallet-held ids only and is recorded on the trace.
func (r *Resolver) Resolve(ctx context.Context, owner common.Address, trace *model.Trace) ([]Resolved, error) {
	walletIDs, err := r.walletIDs(ctx, owner)
	if err != nil {
		trace.AddError("wallet enumeration", err)
		return nil, err
	}
	trace.Add("wallet enumeration", len(walletIDs), len(walletIDs))

	stakedIDs, err := r.stakedIDs(ctx, owner, trace)
	if err != nil {
		r.logger.Warn("staked discovery failed", zap.Error(err))
		trace.AddError("staked discovery", err)
		stakedIDs = nil
	}

	seen := make(map[string]struct{}, len(walletIDs)+len(stakedIDs))
	resolved := make([]Resolved, 0, len(walletIDs)+len(stakedIDs))
	for _, id := range walletIDs {
		key := id.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		resolved = append(resolved, Resolved{TokenID: id})
	}
	for _, id := range stakedIDs {
		key := id.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		resolved = append(resolved, Resolved{TokenID: id, IsStaked: true})
	}
	return resolved, nil
}

// walletIDs enumerates ids held directly by the wallet through the
// position manager's ERC-721 enumeration.
func (r *Resolver) walletIDs(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	balanceCall, err := dex.BalanceOfCall(r.npm, owner)
	if err != nil {
		return nil, err
	}
	results, err := r.batcher.Aggregate(ctx, []chain.Call{balanceCall})
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if len(results) != 1 || !results[0].Success {
		return nil, fmt.Errorf("balanceOf call reverted")
	}
	balance, err := dex.DecodeBalanceOf(results[0].ReturnData)
	if err != nil {
		return nil, err
	}

	count := balance.Int64()
	if count <= 0 {
		return nil, nil
	}

	calls := make([]chain.Call, 0, count)
	for i := int64(0); i < count; i++ {
		call, err := dex.TokenOfOwnerByIndexCall(r.npm, owner, i)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}

	results, err = r.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("enumerate positions: %w", err)
	}

	ids := make([]*big.Int, 0, len(results))
	for i, result := range results {
		if !result.Success {
			r.logger.Warn("tokenOfOwnerByIndex failed", zap.Int("index", i))
			continue
		}
		id, err := dex.DecodeTokenID(result.ReturnData)
		if err != nil {
			r.logger.Warn("token id decode failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// stakedIDs finds ids staked into gauges. Candidate pools come from the
// registry; each is resolved to a pool address, the pool to a gauge, and
// each gauge queried for the wallet's staked id list.
func (r *Resolver) stakedIDs(ctx context.Context, owner common.Address, trace *model.Trace) ([]*big.Int, error) {
	keys := r.registry.Candidates(ctx)
	if len(keys) == 0 {
		trace.Add("staked discovery", 0, 0)
		return nil, nil
	}

	poolCalls := make([]chain.Call, 0, len(keys))
	for _, key := range keys {
		call, err := dex.GetPoolCall(r.factory, key.Token0, key.Token1, key.TickSpacing)
		if err != nil {
			return nil, err
		}
		poolCalls = append(poolCalls, call)
	}
	poolResults, err := r.batcher.Aggregate(ctx, poolCalls)
	if err != nil {
		return nil, fmt.Errorf("resolve candidate pools: %w", err)
	}

	pools := make([]common.Address, 0, len(poolResults))
	for i, result := range poolResults {
		if !result.Success {
			continue
		}
		pool, ok, err := dex.DecodeGetPool(result.ReturnData)
		if err != nil {
			r.logger.Warn("getPool decode failed", zap.String("key", keys[i].ID()), zap.Error(err))
			continue
		}
		if ok {
			pools = append(pools, pool)
		}
	}
	if len(pools) == 0 {
		trace.Add("staked discovery", len(keys), 0)
		return nil, nil
	}

	gaugeCalls := make([]chain.Call, 0, len(pools))
	for _, pool := range pools {
		call, err := dex.PoolViewCall(pool, "gauge")
		if err != nil {
			return nil, err
		}
		gaugeCalls = append(gaugeCalls, call)
	}
	gaugeResults, err := r.batcher.Aggregate(ctx, gaugeCalls)
	if err != nil {
		return nil, fmt.Errorf("resolve gauges: %w", err)
	}

	gauges := make([]common.Address, 0, len(gaugeResults))
	for _, result := range gaugeResults {
		if !result.Success {
			continue
		}
		gauge, ok, err := dex.DecodeGauge(result.ReturnData)
		if err != nil || !ok {
			continue
		}
		gauges = append(gauges, gauge)
	}
	if len(gauges) == 0 {
		trace.Add("staked discovery", len(pools), 0)
		return nil, nil
	}

	stakedCalls := make([]chain.Call, 0, len(gauges))
	for _, gauge := range gauges {
		call, err := dex.StakedValuesCall(gauge, owner)
		if err != nil {
			return nil, err
		}
		stakedCalls = append(stakedCalls, call)
	}
	stakedResults, err := r.batcher.Aggregate(ctx, stakedCalls)
	if err != nil {
		return nil, fmt.Errorf("read staked values: %w", err)
	}

	var ids []*big.Int
	for i, result := range stakedResults {
		if !result.Success {
			continue
		}
		staked, err := dex.DecodeStakedValues(result.ReturnData)
		if err != nil {
			r.logger.Warn("stakedValues decode failed", zap.String("gauge", gauges[i].Hex()), zap.Error(err))
			continue
		}
		ids = append(ids, staked...)
	}
	trace.Add("staked discovery", len(gauges), len(ids))
	return ids, nil
}
