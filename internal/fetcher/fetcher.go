// Package fetcher reads position, pool, token and gauge state from the
// chain in batched view calls. Reads are absence-tolerant: a reverted or
// undecodable item is simply missing from the returned map, it never
// fails the batch.
package fetcher

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionscope/internal/chain"
	"positionscope/internal/dex"
	"positionscope/internal/model"
)

// ExactAmounts are helper-computed principal and fee amounts, raw units.
type ExactAmounts struct {
	Principal0 *big.Int
	Principal1 *big.Int
	Fees0      *big.Int
	Fees1      *big.Int
}

// GaugeInfo is the per-gauge emission state.
type GaugeInfo struct {
	RewardRate   *big.Int
	RewardToken  common.Address
	PeriodFinish *big.Int
}

// Fetcher issues the batched reads for one refresh cycle.
type Fetcher struct {
	batcher chain.Batcher
	npm     common.Address
	factory common.Address
	helper  common.Address
	tokens  *dex.TokenMetaCache
	logger  *zap.Logger
}

// New builds a Fetcher.
func New(batcher chain.Batcher, npm, factory, helper common.Address, tokens *dex.TokenMetaCache, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = dex.NewTokenMetaCache()
	}
	return &Fetcher{batcher: batcher, npm: npm, factory: factory, helper: helper, tokens: tokens, logger: logger}
}

// Details reads positions(tokenId) for every id, keyed by decimal id.
func (f *Fetcher) Details(ctx context.Context, ids []*big.Int) (map[string]dex.PositionDetails, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	calls := make([]chain.Call, 0, len(ids))
	for _, id := range ids {
		call, err := dex.PositionsCall(f.npm, id)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	results, err := f.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, err
	}

	details := make(map[string]dex.PositionDetails, len(ids))
	for i, result := range results {
		if !result.Success {
			f.logger.Warn("positions read failed", zap.String("tokenId", ids[i].String()))
			continue
		}
		d, err := dex.DecodePositions(result.ReturnData)
		if err != nil {
			f.logger.Warn("positions decode failed", zap.String("tokenId", ids[i].String()), zap.Error(err))
			continue
		}
		details[ids[i].String()] = d
	}
	return details, nil
}

// Pools resolves pool keys to pool addresses through the factory, keyed
// by the pool key id. Keys without a deployed pool are absent.
func (f *Fetcher) Pools(ctx context.Context, keys []model.PoolKey) (map[string]common.Address, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	calls := make([]chain.Call, 0, len(keys))
	for _, key := range keys {
		call, err := dex.GetPoolCall(f.factory, key.Token0, key.Token1, key.TickSpacing)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	results, err := f.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, err
	}

	pools := make(map[string]common.Address, len(keys))
	for i, result := range results {
		if !result.Success {
			continue
		}
		pool, ok, err := dex.DecodeGetPool(result.ReturnData)
		if err != nil || !ok {
			continue
		}
		pools[keys[i].ID()] = pool
	}
	return pools, nil
}

// Snapshots reads slot0, liquidity, stakedLiquidity and the gauge for
// each pool in a single batch. All four reads for one pool come from the
// same batch so the snapshot is internally consistent.
func (f *Fetcher) Snapshots(ctx context.Context, pools []common.Address) (map[common.Address]*model.PoolSnapshot, map[common.Address]common.Address, error) {
	if len(pools) == 0 {
		return nil, nil, nil
	}
	methods := []string{"slot0", "liquidity", "stakedLiquidity", "gauge"}
	calls := make([]chain.Call, 0, len(pools)*len(methods))
	for _, pool := range pools {
		for _, method := range methods {
			call, err := dex.PoolViewCall(pool, method)
			if err != nil {
				return nil, nil, err
			}
			calls = append(calls, call)
		}
	}
	results, err := f.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, nil, err
	}

	snapshots := make(map[common.Address]*model.PoolSnapshot, len(pools))
	gauges := make(map[common.Address]common.Address)
	for i, pool := range pools {
		base := i * len(methods)

		if results[base].Success {
			sqrtPrice, tick, err := dex.DecodeSlot0(results[base].ReturnData)
			if err != nil {
				f.logger.Warn("slot0 decode failed", zap.String("pool", pool.Hex()), zap.Error(err))
			} else {
				snap := &model.PoolSnapshot{Tick: tick, SqrtPriceX96: sqrtPrice}
				if results[base+1].Success {
					if liq, err := dex.DecodePoolUint("liquidity", results[base+1].ReturnData); err == nil {
						snap.Liquidity = liq
					}
				}
				if results[base+2].Success {
					if staked, err := dex.DecodePoolUint("stakedLiquidity", results[base+2].ReturnData); err == nil {
						snap.StakedLiquidity = staked
					}
				}
				snapshots[pool] = snap
			}
		}

		if results[base+3].Success {
			gauge, ok, err := dex.DecodeGauge(results[base+3].ReturnData)
			if err == nil && ok {
				gauges[pool] = gauge
			}
		}
	}
	return snapshots, gauges, nil
}

// TokenMetadata reads symbol and decimals for each token, consulting the
// cache first. A failed symbol read leaves Symbol empty; failed decimals
// fall back to 18.
func (f *Fetcher) TokenMetadata(ctx context.Context, addrs []common.Address) (map[common.Address]model.Token, error) {
	out := make(map[common.Address]model.Token, len(addrs))
	var missing []common.Address
	seen := make(map[common.Address]struct{}, len(addrs))
	for _, addr := range addrs {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		if meta, ok := f.tokens.Get(addr); ok {
			out[addr] = meta
			continue
		}
		missing = append(missing, addr)
	}
	if len(missing) == 0 {
		return out, nil
	}

	calls := make([]chain.Call, 0, len(missing)*2)
	for _, addr := range missing {
		symbolCall, err := dex.ERC20Call(addr, "symbol")
		if err != nil {
			return nil, err
		}
		decimalsCall, err := dex.ERC20Call(addr, "decimals")
		if err != nil {
			return nil, err
		}
		calls = append(calls, symbolCall, decimalsCall)
	}
	results, err := f.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, err
	}

	for i, addr := range missing {
		meta := model.Token{Address: addr, Decimals: 18}
		if results[i*2].Success {
			if symbol, err := dex.DecodeSymbol(results[i*2].ReturnData); err == nil {
				meta.Symbol = symbol
			}
		}
		if results[i*2+1].Success {
			if decimals, err := dex.DecodeDecimals(results[i*2+1].ReturnData); err == nil {
				meta.Decimals = decimals
			}
		}
		f.tokens.Set(addr, meta)
		out[addr] = meta
	}
	return out, nil
}

// ExactRequest asks the on-chain helper for exact amounts of one
// position at the pool's current sqrt price.
type ExactRequest struct {
	TokenID      *big.Int
	SqrtRatioX96 *big.Int
}

// Exact reads helper principal and fees for each request, keyed by
// decimal token id. Positions where either read fails are absent and the
// caller falls back to the closed-form amounts.
func (f *Fetcher) Exact(ctx context.Context, reqs []ExactRequest) (map[string]ExactAmounts, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	calls := make([]chain.Call, 0, len(reqs)*2)
	for _, req := range reqs {
		principalCall, err := dex.PrincipalCall(f.helper, f.npm, req.TokenID, req.SqrtRatioX96)
		if err != nil {
			return nil, err
		}
		feesCall, err := dex.FeesCall(f.helper, f.npm, req.TokenID)
		if err != nil {
			return nil, err
		}
		calls = append(calls, principalCall, feesCall)
	}
	results, err := f.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, err
	}

	out := make(map[string]ExactAmounts, len(reqs))
	for i, req := range reqs {
		if !results[i*2].Success {
			continue
		}
		principal0, principal1, err := dex.DecodeAmountPair("principal", results[i*2].ReturnData)
		if err != nil {
			f.logger.Warn("principal decode failed", zap.String("tokenId", req.TokenID.String()), zap.Error(err))
			continue
		}
		exact := ExactAmounts{Principal0: principal0, Principal1: principal1}
		if results[i*2+1].Success {
			if fees0, fees1, err := dex.DecodeAmountPair("fees", results[i*2+1].ReturnData); err == nil {
				exact.Fees0 = fees0
				exact.Fees1 = fees1
			}
		}
		out[req.TokenID.String()] = exact
	}
	return out, nil
}

// GaugeInfos reads rewardRate, rewardToken and periodFinish for each
// gauge in a single batch.
func (f *Fetcher) GaugeInfos(ctx context.Context, gauges []common.Address) (map[common.Address]GaugeInfo, error) {
	if len(gauges) == 0 {
		return nil, nil
	}
	methods := []string{"rewardRate", "rewardToken", "periodFinish"}
	calls := make([]chain.Call, 0, len(gauges)*len(methods))
	for _, gauge := range gauges {
		for _, method := range methods {
			call, err := dex.GaugeViewCall(gauge, method)
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
		}
	}
	results, err := f.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, err
	}

	out := make(map[common.Address]GaugeInfo, len(gauges))
	for i, gauge := range gauges {
		base := i * len(methods)
		if !results[base].Success || !results[base+1].Success {
			continue
		}
		rate, err := dex.DecodeGaugeUint("rewardRate", results[base].ReturnData)
		if err != nil {
			continue
		}
		token, err := dex.DecodeRewardToken(results[base+1].ReturnData)
		if err != nil {
			continue
		}
		info := GaugeInfo{RewardRate: rate, RewardToken: token}
		if results[base+2].Success {
			if finish, err := dex.DecodeGaugeUint("periodFinish", results[base+2].ReturnData); err == nil {
				info.PeriodFinish = finish
			}
		}
		out[gauge] = info
	}
	return out, nil
}

// EarnedRequest asks a gauge for the accrued reward of one position.
type EarnedRequest struct {
	Gauge   common.Address
	TokenID *big.Int
}

// Earned reads accrued-but-unclaimed rewards, keyed by decimal token id.
func (f *Fetcher) Earned(ctx context.Context, owner common.Address, reqs []EarnedRequest) (map[string]*big.Int, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	calls := make([]chain.Call, 0, len(reqs))
	for _, req := range reqs {
		call, err := dex.EarnedCall(req.Gauge, owner, req.TokenID)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	results, err := f.batcher.Aggregate(ctx, calls)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*big.Int, len(reqs))
	for i, result := range results {
		if !result.Success {
			continue
		}
		earned, err := dex.DecodeEarned(result.ReturnData)
		if err != nil {
			continue
		}
		out[reqs[i].TokenID.String()] = earned
	}
	return out, nil
}
