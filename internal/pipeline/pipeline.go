// Package pipeline orchestrates one refresh cycle: discovery, on-chain
// reads, valuation, rewards, and indexer enrichment, in that order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionscope/internal/enrich"
	"positionscope/internal/fetcher"
	"positionscope/internal/model"
	"positionscope/internal/prices"
	"positionscope/internal/resolver"
	"positionscope/internal/rewards"
	"positionscope/internal/subgraph"
	"positionscope/internal/valuation"
)

// ErrThrottled means a refresh for this owner ran too recently.
var ErrThrottled = errors.New("refresh throttled")

// Result is the full output of one refresh cycle for one owner.
type Result struct {
	Owner     common.Address       `json:"owner"`
	Positions []model.Position     `json:"positions"`
	Portfolio model.PortfolioStats `json:"portfolio"`
	Trace     model.Trace          `json:"trace"`
	FetchedAt time.Time            `json:"fetchedAt"`
}

// Pipeline wires the stages together. Subgraph and price clients are
// optional; when nil their enrichment is skipped.
type Pipeline struct {
	resolver *resolver.Resolver
	fetcher  *fetcher.Fetcher
	subgraph *subgraph.Client
	prices   *prices.Client
	limiter  *Limiter
	logger   *zap.Logger

	now func() time.Time
}

// New builds a Pipeline.
func New(res *resolver.Resolver, fet *fetcher.Fetcher, sub *subgraph.Client, pri *prices.Client, limiter *Limiter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver: res,
		fetcher:  fet,
		subgraph: sub,
		prices:   pri,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one refresh for the owner address. An address that does
// not parse fails with ErrInvalidOwner before any upstream is touched.
func (p *Pipeline) Run(ctx context.Context, ownerHex string) (*Result, error) {
	if !common.IsHexAddress(ownerHex) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidOwner, ownerHex)
	}
	owner := common.HexToAddress(ownerHex)
	key := strings.ToLower(owner.Hex())

	if p.limiter != nil {
		if ok, wait := p.limiter.Allow(key); !ok {
			return nil, fmt.Errorf("%w: retry in %s", ErrThrottled, wait.Round(time.Second))
		}
	}

	result, err := p.run(ctx, owner)
	if p.limiter != nil {
		p.limiter.Record(key, err == nil)
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, owner common.Address) (*Result, error) {
	started := p.now()
	result := &Result{Owner: owner, FetchedAt: started}
	trace := &result.Trace

	resolved, err := p.resolver.Resolve(ctx, owner, trace)
	if err != nil {
		return nil, fmt.Errorf("resolve positions: %w", err)
	}
	if len(resolved) == 0 {
		result.Positions = []model.Position{}
		return result, nil
	}

	ids := make([]*big.Int, len(resolved))
	for i, r := range resolved {
		ids[i] = r.TokenID
	}

	details, err := p.fetcher.Details(ctx, ids)
	if err != nil {
		trace.AddError("position details", err)
		return nil, fmt.Errorf("read position details: %w", err)
	}
	trace.Add("position details", len(ids), len(details))

	// Deduplicate pool keys across positions before hitting the factory.
	keyByID := make(map[string]model.PoolKey)
	var uniqueKeys []model.PoolKey
	for _, r := range resolved {
		d, ok := details[r.TokenID.String()]
		if !ok {
			continue
		}
		key := model.PoolKey{Token0: d.Token0, Token1: d.Token1, TickSpacing: d.TickSpacing}
		if _, ok := keyByID[key.ID()]; !ok {
			keyByID[key.ID()] = key
			uniqueKeys = append(uniqueKeys, key)
		}
	}

	pools, err := p.fetcher.Pools(ctx, uniqueKeys)
	if err != nil {
		trace.AddError("pool resolution", err)
		return nil, fmt.Errorf("resolve pools: %w", err)
	}
	trace.Add("pool resolution", len(uniqueKeys), len(pools))

	uniquePools := make([]common.Address, 0, len(pools))
	seenPools := make(map[common.Address]struct{}, len(pools))
	for _, pool := range pools {
		if _, ok := seenPools[pool]; ok {
			continue
		}
		seenPools[pool] = struct{}{}
		uniquePools = append(uniquePools, pool)
	}

	snapshots, gauges, err := p.fetcher.Snapshots(ctx, uniquePools)
	if err != nil {
		trace.AddError("pool snapshots", err)
		return nil, fmt.Errorf("read pool snapshots: %w", err)
	}
	trace.Add("pool snapshots", len(uniquePools), len(snapshots))

	// Gauge emission state, only for pools that back a staked position.
	stakedGaugeSet := make(map[common.Address]struct{})
	var stakedGauges []common.Address
	for _, r := range resolved {
		if !r.IsStaked {
			continue
		}
		d, ok := details[r.TokenID.String()]
		if !ok {
			continue
		}
		key := model.PoolKey{Token0: d.Token0, Token1: d.Token1, TickSpacing: d.TickSpacing}
		pool, ok := pools[key.ID()]
		if !ok {
			continue
		}
		gauge, ok := gauges[pool]
		if !ok {
			continue
		}
		if _, ok := stakedGaugeSet[gauge]; !ok {
			stakedGaugeSet[gauge] = struct{}{}
			stakedGauges = append(stakedGauges, gauge)
		}
	}

	gaugeInfos, err := p.fetcher.GaugeInfos(ctx, stakedGauges)
	if err != nil {
		trace.AddError("gauge info", err)
		p.logger.Warn("gauge info read failed", zap.Error(err))
		gaugeInfos = nil
	} else {
		trace.Add("gauge info", len(stakedGauges), len(gaugeInfos))
	}

	// Token metadata for pair tokens and reward tokens in one batch.
	var tokenAddrs []common.Address
	for _, key := range uniqueKeys {
		tokenAddrs = append(tokenAddrs, key.Token0, key.Token1)
	}
	for _, info := range gaugeInfos {
		tokenAddrs = append(tokenAddrs, info.RewardToken)
	}
	tokens, err := p.fetcher.TokenMetadata(ctx, tokenAddrs)
	if err != nil {
		trace.AddError("token metadata", err)
		return nil, fmt.Errorf("read token metadata: %w", err)
	}
	trace.Add("token metadata", len(tokenAddrs), len(tokens))

	// Helper-exact amounts for positions whose pool snapshot carries a
	// sqrt price.
	var exactReqs []fetcher.ExactRequest
	for _, r := range resolved {
		d, ok := details[r.TokenID.String()]
		if !ok {
			continue
		}
		key := model.PoolKey{Token0: d.Token0, Token1: d.Token1, TickSpacing: d.TickSpacing}
		pool, ok := pools[key.ID()]
		if !ok {
			continue
		}
		snap, ok := snapshots[pool]
		if !ok || snap.SqrtPriceX96 == nil {
			continue
		}
		exactReqs = append(exactReqs, fetcher.ExactRequest{TokenID: r.TokenID, SqrtRatioX96: snap.SqrtPriceX96})
	}
	exact, err := p.fetcher.Exact(ctx, exactReqs)
	if err != nil {
		trace.AddError("helper amounts", err)
		p.logger.Warn("helper reads failed, using closed-form amounts", zap.Error(err))
		exact = nil
	} else {
		trace.Add("helper amounts", len(exactReqs), len(exact))
	}

	var earnedReqs []fetcher.EarnedRequest
	for _, r := range resolved {
		if !r.IsStaked {
			continue
		}
		d, ok := details[r.TokenID.String()]
		if !ok {
			continue
		}
		key := model.PoolKey{Token0: d.Token0, Token1: d.Token1, TickSpacing: d.TickSpacing}
		pool, ok := pools[key.ID()]
		if !ok {
			continue
		}
		gauge, ok := gauges[pool]
		if !ok {
			continue
		}
		earnedReqs = append(earnedReqs, fetcher.EarnedRequest{Gauge: gauge, TokenID: r.TokenID})
	}
	earned, err := p.fetcher.Earned(ctx, owner, earnedReqs)
	if err != nil {
		trace.AddError("earned rewards", err)
		p.logger.Warn("earned reads failed", zap.Error(err))
		earned = nil
	} else if len(earnedReqs) > 0 {
		trace.Add("earned rewards", len(earnedReqs), len(earned))
	}

	priceMap := p.fetchPrices(ctx, tokenAddrs, trace)
	poolAggs, posAggs := p.fetchAggregates(ctx, uniquePools, ids, trace)

	for _, r := range resolved {
		d, ok := details[r.TokenID.String()]
		if !ok {
			continue
		}

		token0 := tokens[d.Token0]
		token1 := tokens[d.Token1]
		pos := model.Position{
			TokenID:     r.TokenID,
			Token0:      token0,
			Token1:      token1,
			PairSymbol:  pairSymbol(token0, token1),
			TickSpacing: d.TickSpacing,
			TickLower:   d.TickLower,
			TickUpper:   d.TickUpper,
			Liquidity:   d.Liquidity,
			IsStaked:    r.IsStaked,
			IsActive:    (d.Liquidity != nil && d.Liquidity.Sign() > 0) || r.IsStaked,
		}

		key := model.PoolKey{Token0: d.Token0, Token1: d.Token1, TickSpacing: d.TickSpacing}
		pool, hasPool := pools[key.ID()]
		if hasPool {
			poolAddr := pool
			pos.Pool = &poolAddr
			pos.Snapshot = snapshots[pool]
		}

		price0, ok0 := priceMap[strings.ToLower(d.Token0.Hex())]
		price1, ok1 := priceMap[strings.ToLower(d.Token1.Hex())]

		if pos.Snapshot != nil {
			in := valuation.Inputs{
				TickLower:      d.TickLower,
				TickUpper:      d.TickUpper,
				Liquidity:      d.Liquidity,
				Token0Decimals: token0.Decimals,
				Token1Decimals: token1.Decimals,
				Tick:           pos.Snapshot.Tick,
				SqrtPriceX96:   pos.Snapshot.SqrtPriceX96,
			}
			if amounts, ok := exact[r.TokenID.String()]; ok {
				pos.Valuation = valuation.BuildExact(in, amounts.Principal0, amounts.Principal1)
				valuation.AttachFees(pos.Valuation, amounts.Fees0, amounts.Fees1, token0.Decimals, token1.Decimals)
			} else {
				pos.Valuation = valuation.Build(in)
			}
			valuation.ApplyUSD(pos.Valuation, price0, price1, ok0, ok1)
		}

		if r.IsStaked && hasPool {
			pos.Rewards = p.buildRewards(r.TokenID, &pos, gauges[pool], gaugeInfos, tokens, earned, priceMap)
		}

		if hasPool {
			if agg, ok := poolAggs[strings.ToLower(pool.Hex())]; ok {
				pos.PoolStats = enrich.PoolStats(agg)
			}
		}
		if agg, ok := posAggs[r.TokenID.String()]; ok {
			var p0, p1 *float64
			if pos.Valuation != nil {
				p0 = pos.Valuation.Token0PriceUSD
				p1 = pos.Valuation.Token1PriceUSD
			}
			pos.History = enrich.History(agg, started, p0, p1)
		}

		result.Positions = append(result.Positions, pos)
	}

	Sort(result.Positions, SortByValue, false)
	result.Portfolio = Portfolio(result.Positions)
	trace.Add("assemble", len(resolved), len(result.Positions))
	return result, nil
}

// fetchPrices resolves USD prices for the tokens, empty when the price
// client is absent or every lookup failed.
func (p *Pipeline) fetchPrices(ctx context.Context, tokens []common.Address, trace *model.Trace) map[string]float64 {
	if p.prices == nil {
		return nil
	}
	priceMap := p.prices.TokenPricesUSD(ctx, tokens)
	trace.Add("token prices", len(tokens), len(priceMap))
	return priceMap
}

// fetchAggregates pulls indexer data for pools and positions. Indexer
// outages degrade both to empty maps.
func (p *Pipeline) fetchAggregates(ctx context.Context, pools []common.Address, ids []*big.Int, trace *model.Trace) (map[string]subgraph.PoolAggregates, map[string]subgraph.PositionAggregates) {
	if p.subgraph == nil {
		return nil, nil
	}

	poolAggs, err := p.subgraph.PoolAggregates(ctx, pools)
	if err != nil {
		trace.AddError("pool aggregates", err)
		p.logger.Warn("pool aggregates unavailable", zap.Error(err))
	} else {
		trace.Add("pool aggregates", len(pools), len(poolAggs))
	}

	tokenIDs := make([]string, len(ids))
	for i, id := range ids {
		tokenIDs[i] = id.String()
	}
	posAggs, err := p.subgraph.PositionAggregates(ctx, tokenIDs)
	if err != nil {
		trace.AddError("position aggregates", err)
		p.logger.Warn("position aggregates unavailable", zap.Error(err))
	} else {
		trace.Add("position aggregates", len(tokenIDs), len(posAggs))
	}
	return poolAggs, posAggs
}

// buildRewards assembles the reward block for one staked position. Nil
// when the gauge emission state could not be read.
func (p *Pipeline) buildRewards(tokenID *big.Int, pos *model.Position, gauge common.Address, gaugeInfos map[common.Address]fetcher.GaugeInfo, tokens map[common.Address]model.Token, earned map[string]*big.Int, priceMap map[string]float64) *model.RewardState {
	info, ok := gaugeInfos[gauge]
	if !ok || info.RewardRate == nil {
		return nil
	}

	rewardMeta, ok := tokens[info.RewardToken]
	if !ok {
		rewardMeta = model.Token{Address: info.RewardToken, Decimals: 18}
	}

	poolRate := bigToFloat(info.RewardRate) / math.Pow(10, float64(rewardMeta.Decimals))

	var totalStaked *big.Int
	if pos.Snapshot != nil {
		totalStaked = pos.Snapshot.StakedLiquidity
	}
	proportion := rewards.Proportion(pos.Liquidity, totalStaked)
	projection := rewards.Project(poolRate, proportion)

	rs := &model.RewardState{
		RewardToken:         info.RewardToken,
		RewardSymbol:        rewardMeta.Symbol,
		PoolRewardPerSecond: poolRate,
		LiquidityProportion: proportion,
		RewardPerSecond:     projection.PerSecond,
		RewardPerDay:        projection.PerDay,
		RewardPerWeek:       projection.PerWeek,
		RewardPerYear:       projection.PerYear,
	}
	if info.PeriodFinish != nil && info.PeriodFinish.IsUint64() {
		finish := info.PeriodFinish.Uint64()
		rs.PeriodFinish = &finish
	}

	if raw, ok := earned[tokenID.String()]; ok {
		amount := bigToFloat(raw) / math.Pow(10, float64(rewardMeta.Decimals))
		rs.EarnedAmount = &amount
	}

	rewardPrice, priced := priceMap[strings.ToLower(info.RewardToken.Hex())]
	if !priced {
		return rs
	}
	rs.RewardPriceUSD = &rewardPrice

	perYearUSD := projection.PerYear * rewardPrice
	rs.RewardPerYearUSD = &perYearUSD
	if rs.EarnedAmount != nil {
		earnedUSD := *rs.EarnedAmount * rewardPrice
		rs.EarnedUSD = &earnedUSD
	}
	if pos.Valuation != nil && pos.Valuation.ValueUSD != nil {
		rs.APR = rewards.APR(perYearUSD, *pos.Valuation.ValueUSD)
	}
	return rs
}

func pairSymbol(token0, token1 model.Token) string {
	s0 := token0.Symbol
	s1 := token1.Symbol
	if s0 == "" {
		s0 = "?"
	}
	if s1 == "" {
		s1 = "?"
	}
	return s0 + "/" + s1
}

func bigToFloat(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
