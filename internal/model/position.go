package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ValuationSource tags how token amounts were derived.
type ValuationSource string

const (
	// SourceExact means the on-chain helper computed the amounts.
	SourceExact ValuationSource = "exact"
	// SourceApproximate means the closed-form tick formula was used.
	SourceApproximate ValuationSource = "approximate"
)

// PoolSnapshot is the pool pricing state read in one refresh cycle.
// Tick, sqrt price and liquidity always come from the same multicall batch,
// never mixed across refreshes.
type PoolSnapshot struct {
	Tick            int32    `json:"tick"`
	SqrtPriceX96    *big.Int `json:"sqrtPriceX96"`
	Liquidity       *big.Int `json:"liquidity,omitempty"`
	StakedLiquidity *big.Int `json:"stakedLiquidity,omitempty"`
}

// Valuation holds the amounts, prices and USD value derived for a position.
// Nil pointer fields mean the value could not be computed, not zero.
type Valuation struct {
	Source  ValuationSource `json:"source"`
	Amount0 float64         `json:"amount0"`
	Amount1 float64         `json:"amount1"`

	Price1Per0 *float64 `json:"price1Per0,omitempty"`
	Price0Per1 *float64 `json:"price0Per1,omitempty"`

	Range1Per0Min *float64 `json:"range1Per0Min,omitempty"`
	Range1Per0Max *float64 `json:"range1Per0Max,omitempty"`
	Range0Per1Min *float64 `json:"range0Per1Min,omitempty"`
	Range0Per1Max *float64 `json:"range0Per1Max,omitempty"`

	Token0PriceUSD *float64 `json:"token0PriceUSD,omitempty"`
	Token1PriceUSD *float64 `json:"token1PriceUSD,omitempty"`
	ValueUSD       *float64 `json:"valueUSD,omitempty"`

	UnclaimedFees0   *float64 `json:"unclaimedFees0,omitempty"`
	UnclaimedFees1   *float64 `json:"unclaimedFees1,omitempty"`
	UnclaimedFeesUSD *float64 `json:"unclaimedFeesUSD,omitempty"`
}

// RewardState is the staking reward view of one staked position.
type RewardState struct {
	RewardToken  common.Address `json:"rewardToken"`
	RewardSymbol string         `json:"rewardSymbol,omitempty"`

	PoolRewardPerSecond float64 `json:"poolRewardPerSecond"`
	LiquidityProportion float64 `json:"liquidityProportion"`
	RewardPerSecond     float64 `json:"rewardPerSecond"`
	RewardPerDay        float64 `json:"rewardPerDay"`
	RewardPerWeek       float64 `json:"rewardPerWeek"`
	RewardPerYear       float64 `json:"rewardPerYear"`

	PeriodFinish *uint64 `json:"periodFinish,omitempty"`

	EarnedAmount *float64 `json:"earnedAmount,omitempty"`
	EarnedUSD    *float64 `json:"earnedUSD,omitempty"`

	RewardPriceUSD   *float64 `json:"rewardPriceUSD,omitempty"`
	RewardPerYearUSD *float64 `json:"rewardPerYearUSD,omitempty"`
	APR              *float64 `json:"apr,omitempty"`
}

// PoolStats carries indexer-side pool aggregates.
type PoolStats struct {
	TVLUSD    float64  `json:"tvlUSD"`
	Volume24h float64  `json:"volume24h"`
	Volume7d  float64  `json:"volume7d"`
	Fees24h   float64  `json:"fees24h"`
	Fees7d    float64  `json:"fees7d"`
	FeeAPR    *float64 `json:"feeAPR,omitempty"`
}

// PositionHistory carries indexer-side lifetime aggregates for a position.
type PositionHistory struct {
	CreatedAt  uint64  `json:"createdAt"`
	AgeDays    int     `json:"ageDays"`
	Deposited0 float64 `json:"deposited0"`
	Deposited1 float64 `json:"deposited1"`
	Withdrawn0 float64 `json:"withdrawn0"`
	Withdrawn1 float64 `json:"withdrawn1"`
	Collected0 float64 `json:"collected0"`
	Collected1 float64 `json:"collected1"`

	DepositedUSD *float64 `json:"depositedUSD,omitempty"`
	CollectedUSD *float64 `json:"collectedUSD,omitempty"`
	ROI          *float64 `json:"roi,omitempty"`
}

// Position is one enriched CL position record, the unit of the pipeline
// output. Optional sections stay nil when their stage could not resolve.
type Position struct {
	TokenID     *big.Int `json:"tokenId"`
	Token0      Token    `json:"token0"`
	Token1      Token    `json:"token1"`
	PairSymbol  string   `json:"pairSymbol,omitempty"`
	TickSpacing int32    `json:"tickSpacing"`
	TickLower   int32    `json:"tickLower"`
	TickUpper   int32    `json:"tickUpper"`
	Liquidity   *big.Int `json:"liquidity"`
	IsStaked    bool     `json:"isStaked"`
	IsActive    bool     `json:"isActive"`

	Pool     *common.Address `json:"pool,omitempty"`
	Snapshot *PoolSnapshot   `json:"snapshot,omitempty"`

	Valuation *Valuation       `json:"valuation,omitempty"`
	Rewards   *RewardState     `json:"rewards,omitempty"`
	PoolStats *PoolStats       `json:"poolStats,omitempty"`
	History   *PositionHistory `json:"history,omitempty"`
}

// InRange reports whether the position currently earns trading fees.
// The lower bound is inclusive, the upper bound exclusive.
func (p *Position) InRange() bool {
	if p.Snapshot == nil {
		return false
	}
	return p.Snapshot.Tick >= p.TickLower && p.Snapshot.Tick < p.TickUpper
}

// PortfolioStats aggregates the enriched set for one owner.
type PortfolioStats struct {
	TotalDepositedUSD float64 `json:"totalDepositedUSD"`
	ActiveCount       int     `json:"activeCount"`
	TotalClaimableUSD float64 `json:"totalClaimableUSD"`
	ExpectedDailyUSD  float64 `json:"expectedDailyUSD"`
	AverageAPR        float64 `json:"averageAPR"`
	HasStaked         bool    `json:"hasStaked"`
}
