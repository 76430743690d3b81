// Package enrich derives indexer-based metrics: fee APR for pools, and
// age and ROI for position history.
package enrich

import (
	"time"

	"positionscope/internal/model"
	"positionscope/internal/subgraph"
)

// FeeAPR annualizes the trailing 7-day average daily fees against the
// pool's TVL, in percent. Nil when TVL is zero or unknown.
func FeeAPR(fees7d, tvlUSD float64) *float64 {
	if tvlUSD <= 0 {
		return nil
	}
	apr := (fees7d / 7) * 365 / tvlUSD * 100
	return &apr
}

// PoolStats converts pool aggregates into the output stats block.
func PoolStats(agg subgraph.PoolAggregates) *model.PoolStats {
	return &model.PoolStats{
		TVLUSD:    agg.TVLUSD,
		Volume24h: agg.Volume24h,
		Volume7d:  agg.Volume7d,
		Fees24h:   agg.Fees24h,
		Fees7d:    agg.Fees7d,
		FeeAPR:    FeeAPR(agg.Fees7d, agg.TVLUSD),
	}
}

// AgeDays returns full days elapsed since the creation timestamp, zero
// when the timestamp is missing or in the future.
func AgeDays(createdAt uint64, now time.Time) int {
	if createdAt == 0 {
		return 0
	}
	elapsed := now.Unix() - int64(createdAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / 86_400)
}

// History converts position aggregates into the output history block.
// ROI compares lifetime collected fees against lifetime deposits, both
// valued at current USD prices; it stays nil when the deposit value is
// zero or either token price is missing.
func History(agg subgraph.PositionAggregates, now time.Time, price0, price1 *float64) *model.PositionHistory {
	history := &model.PositionHistory{
		CreatedAt:  agg.CreatedAt,
		AgeDays:    AgeDays(agg.CreatedAt, now),
		Deposited0: agg.Deposited0,
		Deposited1: agg.Deposited1,
		Withdrawn0: agg.Withdrawn0,
		Withdrawn1: agg.Withdrawn1,
		Collected0: agg.Collected0,
		Collected1: agg.Collected1,
	}
	if price0 == nil || price1 == nil {
		return history
	}

	depositedUSD := agg.Deposited0*(*price0) + agg.Deposited1*(*price1)
	collectedUSD := agg.Collected0*(*price0) + agg.Collected1*(*price1)
	history.DepositedUSD = &depositedUSD
	history.CollectedUSD = &collectedUSD
	if depositedUSD > 0 {
		roi := collectedUSD / depositedUSD * 100
		history.ROI = &roi
	}
	return history
}
