// Package rewards computes a staked position's share of its gauge's
// emission stream and the resulting APR. Attribution by liquidity
// proportion assumes staked liquidity is fungible within the gauge, which
// is how these pools hand out emissions.
package rewards

import "math/big"

// Projection windows. The year is exactly 365 days; calendar drift is
// accepted.
const (
	SecondsPerDay  = 86_400
	SecondsPerWeek = 604_800
	SecondsPerYear = 31_536_000
)

// Projection is a reward rate extended over standard windows.
type Projection struct {
	PerSecond float64
	PerDay    float64
	PerWeek   float64
	PerYear   float64
}

// Proportion returns myLiquidity / totalStakedLiquidity, or 0 when either
// side is zero or missing. The result is always in [0, 1] for well-formed
// gauge state.
func Proportion(myLiquidity, totalStakedLiquidity *big.Int) float64 {
	if myLiquidity == nil || myLiquidity.Sign() <= 0 {
		return 0
	}
	if totalStakedLiquidity == nil || totalStakedLiquidity.Sign() <= 0 {
		return 0
	}
	mine, _ := new(big.Float).SetInt(myLiquidity).Float64()
	total, _ := new(big.Float).SetInt(totalStakedLiquidity).Float64()
	return mine / total
}

// Project scales the pool-wide per-second rate by the position's
// proportion and extends it over the standard windows.
func Project(poolRatePerSecond, proportion float64) Projection {
	perSecond := poolRatePerSecond * proportion
	return Projection{
		PerSecond: perSecond,
		PerDay:    perSecond * SecondsPerDay,
		PerWeek:   perSecond * SecondsPerWeek,
		PerYear:   perSecond * SecondsPerYear,
	}
}

// APR returns the annualized reward flow as a percentage of position
// value, or nil when the division is undefined. Absent beats a misleading
// zero here.
func APR(rewardPerYearUSD, positionValueUSD float64) *float64 {
	if rewardPerYearUSD <= 0 || positionValueUSD <= 0 {
		return nil
	}
	apr := rewardPerYearUSD / positionValueUSD * 100
	return &apr
}
