package pipeline

import "positionscope/internal/model"

// Portfolio aggregates the enriched positions into owner-level stats.
// Deposited value counts active positions; claimable and daily earnings
// count staked ones. The average APR is value-weighted.
func Portfolio(positions []model.Position) model.PortfolioStats {
	var stats model.PortfolioStats
	var perYearUSD float64
	var weightedAPR, weightedValue float64

	for _, pos := range positions {
		if pos.IsActive {
			stats.ActiveCount++
			if pos.Valuation != nil && pos.Valuation.ValueUSD != nil {
				stats.TotalDepositedUSD += *pos.Valuation.ValueUSD
			}
		}
		if !pos.IsStaked || pos.Rewards == nil {
			continue
		}
		if pos.Rewards.EarnedUSD != nil {
			stats.TotalClaimableUSD += *pos.Rewards.EarnedUSD
		}
		if pos.Rewards.RewardPerYearUSD != nil {
			perYearUSD += *pos.Rewards.RewardPerYearUSD
		}
		if pos.Rewards.APR != nil {
			stats.HasStaked = true
			value := 0.0
			if pos.Valuation != nil && pos.Valuation.ValueUSD != nil {
				value = *pos.Valuation.ValueUSD
			}
			weightedAPR += value * *pos.Rewards.APR
			weightedValue += value
		}
	}

	stats.ExpectedDailyUSD = perYearUSD / 365.25
	if weightedValue > 0 {
		stats.AverageAPR = weightedAPR / weightedValue
	}
	return stats
}
