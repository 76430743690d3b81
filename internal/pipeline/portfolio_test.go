package pipeline

import (
	"math"
	"math/big"
	"testing"

	"positionscope/internal/model"
)

func fptr(v float64) *float64 { return &v }

func stakedPosition(valueUSD, apr, perYearUSD, earnedUSD float64) model.Position {
	return model.Position{
		TokenID:   big.NewInt(1),
		Liquidity: big.NewInt(1),
		IsActive:  true,
		IsStaked:  true,
		Valuation: &model.Valuation{ValueUSD: fptr(valueUSD)},
		Rewards: &model.RewardState{
			APR:              fptr(apr),
			RewardPerYearUSD: fptr(perYearUSD),
			EarnedUSD:        fptr(earnedUSD),
		},
	}
}

func TestPortfolioEmpty(t *testing.T) {
	stats := Portfolio(nil)
	if stats.ActiveCount != 0 || stats.TotalDepositedUSD != 0 || stats.HasStaked {
		t.Fatalf("empty portfolio stats = %+v", stats)
	}
}

func TestPortfolioAggregation(t *testing.T) {
	positions := []model.Position{
		stakedPosition(1000, 20, 200, 5),
		stakedPosition(3000, 40, 1200, 15),
		{
			TokenID:   big.NewInt(3),
			IsActive:  true,
			Valuation: &model.Valuation{ValueUSD: fptr(500)},
		},
		{
			TokenID:  big.NewInt(4),
			IsActive: false,
			Valuation: &model.Valuation{ValueUSD: fptr(9999)},
		},
	}

	stats := Portfolio(positions)
	if stats.ActiveCount != 3 {
		t.Fatalf("activeCount = %d, want 3", stats.ActiveCount)
	}
	// Closed positions never count toward deposits.
	if math.Abs(stats.TotalDepositedUSD-4500) > 1e-9 {
		t.Fatalf("totalDepositedUSD = %g, want 4500", stats.TotalDepositedUSD)
	}
	if math.Abs(stats.TotalClaimableUSD-20) > 1e-9 {
		t.Fatalf("totalClaimableUSD = %g, want 20", stats.TotalClaimableUSD)
	}
	wantDaily := 1400 / 365.25
	if math.Abs(stats.ExpectedDailyUSD-wantDaily) > 1e-9 {
		t.Fatalf("expectedDailyUSD = %g, want %g", stats.ExpectedDailyUSD, wantDaily)
	}
	// Value-weighted: (1000*20 + 3000*40) / 4000 = 35.
	if math.Abs(stats.AverageAPR-35) > 1e-9 {
		t.Fatalf("averageAPR = %g, want 35", stats.AverageAPR)
	}
	if !stats.HasStaked {
		t.Fatalf("hasStaked = false, want true")
	}
}

func TestPortfolioStakedWithoutAPR(t *testing.T) {
	pos := stakedPosition(1000, 0, 0, 0)
	pos.Rewards.APR = nil
	stats := Portfolio([]model.Position{pos})
	if stats.HasStaked {
		t.Fatalf("hasStaked = true for staked position without APR")
	}
	if stats.AverageAPR != 0 {
		t.Fatalf("averageAPR = %g, want 0", stats.AverageAPR)
	}
}
