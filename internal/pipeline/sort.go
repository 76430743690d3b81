package pipeline

import (
	"sort"
	"strings"

	"positionscope/internal/model"
)

// SortBy selects the position sort key.
type SortBy string

const (
	SortByValue SortBy = "value"
	SortByAPR   SortBy = "apr"
	SortByDaily SortBy = "daily"
	SortByPair  SortBy = "pair"
)

// Sort orders positions in place. Missing values sort as zero so
// unpriced positions sink in a descending sort.
func Sort(positions []model.Position, by SortBy, ascending bool) {
	var less func(a, b *model.Position) bool
	switch by {
	case SortByPair:
		less = func(a, b *model.Position) bool {
			return strings.Compare(a.PairSymbol, b.PairSymbol) < 0
		}
	case SortByAPR:
		less = func(a, b *model.Position) bool {
			return positionAPR(a) < positionAPR(b)
		}
	case SortByDaily:
		less = func(a, b *model.Position) bool {
			return positionDailyUSD(a) < positionDailyUSD(b)
		}
	default:
		less = func(a, b *model.Position) bool {
			return positionValueUSD(a) < positionValueUSD(b)
		}
	}

	sort.SliceStable(positions, func(i, j int) bool {
		if ascending {
			return less(&positions[i], &positions[j])
		}
		return less(&positions[j], &positions[i])
	})
}

func positionValueUSD(p *model.Position) float64 {
	if p.Valuation == nil || p.Valuation.ValueUSD == nil {
		return 0
	}
	return *p.Valuation.ValueUSD
}

func positionAPR(p *model.Position) float64 {
	if p.Rewards == nil || p.Rewards.APR == nil {
		return 0
	}
	return *p.Rewards.APR
}

func positionDailyUSD(p *model.Position) float64 {
	if p.Rewards == nil || p.Rewards.RewardPerYearUSD == nil {
		return 0
	}
	return *p.Rewards.RewardPerYearUSD / 365.25
}
