package enrich

import (
	"math"
	"testing"
	"time"

	"positionscope/internal/subgraph"
)

func fptr(v float64) *float64 { return &v }

func TestFeeAPR(t *testing.T) {
	apr := FeeAPR(700, 365000)
	if apr == nil {
		t.Fatalf("feeAPR = nil")
	}
	// 100/day annualized over 365000 TVL: 10%.
	if math.Abs(*apr-10) > 1e-9 {
		t.Fatalf("feeAPR = %g, want 10", *apr)
	}
}

func TestFeeAPRZeroTVL(t *testing.T) {
	if apr := FeeAPR(700, 0); apr != nil {
		t.Fatalf("feeAPR with zero TVL = %g, want nil", *apr)
	}
}

func TestPoolStats(t *testing.T) {
	stats := PoolStats(subgraph.PoolAggregates{
		TVLUSD:    365000,
		Volume24h: 1000,
		Volume7d:  7000,
		Fees24h:   100,
		Fees7d:    700,
	})
	if stats.TVLUSD != 365000 || stats.Volume7d != 7000 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.FeeAPR == nil || math.Abs(*stats.FeeAPR-10) > 1e-9 {
		t.Fatalf("feeAPR = %v, want 10", stats.FeeAPR)
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		name      string
		createdAt uint64
		want      int
	}{
		{"ten days", 1_700_000_000 - 10*86_400, 10},
		{"partial day rounds down", 1_700_000_000 - 90_000, 1},
		{"missing timestamp", 0, 0},
		{"future timestamp", 1_700_000_000 + 86_400, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AgeDays(tc.createdAt, now); got != tc.want {
				t.Fatalf("AgeDays = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHistoryROI(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	agg := subgraph.PositionAggregates{
		CreatedAt:  1_700_000_000 - 30*86_400,
		Deposited0: 10,
		Deposited1: 2,
		Withdrawn0: 4,
		Withdrawn1: 0.5,
		Collected0: 1,
		Collected1: 0.1,
	}

	h := History(agg, now, fptr(100), fptr(2000))
	if h.AgeDays != 30 {
		t.Fatalf("ageDays = %d, want 30", h.AgeDays)
	}
	if h.Withdrawn0 != 4 || h.Withdrawn1 != 0.5 {
		t.Fatalf("withdrawn = (%g, %g), want (4, 0.5)", h.Withdrawn0, h.Withdrawn1)
	}
	if h.DepositedUSD == nil || math.Abs(*h.DepositedUSD-5000) > 1e-9 {
		t.Fatalf("depositedUSD = %v, want 5000", h.DepositedUSD)
	}
	if h.CollectedUSD == nil || math.Abs(*h.CollectedUSD-300) > 1e-9 {
		t.Fatalf("collectedUSD = %v, want 300", h.CollectedUSD)
	}
	if h.ROI == nil || math.Abs(*h.ROI-6) > 1e-9 {
		t.Fatalf("roi = %v, want 6", h.ROI)
	}
}

func TestHistoryWithoutPrices(t *testing.T) {
	agg := subgraph.PositionAggregates{Deposited0: 10, Collected0: 1}
	h := History(agg, time.Unix(1_700_000_000, 0), nil, fptr(1))
	if h == nil {
		t.Fatalf("history = nil")
	}
	if h.DepositedUSD != nil || h.ROI != nil {
		t.Fatalf("USD fields set without both prices: %+v", h)
	}
	if h.Deposited0 != 10 || h.Collected0 != 1 {
		t.Fatalf("token amounts lost: %+v", h)
	}
}

func TestHistoryZeroDeposit(t *testing.T) {
	agg := subgraph.PositionAggregates{Collected0: 1}
	h := History(agg, time.Unix(1_700_000_000, 0), fptr(1), fptr(1))
	if h.ROI != nil {
		t.Fatalf("roi = %g with zero deposit, want nil", *h.ROI)
	}
}
