package rewards

import (
	"math"
	"math/big"
	"testing"
)

func TestProportion(t *testing.T) {
	cases := []struct {
		name  string
		mine  *big.Int
		total *big.Int
		want  float64
	}{
		{"half share", big.NewInt(50), big.NewInt(100), 0.5},
		{"full share", big.NewInt(100), big.NewInt(100), 1},
		{"nil mine", nil, big.NewInt(100), 0},
		{"nil total", big.NewInt(50), nil, 0},
		{"zero total", big.NewInt(50), big.NewInt(0), 0},
		{"zero mine", big.NewInt(0), big.NewInt(100), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Proportion(tc.mine, tc.total)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("Proportion = %g, want %g", got, tc.want)
			}
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("Proportion = %g, want finite", got)
			}
		})
	}
}

func TestProject(t *testing.T) {
	p := Project(2, 0.25)
	if p.PerSecond != 0.5 {
		t.Fatalf("perSecond = %g, want 0.5", p.PerSecond)
	}
	if p.PerDay != 0.5*SecondsPerDay {
		t.Fatalf("perDay = %g, want %g", p.PerDay, 0.5*float64(SecondsPerDay))
	}
	if p.PerWeek != 0.5*SecondsPerWeek {
		t.Fatalf("perWeek = %g, want %g", p.PerWeek, 0.5*float64(SecondsPerWeek))
	}
	if p.PerYear != 0.5*SecondsPerYear {
		t.Fatalf("perYear = %g, want %g", p.PerYear, 0.5*float64(SecondsPerYear))
	}
}

func TestProjectGaugeShare(t *testing.T) {
	prop := Proportion(big.NewInt(2_500), big.NewInt(10_000))
	if math.Abs(prop-0.25) > 1e-12 {
		t.Fatalf("proportion = %g, want 0.25", prop)
	}
	p := Project(1000, prop)
	if p.PerSecond != 250 {
		t.Fatalf("perSecond = %g, want 250", p.PerSecond)
	}
	if p.PerDay != 250*SecondsPerDay {
		t.Fatalf("perDay = %g, want %g", p.PerDay, 250*float64(SecondsPerDay))
	}
}

func TestProjectZeroProportion(t *testing.T) {
	p := Project(2, 0)
	if p.PerSecond != 0 || p.PerYear != 0 {
		t.Fatalf("zero proportion projection = %+v, want all zero", p)
	}
}

func TestAPR(t *testing.T) {
	apr := APR(500, 1000)
	if apr == nil || math.Abs(*apr-50) > 1e-12 {
		t.Fatalf("APR = %v, want 50", apr)
	}
}

func TestAPRUndefined(t *testing.T) {
	if apr := APR(500, 0); apr != nil {
		t.Fatalf("APR with zero value = %v, want nil", *apr)
	}
	if apr := APR(0, 1000); apr != nil {
		t.Fatalf("APR with zero reward = %v, want nil", *apr)
	}
	if apr := APR(-1, 1000); apr != nil {
		t.Fatalf("APR with negative reward = %v, want nil", *apr)
	}
}
