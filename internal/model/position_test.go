package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestInRangeBoundaries(t *testing.T) {
	cases := []struct {
		name string
		tick int32
		want bool
	}{
		{"below range", -101, false},
		{"at lower bound", -100, true},
		{"inside", 0, true},
		{"just below upper", 99, true},
		{"at upper bound", 100, false},
		{"above range", 101, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Position{
				TickLower: -100,
				TickUpper: 100,
				Snapshot:  &PoolSnapshot{Tick: tc.tick},
			}
			if got := p.InRange(); got != tc.want {
				t.Fatalf("InRange at tick %d = %v, want %v", tc.tick, got, tc.want)
			}
		})
	}
}

func TestInRangeWithoutSnapshot(t *testing.T) {
	p := Position{TickLower: -100, TickUpper: 100}
	if p.InRange() {
		t.Fatalf("InRange without snapshot = true")
	}
}

func TestPoolKeyID(t *testing.T) {
	a := PoolKey{
		Token0:      common.HexToAddress("0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"),
		Token1:      common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"),
		TickSpacing: 200,
	}
	b := PoolKey{
		Token0:      common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Token1:      common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		TickSpacing: 200,
	}
	if a.ID() != b.ID() {
		t.Fatalf("case-different keys map to different ids: %s vs %s", a.ID(), b.ID())
	}

	c := b
	c.TickSpacing = 100
	if b.ID() == c.ID() {
		t.Fatalf("different tick spacings share an id: %s", b.ID())
	}
}

func TestCachedPoolKeyRoundTrip(t *testing.T) {
	cached := CachedPool{
		Token0:      "0x0000000000000000000000000000000000000001",
		Token1:      "0x0000000000000000000000000000000000000002",
		TickSpacing: 50,
	}
	key := cached.Key()
	if key.Token0 != common.HexToAddress(cached.Token0) || key.TickSpacing != 50 {
		t.Fatalf("key = %+v", key)
	}
}

func TestTraceNilSafe(t *testing.T) {
	var trace *Trace
	trace.Add("noop", 1, 1)
	trace.AddError("noop", nil)
}
