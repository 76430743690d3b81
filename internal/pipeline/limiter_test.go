package pipeline

import (
	"testing"
	"time"
)

func TestLimiterFirstRefreshAllowed(t *testing.T) {
	l := NewLimiter(15*time.Second, 30*time.Second)
	if ok, wait := l.Allow("0xabc"); !ok || wait != 0 {
		t.Fatalf("first refresh: allowed=%v wait=%s", ok, wait)
	}
}

func TestLimiterCooldownAfterSuccess(t *testing.T) {
	l := NewLimiter(15*time.Second, 30*time.Second)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Record("0xABC", true)

	if ok, wait := l.Allow("0xabc"); ok || wait != 15*time.Second {
		t.Fatalf("inside cooldown: allowed=%v wait=%s", ok, wait)
	}

	now = now.Add(14 * time.Second)
	if ok, _ := l.Allow("0xabc"); ok {
		t.Fatalf("allowed at 14s into a 15s cooldown")
	}

	now = now.Add(time.Second)
	if ok, _ := l.Allow("0xabc"); !ok {
		t.Fatalf("blocked after cooldown elapsed")
	}
}

func TestLimiterBackoffAfterFailure(t *testing.T) {
	l := NewLimiter(15*time.Second, 30*time.Second)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Record("0xabc", false)

	now = now.Add(20 * time.Second)
	if ok, _ := l.Allow("0xabc"); ok {
		t.Fatalf("allowed at 20s into a 30s failure backoff")
	}

	now = now.Add(10 * time.Second)
	if ok, _ := l.Allow("0xabc"); !ok {
		t.Fatalf("blocked after failure backoff elapsed")
	}
}

func TestLimiterPerAddress(t *testing.T) {
	l := NewLimiter(15*time.Second, 30*time.Second)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Record("0xaaa", true)
	if ok, _ := l.Allow("0xbbb"); !ok {
		t.Fatalf("cooldown leaked across addresses")
	}
}

func TestLimiterCaseInsensitiveAddress(t *testing.T) {
	l := NewLimiter(15*time.Second, 30*time.Second)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Record("0xAbCd", true)
	if ok, _ := l.Allow("0xabcd"); ok {
		t.Fatalf("cooldown missed for different-cased address")
	}
}
