package subgraph

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func graphServer(t *testing.T, handler func(query string, variables map[string]any) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(handler(body.Query, body.Variables))); err != nil {
			t.Fatalf("write response: %v", err)
		}
	}))
}

func TestPoolAggregates(t *testing.T) {
	server := graphServer(t, func(_ string, variables map[string]any) string {
		ids, ok := variables["poolIds"].([]any)
		if !ok || len(ids) != 1 {
			t.Fatalf("poolIds variable = %v", variables["poolIds"])
		}
		return `{"data": {"pools": [{
			"id": "0x1000000000000000000000000000000000000001",
			"totalValueLockedUSD": "50000",
			"poolDayData": [
				{"volumeUSD": "100", "feesUSD": "10"},
				{"volumeUSD": "200", "feesUSD": "20"},
				{"volumeUSD": "300", "feesUSD": "30"}
			]
		}]}}`
	})
	defer server.Close()

	c := New(server.URL, 5*time.Second, nil)
	pool := common.HexToAddress("0x1000000000000000000000000000000000000001")
	aggs, err := c.PoolAggregates(context.Background(), []common.Address{pool})
	if err != nil {
		t.Fatalf("pool aggregates: %v", err)
	}

	agg, ok := aggs["0x1000000000000000000000000000000000000001"]
	if !ok {
		t.Fatalf("pool missing from aggregates")
	}
	if agg.TVLUSD != 50000 {
		t.Fatalf("tvl = %g, want 50000", agg.TVLUSD)
	}
	// The newest day stands alone as 24h; the full window sums to 7d.
	if agg.Volume24h != 100 || agg.Fees24h != 10 {
		t.Fatalf("24h = (%g, %g)", agg.Volume24h, agg.Fees24h)
	}
	if agg.Volume7d != 600 || agg.Fees7d != 60 {
		t.Fatalf("7d = (%g, %g)", agg.Volume7d, agg.Fees7d)
	}
}

func TestPositionAggregatesScaling(t *testing.T) {
	server := graphServer(t, func(_ string, _ map[string]any) string {
		return `{"data": {"positions": [{
			"id": "4217",
			"depositedToken0": "5000000",
			"depositedToken1": "2000000000000000000",
			"withdrawnToken0": "3000000",
			"withdrawnToken1": "250000000000000000",
			"collectedFeesToken0": "1500000",
			"collectedFeesToken1": "500000000000000000",
			"transaction": {"timestamp": "1700000000"},
			"token0": {"decimals": "6"},
			"token1": {"decimals": "18"}
		}]}}`
	})
	defer server.Close()

	c := New(server.URL, 5*time.Second, nil)
	aggs, err := c.PositionAggregates(context.Background(), []string{"4217"})
	if err != nil {
		t.Fatalf("position aggregates: %v", err)
	}

	agg, ok := aggs["4217"]
	if !ok {
		t.Fatalf("position missing from aggregates")
	}
	if agg.CreatedAt != 1700000000 {
		t.Fatalf("createdAt = %d", agg.CreatedAt)
	}
	if math.Abs(agg.Deposited0-5) > 1e-9 || math.Abs(agg.Deposited1-2) > 1e-9 {
		t.Fatalf("deposited = (%g, %g), want (5, 2)", agg.Deposited0, agg.Deposited1)
	}
	if math.Abs(agg.Withdrawn0-3) > 1e-9 || math.Abs(agg.Withdrawn1-0.25) > 1e-9 {
		t.Fatalf("withdrawn = (%g, %g), want (3, 0.25)", agg.Withdrawn0, agg.Withdrawn1)
	}
	if math.Abs(agg.Collected0-1.5) > 1e-9 || math.Abs(agg.Collected1-0.5) > 1e-9 {
		t.Fatalf("collected = (%g, %g), want (1.5, 0.5)", agg.Collected0, agg.Collected1)
	}
}

func TestTopPools(t *testing.T) {
	server := graphServer(t, func(_ string, variables map[string]any) string {
		if first, ok := variables["first"].(float64); !ok || first != 2 {
			t.Fatalf("first variable = %v", variables["first"])
		}
		return `{"data": {"pools": [
			{
				"id": "0xAbC0000000000000000000000000000000000001",
				"tickSpacing": "100",
				"totalValueLockedUSD": "90000",
				"token0": {"id": "0x0000000000000000000000000000000000000001"},
				"token1": {"id": "0x0000000000000000000000000000000000000002"}
			},
			{
				"id": "0x0000000000000000000000000000000000000bad",
				"tickSpacing": "not-a-number",
				"totalValueLockedUSD": "1",
				"token0": {"id": "0x03"},
				"token1": {"id": "0x04"}
			}
		]}}`
	})
	defer server.Close()

	c := New(server.URL, 5*time.Second, nil)
	pools, err := c.TopPools(context.Background(), 2)
	if err != nil {
		t.Fatalf("top pools: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("pools = %d, want 1 (malformed entry skipped)", len(pools))
	}
	if pools[0].TickSpacing != 100 || pools[0].TVLUSD != 90000 {
		t.Fatalf("pool = %+v", pools[0])
	}
	if pools[0].Pool != "0xabc0000000000000000000000000000000000001" {
		t.Fatalf("pool address not lowercased: %s", pools[0].Pool)
	}
}

func TestGraphQLErrorEnvelope(t *testing.T) {
	server := graphServer(t, func(_ string, _ map[string]any) string {
		return `{"errors": [{"message": "indexing in progress"}]}`
	})
	defer server.Close()

	c := New(server.URL, 5*time.Second, nil)
	pool := common.HexToAddress("0x1000000000000000000000000000000000000001")
	if _, err := c.PoolAggregates(context.Background(), []common.Address{pool}); err == nil {
		t.Fatalf("error envelope not surfaced")
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer server.Close()

	c := New(server.URL, 5*time.Second, nil)
	if _, err := c.PositionAggregates(context.Background(), []string{"1"}); err == nil {
		t.Fatalf("non-200 status not surfaced")
	}
}
