// Package subgraph queries the indexer for pool aggregates, position
// lifetime aggregates, and the top pools by TVL. Indexer data is an
// enrichment source, so every method degrades to an empty result on
// failure instead of failing the refresh.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionscope/internal/model"
)

// PoolAggregates carries the recent-activity metrics of one pool.
type PoolAggregates struct {
	TVLUSD    float64
	Volume24h float64
	Volume7d  float64
	Fees24h   float64
	Fees7d    float64
}

// PositionAggregates carries the lifetime metrics of one position.
// Token amounts are in decimal units.
type PositionAggregates struct {
	CreatedAt  uint64
	Deposited0 float64
	Deposited1 float64
	Withdrawn0 float64
	Withdrawn1 float64
	Collected0 float64
	Collected1 float64
}

// Client is a GraphQL client for the CL subgraph.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client. timeout bounds each query.
func New(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

const poolQuery = `
query GetPoolData($poolIds: [String!]!) {
  pools(where: { id_in: $poolIds }) {
    id
    totalValueLockedUSD
    poolDayData(first: 7, orderBy: date, orderDirection: desc) {
      date
      volumeUSD
      feesUSD
    }
  }
}`

// PoolAggregates fetches TVL and 7 days of volume and fee data for the
// given pools, keyed by lowercase pool address.
func (c *Client) PoolAggregates(ctx context.Context, pools []common.Address) (map[string]PoolAggregates, error) {
	if len(pools) == 0 {
		return nil, nil
	}
	ids := make([]string, len(pools))
	for i, pool := range pools {
		ids[i] = strings.ToLower(pool.Hex())
	}

	var response struct {
		Data struct {
			Pools []struct {
				ID                  string `json:"id"`
				TotalValueLockedUSD string `json:"totalValueLockedUSD"`
				PoolDayData         []struct {
					VolumeUSD string `json:"volumeUSD"`
					FeesUSD   string `json:"feesUSD"`
				} `json:"poolDayData"`
			} `json:"pools"`
		} `json:"data"`
	}
	if err := c.execute(ctx, poolQuery, map[string]any{"poolIds": ids}, &response); err != nil {
		return nil, err
	}

	out := make(map[string]PoolAggregates, len(response.Data.Pools))
	for _, pool := range response.Data.Pools {
		agg := PoolAggregates{TVLUSD: parseFloat(pool.TotalValueLockedUSD)}
		for i, day := range pool.PoolDayData {
			volume := parseFloat(day.VolumeUSD)
			fees := parseFloat(day.FeesUSD)
			if i == 0 {
				agg.Volume24h = volume
				agg.Fees24h = fees
			}
			agg.Volume7d += volume
			agg.Fees7d += fees
		}
		out[strings.ToLower(pool.ID)] = agg
	}
	return out, nil
}

const positionQuery = `
query GetPositions($tokenIds: [String!]!) {
  positions(where: { id_in: $tokenIds }) {
    id
    depositedToken0
    depositedToken1
    withdrawnToken0
    withdrawnToken1
    collectedFeesToken0
    collectedFeesToken1
    transaction {
      timestamp
    }
    token0 {
      decimals
    }
    token1 {
      decimals
    }
  }
}`

// PositionAggregates fetches lifetime deposits, withdrawals, collected
// fees and the creation timestamp for the given position ids, keyed by
// decimal id.
func (c *Client) PositionAggregates(ctx context.Context, tokenIDs []string) (map[string]PositionAggregates, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}

	var response struct {
		Data struct {
			Positions []struct {
				ID                  string `json:"id"`
				DepositedToken0     string `json:"depositedToken0"`
				DepositedToken1     string `json:"depositedToken1"`
				WithdrawnToken0     string `json:"withdrawnToken0"`
				WithdrawnToken1     string `json:"withdrawnToken1"`
				CollectedFeesToken0 string `json:"collectedFeesToken0"`
				CollectedFeesToken1 string `json:"collectedFeesToken1"`
				Transaction         struct {
					Timestamp string `json:"timestamp"`
				} `json:"transaction"`
				Token0 struct {
					Decimals string `json:"decimals"`
				} `json:"token0"`
				Token1 struct {
					Decimals string `json:"decimals"`
				} `json:"token1"`
			} `json:"positions"`
		} `json:"data"`
	}
	if err := c.execute(ctx, positionQuery, map[string]any{"tokenIds": tokenIDs}, &response); err != nil {
		return nil, err
	}

	out := make(map[string]PositionAggregates, len(response.Data.Positions))
	for _, pos := range response.Data.Positions {
		decimals0 := parseDecimals(pos.Token0.Decimals)
		decimals1 := parseDecimals(pos.Token1.Decimals)
		createdAt, _ := strconv.ParseUint(pos.Transaction.Timestamp, 10, 64)
		out[pos.ID] = PositionAggregates{
			CreatedAt:  createdAt,
			Deposited0: parseFloat(pos.DepositedToken0) / math.Pow10(decimals0),
			Deposited1: parseFloat(pos.DepositedToken1) / math.Pow10(decimals1),
			Withdrawn0: parseFloat(pos.WithdrawnToken0) / math.Pow10(decimals0),
			Withdrawn1: parseFloat(pos.WithdrawnToken1) / math.Pow10(decimals1),
			Collected0: parseFloat(pos.CollectedFeesToken0) / math.Pow10(decimals0),
			Collected1: parseFloat(pos.CollectedFeesToken1) / math.Pow10(decimals1),
		}
	}
	return out, nil
}

const topPoolsQuery = `
query TopPools($first: Int!) {
  pools(first: $first, orderBy: totalValueLockedUSD, orderDirection: desc, where: { liquidity_gt: 0 }) {
    id
    tickSpacing
    totalValueLockedUSD
    token0 {
      id
    }
    token1 {
      id
    }
  }
}`

// TopPools fetches the highest-TVL pools for the discovery cache.
func (c *Client) TopPools(ctx context.Context, first int) ([]model.CachedPool, error) {
	if first <= 0 {
		first = 100
	}

	var response struct {
		Data struct {
			Pools []struct {
				ID                  string `json:"id"`
				TickSpacing         string `json:"tickSpacing"`
				TotalValueLockedUSD string `json:"totalValueLockedUSD"`
				Token0              struct {
					ID string `json:"id"`
				} `json:"token0"`
				Token1 struct {
					ID string `json:"id"`
				} `json:"token1"`
			} `json:"pools"`
		} `json:"data"`
	}
	if err := c.execute(ctx, topPoolsQuery, map[string]any{"first": first}, &response); err != nil {
		return nil, err
	}

	pools := make([]model.CachedPool, 0, len(response.Data.Pools))
	for _, pool := range response.Data.Pools {
		spacing, err := strconv.ParseInt(pool.TickSpacing, 10, 32)
		if err != nil {
			c.logger.Warn("bad tick spacing from subgraph", zap.String("pool", pool.ID), zap.String("tickSpacing", pool.TickSpacing))
			continue
		}
		pools = append(pools, model.CachedPool{
			Token0:      strings.ToLower(pool.Token0.ID),
			Token1:      strings.ToLower(pool.Token1.ID),
			TickSpacing: int32(spacing),
			Pool:        strings.ToLower(pool.ID),
			TVLUSD:      parseFloat(pool.TotalValueLockedUSD),
		})
	}
	return pools, nil
}

type graphQLError struct {
	Message string `json:"message"`
}

// execute posts one GraphQL query and decodes the response into result.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, result any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: subgraph status %d", model.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var envelope struct {
		Errors []graphQLError `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err == nil && len(envelope.Errors) > 0 {
		return fmt.Errorf("subgraph errors: %s", envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseDecimals(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 77 {
		return 18
	}
	return v
}
