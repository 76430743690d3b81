// Package prices fetches USD token prices from the Enso price API.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public Enso price endpoint.
const DefaultBaseURL = "https://api.enso.finance/api/v1/prices"

// Client fetches per-token USD prices. The API serves one token per
// request, so lookups fan out over a bounded worker pool.
type Client struct {
	baseURL    string
	chainID    uint64
	workers    int
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client. workers bounds concurrent requests.
func New(baseURL string, chainID uint64, workers int, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if workers <= 0 {
		workers = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chainID:    chainID,
		workers:    workers,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// TokenPricesUSD fetches USD prices for the given tokens, keyed by
// lowercase hex address. Tokens whose lookup fails or returns a
// non-positive price are absent from the result.
func (c *Client) TokenPricesUSD(ctx context.Context, tokens []common.Address) map[string]float64 {
	unique := make([]common.Address, 0, len(tokens))
	seen := make(map[common.Address]struct{}, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}
	if len(unique) == 0 {
		return nil
	}

	type priced struct {
		address string
		price   float64
	}

	jobs := make(chan common.Address)
	out := make(chan priced, len(unique))

	var wg sync.WaitGroup
	workers := c.workers
	if workers > len(unique) {
		workers = len(unique)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for token := range jobs {
				price, err := c.tokenPrice(ctx, token)
				if err != nil {
					c.logger.Warn("price lookup failed", zap.String("token", token.Hex()), zap.Error(err))
					continue
				}
				if price > 0 {
					out <- priced{address: strings.ToLower(token.Hex()), price: price}
				}
			}
		}()
	}

	for _, token := range unique {
		jobs <- token
	}
	close(jobs)
	wg.Wait()
	close(out)

	prices := make(map[string]float64, len(unique))
	for item := range out {
		prices[item.address] = item.price
	}
	return prices
}

func (c *Client) tokenPrice(ctx context.Context, token common.Address) (float64, error) {
	url := fmt.Sprintf("%s/%d/%s", c.baseURL, c.chainID, strings.ToLower(token.Hex()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price api status %d", resp.StatusCode)
	}

	var payload struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	return payload.Price, nil
}
