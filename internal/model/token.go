package model

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token holds ERC-20 metadata for one side of a pair. Symbol stays empty
// when the on-chain read fails; Decimals falls back to 18 in that case.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol,omitempty"`
	Decimals uint8          `json:"decimals"`
}

// PoolKey identifies a CL pool by its creation parameters.
type PoolKey struct {
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	TickSpacing int32          `json:"tickSpacing"`
}

// ID returns the canonical lowercase dedup key for the pool.
func (k PoolKey) ID() string {
	return strings.ToLower(k.Token0.Hex()) + "-" + strings.ToLower(k.Token1.Hex()) + "-" + strconv.FormatInt(int64(k.TickSpacing), 10)
}

// CachedPool is a discovered pool persisted in the registry store.
type CachedPool struct {
	Token0      string  `json:"token0"`
	Token1      string  `json:"token1"`
	TickSpacing int32   `json:"tickSpacing"`
	Pool        string  `json:"pool,omitempty"`
	TVLUSD      float64 `json:"tvlUSD,omitempty"`
}

// Key converts a cached pool back to a PoolKey.
func (c CachedPool) Key() PoolKey {
	return PoolKey{
		Token0:      common.HexToAddress(c.Token0),
		Token1:      common.HexToAddress(c.Token1),
		TickSpacing: c.TickSpacing,
	}
}
