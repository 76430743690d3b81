package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"positionscope/internal/dex"
	"positionscope/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL      string
	SubgraphURL string
	PriceAPIURL string

	PositionManager string
	Factory         string
	Helper          string
	Multicall       string
	ChainID         uint64

	WhitelistPools []string
	PoolCachePath  string
	PostgresDSN    string
	MaxPools       int
	TopPools       int

	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration

	Cooldown        time.Duration
	FailBackoff     time.Duration
	RefreshInterval time.Duration

	PriceWorkers int
	HTTPTimeout  time.Duration
	SortBy       string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POSITIONSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("subgraph-url", "https://api.goldsky.com/api/public/project_clvxxqf0uc8qs01x7bcs1e4ci/subgraphs/aerodrome-slipstream/v1.0.0/gn")
	v.SetDefault("price-api-url", "https://api.enso.finance/api/v1/prices")
	v.SetDefault("position-manager", dex.BaseNPM.Hex())
	v.SetDefault("factory", dex.BaseCLFactory.Hex())
	v.SetDefault("helper", dex.BaseHelper.Hex())
	v.SetDefault("multicall", dex.BaseMulticall3.Hex())
	v.SetDefault("chain-id", dex.BaseChainID)
	v.SetDefault("pool-cache", "./data/pool-cache.json")
	v.SetDefault("max-pools", 100)
	v.SetDefault("top-pools", 100)
	v.SetDefault("batch-size", 100)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("cooldown", 15*time.Second)
	v.SetDefault("fail-backoff", 30*time.Second)
	v.SetDefault("refresh-interval", 60*time.Second)
	v.SetDefault("price-workers", 8)
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("sort-by", "value")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		SubgraphURL:     v.GetString("subgraph-url"),
		PriceAPIURL:     v.GetString("price-api-url"),
		PositionManager: v.GetString("position-manager"),
		Factory:         v.GetString("factory"),
		Helper:          v.GetString("helper"),
		Multicall:       v.GetString("multicall"),
		ChainID:         v.GetUint64("chain-id"),
		WhitelistPools:  getStringSlice(v, "whitelist-pool"),
		PoolCachePath:   v.GetString("pool-cache"),
		PostgresDSN:     v.GetString("postgres-dsn"),
		MaxPools:        v.GetInt("max-pools"),
		TopPools:        v.GetInt("top-pools"),
		BatchSize:       v.GetInt("batch-size"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Cooldown:        v.GetDuration("cooldown"),
		FailBackoff:     v.GetDuration("fail-backoff"),
		RefreshInterval: v.GetDuration("refresh-interval"),
		PriceWorkers:    v.GetInt("price-workers"),
		HTTPTimeout:     v.GetDuration("http-timeout"),
		SortBy:          v.GetString("sort-by"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// WhitelistKeys parses the configured allow-list entries. Each entry has
// the form token0:token1:tickSpacing.
func (c Config) WhitelistKeys() ([]model.PoolKey, error) {
	keys := make([]model.PoolKey, 0, len(c.WhitelistPools))
	for _, entry := range c.WhitelistPools {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("whitelist entry %q: want token0:token1:tickSpacing", entry)
		}
		if !common.IsHexAddress(parts[0]) || !common.IsHexAddress(parts[1]) {
			return nil, fmt.Errorf("whitelist entry %q: bad token address", entry)
		}
		spacing, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("whitelist entry %q: bad tick spacing: %w", entry, err)
		}
		keys = append(keys, model.PoolKey{
			Token0:      common.HexToAddress(parts[0]),
			Token1:      common.HexToAddress(parts[1]),
			TickSpacing: int32(spacing),
		})
	}
	return keys, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
