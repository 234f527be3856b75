package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DiscoverConfig holds configuration for the discover command, which
// reports active ranges without scanning them.
type DiscoverConfig struct {
	RPCURL string
	Vault  string

	FromBlock uint64
	ToBlock   uint64

	ProbeWidth        uint64
	ChunkSize         uint64
	MergeGapThreshold uint64
	MaxRetries        int
	RetryBackoff      time.Duration

	Topic0Map   map[string]string
	SubgraphURL string
	SubgraphKey string

	LogLevel string
}

// LoadDiscover merges config file, environment variables, and flags into
// DiscoverConfig.
func LoadDiscover(cfgFile string, flags *pflag.FlagSet) (DiscoverConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return DiscoverConfig{}, err
	}

	v.SetDefault("probe-width", uint64(10000))
	v.SetDefault("chunk-size", uint64(2000))
	v.SetDefault("merge-gap-threshold", uint64(1000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	cfg := DiscoverConfig{
		RPCURL:            v.GetString("rpc"),
		Vault:             v.GetString("vault"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		ProbeWidth:        v.GetUint64("probe-width"),
		ChunkSize:         v.GetUint64("chunk-size"),
		MergeGapThreshold: v.GetUint64("merge-gap-threshold"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Topic0Map:         getStringMap(v, "topic0-map"),
		SubgraphURL:       v.GetString("subgraph-url"),
		SubgraphKey:       v.GetString("subgraph-key"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
