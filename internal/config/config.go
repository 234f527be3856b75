package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL  string
	Vault   string
	ChainID uint64

	FromBlock uint64
	ToBlock   uint64

	ProbeWidth        uint64
	ChunkSize         uint64
	ScanWindowBlocks  uint64
	MergeGapThreshold uint64
	MaxEventBudget    int
	ChunkDelay        time.Duration
	Concurrency       int
	MaxRetries        int
	RetryBackoff      time.Duration

	Topic0Map   map[string]string
	SubgraphURL string
	SubgraphKey string

	Out              string
	StateFile        string
	StateFileEnabled bool
	PgDSN            string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}

	v.SetDefault("probe-width", uint64(10000))
	v.SetDefault("chunk-size", uint64(2000))
	v.SetDefault("scan-window-blocks", uint64(100000))
	v.SetDefault("merge-gap-threshold", uint64(1000))
	v.SetDefault("max-event-budget", 50000)
	v.SetDefault("chunk-delay", time.Duration(0))
	v.SetDefault("concurrency", 4)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("out", "./data/positions.jsonl")
	v.SetDefault("state-file", "./data/state.json")
	v.SetDefault("state-file-enabled", true)
	v.SetDefault("log-level", "info")

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		Vault:             v.GetString("vault"),
		ChainID:           v.GetUint64("chain-id"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		ProbeWidth:        v.GetUint64("probe-width"),
		ChunkSize:         v.GetUint64("chunk-size"),
		ScanWindowBlocks:  v.GetUint64("scan-window-blocks"),
		MergeGapThreshold: v.GetUint64("merge-gap-threshold"),
		MaxEventBudget:    v.GetInt("max-event-budget"),
		ChunkDelay:        v.GetDuration("chunk-delay"),
		Concurrency:       v.GetInt("concurrency"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Topic0Map:         getStringMap(v, "topic0-map"),
		SubgraphURL:       v.GetString("subgraph-url"),
		SubgraphKey:       v.GetString("subgraph-key"),
		Out:               v.GetString("out"),
		StateFile:         v.GetString("state-file"),
		StateFileEnabled:  v.GetBool("state-file-enabled"),
		PgDSN:             v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
