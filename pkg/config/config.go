package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pkg/errors"
)

const (
	DefaultMaxConnectionsPerQuery = 8
	DefaultParseCacheSize         = 1024
	DefaultParseCacheTTL          = 10 * time.Minute
)

// Config is the root of a sharding configuration file.
type Config struct {
	LogLevel          string                `json:"log_level" toml:"log_level" yaml:"log_level"`
	DataSources       map[string]DataSource `json:"data_sources" toml:"data_sources" yaml:"data_sources"`
	DefaultDataSource string                `json:"default_data_source" toml:"default_data_source" yaml:"default_data_source"`
	Sharding          ShardingRule          `json:"sharding" toml:"sharding" yaml:"sharding"`
	Props             Props                 `json:"props" toml:"props" yaml:"props"`
}

type DataSource struct {
	Driver       string `json:"driver" toml:"driver" yaml:"driver"`
	DSN          string `json:"dsn" toml:"dsn" yaml:"dsn"`
	MaxOpenConns int    `json:"max_open_conns" toml:"max_open_conns" yaml:"max_open_conns"`
}

type ShardingRule struct {
	Tables                  map[string]TableRule `json:"tables" toml:"tables" yaml:"tables"`
	BindingTables           []string             `json:"binding_tables" toml:"binding_tables" yaml:"binding_tables"`
	BroadcastTables         []string             `json:"broadcast_tables" toml:"broadcast_tables" yaml:"broadcast_tables"`
	DefaultDatabaseStrategy *Strategy            `json:"default_database_strategy,omitempty" toml:"default_database_strategy,omitempty" yaml:"default_database_strategy,omitempty"`
	DefaultTableStrategy    *Strategy            `json:"default_table_strategy,omitempty" toml:"default_table_strategy,omitempty" yaml:"default_table_strategy,omitempty"`
	ShardingAlgorithms      map[string]Algorithm `json:"sharding_algorithms" toml:"sharding_algorithms" yaml:"sharding_algorithms"`
	KeyGenerators           map[string]Algorithm `json:"key_generators" toml:"key_generators" yaml:"key_generators"`
}

type TableRule struct {
	ActualDataNodes  string       `json:"actual_data_nodes" toml:"actual_data_nodes" yaml:"actual_data_nodes"`
	DatabaseStrategy *Strategy    `json:"database_strategy,omitempty" toml:"database_strategy,omitempty" yaml:"database_strategy,omitempty"`
	TableStrategy    *Strategy    `json:"table_strategy,omitempty" toml:"table_strategy,omitempty" yaml:"table_strategy,omitempty"`
	KeyGenerate      *KeyGenerate `json:"key_generate,omitempty" toml:"key_generate,omitempty" yaml:"key_generate,omitempty"`
	VirtualColumns   []string     `json:"virtual_columns,omitempty" toml:"virtual_columns,omitempty" yaml:"virtual_columns,omitempty"`
}

const (
	StrategyStandard = "standard"
	StrategyComplex  = "complex"
	StrategyHint     = "hint"
	StrategyNone     = "none"
)

// Strategy selects one of standard, complex, hint or none.
// ShardingColumns is a comma separated list used by complex strategies.
type Strategy struct {
	Type            string `json:"type" toml:"type" yaml:"type"`
	ShardingColumn  string `json:"sharding_column,omitempty" toml:"sharding_column,omitempty" yaml:"sharding_column,omitempty"`
	ShardingColumns string `json:"sharding_columns,omitempty" toml:"sharding_columns,omitempty" yaml:"sharding_columns,omitempty"`
	Algorithm       string `json:"algorithm,omitempty" toml:"algorithm,omitempty" yaml:"algorithm,omitempty"`
}

type KeyGenerate struct {
	Column    string `json:"column" toml:"column" yaml:"column"`
	Generator string `json:"generator" toml:"generator" yaml:"generator"`
}

// Algorithm describes both sharding algorithms and key generators.
type Algorithm struct {
	Type  string            `json:"type" toml:"type" yaml:"type"`
	Props map[string]string `json:"props,omitempty" toml:"props,omitempty" yaml:"props,omitempty"`
}

type Props struct {
	MaxConnectionsPerQuery int    `json:"max_connections_per_query" toml:"max_connections_per_query" yaml:"max_connections_per_query"`
	SQLShow                bool   `json:"sql_show" toml:"sql_show" yaml:"sql_show"`
	ParseCacheSize         int    `json:"parse_cache_size" toml:"parse_cache_size" yaml:"parse_cache_size"`
	ParseCacheTTL          string `json:"parse_cache_ttl" toml:"parse_cache_ttl" yaml:"parse_cache_ttl"`
}

// CacheTTL parses ParseCacheTTL, falling back to DefaultParseCacheTTL.
func (p Props) CacheTTL() (time.Duration, error) {
	if p.ParseCacheTTL == "" {
		return DefaultParseCacheTTL, nil
	}
	d, err := time.ParseDuration(p.ParseCacheTTL)
	if err != nil {
		return 0, sherror.Newf(sherror.SHARD_CONFIG_ERROR, "invalid parse_cache_ttl %q: %v", p.ParseCacheTTL, err)
	}
	return d, nil
}

func (c *Config) applyDefaults() {
	if c.Props.MaxConnectionsPerQuery <= 0 {
		c.Props.MaxConnectionsPerQuery = DefaultMaxConnectionsPerQuery
	}
	if c.Props.ParseCacheSize <= 0 {
		c.Props.ParseCacheSize = DefaultParseCacheSize
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LoadConfig reads a toml, yaml or json sharding configuration.
func LoadConfig(cfgPath string) (*Config, error) {
	file, err := os.Open(cfgPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", cfgPath)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			shardlog.Zero.Error().Err(err).Str("path", cfgPath).Msg("failed to close config file")
		}
	}(file)

	var cfg Config
	if err := initConfig(file, &cfg); err != nil {
		return nil, sherror.Wrap(sherror.SHARD_CONFIG_ERROR, errors.Wrapf(err, "decode config %s", cfgPath))
	}
	cfg.applyDefaults()

	configBytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	shardlog.Zero.Debug().Str("path", cfgPath).Msg("running config: " + string(configBytes))

	return &cfg, nil
}
