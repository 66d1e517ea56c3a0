// Package config loads process configuration by layering defaults, an
// optional YAML file named by MASTERDATA_CONFIG, and MASTERDATA_* environment
// variables (highest precedence). Nested keys use a double underscore:
// MASTERDATA_DATABASE__URL sets database.url.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	strutil "masterdata/pkg/platform/strings"
)

const (
	envPrefix  = "MASTERDATA_"
	envFileVar = "MASTERDATA_CONFIG"
)

// Config is the full process configuration.
type Config struct {
	LogLevel  string          `koanf:"log_level"`
	Server    Server          `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Writes    WritesConfig    `koanf:"writes"`
	Documents DocumentsConfig `koanf:"documents"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects the storage backend. An empty URL runs the
// in-memory store.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// RedisConfig configures the bridge cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	BridgeTTL    time.Duration `koanf:"bridge_ttl"`
}

// KafkaConfig configures the outbox relay target.
type KafkaConfig struct {
	Brokers       []string      `koanf:"brokers"`
	Topic         string        `koanf:"topic"`
	Partitions    int32         `koanf:"partitions"`
	Replication   int16         `koanf:"replication"`
	RelayInterval time.Duration `koanf:"relay_interval"`
	RelayBatch    int           `koanf:"relay_batch"`
}

// WritesConfig tunes the write engine.
type WritesConfig struct {
	TxTimeout time.Duration `koanf:"tx_timeout"`
}

// DocumentsConfig configures the document registry.
type DocumentsConfig struct {
	MaxSize  int64  `koanf:"max_size"`
	BlobRoot string `koanf:"blob_root"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			BridgeTTL:    time.Hour,
		},
		Kafka: KafkaConfig{
			Topic:         "masterdata.field-changes",
			Partitions:    6,
			Replication:   1,
			RelayInterval: time.Second,
			RelayBatch:    100,
		},
		Writes: WritesConfig{
			TxTimeout: 5 * time.Second,
		},
		Documents: DocumentsConfig{
			MaxSize: 10 << 20,
		},
	}
}

// Load layers defaults, the optional file and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		if key == envFileVar {
			return "", nil
		}
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
		if key == "kafka.brokers" {
			return key, strutil.SplitList(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Writes.TxTimeout <= 0 {
		errs = append(errs, errors.New("writes.tx_timeout must be positive"))
	}
	if c.Documents.MaxSize <= 0 {
		errs = append(errs, errors.New("documents.max_size must be positive"))
	}
	if c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic must not be empty"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}
