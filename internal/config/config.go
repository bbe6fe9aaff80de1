// Package config resolves CLI configuration from flags, TRIAGE_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables: --redis-addr becomes TRIAGE_REDIS_ADDR.
const EnvPrefix = "TRIAGE"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the resolved configuration shared by every command.
type Config struct {
	ConfigFile string `mapstructure:"config"`
	LogLevel   string `mapstructure:"log-level"`
	LogFormat  string `mapstructure:"log-format"`

	// Store selects the backend of both documents and sessions.
	Store      string `mapstructure:"store"`
	Dir        string `mapstructure:"dir"`
	SessionDir string `mapstructure:"session-dir"`
	Format     string `mapstructure:"format"`

	RedisAddr     string        `mapstructure:"redis-addr"`
	RedisPassword string        `mapstructure:"redis-password"`
	RedisDB       int           `mapstructure:"redis-db"`
	Namespace     string        `mapstructure:"namespace"`
	SessionTTL    time.Duration `mapstructure:"session-ttl"`
	LockTTL       time.Duration `mapstructure:"lock-ttl"`

	GraphCacheTTL time.Duration `mapstructure:"graph-cache-ttl"`
	Addr          string        `mapstructure:"addr"`

	// EncryptionKey seals sessions at rest when set (base64, 32 bytes).
	EncryptionKey  string   `mapstructure:"encryption-key"`
	FallbackKeys   []string `mapstructure:"encryption-fallback-keys"`
	RedactPatterns []string `mapstructure:"redact"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:      "warn",
		LogFormat:     string(logging.FormatText),
		Store:         StoreFile,
		Dir:           ".",
		Format:        string(codec.FormatJSON),
		RedisAddr:     "localhost:6379",
		Namespace:     "triage:",
		SessionTTL:    24 * time.Hour,
		LockTTL:       30 * time.Second,
		GraphCacheTTL: 5 * time.Minute,
		Addr:          ":8080",
	}
}

// RegisterFlags declares the shared flags on fs with their defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Config file (default ./triage.yaml when present)")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "Log format: text or json")
	fs.String("store", d.Store, "Storage backend: memory, file or redis")
	fs.String("dir", d.Dir, "Workflow directory (file store)")
	fs.String("session-dir", d.SessionDir, "Session directory (file store, default <dir>/.sessions)")
	fs.String("format", d.Format, "Format of written workflows: json or yaml")
	fs.String("redis-addr", d.RedisAddr, "Redis address (redis store)")
	fs.String("redis-password", "", "Redis password")
	fs.Int("redis-db", 0, "Redis database")
	fs.String("namespace", d.Namespace, "Redis key prefix")
	fs.Duration("session-ttl", d.SessionTTL, "Session expiry in Redis (0 keeps sessions forever)")
	fs.Duration("lock-ttl", d.LockTTL, "Distributed session lock expiry")
	fs.Duration("graph-cache-ttl", d.GraphCacheTTL, "How long compiled workflows stay cached")
	fs.String("encryption-key", "", "Base64 AES-256 key sealing stored sessions")
	fs.StringSlice("encryption-fallback-keys", nil, "Previous keys accepted when reading sessions")
	fs.StringSlice("redact", nil, "Regular expressions masked in free-text notes before storage")
}

// Load resolves the configuration. fs may be nil when only the environment
// and the config file apply.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	d := Default()
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("store", d.Store)
	v.SetDefault("dir", d.Dir)
	v.SetDefault("format", d.Format)
	v.SetDefault("redis-addr", d.RedisAddr)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("session-ttl", d.SessionTTL)
	v.SetDefault("lock-ttl", d.LockTTL)
	v.SetDefault("graph-cache-ttl", d.GraphCacheTTL)
	v.SetDefault("addr", d.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, err
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("triage")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (memory, file, redis)", c.Store))
	}
	if _, err := codec.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (text, json)", c.LogFormat))
	}
	if c.SessionTTL < 0 || c.LockTTL < 0 || c.GraphCacheTTL < 0 {
		errs = append(errs, errors.New("durations cannot be negative"))
	}
	return errors.Join(errs...)
}

// DocumentFormat returns the parsed Format setting.
func (c *Config) DocumentFormat() codec.Format {
	f, err := codec.ParseFormat(c.Format)
	if err != nil {
		return codec.FormatJSON
	}
	return f
}

// Logger builds the configured logger writing to w (stderr when nil).
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	return logging.NewWith(w, logging.Format(c.LogFormat), level)
}
