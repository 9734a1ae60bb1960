package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config is read from the environment (and an optional .env file), then
// overridden by explicitly set flags.
type Config struct {
	// CatalogDir holds the function metadata documents. ENV: APPFUNCTIONS_CATALOG_DIR
	CatalogDir string `env:"APPFUNCTIONS_CATALOG_DIR,default=./functions"`
	// RedisURL selects Redis for enabled-state storage, e.g.
	// "redis://localhost:6379/0". Empty keeps state in memory.
	// ENV: APPFUNCTIONS_REDIS_URL
	RedisURL string `env:"APPFUNCTIONS_REDIS_URL"`
	// RedisPrefix is the key prefix used in Redis. ENV: APPFUNCTIONS_REDIS_PREFIX
	RedisPrefix string `env:"APPFUNCTIONS_REDIS_PREFIX,default=appfunctions:storage:"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	// ENV: APPFUNCTIONS_METRICS_ADDR
	MetricsAddr string `env:"APPFUNCTIONS_METRICS_ADDR"`
	// LogLevel is one of debug, info, warn, error. ENV: APPFUNCTIONS_LOG_LEVEL
	LogLevel string `env:"APPFUNCTIONS_LOG_LEVEL,default=info"`
	// LogFormat is text or json. ENV: APPFUNCTIONS_LOG_FORMAT
	LogFormat string `env:"APPFUNCTIONS_LOG_FORMAT,default=text"`
	// Watch reloads the catalog when its files change. ENV: APPFUNCTIONS_WATCH
	Watch bool `env:"APPFUNCTIONS_WATCH,default=true"`
}

// loadConfig loads envFile (or ./.env when envFile is empty and the file
// exists) and decodes the environment into a Config.
func loadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	return cfg, nil
}

// applyFlags overrides cfg with flags the user set explicitly.
func (cfg *Config) applyFlags(flags *pflag.FlagSet) {
	str := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	str("dir", &cfg.CatalogDir)
	str("redis-url", &cfg.RedisURL)
	str("metrics-addr", &cfg.MetricsAddr)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	if f := flags.Lookup("watch"); f != nil && f.Changed {
		cfg.Watch = f.Value.String() == "true"
	}
}

// newLogger builds the process logger. Logs go to w, never to stdout, which
// carries the MCP stream.
func newLogger(cfg Config, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
}
