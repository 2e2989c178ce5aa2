package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"snipbin/internal/sweeper"
)

const envPrefix = "SNIPBIN_"

type config struct {
	addr          string
	store         string
	dataPath      string
	redisURL      string
	redisPrefix   string
	baseURL       string
	maxBytes      int
	behindProxy   bool
	sweepInterval time.Duration
	sweepRate     float64
	cacheSize     int
	idLength      int
	logLevel      slog.Level
	logFormat     string
}

// parseConfig reads flags from args. Every flag defaults to the matching
// SNIPBIN_* variable from lookup when it is set.
func parseConfig(args []string, lookup func(string) (string, bool), output io.Writer) (config, error) {
	var (
		cfg      config
		level    string
		envErrs  []error
		fs       = flag.NewFlagSet("snipbin", flag.ContinueOnError)
		envValue = func(name, fallback string) string {
			if v, ok := lookup(envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))); ok {
				return v
			}
			return fallback
		}
	)
	fs.SetOutput(output)

	str := func(p *string, name, fallback, usage string) {
		fs.StringVar(p, name, envValue(name, fallback), usage)
	}
	num := func(p *int, name string, fallback int, usage string) {
		v, err := strconv.Atoi(envValue(name, strconv.Itoa(fallback)))
		if err != nil {
			envErrs = append(envErrs, fmt.Errorf("%s%s: %w", envPrefix, strings.ToUpper(strings.ReplaceAll(name, "-", "_")), err))
			v = fallback
		}
		fs.IntVar(p, name, v, usage)
	}

	str(&cfg.addr, "addr", ":8080", "listen address")
	str(&cfg.store, "store", "bolt", "storage backend: bolt, sqlite, redis or memory")
	str(&cfg.dataPath, "data", "./snipbin.db", "path to data file for bolt and sqlite")
	str(&cfg.redisURL, "redis-url", "redis://localhost:6379/0", "redis connection url")
	str(&cfg.redisPrefix, "redis-prefix", "snipbin:", "key namespace for the redis store")
	str(&cfg.baseURL, "base-url", "", "canonical base URL (optional)")
	num(&cfg.maxBytes, "max-bytes", 1_048_576, "maximum paste size in bytes")
	num(&cfg.cacheSize, "cache-size", 1024, "number of pastes kept in the read cache, 0 disables it")
	num(&cfg.idLength, "id-length", 8, "identifier length")
	str(&cfg.logFormat, "log-format", "text", "log format: text or json")
	str(&level, "log-level", "info", "log level: debug, info, warn or error")

	proxy, err := strconv.ParseBool(envValue("behind-proxy", "false"))
	if err != nil {
		envErrs = append(envErrs, fmt.Errorf("%sBEHIND_PROXY: %w", envPrefix, err))
	}
	fs.BoolVar(&cfg.behindProxy, "behind-proxy", proxy, "trust proxy headers for client address and scheme")

	interval, err := time.ParseDuration(envValue("sweep-interval", sweeper.DefaultInterval.String()))
	if err != nil {
		envErrs = append(envErrs, fmt.Errorf("%sSWEEP_INTERVAL: %w", envPrefix, err))
		interval = sweeper.DefaultInterval
	}
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", interval, "time between expiry sweeps")

	sweepRate, err := strconv.ParseFloat(envValue("sweep-rate", "200"), 64)
	if err != nil {
		envErrs = append(envErrs, fmt.Errorf("%sSWEEP_RATE: %w", envPrefix, err))
		sweepRate = 200
	}
	fs.Float64Var(&cfg.sweepRate, "sweep-rate", sweepRate, "maximum deletions per second during a sweep, 0 for unlimited")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if len(envErrs) > 0 {
		return config{}, errors.Join(envErrs...)
	}

	if err := cfg.logLevel.UnmarshalText([]byte(level)); err != nil {
		return config{}, fmt.Errorf("log-level: %w", err)
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.store {
	case "bolt", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown store %q", c.store)
	}
	if (c.store == "bolt" || c.store == "sqlite") && c.dataPath == "" {
		return errors.New("data path required")
	}
	if c.maxBytes <= 0 {
		return errors.New("max-bytes must be positive")
	}
	if c.sweepInterval <= 0 {
		return errors.New("sweep-interval must be positive")
	}
	if c.sweepRate < 0 {
		return errors.New("sweep-rate must not be negative")
	}
	if c.cacheSize < 0 {
		return errors.New("cache-size must not be negative")
	}
	if c.idLength < 4 || c.idLength > 64 {
		return errors.New("id-length must be between 4 and 64")
	}
	if c.logFormat != "text" && c.logFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.logFormat)
	}
	return nil
}

func newLogger(cfg config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.logLevel}
	if cfg.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
