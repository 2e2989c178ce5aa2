package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipbin/internal/storage"
	"snipbin/internal/storage/boltstore"
	"snipbin/internal/storage/memstore"
	"snipbin/internal/storage/sqlitestore"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, env(nil), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.addr)
	assert.Equal(t, "bolt", cfg.store)
	assert.Equal(t, 1_048_576, cfg.maxBytes)
	assert.Equal(t, time.Hour, cfg.sweepInterval)
	assert.Equal(t, 8, cfg.idLength)
	assert.Equal(t, "snipbin:", cfg.redisPrefix)
	assert.Equal(t, slog.LevelInfo, cfg.logLevel)
	assert.False(t, cfg.behindProxy)
}

func TestParseConfigEnvironment(t *testing.T) {
	cfg, err := parseConfig(nil, env(map[string]string{
		"SNIPBIN_STORE":          "redis",
		"SNIPBIN_REDIS_URL":      "redis://cache:6379/2",
		"SNIPBIN_REDIS_PREFIX":   "team-a:",
		"SNIPBIN_SWEEP_INTERVAL": "15m",
		"SNIPBIN_BEHIND_PROXY":   "true",
		"SNIPBIN_CACHE_SIZE":     "0",
		"SNIPBIN_LOG_LEVEL":      "debug",
	}), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.store)
	assert.Equal(t, "redis://cache:6379/2", cfg.redisURL)
	assert.Equal(t, "team-a:", cfg.redisPrefix)
	assert.Equal(t, 15*time.Minute, cfg.sweepInterval)
	assert.True(t, cfg.behindProxy)
	assert.Zero(t, cfg.cacheSize)
	assert.Equal(t, slog.LevelDebug, cfg.logLevel)
}

func TestParseConfigFlagsOverrideEnvironment(t *testing.T) {
	cfg, err := parseConfig(
		[]string{"-store", "sqlite", "-max-bytes", "2048", "-log-format", "json"},
		env(map[string]string{"SNIPBIN_STORE": "redis", "SNIPBIN_MAX_BYTES": "10"}),
		&bytes.Buffer{},
	)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.store)
	assert.Equal(t, 2048, cfg.maxBytes)
	assert.Equal(t, "json", cfg.logFormat)
}

func TestParseConfigRejectsBadValues(t *testing.T) {
	cases := map[string]struct {
		args []string
		env  map[string]string
	}{
		"store":          {args: []string{"-store", "mongo"}},
		"max bytes":      {args: []string{"-max-bytes", "0"}},
		"id length":      {args: []string{"-id-length", "3"}},
		"log level":      {args: []string{"-log-level", "loud"}},
		"log format":     {args: []string{"-log-format", "xml"}},
		"sweep interval": {args: []string{"-sweep-interval", "0s"}},
		"env int":        {env: map[string]string{"SNIPBIN_MAX_BYTES": "lots"}},
		"env duration":   {env: map[string]string{"SNIPBIN_SWEEP_INTERVAL": "hourly"}},
		"unknown flag":   {args: []string{"-password", "x"}},
	}
	for name, tc := range cases {
		_, err := parseConfig(tc.args, env(tc.env), &bytes.Buffer{})
		assert.Error(t, err, name)
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for name, check := range map[string]func(any) bool{
		"bolt":   func(s any) bool { _, ok := s.(*boltstore.Store); return ok },
		"sqlite": func(s any) bool { _, ok := s.(*sqlitestore.Store); return ok },
		"memory": func(s any) bool { _, ok := s.(*memstore.Store); return ok },
	} {
		store, err := openStore(ctx, config{store: name, dataPath: filepath.Join(dir, name+".db")})
		require.NoError(t, err, name)
		assert.True(t, check(store), name)
		require.NoError(t, store.Ping(ctx), name)
		require.NoError(t, store.Close(), name)
	}

	_, err := openStore(ctx, config{store: "etcd"})
	assert.Error(t, err)
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(config{logFormat: "json", logLevel: slog.LevelWarn}, &buf).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(config{logFormat: "json", logLevel: slog.LevelInfo}, &buf).Info("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestOpenRedisStoreUsesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := openStore(ctx, config{store: "redis", redisURL: "redis://" + mr.Addr(), redisPrefix: "team-a:"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Create(ctx, &storage.Paste{
		ID:        "pref0001",
		Content:   "x",
		Language:  "plaintext",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))
	assert.True(t, mr.Exists("team-a:paste:pref0001"))
	assert.False(t, mr.Exists("snipbin:paste:pref0001"))
	members, err := mr.ZMembers("team-a:expiry")
	require.NoError(t, err)
	assert.Equal(t, []string{"pref0001"}, members)
}
