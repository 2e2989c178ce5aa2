package main

import (
	"context"
	"fmt"

	"snipbin/internal/storage"
	"snipbin/internal/storage/boltstore"
	"snipbin/internal/storage/memstore"
	"snipbin/internal/storage/redisstore"
	"snipbin/internal/storage/sqlitestore"
)

func openStore(ctx context.Context, cfg config) (storage.Store, error) {
	switch cfg.store {
	case "bolt":
		return boltstore.Open(cfg.dataPath)
	case "sqlite":
		return sqlitestore.Open(cfg.dataPath)
	case "redis":
		return redisstore.Open(ctx, cfg.redisURL, redisstore.WithPrefix(cfg.redisPrefix))
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.store)
	}
}
