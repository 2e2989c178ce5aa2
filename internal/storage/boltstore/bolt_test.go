package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"snipbin/internal/storage"
	"snipbin/internal/storage/storagetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTemp(t)
	})
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	now := time.Now().UTC().Round(time.Second)
	paste := &storage.Paste{
		ID:        "abc123",
		Content:   "hello",
		Language:  "plaintext",
		CreatedAt: now,
		ExpiresAt: now.Add(-time.Minute),
	}
	if err := store.Create(context.Background(), paste); err != nil {
		t.Fatalf("create paste: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ids, err := store.ListExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != "abc123" {
		t.Fatalf("expected expiry index to survive reopen, got %v", ids)
	}
}

func TestListExpiredOrdersByExpiry(t *testing.T) {
	store := openTemp(t)
	now := time.Now().UTC().Round(time.Second)

	for _, p := range []*storage.Paste{
		{ID: "late", Content: "x", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)},
		{ID: "early", Content: "x", CreatedAt: now, ExpiresAt: now.Add(-time.Hour)},
		{ID: "future", Content: "x", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	} {
		if err := store.Create(context.Background(), p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	ids, err := store.ListExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 2 || ids[0] != "early" || ids[1] != "late" {
		t.Fatalf("expected [early late], got %v", ids)
	}
}

func TestCanceledContext(t *testing.T) {
	store := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Create(ctx, &storage.Paste{ID: "x", Content: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := store.Get(context.Background(), "x", time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("abandoned create must not leave a record, got %v", err)
	}
}

func TestListExpiredIncludesPreEpochExpiry(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	asOf := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

	for id, expires := range map[string]time.Time{
		"ancient1": time.Date(1969, time.July, 20, 20, 17, 0, 0, time.UTC),
		"recent01": asOf.Add(-time.Hour),
		"future01": asOf.Add(time.Hour),
	} {
		if err := store.Create(ctx, &storage.Paste{ID: id, Content: id, Language: "plaintext", CreatedAt: asOf.Add(-48 * time.Hour), ExpiresAt: expires}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	ids, err := store.ListExpired(ctx, asOf)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 2 || ids[0] != "ancient1" || ids[1] != "recent01" {
		t.Fatalf("unexpected expired ids %v", ids)
	}

	deleted, err := store.DeleteIfExpired(ctx, "ancient1", asOf)
	if err != nil || !deleted {
		t.Fatalf("delete pre-epoch paste: %v %v", deleted, err)
	}
	ids, err = store.ListExpired(ctx, asOf)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != "recent01" {
		t.Fatalf("index entry left behind: %v", ids)
	}
}
