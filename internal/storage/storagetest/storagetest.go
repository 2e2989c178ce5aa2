// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"snipbin/internal/storage"
)

// Factory returns an empty store. The store is closed by the caller's cleanup.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2030, time.January, 2, 15, 4, 5, 0, time.UTC)

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, store storage.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"ConflictKeepsFirstRecord", testConflictKeepsFirstRecord},
		{"ConflictOnStaleRecord", testConflictOnStaleRecord},
		{"ExpiryBoundary", testExpiryBoundary},
		{"NeverExpires", testNeverExpires},
		{"ListExpired", testListExpired},
		{"DeleteIfExpiredIdempotent", testDeleteIfExpiredIdempotent},
		{"DeleteIfExpiredKeepsLive", testDeleteIfExpiredKeepsLive},
		{"SweepCompleteness", testSweepCompleteness},
		{"ConcurrentCreateSameID", testConcurrentCreateSameID},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			tt.fn(t, store)
		})
	}
}

func mustCreate(t *testing.T, store storage.Store, p *storage.Paste) {
	t.Helper()
	if err := store.Create(context.Background(), p); err != nil {
		t.Fatalf("create %s: %v", p.ID, err)
	}
}

func testCreateAndGet(t *testing.T, store storage.Store) {
	mustCreate(t, store, &storage.Paste{
		ID:        "abc123",
		Content:   "print(1)",
		Language:  "python",
		CreatedAt: base,
	})

	out, err := store.Get(context.Background(), "abc123", base)
	if err != nil {
		t.Fatalf("get paste: %v", err)
	}
	if out.Content != "print(1)" || out.Language != "python" {
		t.Fatalf("unexpected paste %+v", out)
	}
	if out.HasExpiration() {
		t.Fatalf("expected no expiry, got %v", out.ExpiresAt)
	}

	if _, err := store.Get(context.Background(), "missing", base); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testConflictKeepsFirstRecord(t *testing.T, store storage.Store) {
	mustCreate(t, store, &storage.Paste{ID: "dup", Content: "first", Language: "plaintext", CreatedAt: base})

	err := store.Create(context.Background(), &storage.Paste{ID: "dup", Content: "second", Language: "go", CreatedAt: base})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	out, err := store.Get(context.Background(), "dup", base)
	if err != nil {
		t.Fatalf("get paste: %v", err)
	}
	if out.Content != "first" || out.Language != "plaintext" {
		t.Fatalf("first record overwritten: %+v", out)
	}
}

func testConflictOnStaleRecord(t *testing.T, store storage.Store) {
	mustCreate(t, store, &storage.Paste{ID: "stale", Content: "old", CreatedAt: base, ExpiresAt: base.Add(-time.Hour)})

	err := store.Create(context.Background(), &storage.Paste{ID: "stale", Content: "new", CreatedAt: base})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for unswept stale record, got %v", err)
	}
}

func testExpiryBoundary(t *testing.T, store storage.Store) {
	expires := base.Add(1000 * time.Second)
	mustCreate(t, store, &storage.Paste{ID: "edge", Content: "x", CreatedAt: base, ExpiresAt: expires})

	out, err := store.Get(context.Background(), "edge", base.Add(999*time.Second))
	if err != nil {
		t.Fatalf("expected live paste before expiry: %v", err)
	}
	if !out.ExpiresAt.Equal(expires) {
		t.Fatalf("expiry changed: got %v want %v", out.ExpiresAt, expires)
	}
	if _, err := store.Get(context.Background(), "edge", expires); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry instant, got %v", err)
	}
	if _, err := store.Get(context.Background(), "edge", base.Add(1001*time.Second)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func testNeverExpires(t *testing.T, store storage.Store) {
	mustCreate(t, store, &storage.Paste{ID: "forever", Content: "x", CreatedAt: base})

	far := base.AddDate(100, 0, 0)
	if _, err := store.Get(context.Background(), "forever", far); err != nil {
		t.Fatalf("expected paste without expiry to stay live: %v", err)
	}
	ids, err := store.ListExpired(context.Background(), far)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no expired ids, got %v", ids)
	}
	deleted, err := store.DeleteIfExpired(context.Background(), "forever", far)
	if err != nil {
		t.Fatalf("delete if expired: %v", err)
	}
	if deleted {
		t.Fatalf("paste without expiry must never be deleted")
	}
}

func testListExpired(t *testing.T, store storage.Store) {
	mustCreate(t, store, &storage.Paste{ID: "a", Content: "a", CreatedAt: base, ExpiresAt: base.Add(-2 * time.Hour)})
	mustCreate(t, store, &storage.Paste{ID: "b", Content: "b", CreatedAt: base, ExpiresAt: base})
	mustCreate(t, store, &storage.Paste{ID: "c", Content: "c", CreatedAt: base, ExpiresAt: base.Add(time.Second)})
	mustCreate(t, store, &storage.Paste{ID: "d", Content: "d", CreatedAt: base})

	ids, err := store.ListExpired(context.Background(), base)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected [a b], got %v", ids)
	}
}

func testDeleteIfExpiredIdempotent(t *testing.T, store storage.Store) {
	mustCreate(t, store, &storage.Paste{ID: "gone", Content: "bye", CreatedAt: base, ExpiresAt: base.Add(-time.Minute)})

	deleted, err := store.DeleteIfExpired(context.Background(), "gone", base)
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.DeleteIfExpired(context.Background(), "gone", base)
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.DeleteIfExpired(context.Background(), "never-existed", base)
	if err != nil || deleted {
		t.Fatalf("missing delete: deleted=%v err=%v", deleted, err)
	}

	// The identifier is free again once reclaimed.
	mustCreate(t, store, &storage.Paste{ID: "gone", Content: "again", CreatedAt: base})
}

func testDeleteIfExpiredKeepsLive(t *testing.T, store storage.Store) {
	mustCreate(t, store, &storage.Paste{ID: "alive", Content: "ok", CreatedAt: base, ExpiresAt: base.Add(time.Hour)})

	deleted, err := store.DeleteIfExpired(context.Background(), "alive", base)
	if err != nil {
		t.Fatalf("delete if expired: %v", err)
	}
	if deleted {
		t.Fatalf("live paste deleted")
	}
	if _, err := store.Get(context.Background(), "alive", base); err != nil {
		t.Fatalf("expected live paste: %v", err)
	}
}

func testSweepCompleteness(t *testing.T, store storage.Store) {
	for i, offset := range []time.Duration{-3 * time.Hour, -time.Hour, 0, time.Hour} {
		mustCreate(t, store, &storage.Paste{
			ID:        string(rune('p' + i)),
			Content:   "x",
			CreatedAt: base,
			ExpiresAt: base.Add(offset),
		})
	}
	mustCreate(t, store, &storage.Paste{ID: "n", Content: "x", CreatedAt: base})

	ids, err := store.ListExpired(context.Background(), base)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	removed := 0
	for _, id := range ids {
		ok, err := store.DeleteIfExpired(context.Background(), id, base)
		if err != nil {
			t.Fatalf("delete %s: %v", id, err)
		}
		if ok {
			removed++
		}
	}
	if removed != 3 {
		t.Fatalf("expected 3 removals, got %d", removed)
	}

	left, err := store.ListExpired(context.Background(), base)
	if err != nil {
		t.Fatalf("list expired after sweep: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected empty list after sweep, got %v", left)
	}
	for _, id := range []string{"s", "n"} {
		if _, err := store.Get(context.Background(), id, base); err != nil {
			t.Fatalf("live paste %s removed: %v", id, err)
		}
	}
}

func testConcurrentCreateSameID(t *testing.T, store storage.Store) {
	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.Create(context.Background(), &storage.Paste{
				ID:        "race",
				Content:   string(rune('a' + n)),
				CreatedAt: base,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, storage.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, successes, conflicts)
	}
}

func testPing(t *testing.T, store storage.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
