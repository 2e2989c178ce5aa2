package memstore

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"snipbin/internal/storage"
)

type expiryEntry struct {
	at time.Time
	id string
}

// Store is an in-process storage.Store. Pastes are kept in a map; expiring
// pastes are also kept in a slice ordered by expiry for the sweeper.
type Store struct {
	mu      sync.RWMutex
	pastes  map[string]storage.Paste
	expires []expiryEntry
}

// New returns an empty store.
func New() *Store {
	return &Store{pastes: make(map[string]storage.Paste)}
}

func (s *Store) Create(ctx context.Context, paste *storage.Paste) error {
	if paste == nil {
		return errors.New("paste is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *paste
	cp.CreatedAt = cp.CreatedAt.UTC()
	cp.ExpiresAt = cp.ExpiresAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pastes[cp.ID]; ok {
		return storage.ErrConflict
	}
	s.pastes[cp.ID] = cp
	if cp.HasExpiration() {
		i := s.position(cp.ExpiresAt, cp.ID)
		s.expires = slices.Insert(s.expires, i, expiryEntry{at: cp.ExpiresAt, id: cp.ID})
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string, asOf time.Time) (*storage.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pastes[id]
	if !ok || !p.LiveAt(asOf) {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListExpired(ctx context.Context, asOf time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, e := range s.expires {
		if e.at.After(asOf) {
			break
		}
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (s *Store) DeleteIfExpired(ctx context.Context, id string, asOf time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pastes[id]
	if !ok || !p.ExpiredAt(asOf) {
		return false, nil
	}
	delete(s.pastes, id)
	i := s.position(p.ExpiresAt, id)
	if i < len(s.expires) && s.expires[i].id == id {
		s.expires = slices.Delete(s.expires, i, i+1)
	}
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// Len reports how many records are physically present, live or stale.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pastes)
}

// position returns the index of (at, id) in the ordered expiry slice, or
// where it would be inserted. Callers hold the lock.
func (s *Store) position(at time.Time, id string) int {
	return sort.Search(len(s.expires), func(i int) bool {
		e := s.expires[i]
		if !e.at.Equal(at) {
			return e.at.After(at)
		}
		return e.id >= id
	})
}
