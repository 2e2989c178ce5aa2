package paste

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"snipbin/internal/id"
	"snipbin/internal/lang"
	"snipbin/internal/metrics"
	"snipbin/internal/storage"
)

const defaultMaxAttempts = 5

var (
	// ErrIdentifiersExhausted is returned when every generated identifier
	// collided. It wraps storage.ErrConflict.
	ErrIdentifiersExhausted = fmt.Errorf("identifier attempts exhausted: %w", storage.ErrConflict)
	// ErrInvalidExpiration is returned for unknown expiration choices.
	ErrInvalidExpiration = errors.New("invalid expiration")
)

// Draft is the user-supplied part of a paste.
type Draft struct {
	Content  string
	Language string
}

// Service implements the create and read paths over a storage.Store.
type Service struct {
	store       storage.Store
	ids         id.Source
	maxAttempts int
	cacheSize   int
	cache       *lru.Cache[string, storage.Paste]
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator sets the identifier source.
func WithGenerator(src id.Source) Option {
	return func(s *Service) { s.ids = src }
}

// WithMaxAttempts bounds identifier retries on conflict.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithCache enables an in-process LRU of up to size pastes.
func WithCache(size int) Option {
	return func(s *Service) { s.cacheSize = size }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs a Service.
func New(store storage.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store required")
	}
	s := &Service{
		store:       store,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = id.New(0)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.cacheSize > 0 {
		c, err := lru.New[string, storage.Paste](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// Create stores a new paste under a freshly generated identifier, retrying
// with a new identifier whenever the store reports a conflict.
func (s *Service) Create(ctx context.Context, d Draft, exp Expiration) (*storage.Paste, error) {
	if !exp.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExpiration, exp)
	}
	now := s.now().UTC()
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		p := &storage.Paste{
			ID:        s.ids.Generate(),
			Content:   d.Content,
			Language:  lang.Normalize(d.Language),
			CreatedAt: now,
			ExpiresAt: exp.Deadline(now),
		}
		err := s.store.Create(ctx, p)
		if err == nil {
			metrics.PasteCreated.Inc()
			s.remember(*p)
			s.logger.Debug("paste created", "id", p.ID, "expiration", string(exp), "attempt", attempt)
			return p, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("create paste: %w", err)
		}
		metrics.IDConflicts.Inc()
		s.logger.Warn("identifier collision", "id", p.ID, "attempt", attempt)
	}
	metrics.IDExhausted.Inc()
	return nil, ErrIdentifiersExhausted
}

// Get returns the paste if it is live now. Missing and expired pastes both
// yield storage.ErrNotFound.
func (s *Service) Get(ctx context.Context, pasteID string) (*storage.Paste, error) {
	now := s.now()
	if s.cache != nil {
		if p, ok := s.cache.Get(pasteID); ok {
			if p.LiveAt(now) {
				metrics.CacheHits.Inc()
				metrics.PasteReads.WithLabelValues(metrics.ReadHit).Inc()
				return &p, nil
			}
			// A stale entry may hide a newer paste created after the old one
			// was reclaimed, so fall through to the store.
			s.cache.Remove(pasteID)
		}
		metrics.CacheMisses.Inc()
	}

	p, err := s.store.Get(ctx, pasteID, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.PasteReads.WithLabelValues(metrics.ReadNotFound).Inc()
			return nil, storage.ErrNotFound
		}
		metrics.PasteReads.WithLabelValues(metrics.ReadError).Inc()
		return nil, fmt.Errorf("get paste: %w", err)
	}
	metrics.PasteReads.WithLabelValues(metrics.ReadHit).Inc()
	s.remember(*p)
	return p, nil
}

// Fork returns the content and language of a live paste as a new draft.
func (s *Service) Fork(ctx context.Context, pasteID string) (Draft, error) {
	p, err := s.Get(ctx, pasteID)
	if err != nil {
		return Draft{}, err
	}
	return Draft{Content: p.Content, Language: p.Language}, nil
}

// ListExpired delegates to the store.
func (s *Service) ListExpired(ctx context.Context, asOf time.Time) ([]string, error) {
	return s.store.ListExpired(ctx, asOf)
}

// DeleteIfExpired delegates to the store and drops any cached copy.
func (s *Service) DeleteIfExpired(ctx context.Context, pasteID string, asOf time.Time) (bool, error) {
	deleted, err := s.store.DeleteIfExpired(ctx, pasteID, asOf)
	if deleted && s.cache != nil {
		s.cache.Remove(pasteID)
	}
	return deleted, err
}

// Ping reports store health.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) remember(p storage.Paste) {
	if s.cache != nil {
		s.cache.Add(p.ID, p)
	}
}
