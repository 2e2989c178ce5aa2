// Package sweeper reclaims pastes whose expiry has passed.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"snipbin/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Reclaimer is the part of a paste store the sweeper needs.
type Reclaimer interface {
	ListExpired(ctx context.Context, asOf time.Time) ([]string, error)
	DeleteIfExpired(ctx context.Context, id string, asOf time.Time) (bool, error)
}

// Result summarises one sweep.
type Result struct {
	Candidates int
	Deleted    int
	Duration   time.Duration
}

// Sweeper deletes stale records found through the store's expiry index.
type Sweeper struct {
	store   Reclaimer
	logger  *slog.Logger
	now     func() time.Time
	limiter *rate.Limiter
	timeout time.Duration
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithRateLimit paces deletions. A limit of rate.Inf disables pacing.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Sweeper) {
		if limit == rate.Inf || limit <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithTimeout bounds the store work of a single run. Time spent waiting on
// the rate limit is not counted against it.
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New constructs a Sweeper.
func New(store Reclaimer, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:   store,
		now:     time.Now,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// RunOnce lists every record stale at the current instant and deletes each
// one that is still stale. Failures on individual records do not stop the
// run; they are joined into the returned error.
//
// The timeout bounds store work only. When deletions are paced, the time the
// limiter needs for the listed backlog is added to the budget, so a run
// always gets through everything it listed unless ctx ends first.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	metrics.SweepRuns.Inc()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now()
	var res Result
	listCtx, cancelList := context.WithTimeout(ctx, s.timeout)
	ids, err := s.store.ListExpired(listCtx, now)
	cancelList()
	if err != nil {
		metrics.SweepFailures.Inc()
		res.Duration = time.Since(start)
		return res, fmt.Errorf("list expired: %w", err)
	}
	res.Candidates = len(ids)

	ctx, cancel := context.WithTimeout(ctx, s.timeout+s.pacing(len(ids)))
	defer cancel()

	var errs []error
	for _, id := range ids {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				errs = append(errs, fmt.Errorf("sweep interrupted: %w", err))
				break
			}
		}
		deleted, err := s.store.DeleteIfExpired(ctx, id, now)
		if err != nil {
			metrics.SweepFailures.Inc()
			s.logger.Error("sweep delete failed", "id", id, "error", err)
			errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if deleted {
			res.Deleted++
		}
	}
	metrics.SweepDeleted.Add(float64(res.Deleted))
	res.Duration = time.Since(start)

	if res.Deleted > 0 {
		s.logger.Info("sweep removed expired pastes", "count", res.Deleted, "candidates", res.Candidates, "duration", res.Duration)
	}
	return res, errors.Join(errs...)
}

// pacing returns how long the limiter takes to admit n deletions.
func (s *Sweeper) pacing(n int) time.Duration {
	if s.limiter == nil || n <= s.limiter.Burst() {
		return 0
	}
	return time.Duration(float64(n-s.limiter.Burst()) / float64(s.limiter.Limit()) * float64(time.Second))
}
