package sweeper

import (
	"context"
	"time"
)

// DefaultInterval is the time between scheduled sweeps.
const DefaultInterval = time.Hour

// Schedule runs s every interval until ctx is done. The returned channel is
// closed once the loop has exited and any in-flight run has finished.
func Schedule(ctx context.Context, s *Sweeper, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("sweeper stopped")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("sweep failed", "error", err)
				}
			}
		}
	}()
	return done
}
