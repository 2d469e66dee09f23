package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops state that expired before now and reports how much it dropped.
type Sweeper interface {
	Sweep(now time.Time) int
}

// StartJanitor calls s.Sweep every interval until ctx is cancelled. The
// returned channel is closed once the loop has exited.
func StartJanitor(ctx context.Context, s Sweeper, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("🧹 Janitor started", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := s.Sweep(now); n > 0 {
					logger.Info("Expired payment requests removed", "count", n)
				}
			}
		}
	}()
	return done
}
