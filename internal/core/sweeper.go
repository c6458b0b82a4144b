package core

// sweeper.go drops abandoned form sessions in the background.
//
// Drafts are never persisted, so a visitor who closes the tab leaves a
// session behind. The sweeper runs once at start and then on every tick
// until its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper blocks, sweeping idle sessions every interval, until ctx is
// cancelled. Run it in its own goroutine.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	slog.Info("form sweeper started", "interval", interval, "session_ttl", s.ttl)

	s.runSweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("form sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

func (s *Service) runSweep() {
	start := time.Now()
	removed := s.Sweep()
	if removed > 0 {
		slog.Info("swept idle form sessions",
			"removed", removed,
			"active", s.ActiveCount(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	slog.Debug("form sweep found nothing to remove", "active", s.ActiveCount())
}
