package workers

import (
	"context"
	"log/slog"
	"time"

	"tink/contract"
)

// SessionJanitor periodically asks the sweeper to evict ended sessions past
// their retention and to abandon sessions that were never started.
type SessionJanitor struct {
	log      *slog.Logger
	sweeper  contract.SessionSweeper
	interval time.Duration
	now      func() time.Time
}

func NewSessionJanitor(log *slog.Logger, sweeper contract.SessionSweeper, interval time.Duration, now func() time.Time) *SessionJanitor {
	if now == nil {
		now = time.Now
	}
	return &SessionJanitor{log: log, sweeper: sweeper, interval: interval, now: now}
}

func (w *SessionJanitor) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Info("Session janitor disabled")
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if evicted := w.sweeper.Sweep(w.now()); evicted > 0 {
				w.log.Info("Sessions evicted from memory", "count", evicted)
			}
		}
	}
}
