package sink

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"tink/domain"
	"tink/domain/event"
)

// TelemetryStats is a point-in-time copy of the counters.
type TelemetryStats struct {
	Events         map[string]uint64           `json:"events"`
	MessagesByRole map[domain.Role]uint64      `json:"messages_by_role"`
	EndedByReason  map[domain.EndReason]uint64 `json:"ended_by_reason"`
	CensoredWords  uint64                      `json:"censored_words"`
	FloorExpiries  uint64                      `json:"floor_expiries"`
	ActiveSessions int64                       `json:"active_sessions"`
	LastEventAt    time.Time                   `json:"last_event_at"`
	Channels       map[string]ChannelUsage     `json:"channels"`
}

type ChannelUsage struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

// TelemetrySink counts events flowing through the fanout. When given a
// positive interval it also runs as a worker logging the counters.
type TelemetrySink struct {
	log      *slog.Logger
	interval time.Duration

	mu             sync.RWMutex
	events         map[string]uint64
	messagesByRole map[domain.Role]uint64
	endedByReason  map[domain.EndReason]uint64
	channels       map[string]ChannelUsage
	lastEventAt    time.Time

	censoredWords  uint64
	floorExpiries  uint64
	activeSessions int64
}

func NewTelemetrySink(log *slog.Logger, interval time.Duration) *TelemetrySink {
	return &TelemetrySink{
		log:            log,
		interval:       interval,
		events:         make(map[string]uint64),
		messagesByRole: make(map[domain.Role]uint64),
		endedByReason:  make(map[domain.EndReason]uint64),
		channels:       make(map[string]ChannelUsage),
	}
}

func (t *TelemetrySink) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	t.events[event.Name(e)]++
	if e.OccurredAt().After(t.lastEventAt) {
		t.lastEventAt = e.OccurredAt()
	}
	switch evt := e.(type) {
	case event.MessagePosted:
		t.messagesByRole[evt.Message.Role]++
	case event.SessionEnded:
		t.endedByReason[evt.Reason]++
	}
	t.mu.Unlock()

	switch evt := e.(type) {
	case event.MessagePosted:
		atomic.AddUint64(&t.censoredWords, uint64(len(evt.CensoredWords)))
	case event.FloorReleased:
		if evt.Reason == event.ReleaseReasonExpired {
			atomic.AddUint64(&t.floorExpiries, 1)
		}
	case event.SessionStarted:
		atomic.AddInt64(&t.activeSessions, 1)
	case event.SessionEnded:
		// Sessions abandoned before starting were never counted as active.
		if evt.Reason != domain.EndReasonAbandoned {
			atomic.AddInt64(&t.activeSessions, -1)
		}
	}
	return nil
}

func (t *TelemetrySink) Stats() TelemetryStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TelemetryStats{
		Events:         maps.Clone(t.events),
		MessagesByRole: maps.Clone(t.messagesByRole),
		EndedByReason:  maps.Clone(t.endedByReason),
		CensoredWords:  atomic.LoadUint64(&t.censoredWords),
		FloorExpiries:  atomic.LoadUint64(&t.floorExpiries),
		ActiveSessions: atomic.LoadInt64(&t.activeSessions),
		LastEventAt:    t.lastEventAt,
		Channels:       maps.Clone(t.channels),
	}
}

// ObserveCapacity records the latest fill level of a buffered channel.
func (t *TelemetrySink) ObserveCapacity(name string, length, capacity int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channels[name] = ChannelUsage{Length: length, Capacity: capacity}
}

// Run logs the counters every interval until ctx is cancelled.
func (t *TelemetrySink) Run(ctx context.Context) error {
	if t.interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := t.Stats()
			t.log.Debug("Telemetry",
				"active_sessions", stats.ActiveSessions,
				"messages", stats.Events["MessagePosted"],
				"censored_words", stats.CensoredWords,
				"floor_expiries", stats.FloorExpiries,
				"channels", stats.Channels,
			)
		}
	}
}
