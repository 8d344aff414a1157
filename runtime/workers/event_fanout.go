package workers

import (
	"context"
	"log/slog"
	"time"

	"tink/contract"
	"tink/domain/event"
)

// EventFanout delivers every session event to the permanent sinks (storage,
// search index, telemetry) and then to the subscribers of that session.
// Events are handled one at a time, so each sink sees them in emission order.
// Each delivery is bounded by sinkTimeout; a failing sink is logged and skipped.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	sinks       []contract.EventSink
	registry    contract.IRegistry
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.DomainEvent,
	sinks []contract.EventSink, registry contract.IRegistry, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      events,
		sinks:       sinks,
		registry:    registry,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed")
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout hands one event to every sink concerned.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		w.deliver(ctx, sink, evt)
	}
	for _, sink := range w.registry.GetSinksForSession(evt.SessionID()) {
		w.deliver(ctx, sink, evt)
	}
}

func (w *EventFanout) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.log.Warn("Sink failed to consume event",
			"session_id", evt.SessionID(),
			"event", event.Name(evt),
			"error", err)
	}
}
