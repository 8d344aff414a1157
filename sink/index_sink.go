package sink

import (
	"context"
	"log/slog"

	"tink/domain/event"
	"tink/search"
)

// IndexSink keeps the history search index in step with session state changes.
type IndexSink struct {
	index search.ISessionIndex
	log   *slog.Logger
}

func NewIndexSink(index search.ISessionIndex, log *slog.Logger) IndexSink {
	return IndexSink{index: index, log: log}
}

func (s IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.LifecycleEvent)
	if !ok {
		return nil
	}
	snapshot := evt.Snapshot()
	s.log.Debug("Indexing session", "session_id", snapshot.ID, "state", snapshot.State)
	return s.index.Index(snapshot)
}
