package sink

import (
	"context"
	"log/slog"

	"tink/domain/event"
	"tink/repositories"
)

// DiskSink persists session snapshots, messages and summaries to Badger.
type DiskSink struct {
	sessions  repositories.ISessionRepository
	messages  repositories.IMessageRepository
	summaries repositories.ISummaryRepository
	log       *slog.Logger
}

func NewDiskSink(sessions repositories.ISessionRepository, messages repositories.IMessageRepository,
	summaries repositories.ISummaryRepository, log *slog.Logger) DiskSink {
	return DiskSink{sessions: sessions, messages: messages, summaries: summaries, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		return d.messages.StoreMessage(evt.Message)
	case event.SummaryGenerated:
		return d.summaries.SaveSummary(evt.Summary)
	case event.LifecycleEvent:
		return d.sessions.SaveSession(evt.Snapshot())
	default:
		return nil
	}
}
