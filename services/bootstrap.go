package services

import (
	"context"
	"log/slog"
	"os"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"

	"tink/auth"
	"tink/clock"
	"tink/internal"
	"tink/moderation"
	"tink/repositories"
	"tink/runtime"
	"tink/runtime/workers"
	"tink/search"
	"tink/sink"
)

// Facilitation bundles the service with the host it drives.
type Facilitation struct {
	Service      *FacilitationService
	Orchestrator *runtime.Orchestrator
	Telemetry    *sink.TelemetrySink
}

// NewFromConfig wires storage, search, moderation and the orchestrator.
// The caller owns db and writer and closes them after Run returns.
func NewFromConfig(cfg internal.Config, db *badger.DB, writer *bluge.Writer, log *slog.Logger, clk clock.Clock) (*Facilitation, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	charReplacement, err := internal.CharacterRune(cfg.CharReplacement)
	if err != nil {
		return nil, err
	}

	censored, err := loadCensored(cfg.CensoredDir)
	if err != nil {
		return nil, err
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, log)
	if err != nil {
		return nil, err
	}
	log.Info("Moderation loaded", "languages", censored.Languages, "words", len(censored.Words))

	sessionRepository := repositories.NewSessionRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log, cfg.LimitMessages)
	summaryRepository := repositories.NewSummaryRepository(db, log)
	index := search.NewSessionIndex(writer, log)

	opts := runtime.SessionOptions{
		Clock:             clk,
		ParticipantBudget: cfg.ParticipantSpeakingBudget,
		FacilitatorBudget: cfg.FacilitatorSpeakingBudget,
		AutoPromote:       cfg.FloorAutoPromote,
		MaxParticipants:   cfg.MaxParticipants,
		SummaryMaxPoints:  cfg.SummaryMaxPoints,
		ActionPoints:      cfg.ActionPointList(),
		Moderator:         moderator,
		Languages:         moderation.NewLanguageDetector(),
	}
	retention := runtime.RetentionPolicy{
		JanitorInterval: cfg.JanitorInterval,
		EndedRetention:  cfg.EndedSessionRetention,
		AbandonedTTL:    cfg.AbandonedSessionTTL,
	}

	supervisor := workers.NewSupervisor(log, cfg.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(), opts,
		cfg.BufferSize, cfg.SinkTimeout, retention)

	telemetry := sink.NewTelemetrySink(log, cfg.MetricInterval)
	orchestrator.Add(
		sink.NewDiskSink(sessionRepository, messageRepository, summaryRepository, log),
		sink.NewIndexSink(index, log),
		telemetry,
	)
	supervisor.Add(
		telemetry,
		workers.NewChannelCapacityWorker(log, orchestrator.Channels(), telemetry, cfg.MetricInterval, cfg.LowCapacityThreshold),
	)

	tokens := auth.NewTokenIssuer(cfg.AuthSecret, cfg.AuthTokenDuration, clk.Now)
	service := NewFacilitationService(log, orchestrator, tokens,
		sessionRepository, messageRepository, summaryRepository, index, cfg.DefaultDurationMinutes)

	return &Facilitation{
		Service:      service,
		Orchestrator: orchestrator,
		Telemetry:    telemetry,
	}, nil
}

// Run starts the supervised workers and blocks until ctx is cancelled.
func (f *Facilitation) Run(ctx context.Context) error {
	return f.Orchestrator.Start(ctx)
}

func (f *Facilitation) Stop() {
	f.Orchestrator.Stop()
}

func loadCensored(dir string) (*moderation.CensoredData, error) {
	if dir == "" {
		return moderation.LoadEmbedded()
	}
	return moderation.NewCensoredLoader(os.DirFS(dir)).LoadAll(".")
}
