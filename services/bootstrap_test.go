package services_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"tink/auth"
	"tink/domain"
	"tink/internal"
	"tink/repositories"
	"tink/services"
	"tink/sink"
)

func startFacilitation(t *testing.T) (*services.Facilitation, *badger.DB) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)

	cfg := internal.Config{
		BufferSize:                256,
		SinkTimeout:               time.Second,
		RestartInterval:           10 * time.Millisecond,
		ParticipantSpeakingBudget: 60 * time.Second,
		FacilitatorSpeakingBudget: 120 * time.Second,
		SummaryMaxPoints:          6,
		MaxParticipants:           30,
		DefaultDurationMinutes:    20,
		ActionPoints:              "Prototype the cap",
		AuthSecret:                "integration-secret",
		AuthTokenDuration:         time.Hour,
		CharReplacement:           "*",
	}
	app, err := services.NewFromConfig(cfg, db, writer, log, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = app.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = writer.Close()
		_ = db.Close()
	})
	return app, db
}

func TestFacilitation_EndToEnd(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	app, db := startFacilitation(t)
	svc := app.Service

	// Given a session with one participant following its events
	session, err := svc.CreateSession(ctx, auth.SessionRequest{Title: "Water bottle", Description: "Ship it or not"})
	req.NoError(err)
	ada, err := svc.Join(ctx, session.SessionID, "Ada")
	req.NoError(err)
	timeline := sink.NewTimeline(ada.ParticipantID)
	req.NoError(svc.Subscribe(ctx, ada.Token, session.SessionID, timeline))

	// When the session runs to its end
	req.NoError(svc.Start(ctx, session.Token, session.SessionID))
	req.NoError(svc.AssignRole(ctx, session.Token, session.SessionID, ada.ParticipantID, domain.RoleCaution))
	req.NoError(svc.RequestFloor(ctx, ada.Token, session.SessionID))
	msg, err := svc.SendMessage(ctx, ada.Token, session.SessionID, "what a damn leak", domain.RoleNone)
	req.NoError(err)
	req.Equal("what a **** leak", msg.Text)
	req.NoError(svc.ReleaseFloor(ctx, ada.Token, session.SessionID))
	req.NoError(svc.End(ctx, session.Token, session.SessionID))

	// Then the subscriber saw it all
	req.Eventually(func() bool {
		_, ok := timeline.Summary()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal(domain.SessionStateEnded, timeline.State())
	req.Len(timeline.Messages(), 1)
	req.Empty(timeline.Holder())

	// And the record, the message log and the summary reached Badger
	sessions := repositories.NewSessionRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	summaries := repositories.NewSummaryRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	messages := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError), nil)
	req.Eventually(func() bool {
		record, err := sessions.GetSession(session.SessionID)
		if err != nil || record.State != domain.SessionStateEnded {
			return false
		}
		_, err = summaries.GetSummary(session.SessionID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	stored, err := messages.GetAllMessages(session.SessionID)
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal(domain.RoleCaution, stored[0].Role)

	// And the history index finds it by title and state
	req.Eventually(func() bool {
		hits, err := svc.SearchSessions(ctx, "bottle --state ended")
		return err == nil && len(hits) == 1 && hits[0].SessionID == session.SessionID
	}, 2*time.Second, 10*time.Millisecond)

	// And telemetry counted the traffic
	stats := app.Telemetry.Stats()
	req.Equal(uint64(1), stats.Events["MessagePosted"])
	req.Equal(uint64(1), stats.CensoredWords)
}

func TestFacilitation_SurvivesEviction(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	app, db := startFacilitation(t)
	svc := app.Service

	session, err := svc.CreateSession(ctx, auth.SessionRequest{Title: "Team offsite"})
	req.NoError(err)
	ada, err := svc.Join(ctx, session.SessionID, "Ada")
	req.NoError(err)
	req.NoError(svc.Start(ctx, session.Token, session.SessionID))
	_, err = svc.SendMessage(ctx, ada.Token, session.SessionID, "Lisbon in May", domain.RoleNone)
	req.NoError(err)
	req.NoError(svc.End(ctx, session.Token, session.SessionID))

	// Given everything was persisted
	summaries := repositories.NewSummaryRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	req.Eventually(func() bool {
		_, err := summaries.GetSummary(session.SessionID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// When the session leaves memory
	app.Orchestrator.Evict(session.SessionID)

	// Then queries are answered from storage
	state, err := svc.GetSessionState(ctx, ada.Token, session.SessionID)
	req.NoError(err)
	req.Equal(domain.SessionStateEnded, state.State)
	req.Equal("Team offsite", state.Title)
	name, markdown, err := svc.ExportSummary(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Equal("team-offsite-summary.md", name)
	req.Contains(markdown, "Participants: 1")
}
