package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tink/auth"
	"tink/clock"
	"tink/domain"
	"tink/errors"
	"tink/mocks"
	"tink/runtime"
	"tink/runtime/workers"
	"tink/search"
)

var testStart = time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC)

type fakeIndex struct {
	queries []search.Query
	hits    []search.Hit
}

func (f *fakeIndex) Index(domain.Session) error { return nil }
func (f *fakeIndex) Delete(string) error        { return nil }
func (f *fakeIndex) Search(_ context.Context, q search.Query) ([]search.Hit, error) {
	f.queries = append(f.queries, q)
	return f.hits, nil
}

type fixture struct {
	svc          *FacilitationService
	orchestrator *runtime.Orchestrator
	clock        *clock.Fake
	sessions     *mocks.MockISessionRepository
	messages     *mocks.MockIMessageRepository
	summaries    *mocks.MockISummaryRepository
	index        *fakeIndex
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	clk := clock.NewFake(testStart)
	opts := runtime.SessionOptions{
		Clock:           clk,
		ManualCountdown: true,
		ActionPoints:    []string{"Prototype the cap"},
	}
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 0), runtime.NewRegistry(),
		opts, 1024, time.Second, runtime.RetentionPolicy{})
	f := fixture{
		orchestrator: orchestrator,
		clock:        clk,
		sessions:     mocks.NewMockISessionRepository(ctrl),
		messages:     mocks.NewMockIMessageRepository(ctrl),
		summaries:    mocks.NewMockISummaryRepository(ctrl),
		index:        &fakeIndex{},
	}
	tokens := auth.NewTokenIssuer("service-test-secret", time.Hour, clk.Now)
	f.svc = NewFacilitationService(log, orchestrator, tokens, f.sessions, f.messages, f.summaries, f.index, 0)
	return f
}

func (f fixture) create(t *testing.T) SessionCredentials {
	t.Helper()
	creds, err := f.svc.CreateSession(context.Background(), auth.SessionRequest{
		Title:       "Water bottle",
		Description: "Should we ship the new bottle?",
	})
	require.NoError(t, err)
	return creds
}

func (f fixture) join(t *testing.T, sessionID, name string) ParticipantCredentials {
	t.Helper()
	creds, err := f.svc.Join(context.Background(), sessionID, name)
	require.NoError(t, err)
	return creds
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults the duration to 20 minutes", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		creds := f.create(t)

		req.NotEmpty(creds.Token)
		req.Equal(domain.FacilitatorID, creds.FacilitatorID)
		state, err := f.svc.GetSessionState(ctx, creds.Token, creds.SessionID)
		req.NoError(err)
		req.Equal(domain.SessionStateInactive, state.State)
		req.Equal(20, state.DurationMinutes)
		req.Nil(state.RemainingSeconds)
	})

	t.Run("Rejects an explicit non-positive duration", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateSession(ctx, auth.SessionRequest{Title: "Water bottle", DurationMinutes: lo.ToPtr(-3)})
		require.ErrorIs(t, err, errors.ErrInvalidDuration)
	})

	t.Run("Rejects a blank title", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateSession(ctx, auth.SessionRequest{Title: "  "})
		require.ErrorIs(t, err, errors.ErrEmptyTitle)
	})
}

func TestAuthorization(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	session := f.create(t)
	other := f.create(t)
	ada := f.join(t, session.SessionID, "Ada")

	// A participant token cannot drive the session
	req.ErrorIs(f.svc.Start(ctx, ada.Token, session.SessionID), errors.ErrForbidden)
	// A facilitator token of another session is useless here
	req.ErrorIs(f.svc.Start(ctx, other.Token, session.SessionID), errors.ErrForbidden)
	// Garbage is rejected outright
	req.ErrorIs(f.svc.Start(ctx, "garbage", session.SessionID), errors.ErrUnauthorized)
	// The facilitator cannot take the floor through participant commands
	req.ErrorIs(f.svc.RequestFloor(ctx, session.Token, session.SessionID), errors.ErrForbidden)

	// Unknown sessions are reported once the token checks out
	_, err := f.svc.Join(ctx, uuid.NewString(), "Bob")
	req.ErrorIs(err, errors.ErrSessionNotFound)

	req.NoError(f.svc.Start(ctx, session.Token, session.SessionID))
}

func TestFacilitationFlow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	session := f.create(t)

	// Given two people in the waiting room
	ada := f.join(t, session.SessionID, "Ada")
	bob := f.join(t, session.SessionID, "Bob")
	req.False(ada.Admitted)
	waiting, err := f.svc.ListWaitingRoom(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Len(waiting, 2)

	// When the facilitator starts the session
	req.NoError(f.svc.Start(ctx, session.Token, session.SessionID))

	// Then everybody is admitted and the countdown is set
	participants, err := f.svc.ListParticipants(ctx, bob.Token, session.SessionID)
	req.NoError(err)
	req.Len(participants, 2)
	state, err := f.svc.GetSessionState(ctx, ada.Token, session.SessionID)
	req.NoError(err)
	req.Equal(domain.SessionStateActive, state.State)
	req.Equal(20*60, *state.RemainingSeconds)

	// When Ada takes the floor
	req.NoError(f.svc.RequestFloor(ctx, ada.Token, session.SessionID))

	// Then Bob is refused and may queue instead
	req.ErrorIs(f.svc.RequestFloor(ctx, bob.Token, session.SessionID), errors.ErrFloorBusy)
	position, err := f.svc.QueueForFloor(ctx, bob.Token, session.SessionID)
	req.NoError(err)
	req.Equal(1, position)
	floor, err := f.svc.Floor(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Equal(ada.ParticipantID, floor.HolderID)
	req.Equal([]string{bob.ParticipantID}, floor.Queue)

	// When the facilitator revokes Ada and grants Bob
	req.NoError(f.svc.RevokeFloor(ctx, session.Token, session.SessionID, ada.ParticipantID))
	req.NoError(f.svc.GrantFloor(ctx, session.Token, session.SessionID, bob.ParticipantID))
	floor, err = f.svc.Floor(ctx, ada.Token, session.SessionID)
	req.NoError(err)
	req.Equal(bob.ParticipantID, floor.HolderID)
	req.Equal(testStart.Add(runtime.DefaultFacilitatorBudget), floor.Deadline)

	// Roles: the reserved hat is refused, others stick
	req.ErrorIs(f.svc.AssignRole(ctx, session.Token, session.SessionID, ada.ParticipantID, domain.RoleProcess), errors.ErrReservedRole)
	req.NoError(f.svc.AssignRole(ctx, session.Token, session.SessionID, ada.ParticipantID, domain.RoleCaution))
	req.NoError(f.svc.AssignGlobalRole(ctx, session.Token, session.SessionID, domain.RoleBenefits))
	req.NoError(f.svc.ClearGlobalRole(ctx, session.Token, session.SessionID))
	req.NoError(f.svc.Reshuffle(ctx, session.Token, session.SessionID))
	participants, err = f.svc.ListParticipants(ctx, session.Token, session.SessionID)
	req.NoError(err)
	for _, p := range participants {
		req.True(p.Role.IsValid())
		req.False(p.Role.IsReserved())
	}

	// Pause keeps the duration, resume works, SetDuration resets the clock
	req.NoError(f.svc.Pause(ctx, session.Token, session.SessionID))
	req.ErrorIs(f.svc.Pause(ctx, session.Token, session.SessionID), errors.ErrInvalidTransition)
	req.NoError(f.svc.Resume(ctx, session.Token, session.SessionID))
	req.NoError(f.svc.SetDuration(ctx, session.Token, session.SessionID, 5))
	state, err = f.svc.GetSessionState(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Equal(300, *state.RemainingSeconds)

	// Bob leaves
	req.NoError(f.svc.Leave(ctx, bob.Token, session.SessionID))
	participants, err = f.svc.ListParticipants(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Len(participants, 1)
}

func TestMessagesAndSummary(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	session := f.create(t)
	ada := f.join(t, session.SessionID, "Ada")
	req.NoError(f.svc.Start(ctx, session.Token, session.SessionID))
	req.NoError(f.svc.AssignRole(ctx, session.Token, session.SessionID, ada.ParticipantID, domain.RoleCaution))

	// Given no summary before the end
	_, err := f.svc.GetSummary(ctx, ada.Token, session.SessionID)
	req.ErrorIs(err, errors.ErrSummaryUnavailable)

	// When messages are posted
	msg, err := f.svc.SendMessage(ctx, ada.Token, session.SessionID, "The lid leaks", domain.RoleNone)
	req.NoError(err)
	req.Equal(domain.RoleCaution, msg.Role)
	req.Equal("Ada", msg.Sender)
	_, err = f.svc.SendMessage(ctx, ada.Token, session.SessionID, "Agenda", domain.RoleProcess)
	req.ErrorIs(err, errors.ErrReservedRole)
	_, err = f.svc.SendFacilitatorMessage(ctx, session.Token, session.SessionID, "Let us keep to ten minutes", domain.RoleNone)
	req.NoError(err)
	_, err = f.svc.SendMessage(ctx, ada.Token, session.SessionID, "   ", domain.RoleNone)
	req.ErrorIs(err, errors.ErrEmptyMessage)

	messages, err := f.svc.ListMessages(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Len(messages, 2)

	// And the session ends
	req.NoError(f.svc.End(ctx, session.Token, session.SessionID))

	// Then the summary groups points by hat
	summary, err := f.svc.GetSummary(ctx, ada.Token, session.SessionID)
	req.NoError(err)
	req.Equal([]string{"The lid leaks"}, summary.PointsFor(domain.RoleCaution))
	req.Equal([]string{"Let us keep to ten minutes"}, summary.PointsFor(domain.RoleProcess))
	req.Equal([]string{"Prototype the cap"}, summary.ActionPoints)

	name, markdown, err := f.svc.ExportSummary(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Equal("water-bottle-summary.md", name)
	req.Contains(markdown, "# Water bottle - Session Summary")
	req.Contains(markdown, "Participants: 1")
	req.Contains(markdown, "## Black Hat Key Points\n\n- The lid leaks")
	req.Contains(markdown, "## Action Points\n\n- Prototype the cap")

	// No more messages once ended
	_, err = f.svc.SendMessage(ctx, ada.Token, session.SessionID, "Too late", domain.RoleNone)
	req.ErrorIs(err, errors.ErrInvalidTransition)
}

func TestQueriesFallBackToStorageAfterEviction(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	session := f.create(t)
	f.orchestrator.Evict(session.SessionID)

	record := domain.Session{ID: session.SessionID, Title: "Water bottle", State: domain.SessionStateEnded, DurationMinutes: 20, CreatedAt: testStart}
	summary := domain.Summary{
		SessionID:   session.SessionID,
		Points:      map[domain.Role][]string{domain.RoleFacts: {"It holds 1L"}},
		GeneratedAt: testStart,
	}
	stored := []domain.Message{
		{ID: uuid.New(), SessionID: session.SessionID, SenderID: "p1", Text: "It holds 1L", Role: domain.RoleFacts},
		{ID: uuid.New(), SessionID: session.SessionID, SenderID: "p2", Text: "It holds 1L", Role: domain.RoleFacts},
		{ID: uuid.New(), SessionID: session.SessionID, SenderID: "p1", Text: "Again", Role: domain.RoleFacts},
		{ID: uuid.New(), SessionID: session.SessionID, SenderID: domain.FacilitatorID, Text: "Wrap up", Role: domain.RoleProcess},
	}
	f.sessions.EXPECT().GetSession(session.SessionID).Return(record, nil).Times(2)
	f.summaries.EXPECT().GetSummary(session.SessionID).Return(summary, nil).Times(2)
	f.messages.EXPECT().GetAllMessages(session.SessionID).Return(stored, nil).Times(2)

	state, err := f.svc.GetSessionState(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Equal(record, state)

	got, err := f.svc.GetSummary(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Equal(summary, got)

	messages, err := f.svc.ListMessages(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Len(messages, 4)

	_, markdown, err := f.svc.ExportSummary(ctx, session.Token, session.SessionID)
	req.NoError(err)
	req.Contains(markdown, "Participants: 2")
	req.Contains(markdown, "## White Hat Key Points\n\n- It holds 1L")

	// Live-only queries report the session as gone
	_, err = f.svc.ListParticipants(ctx, session.Token, session.SessionID)
	req.ErrorIs(err, errors.ErrSessionNotFound)
}

func TestMessageHistory(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	session := f.create(t)
	cursor := "msg:cursor"
	page := []domain.Message{{ID: uuid.New(), SessionID: session.SessionID, Text: "Newest"}}
	f.messages.EXPECT().GetMessages(session.SessionID, nil).Return(page, &cursor, nil)

	got, next, err := f.svc.MessageHistory(context.Background(), session.Token, session.SessionID, nil)
	req.NoError(err)
	req.Equal(page, got)
	req.Equal(&cursor, next)
}

func TestSearchSessions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.index.hits = []search.Hit{{SessionID: "s1", Title: "Water bottle"}}

	hits, err := f.svc.SearchSessions(context.Background(), "bottle --state ended --limit 5")
	req.NoError(err)
	req.Equal(f.index.hits, hits)
	req.Len(f.index.queries, 1)
	req.Equal("ended", f.index.queries[0].State)
	req.Equal(5, f.index.queries[0].Limit)
}
