package runtime_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tink/clock"
	"tink/contract"
	"tink/domain"
	"tink/domain/event"
	"tink/errors"
	"tink/mocks"
	"tink/runtime"
	"tink/runtime/workers"
)

type RecordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *RecordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *RecordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, event.Name(e))
	}
	return out
}

func newOrchestrator(fake *clock.Fake, retention runtime.RetentionPolicy) *runtime.Orchestrator {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	return runtime.NewOrchestrator(log,
		workers.NewSupervisor(log, 10*time.Millisecond),
		runtime.NewRegistry(),
		runtime.SessionOptions{Clock: fake, ManualCountdown: true},
		64, time.Second, retention)
}

func Test_Orchestrator_Routes_Session_Events_To_Sinks(t *testing.T) {
	req := require.New(t)
	fake := clock.NewFake(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	o := newOrchestrator(fake, runtime.RetentionPolicy{})

	permanent := &RecordingSink{}
	subscriber := &RecordingSink{}
	o.Add(permanent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = o.Start(ctx) }()

	// Given a session with a subscribed facilitator console
	s, err := o.CreateSession(domain.CreateSessionInput{Title: "Water Bottle", DurationMinutes: 10})
	req.NoError(err)
	o.RegisterParticipant(domain.FacilitatorID, s.ID(), subscriber)

	// When the discussion runs
	alice, _, err := s.Join("Alice")
	req.NoError(err)
	req.NoError(s.Start(10))
	req.NoError(s.RequestFloor(alice))
	_, err = s.SendMessage(alice, "hello", domain.RoleNone)
	req.NoError(err)

	// Then both sinks see the events in emission order
	expected := []string{
		"SessionCreated", "ParticipantJoined", "ParticipantAdmitted",
		"SessionStarted", "FloorGranted", "MessagePosted",
	}
	req.Eventually(func() bool { return len(permanent.names()) == len(expected) }, time.Second, 5*time.Millisecond)
	req.Equal(expected, permanent.names())
	// The subscriber joined after creation, so it may or may not see SessionCreated
	req.Eventually(func() bool { return len(subscriber.names()) >= 5 }, time.Second, 5*time.Millisecond)
	names := subscriber.names()
	req.Equal(expected[1:], names[len(names)-5:])

	o.Stop()
}

func Test_Orchestrator_Lookup_And_Evict(t *testing.T) {
	req := require.New(t)
	fake := clock.NewFake(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	o := newOrchestrator(fake, runtime.RetentionPolicy{})

	first, err := o.CreateSession(domain.CreateSessionInput{Title: "First", DurationMinutes: 5})
	req.NoError(err)
	fake.Advance(time.Minute)
	second, err := o.CreateSession(domain.CreateSessionInput{Title: "Second", DurationMinutes: 5})
	req.NoError(err)

	got, err := o.Session(first.ID())
	req.NoError(err)
	req.Same(first, got)
	req.Equal([]*runtime.Session{second, first}, o.Sessions())

	_, err = o.CreateSession(domain.CreateSessionInput{Title: "", DurationMinutes: 5})
	req.ErrorIs(err, errors.ErrEmptyTitle)

	o.Evict(first.ID())
	_, err = o.Session(first.ID())
	req.ErrorIs(err, errors.ErrSessionNotFound)
}

func Test_Orchestrator_Sweep(t *testing.T) {
	req := require.New(t)
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	o := newOrchestrator(fake, runtime.RetentionPolicy{
		EndedRetention: time.Hour,
		AbandonedTTL:   24 * time.Hour,
	})

	ended, err := o.CreateSession(domain.CreateSessionInput{Title: "Ended", DurationMinutes: 5})
	req.NoError(err)
	req.NoError(ended.Start(5))
	req.NoError(ended.End())

	idle, err := o.CreateSession(domain.CreateSessionInput{Title: "Idle", DurationMinutes: 5})
	req.NoError(err)

	running, err := o.CreateSession(domain.CreateSessionInput{Title: "Running", DurationMinutes: 5})
	req.NoError(err)
	req.NoError(running.Start(5))

	// Nothing is old enough yet
	req.Zero(o.Sweep(fake.Now()))

	// Ended sessions leave after their retention
	req.Equal(1, o.Sweep(start.Add(time.Hour)))
	_, err = o.Session(ended.ID())
	req.ErrorIs(err, errors.ErrSessionNotFound)

	// Never-started sessions are abandoned
	req.Equal(1, o.Sweep(start.Add(25*time.Hour)))
	req.Equal(domain.SessionStateEnded, idle.Snapshot().State)
	req.Equal(domain.EndReasonAbandoned, idle.Snapshot().EndReason)

	_, err = o.Session(running.ID())
	req.NoError(err)
}

func Test_Orchestrator_Start_Registers_Fanout_And_Janitor(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	supervisor := mocks.NewMockISupervisor(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	fake := clock.NewFake(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	o := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(),
		runtime.SessionOptions{Clock: fake, ManualCountdown: true}, 8, time.Second, runtime.RetentionPolicy{})
	ctx := context.Background()

	// Given the supervisor expects the two session workers
	var registered []string
	supervisor.EXPECT().Add(gomock.Any(), gomock.Any()).DoAndReturn(func(ws ...contract.Worker) contract.ISupervisor {
		for _, w := range ws {
			registered = append(registered, contract.GetWorkerName(w))
		}
		return supervisor
	})
	supervisor.EXPECT().Run(ctx)
	supervisor.EXPECT().Stop()

	// When the orchestrator starts and stops
	req.NoError(o.Start(ctx))
	o.Stop()

	// Then fanout and janitor were handed to the supervisor
	req.Len(registered, 2)
	req.Contains(registered[0], "EventFanout")
	req.Contains(registered[1], "SessionJanitor")
}
