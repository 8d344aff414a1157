package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tink/contract"
	"tink/domain/event"
	"tink/mocks"
)

func TestEventFanout_Fanout_Permanent_And_Session_Sinks(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	permanent := mocks.NewMockEventSink(ctrl)
	subscriber := mocks.NewMockEventSink(ctrl)

	worker := NewEventFanout(log, nil, []contract.EventSink{permanent}, mockRegistry, time.Second)
	evt := event.FloorQueued{Base: event.Base{Session: "s1"}, ParticipantID: "p1", Position: 1}

	// Given one subscriber on the session
	mockRegistry.EXPECT().GetSinksForSession("s1").Return([]contract.EventSink{subscriber}).Times(1)

	// Then the permanent sink is served before the subscriber
	gomock.InOrder(
		permanent.EXPECT().Consume(gomock.Any(), evt).Return(nil),
		subscriber.EXPECT().Consume(gomock.Any(), evt).Return(nil),
	)

	// When the event is handled
	worker.Fanout(context.Background(), evt)
	req.True(ctrl.Satisfied())
}

func TestEventFanout_SinkTimeout_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	slow := mocks.NewMockEventSink(ctrl)
	fast := mocks.NewMockEventSink(ctrl)

	worker := NewEventFanout(log, nil, []contract.EventSink{slow, fast}, mockRegistry, 20*time.Millisecond)
	mockRegistry.EXPECT().GetSinksForSession(gomock.Any()).Return(nil)

	// Given a sink waiting for its deadline
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		})
	fast.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil)

	start := time.Now()
	worker.Fanout(context.Background(), event.FloorQueued{Base: event.Base{Session: "s1"}})

	// Then the slow sink is cut at its timeout and the next one still runs
	req.Less(time.Since(start), 500*time.Millisecond)
}

func TestEventFanout_Run_Drains_Channel_Until_Cancelled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctrl := gomock.NewController(t)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockEventSink(ctrl)

	events := make(chan event.DomainEvent, 3)
	worker := NewEventFanout(log, events, []contract.EventSink{sink}, mockRegistry, time.Second)

	received := make(chan string, 3)
	mockRegistry.EXPECT().GetSinksForSession(gomock.Any()).Return(nil).Times(3)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e event.DomainEvent) error {
			received <- e.(event.FloorQueued).ParticipantID
			return nil
		}).Times(3)

	for _, id := range []string{"a", "b", "c"} {
		events <- event.FloorQueued{Base: event.Base{Session: "s1"}, ParticipantID: id}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- worker.Run(ctx) }()

	var order []string
	for i := 0; i < 3; i++ {
		select {
		case id := <-received:
			order = append(order, id)
		case <-time.After(time.Second):
			req.FailNow("event not delivered")
		}
	}
	cancel()
	req.NoError(<-done)
	req.Equal([]string{"a", "b", "c"}, order)
}
