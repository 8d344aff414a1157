//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"tink/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// EventPublisher receives the events a session emits, in emission order.
// Publish must not block for long: it is called while the session lock is held.
type EventPublisher interface {
	Publish(events ...event.DomainEvent)
}

type IRegistry interface {
	GetSinksForSession(sessionID string) []EventSink
	Subscribe(subscriberID string, sessionID string, sink EventSink)
	Unsubscribe(subscriberID string, sessionID string)
	DropSession(sessionID string)
}

// SessionSweeper evicts finished or abandoned sessions from memory.
type SessionSweeper interface {
	Sweep(now time.Time) int
}

// CapacityObserver receives periodic samples of a buffered channel fill level.
type CapacityObserver interface {
	ObserveCapacity(name string, length, capacity int)
}
