// Package event defines the facts a session emits after each accepted command.
// Rejected commands emit nothing.
package event

import (
	"reflect"
	"time"

	"tink/domain"
)

type DomainEvent interface {
	SessionID() string
	OccurredAt() time.Time
}

// Base carries the fields shared by every event.
type Base struct {
	Session string
	At      time.Time
}

func (b Base) SessionID() string     { return b.Session }
func (b Base) OccurredAt() time.Time { return b.At }

// LifecycleEvent is emitted on session state changes. It carries the
// session snapshot taken right after the transition.
type LifecycleEvent interface {
	DomainEvent
	Snapshot() domain.Session
}

type Lifecycle struct {
	Base
	Record domain.Session
}

func (l Lifecycle) Snapshot() domain.Session { return l.Record }

type SessionCreated struct{ Lifecycle }

type SessionStarted struct {
	Lifecycle
	Admitted []string
}

type SessionPaused struct{ Lifecycle }

type SessionResumed struct{ Lifecycle }

type SessionEnded struct {
	Lifecycle
	Reason domain.EndReason
}

type DurationChanged struct{ Lifecycle }

// Name returns the event type name, e.g. "FloorGranted".
func Name(e DomainEvent) string {
	t := reflect.TypeOf(e)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
