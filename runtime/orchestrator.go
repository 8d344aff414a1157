// Package runtime hosts live sessions: it owns the session aggregates, routes
// the events they emit to sinks and subscribers, and evicts finished sessions.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"tink/contract"
	"tink/domain"
	"tink/domain/event"
	"tink/errors"
	"tink/runtime/workers"
)

// RetentionPolicy tells the janitor when sessions leave memory.
// A zero duration disables the matching rule.
type RetentionPolicy struct {
	JanitorInterval time.Duration
	EndedRetention  time.Duration
	AbandonedTTL    time.Duration
}

type Orchestrator struct {
	mu             sync.RWMutex
	log            *slog.Logger
	opts           SessionOptions
	sessions       map[string]*Session
	permanentSinks []contract.EventSink
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	events         chan event.DomainEvent
	sinkTimeout    time.Duration
	retention      RetentionPolicy
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry contract.IRegistry,
	opts SessionOptions, bufferSize int, sinkTimeout time.Duration, retention RetentionPolicy) *Orchestrator {
	return &Orchestrator{
		log:         log,
		opts:        opts.withDefaults(),
		sessions:    make(map[string]*Session),
		supervisor:  supervisor,
		registry:    registry,
		events:      make(chan event.DomainEvent, bufferSize),
		sinkTimeout: sinkTimeout,
		retention:   retention,
	}
}

// CreateSession builds a new Inactive session hosted by the orchestrator.
func (o *Orchestrator) CreateSession(input domain.CreateSessionInput) (*Session, error) {
	s, err := NewSession(o.log, input, o.opts, o)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.sessions[s.ID()] = s
	o.mu.Unlock()
	return s, nil
}

func (o *Orchestrator) Session(id string) (*Session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	return s, nil
}

// Sessions returns the live sessions, most recently created first.
func (o *Orchestrator) Sessions() []*Session {
	o.mu.RLock()
	all := lo.Values(o.sessions)
	o.mu.RUnlock()

	created := lo.SliceToMap(all, func(s *Session) (string, time.Time) { return s.ID(), s.Snapshot().CreatedAt })
	sort.SliceStable(all, func(i, j int) bool {
		return created[all[i].ID()].After(created[all[j].ID()])
	})
	return all
}

// Evict drops a session from memory along with its subscribers.
func (o *Orchestrator) Evict(id string) {
	o.mu.Lock()
	delete(o.sessions, id)
	o.mu.Unlock()
	o.registry.DropSession(id)
}

// Sweep evicts ended sessions past their retention and abandons, then
// evicts, sessions left Inactive past the abandon TTL.
func (o *Orchestrator) Sweep(now time.Time) int {
	evicted := 0
	for _, s := range o.Sessions() {
		snap := s.Snapshot()
		switch snap.State {
		case domain.SessionStateEnded:
			if o.retention.EndedRetention > 0 && snap.EndedAt != nil &&
				now.Sub(*snap.EndedAt) >= o.retention.EndedRetention {
				o.Evict(snap.ID)
				evicted++
			}
		case domain.SessionStateInactive:
			if o.retention.AbandonedTTL > 0 && now.Sub(snap.CreatedAt) >= o.retention.AbandonedTTL {
				if err := s.Abandon(); err != nil {
					o.log.Debug("Session started meanwhile, keeping it", "session_id", snap.ID)
					continue
				}
				o.Evict(snap.ID)
				evicted++
			}
		}
	}
	return evicted
}

// Add registers sinks receiving every event of every session.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Publish queues events for the fanout worker without blocking; events are
// dropped with a warning when the buffer is full.
func (o *Orchestrator) Publish(events ...event.DomainEvent) {
	for _, evt := range events {
		select {
		case o.events <- evt:
		default:
			o.log.Warn("Event channel full, dropping event",
				"session_id", evt.SessionID(),
				"event", event.Name(evt))
		}
	}
}

func (o *Orchestrator) RegisterParticipant(subscriberID, sessionID string, sink contract.EventSink) {
	o.registry.Subscribe(subscriberID, sessionID, sink)
}

func (o *Orchestrator) UnregisterParticipant(subscriberID, sessionID string) {
	o.registry.Unsubscribe(subscriberID, sessionID)
}

// Start registers the fanout and janitor workers and runs the supervisor.
// It blocks until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	sinks := append([]contract.EventSink(nil), o.permanentSinks...)
	o.supervisor.Add(
		workers.NewEventFanout(o.log, o.events, sinks, o.registry, o.sinkTimeout),
		workers.NewSessionJanitor(o.log, o, o.retention.JanitorInterval, o.opts.Clock.Now),
	)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "sinks", len(sinks))
	o.supervisor.Run(ctx)
	return nil
}

// Channels exposes the buffered channels worth sampling for saturation.
func (o *Orchestrator) Channels() []workers.NamedChannel {
	return []workers.NamedChannel{{Name: "events", Channel: o.events}}
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
