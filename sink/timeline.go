package sink

import (
	"context"
	"slices"
	"sync"

	"tink/domain"
	"tink/domain/event"
)

// Timeline is a subscriber-side view of one session rebuilt from its events.
// It never reads the session aggregate.
type Timeline struct {
	mu       sync.RWMutex
	owner    string
	state    domain.SessionState
	holder   string
	queue    []string
	roles    map[string]domain.Role
	names    map[string]string
	messages []domain.Message
	summary  *domain.Summary
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{
		owner: owner,
		roles: make(map[string]domain.Role),
		names: make(map[string]string),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if lc, ok := e.(event.LifecycleEvent); ok {
		t.state = lc.Snapshot().State
	}

	switch evt := e.(type) {
	case event.SessionPaused:
		t.clearFloor()
	case event.SessionEnded:
		t.clearFloor()
		clear(t.roles)
	case event.ParticipantJoined:
		t.names[evt.ParticipantID] = evt.Name
	case event.ParticipantAdmitted:
		t.names[evt.ParticipantID] = evt.Name
	case event.ParticipantLeft:
		delete(t.names, evt.ParticipantID)
		delete(t.roles, evt.ParticipantID)
	case event.RoleAssigned:
		t.roles[evt.ParticipantID] = evt.Role
	case event.RolesAssigned:
		clear(t.roles)
		for id, role := range evt.Assignments {
			if role != domain.RoleNone {
				t.roles[id] = role
			}
		}
	case event.FloorQueued:
		t.queue = append(t.queue, evt.ParticipantID)
	case event.FloorGranted:
		t.holder = evt.ParticipantID
		t.queue = slices.DeleteFunc(t.queue, func(id string) bool { return id == evt.ParticipantID })
	case event.FloorReleased:
		if t.holder == evt.ParticipantID {
			t.holder = ""
		}
		t.queue = slices.DeleteFunc(t.queue, func(id string) bool { return id == evt.ParticipantID })
	case event.MessagePosted:
		t.messages = append(t.messages, evt.Message)
	case event.SummaryGenerated:
		summary := evt.Summary
		t.summary = &summary
	}
	return nil
}

func (t *Timeline) clearFloor() {
	t.holder = ""
	t.queue = nil
}

func (t *Timeline) Owner() string { return t.owner }

func (t *Timeline) State() domain.SessionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Holder returns the participant currently holding the floor, or "".
func (t *Timeline) Holder() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.holder
}

func (t *Timeline) Queue() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.queue)
}

func (t *Timeline) Role(participantID string) domain.Role {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.roles[participantID]
}

func (t *Timeline) Name(participantID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.names[participantID]
}

func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

func (t *Timeline) Summary() (domain.Summary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.summary == nil {
		return domain.Summary{}, false
	}
	return *t.summary, true
}
