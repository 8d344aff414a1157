package runtime

import (
	"sync"

	"tink/contract"
)

// Registry maps every live session to the sinks of its connected subscribers
// (the facilitator console and participant views).
type Registry struct {
	mu      sync.RWMutex
	members map[string]map[string]contract.EventSink // session -> subscriber -> sink
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]map[string]contract.EventSink),
	}
}

// GetSinksForSession returns the sinks subscribed to a session,
// nil if nobody listens.
func (r *Registry) GetSinksForSession(sessionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[sessionID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for _, sink := range members {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Subscribe registers a subscriber connection on a session, replacing any
// previous sink of the same subscriber.
func (r *Registry) Subscribe(subscriberID string, sessionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[sessionID]; !ok {
		r.members[sessionID] = make(map[string]contract.EventSink)
	}
	r.members[sessionID][subscriberID] = sink
}

// Unsubscribe removes a subscriber and drops the session entry once empty.
func (r *Registry) Unsubscribe(subscriberID string, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.members[sessionID]; ok {
		delete(members, subscriberID)
		if len(members) == 0 {
			delete(r.members, sessionID)
		}
	}
}

func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, sessionID)
}
