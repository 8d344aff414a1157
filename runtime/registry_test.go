package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tink/contract"
	"tink/domain/event"
)

type namedSink struct {
	name string
}

func (s namedSink) Consume(_ context.Context, _ event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Session_Multiple_Subscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	alice, facilitator := namedSink{"alice"}, namedSink{"facilitator"}

	// Given nobody is subscribed
	req.Nil(registry.GetSinksForSession(sessionID))

	// When a participant and the facilitator subscribe
	registry.Subscribe("alice", sessionID, alice)
	registry.Subscribe("facilitator", sessionID, facilitator)

	// Then both sinks are returned
	req.ElementsMatch([]namedSink{alice, facilitator}, toNamed(registry.GetSinksForSession(sessionID)))
}

func TestRegistry_Same_Subscriber_Id_In_Two_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first, second := namedSink{"first"}, namedSink{"second"}

	registry.Subscribe("facilitator", "s1", first)
	registry.Subscribe("facilitator", "s2", second)

	req.Equal([]namedSink{first}, toNamed(registry.GetSinksForSession("s1")))
	req.Equal([]namedSink{second}, toNamed(registry.GetSinksForSession("s2")))
}

func TestRegistry_Unsubscribe_Removes_Empty_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Subscribe("alice", "s1", namedSink{"alice"})
	registry.Subscribe("bob", "s1", namedSink{"bob"})

	registry.Unsubscribe("alice", "s1")
	req.Equal([]namedSink{{"bob"}}, toNamed(registry.GetSinksForSession("s1")))

	registry.Unsubscribe("bob", "s1")
	req.Nil(registry.GetSinksForSession("s1"))
	req.NotContains(registry.members, "s1")
}

func TestRegistry_DropSession(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Subscribe("alice", "s1", namedSink{"alice"})
	registry.Subscribe("alice", "s2", namedSink{"alice"})

	registry.DropSession("s1")

	req.Nil(registry.GetSinksForSession("s1"))
	req.Len(registry.GetSinksForSession("s2"), 1)
}

func toNamed(sinks []contract.EventSink) []namedSink {
	out := make([]namedSink, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, s.(namedSink))
	}
	return out
}
