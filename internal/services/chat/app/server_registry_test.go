package server

import (
	"errors"
	"sync"
	"testing"
)

type stubSink struct {
	mu     sync.Mutex
	pushed []outboundMessage
	err    error
}

func (s *stubSink) push(msg outboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.pushed = append(s.pushed, msg)
	return nil
}

func (s *stubSink) received() []outboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outboundMessage(nil), s.pushed...)
}

func TestRegistryJoinIsIdempotent(t *testing.T) {
	registry := newRoomRegistry()
	sink := &stubSink{}

	registry.join("room_1", sink)
	registry.join("room_1", sink)

	if members := registry.membersOf("room_1"); len(members) != 1 {
		t.Fatalf("member count = %d, want 1", len(members))
	}
}

func TestRegistryLeaveUnknownMemberIsNoOp(t *testing.T) {
	registry := newRoomRegistry()
	member := &stubSink{}
	stranger := &stubSink{}

	registry.join("room_1", member)
	registry.leave("room_1", stranger)
	registry.leave("room_2", stranger)

	if members := registry.membersOf("room_1"); len(members) != 1 {
		t.Fatalf("member count = %d, want 1", len(members))
	}
}

func TestRegistryLeaveRemovesMember(t *testing.T) {
	registry := newRoomRegistry()
	first := &stubSink{}
	second := &stubSink{}

	registry.join("room_1", first)
	registry.join("room_1", second)
	registry.leave("room_1", first)

	members := registry.membersOf("room_1")
	if len(members) != 1 {
		t.Fatalf("member count = %d, want 1", len(members))
	}
	if members[0] != memberSink(second) {
		t.Fatal("expected remaining member to be the second sink")
	}

	registry.leave("room_1", second)
	if members := registry.membersOf("room_1"); len(members) != 0 {
		t.Fatalf("member count = %d, want 0 after all left", len(members))
	}
}

func TestRegistrySnapshotIsStableUnderMutation(t *testing.T) {
	registry := newRoomRegistry()
	member := &stubSink{}

	registry.join("room_1", member)
	snapshot := registry.membersOf("room_1")
	registry.leave("room_1", member)

	if len(snapshot) != 1 {
		t.Fatalf("snapshot length = %d, want 1", len(snapshot))
	}
}

func TestBroadcastDeliversToAllMembers(t *testing.T) {
	registry := newRoomRegistry()
	broadcaster := newRoomBroadcaster(registry)
	first := &stubSink{}
	second := &stubSink{}
	other := &stubSink{}

	registry.join("room_1", first)
	registry.join("room_1", second)
	registry.join("room_2", other)

	broadcaster.broadcast("room_1", outboundMessage{Body: "hi", Name: "Alice"})

	for i, sink := range []*stubSink{first, second} {
		got := sink.received()
		if len(got) != 1 {
			t.Fatalf("sink %d received %d messages, want 1", i, len(got))
		}
		if got[0].Body != "hi" || got[0].Name != "Alice" {
			t.Fatalf("sink %d received %+v", i, got[0])
		}
	}
	if got := other.received(); len(got) != 0 {
		t.Fatalf("other room received %d messages, want 0", len(got))
	}
}

func TestBroadcastContinuesPastFailedPush(t *testing.T) {
	registry := newRoomRegistry()
	broadcaster := newRoomBroadcaster(registry)
	broken := &stubSink{err: errors.New("socket closed")}
	healthy := &stubSink{}

	registry.join("room_1", broken)
	registry.join("room_1", healthy)

	broadcaster.broadcast("room_1", outboundMessage{Body: "hi", Name: "Alice"})

	if got := healthy.received(); len(got) != 1 {
		t.Fatalf("healthy sink received %d messages, want 1", len(got))
	}
}

func TestBroadcastToEmptyRoomIsNoOp(t *testing.T) {
	registry := newRoomRegistry()
	broadcaster := newRoomBroadcaster(registry)

	// Must not panic or error.
	broadcaster.broadcast("room_missing", outboundMessage{Body: "hi", Name: "Alice"})
}
