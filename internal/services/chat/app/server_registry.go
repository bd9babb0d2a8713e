package server

import "sync"

// memberSink is one live connection's push capability, used for fan-out.
type memberSink interface {
	push(msg outboundMessage) error
}

// roomRegistry maps room identifiers to the set of currently connected
// member sinks. It is the only state shared across connection goroutines;
// a single mutex over the whole map is sufficient at the expected scale.
//
// Membership is volatile: it lives and dies with the process.
type roomRegistry struct {
	mu    sync.Mutex
	rooms map[string]map[memberSink]struct{}
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{rooms: make(map[string]map[memberSink]struct{})}
}

// join adds the sink to the room's member set. Joining twice is a no-op.
func (r *roomRegistry) join(roomID string, sink memberSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[memberSink]struct{})
		r.rooms[roomID] = members
	}
	members[sink] = struct{}{}
}

// leave removes the sink from the room's member set. Leaving a room the sink
// never joined is a no-op. Empty rooms are pruned.
func (r *roomRegistry) leave(roomID string, sink memberSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, sink)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// membersOf returns a snapshot of the room's member sinks. The snapshot is a
// copy, so concurrent join/leave during an in-flight broadcast never exposes
// a partially mutated set.
func (r *roomRegistry) membersOf(roomID string) []memberSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	snapshot := make([]memberSink, 0, len(members))
	for member := range members {
		snapshot = append(snapshot, member)
	}
	return snapshot
}
