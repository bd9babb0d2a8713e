package server

import "log"

// roomBroadcaster fans a payload out to every current member of a room.
//
// Delivery is best-effort: a failed push is logged and the remaining members
// still receive the payload. Callers needing guaranteed delivery must build
// an acknowledgment layer on top.
type roomBroadcaster struct {
	registry *roomRegistry
}

func newRoomBroadcaster(registry *roomRegistry) *roomBroadcaster {
	return &roomBroadcaster{registry: registry}
}

// broadcast pushes msg to every member in the room's current snapshot.
// Connections that join after the snapshot is taken miss this message;
// that race is expected for a best-effort real-time channel.
func (b *roomBroadcaster) broadcast(roomID string, msg outboundMessage) {
	members := b.registry.membersOf(roomID)

	failed := 0
	for _, member := range members {
		if err := member.push(msg); err != nil {
			failed++
			log.Printf("chat: push to room %q member failed: %v", roomID, err)
		}
	}
	if failed > 0 {
		log.Printf("chat: broadcast to room %q reached %d of %d members", roomID, len(members)-failed, len(members))
	}
}
