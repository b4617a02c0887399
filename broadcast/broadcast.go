// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/matchserver/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// RoomBroadcaster delivers typed notifications to every participant of a
// room, in the insertion order of the room's player list. Per-player
// ordering is guaranteed by the connection's writer goroutine; delivery
// to a dead connection is a silent drop.
type RoomBroadcaster struct {
	roomManager *room.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{roomManager: roomManager}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID room.RoomID, v any) error {
	r, exists := b.roomManager.Get(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range r.Sessions() {
		s.Send(v)
	}
	return nil
}
