package room

// Broadcaster delivers one message to every player of a room, in the
// insertion order of the room's player list. Defined here to break the
// import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID RoomID, v any) error
}
