// matchmaking/queue.go
package matchmaking

import (
	"sync"

	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/protocol"
	"github.com/wfunc/matchserver/room"
	"github.com/wfunc/matchserver/session"
)

// Queue is the single-slot matchmaking coordinator: at most one player
// waits at any instant, and the next arrival pairs with it. The mutex is
// the single-writer discipline for the slot.
type Queue struct {
	mutex   sync.Mutex
	waiting *session.Session
	rooms   *room.Manager
}

func NewQueue(rooms *room.Manager) *Queue {
	return &Queue{rooms: rooms}
}

// PairOrWait either parks the player in the waiting slot or starts a
// match against the current occupant. A waiting player whose connection
// died is displaced here, lazily, rather than evicted when it dies.
// Returns true when a match started.
func (q *Queue) PairOrWait(s *session.Session) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	// BeginMatch runs under this mutex, so an association seen here is
	// settled: a player already attached to a room never re-enters the
	// slot, even when its detach raced a pairing and lost.
	if s.RoomID() != "" {
		return false
	}

	if q.waiting == nil || q.waiting == s || !q.waiting.Alive() {
		q.waiting = s
		s.Send(protocol.NewWaiting())
		logger.Log.Infof("Player %s waiting for an opponent", s.ID)
		return false
	}

	opponent := q.waiting
	q.waiting = nil
	q.rooms.BeginMatch(opponent, s)
	return true
}

// Waiting reports whether someone currently occupies the slot.
func (q *Queue) Waiting() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.waiting != nil
}
