// room/manager.go
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/protocol"
	"github.com/wfunc/matchserver/session"
	"github.com/wfunc/matchserver/timer"
)

// Manager owns the active room set and the match lifecycle. It never
// holds its map lock while taking a room's lock, so lookups and room
// operations cannot deadlock against each other.
type Manager struct {
	rooms       map[RoomID]*Room
	mutex       sync.RWMutex
	timers      *timer.Manager
	duration    time.Duration
	broadcaster Broadcaster
}

func NewManager(timers *timer.Manager, duration time.Duration) *Manager {
	return &Manager{
		rooms:    make(map[RoomID]*Room),
		timers:   timers,
		duration: duration,
	}
}

// SetBroadcaster wires the messaging layer in. The broadcaster needs the
// manager to resolve room ids, so it cannot exist before the manager does.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// BeginMatch pairs two players into a fresh ACTIVE room: scores seeded at
// zero, fresh item state, deadline fixed at now + duration, and each
// player told the match started along with its own id.
func (m *Manager) BeginMatch(a, b *session.Session) *Room {
	id := RoomID(uuid.New().String())
	endAt := time.Now().Add(m.duration)
	r := newRoom(id, a, b, endAt, m.broadcaster)

	// Schedule before publishing so removal always sees the timer handle.
	// The grace keeps the timer from firing while endAt comparisons still
	// pass.
	r.deadlineID = m.timers.Schedule(m.duration+game.DeadlineGrace, r.handleDeadline)

	m.mutex.Lock()
	m.rooms[id] = r
	m.mutex.Unlock()

	a.SetRoomID(string(id))
	b.SetRoomID(string(id))

	scores := r.Scores()
	a.Send(protocol.NewMatchStart(string(id), string(a.ID), scores, endAt.UnixMilli()))
	b.Send(protocol.NewMatchStart(string(id), string(b.ID), scores, endAt.UnixMilli()))

	logger.Log.Infof("Match %s started: %s vs %s", id, a.ID, b.ID)
	return r
}

func (m *Manager) Get(id RoomID) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	r, exists := m.rooms[id]
	return r, exists
}

// GetForSession resolves a player's current room. A stale association
// (room already closed) resolves to nothing, which makes every message
// against a deleted room a no-op.
func (m *Manager) GetForSession(s *session.Session) (*Room, bool) {
	id := s.RoomID()
	if id == "" {
		return nil, false
	}
	return m.Get(RoomID(id))
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Leave detaches a player from its room, whether by disconnect or by a
// rematch request. An emptied room is deleted silently; a room with one
// player left is deleted and the remaining player told the opponent left.
// The remaining player is not re-queued. Detaches clear only the
// association that was resolved here, so a pairing that lands between the
// lookup and the clear wins.
func (m *Manager) Leave(s *session.Session) {
	id := s.RoomID()
	s.ClearRoomID(id)
	if id == "" {
		return
	}
	r, ok := m.Get(RoomID(id))
	if !ok {
		return
	}

	remaining := r.removePlayer(s.ID)
	switch len(remaining) {
	case 0:
		m.remove(r)
	case 1:
		m.remove(r)
		rest := remaining[0]
		rest.ClearRoomID(string(r.ID))
		rest.Send(protocol.NewOpponentLeft())
		logger.Log.Infof("Player %s left room %s, notifying %s", s.ID, r.ID, rest.ID)
	}
}

// remove deletes a room from the active set and cancels its deadline.
// Cancelling an already-fired timer is a no-op, so removal after the
// match ended is fine.
func (m *Manager) remove(r *Room) {
	m.mutex.Lock()
	delete(m.rooms, r.ID)
	m.mutex.Unlock()

	m.timers.Cancel(r.deadlineID)
	r.setPhase(PhaseClosed)
}

// Snapshot is a point-in-time view of one room for the admin service.
type Snapshot struct {
	ID        string
	Phase     string
	Players   []string
	Scores    map[string]int
	EndAt     int64
	CreatedAt int64
}

func (r *Room) Snapshot() Snapshot {
	players := r.Sessions()
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, string(p.ID))
	}
	return Snapshot{
		ID:        string(r.ID),
		Phase:     r.Phase().String(),
		Players:   ids,
		Scores:    r.Scores(),
		EndAt:     r.endAt.UnixMilli(),
		CreatedAt: r.CreatedAt.UnixMilli(),
	}
}

// Snapshots lists every room currently in the active set. Room pointers
// are copied out under the map lock and inspected after it is released.
func (m *Manager) Snapshots() []Snapshot {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	out := make([]Snapshot, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Snapshot())
	}
	return out
}
