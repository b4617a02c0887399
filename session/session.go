// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/matchserver/network"
)

// PlayerID identifies one connected player for the lifetime of its
// connection. Ids are opaque uuids assigned on connect.
type PlayerID string

// Session is the registry's record of one connected player: identity,
// outbound channel handle, and the current room association. Sessions are
// owned by the Manager; rooms only hold references. The room association
// and activity timestamp are read and written from different connection
// goroutines, so they live behind the session's own mutex.
type Session struct {
	ID        PlayerID
	Conn      network.Connection
	CreatedAt time.Time

	mu         sync.RWMutex
	roomID     string // "" when unattached
	lastActive time.Time
}

func NewSession(id PlayerID, conn network.Connection) *Session {
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  time.Now(),
		lastActive: time.Now(),
	}
}

// Send delivers one message to this player. Delivery to a dead connection
// is a silent drop.
func (s *Session) Send(v any) {
	_ = s.Conn.Send(v)
}

// Alive reports whether the player's connection still accepts writes.
func (s *Session) Alive() bool {
	return s.Conn.Alive()
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// RoomID returns the current room association, "" when unattached.
func (s *Session) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// SetRoomID attaches the player to a room.
func (s *Session) SetRoomID(id string) {
	s.mu.Lock()
	s.roomID = id
	s.mu.Unlock()
}

// ClearRoomID detaches the player, but only if the association still
// matches expected. A detach racing a concurrent pairing must not wipe
// the fresh room id, or the player would end up in a room's player list
// with no way to route messages to it.
func (s *Session) ClearRoomID(expected string) {
	s.mu.Lock()
	if s.roomID == expected {
		s.roomID = ""
	}
	s.mu.Unlock()
}

// Touch records inbound activity from the player's own reader goroutine.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	s.lastActive = t
	s.mu.Unlock()
}

// LastActive returns the time of the most recent inbound message.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Manager is the player registry.
type Manager struct {
	sessions map[PlayerID]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[PlayerID]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(id PlayerID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Get(id PlayerID) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[id]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
