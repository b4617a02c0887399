// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/protocol"
	"github.com/wfunc/matchserver/session"
)

// RoomID identifies one match for its whole lifetime.
type RoomID string

// Phase is the room lifecycle state.
//
//	ACTIVE — from creation until the deadline fires
//	ENDED  — deadline fired, scores frozen, room kept addressable so a
//	         rematch request can still find it
//	CLOSED — removed from the manager; terminal
type Phase int32

const (
	PhaseActive Phase = iota
	PhaseEnded
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Room is one two-player match: the shared score, both players' item
// state, and the fixed deadline. Every operation holds stateMu for its
// full duration, so no two mutations of the same room interleave. Sends
// are channel enqueues, never I/O waits, so holding the lock across them
// is safe.
type Room struct {
	ID        RoomID
	CreatedAt time.Time

	endAt      time.Time
	deadlineID int64
	phase      Phase

	// players is the ordered pair; it shrinks on departures. scores and
	// states keep both original ids for the life of the room.
	players []*session.Session
	scores  map[session.PlayerID]int
	states  map[session.PlayerID]*game.MatchState

	broadcaster Broadcaster
	stateMu     sync.RWMutex
	playerMu    sync.RWMutex
}

func newRoom(id RoomID, a, b *session.Session, endAt time.Time, broadcaster Broadcaster) *Room {
	return &Room{
		ID:          id,
		CreatedAt:   time.Now(),
		endAt:       endAt,
		phase:       PhaseActive,
		players:     []*session.Session{a, b},
		scores:      map[session.PlayerID]int{a.ID: 0, b.ID: 0},
		states:      map[session.PlayerID]*game.MatchState{a.ID: game.NewMatchState(), b.ID: game.NewMatchState()},
		broadcaster: broadcaster,
	}
}

// Sessions returns the room's players in insertion order.
func (r *Room) Sessions() []*session.Session {
	r.playerMu.RLock()
	defer r.playerMu.RUnlock()

	out := make([]*session.Session, len(r.players))
	copy(out, r.players)
	return out
}

// EndAt is the fixed deadline set at creation.
func (r *Room) EndAt() time.Time {
	return r.endAt
}

func (r *Room) Phase() Phase {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.phase
}

// State exposes one player's match state for inspection. Tests and the
// admin service use it; message handling goes through the Handle methods.
func (r *Room) State(id session.PlayerID) *game.MatchState {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.states[id]
}

// Scores returns a copy of the score map keyed by wire-format ids.
func (r *Room) Scores() map[string]int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.scoresView()
}

// scoresView copies the score map. Callers hold stateMu.
func (r *Room) scoresView() map[string]int {
	out := make(map[string]int, len(r.scores))
	for id, score := range r.scores {
		out[string(id)] = score
	}
	return out
}

func (r *Room) broadcast(v any) {
	if r.broadcaster == nil {
		return
	}
	_ = r.broadcaster.BroadcastToRoom(r.ID, v)
}

// HandleFound credits one score point to the reporting player and
// broadcasts the full score map. Claims after the deadline are ignored;
// the server trusts the claim itself.
func (r *Room) HandleFound(s *session.Session) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.phase != PhaseActive {
		return
	}
	if !time.Now().Before(r.endAt) {
		return
	}
	if _, ok := r.scores[s.ID]; !ok {
		return
	}

	r.scores[s.ID]++
	r.broadcast(protocol.NewScoreUpdate(r.scoresView()))
}

// HandleStageReached raises the player's progress counter and runs every
// grant cycle the new value unlocks, then privately syncs the inventory.
func (r *Room) HandleStageReached(s *session.Session, rawStage float64) {
	stage, ok := game.CoerceStage(rawStage)
	if !ok {
		return
	}

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	st := r.states[s.ID]
	if st == nil {
		return
	}

	reason := protocol.ReasonSync
	if st.AdvanceStage(stage) {
		reason = protocol.ReasonGrant
	}
	s.Send(protocol.NewInventoryUpdate(itemViews(st.Inventory), reason))
}

// HandleUseItem consumes one inventory item and resolves its effect.
// Every failed precondition is a silent no-op, in this order: match still
// running and not inside the final lockout window, cooldown elapsed, a
// new stage reached since the last use, item present in inventory.
func (r *Room) HandleUseItem(s *session.Session, itemID string) {
	now := time.Now()

	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	st := r.states[s.ID]
	if st == nil {
		return
	}
	if !now.Before(r.endAt) || r.endAt.Sub(now) < game.ItemLockout {
		return
	}
	if !st.UseReady(now) {
		return
	}

	item, ok := st.TakeItem(itemID)
	if !ok {
		return
	}
	st.MarkUsed(now)

	switch item.Type {
	case game.ItemOrb:
		st.BuffUntil = now.Add(game.OrbDuration)
		r.broadcast(protocol.ItemApplied{
			Type:        protocol.TypeItemApplied,
			By:          string(s.ID),
			TypeName:    string(game.ItemOrb),
			EffectUntil: st.BuffUntil.UnixMilli(),
		})

	case game.ItemSmoke:
		r.applySmoke(s, now)

	case game.ItemShield:
		st.ShieldOn = true
		r.broadcast(protocol.ItemApplied{
			Type:     protocol.TypeItemApplied,
			By:       string(s.ID),
			TypeName: string(game.ItemShield),
			TargetID: string(s.ID),
		})
	}

	s.Send(protocol.NewInventoryUpdate(itemViews(st.Inventory), protocol.ReasonConsume))
}

// applySmoke resolves a smoke against the other player: a set shield
// absorbs it (shield cleared, debuff blocked), otherwise the target gets
// a timed debuff. Called with stateMu held.
func (r *Room) applySmoke(actor *session.Session, now time.Time) {
	target := r.opponentOf(actor.ID)
	if target == nil {
		return
	}
	targetState := r.states[target.ID]
	if targetState == nil {
		return
	}

	if targetState.ShieldOn {
		targetState.ShieldOn = false
		r.broadcast(protocol.ItemApplied{
			Type:     protocol.TypeItemApplied,
			By:       string(actor.ID),
			TypeName: string(game.ItemSmoke),
			TargetID: string(target.ID),
			Blocked:  true,
		})
		target.Send(protocol.NewInventoryUpdate(itemViews(targetState.Inventory), protocol.ReasonShieldConsumed))
		return
	}

	r.broadcast(protocol.ItemApplied{
		Type:        protocol.TypeItemApplied,
		By:          string(actor.ID),
		TypeName:    string(game.ItemSmoke),
		TargetID:    string(target.ID),
		EffectUntil: now.Add(game.SmokeDuration).UnixMilli(),
	})
}

func (r *Room) opponentOf(id session.PlayerID) *session.Session {
	r.playerMu.RLock()
	defer r.playerMu.RUnlock()

	for _, p := range r.players {
		if p.ID != id {
			return p
		}
	}
	return nil
}

// handleDeadline runs when the deadline timer fires: scores freeze, the
// final tally goes out, and the room moves to ENDED. It stays addressable
// until a departure empties it.
func (r *Room) handleDeadline() {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.phase != PhaseActive {
		return
	}
	r.phase = PhaseEnded
	r.broadcast(protocol.NewMatchEnd(r.scoresView(), r.endAt.UnixMilli()))
}

// removePlayer drops one player from the ordered pair and returns who is
// left. Scores and states keep the departed id.
func (r *Room) removePlayer(id session.PlayerID) []*session.Session {
	r.playerMu.Lock()
	defer r.playerMu.Unlock()

	kept := r.players[:0]
	for _, p := range r.players {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	r.players = kept

	out := make([]*session.Session, len(r.players))
	copy(out, r.players)
	return out
}

func (r *Room) setPhase(p Phase) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.phase = p
}

func itemViews(items []game.Item) []protocol.ItemView {
	views := make([]protocol.ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, protocol.ItemView{ID: it.ID, Type: string(it.Type)})
	}
	return views
}
