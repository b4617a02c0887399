package room

import (
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/protocol"
	"github.com/wfunc/matchserver/session"
	"github.com/wfunc/matchserver/timer"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// recordingConn is a test double for network.Connection that captures
// every message sent to a player.
type recordingConn struct {
	mu    sync.Mutex
	msgs  []any
	alive bool
}

func newRecordingConn() *recordingConn {
	return &recordingConn{alive: true}
}

func (c *recordingConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *recordingConn) ReadMessage() ([]byte, error) { return nil, nil }
func (c *recordingConn) Alive() bool                  { return c.alive }
func (c *recordingConn) RemoteAddr() net.Addr         { return &net.TCPAddr{} }

func (c *recordingConn) Close() error {
	c.alive = false
	return nil
}

func (c *recordingConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func countOfType[T any](c *recordingConn) int {
	n := 0
	for _, m := range c.messages() {
		if _, ok := m.(T); ok {
			n++
		}
	}
	return n
}

func lastOfType[T any](t *testing.T, c *recordingConn) T {
	t.Helper()
	msgs := c.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m, ok := msgs[i].(T); ok {
			return m
		}
	}
	var zero T
	t.Fatalf("no message of type %T received", zero)
	return zero
}

// managerBroadcaster fans a message out to a room's players in order,
// standing in for the broadcast package (which cannot be imported here).
type managerBroadcaster struct {
	m *Manager
}

func (b *managerBroadcaster) BroadcastToRoom(roomID RoomID, v any) error {
	r, ok := b.m.Get(roomID)
	if !ok {
		return nil
	}
	for _, s := range r.Sessions() {
		s.Send(v)
	}
	return nil
}

func newTestManager(duration time.Duration) *Manager {
	m := NewManager(timer.NewManager(), duration)
	m.SetBroadcaster(&managerBroadcaster{m: m})
	return m
}

func newTestPlayer(id string) (*session.Session, *recordingConn) {
	conn := newRecordingConn()
	return session.NewSession(session.PlayerID(id), conn), conn
}

func TestBeginMatch(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")

	r := m.BeginMatch(a, b)

	require.NotNil(t, r)
	assert.Equal(t, PhaseActive, r.Phase())
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, string(r.ID), a.RoomID())
	assert.Equal(t, string(r.ID), b.RoomID())

	startA := lastOfType[protocol.MatchStart](t, connA)
	startB := lastOfType[protocol.MatchStart](t, connB)
	assert.Equal(t, "p1", startA.PlayerID)
	assert.Equal(t, "p2", startB.PlayerID)
	assert.Equal(t, startA.RoomID, startB.RoomID)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, startA.Scores)
	assert.Equal(t, r.EndAt().UnixMilli(), startA.EndAt)
}

func TestHandleFound(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.HandleFound(a)
	r.HandleFound(a)
	r.HandleFound(b)

	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, r.Scores())

	update := lastOfType[protocol.ScoreUpdate](t, connA)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 1}, update.Scores)
	assert.Equal(t, 3, countOfType[protocol.ScoreUpdate](connA))
	assert.Equal(t, 3, countOfType[protocol.ScoreUpdate](connB))
}

func TestHandleFound_AfterDeadline(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.endAt = time.Now().Add(-time.Millisecond)
	r.HandleFound(a)

	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, r.Scores())
	assert.Zero(t, countOfType[protocol.ScoreUpdate](connA))
}

func TestDeadline(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.HandleFound(a)
	r.handleDeadline()

	assert.Equal(t, PhaseEnded, r.Phase())

	endA := lastOfType[protocol.MatchEnd](t, connA)
	assert.Equal(t, map[string]int{"p1": 1, "p2": 0}, endA.Scores)
	assert.Equal(t, r.EndAt().UnixMilli(), endA.EndAt)
	assert.Equal(t, 1, countOfType[protocol.MatchEnd](connB))

	// The room survives its own deadline so rematch can still find it.
	_, exists := m.Get(r.ID)
	assert.True(t, exists)

	// Firing again is a no-op.
	r.handleDeadline()
	assert.Equal(t, 1, countOfType[protocol.MatchEnd](connA))
}

func TestLeave_OpponentNotified(t *testing.T) {
	m := newTestManager(time.Minute)
	a, _ := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	m.Leave(a)

	assert.Empty(t, a.RoomID())
	assert.Empty(t, b.RoomID())
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, PhaseClosed, r.Phase())
	assert.Equal(t, 1, countOfType[protocol.OpponentLeft](connB))

	// Anything referencing the old room is now a no-op.
	before := len(connB.messages())
	r.HandleFound(b)
	assert.Len(t, connB.messages(), before)
}

// Departure handling runs on one player's goroutine while the opponent's
// goroutine is still resolving rooms; the association must stay readable
// throughout. Run with -race.
func TestLeave_ConcurrentWithLookup(t *testing.T) {
	m := newTestManager(time.Minute)
	a, _ := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	m.BeginMatch(a, b)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			m.GetForSession(b)
		}
	}()
	m.Leave(a)
	<-done

	assert.Empty(t, a.RoomID())
	assert.Empty(t, b.RoomID())
	_, ok := m.GetForSession(b)
	assert.False(t, ok)
}

func TestLeave_SecondLeaveIsNoOp(t *testing.T) {
	m := newTestManager(time.Minute)
	a, _ := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	m.BeginMatch(a, b)

	m.Leave(a)
	m.Leave(b)
	m.Leave(a)

	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 1, countOfType[protocol.OpponentLeft](connB))
}

func TestHandleStageReached_GrantAndSync(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.HandleStageReached(a, 5)
	update := lastOfType[protocol.InventoryUpdate](t, connA)
	assert.Equal(t, protocol.ReasonGrant, update.Reason)
	assert.Len(t, update.Items, 1)

	r.HandleStageReached(a, 6)
	update = lastOfType[protocol.InventoryUpdate](t, connA)
	assert.Equal(t, protocol.ReasonSync, update.Reason)
	assert.Len(t, update.Items, 1)

	// Inventory updates are private, never broadcast.
	assert.Zero(t, countOfType[protocol.InventoryUpdate](connB))
}

func TestHandleStageReached_GrantLoss(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.HandleStageReached(a, 5)
	r.HandleStageReached(a, 10)
	r.HandleStageReached(a, 15)

	st := r.State(a.ID)
	assert.Len(t, st.Inventory, game.MaxInventory)
	assert.Equal(t, 20, st.NextGrantStage)

	update := lastOfType[protocol.InventoryUpdate](t, connA)
	assert.Equal(t, protocol.ReasonSync, update.Reason, "third threshold found a full inventory")
}

func TestHandleStageReached_BadPayload(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.HandleStageReached(a, -1)
	r.HandleStageReached(a, 0)

	assert.Zero(t, countOfType[protocol.InventoryUpdate](connA))
	assert.Equal(t, game.InitialStage, r.State(a.ID).StageReached)
}

func giveItem(r *Room, id session.PlayerID, item game.Item) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.states[id].Inventory = append(r.states[id].Inventory, item)
}

func TestHandleUseItem_Orb(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	giveItem(r, a.ID, game.Item{ID: "orb1", Type: game.ItemOrb})
	r.HandleUseItem(a, "orb1")

	st := r.State(a.ID)
	assert.Empty(t, st.Inventory)
	assert.False(t, st.BuffUntil.IsZero())

	applied := lastOfType[protocol.ItemApplied](t, connB)
	assert.Equal(t, "p1", applied.By)
	assert.Equal(t, "orb", applied.TypeName)
	assert.Equal(t, st.BuffUntil.UnixMilli(), applied.EffectUntil)

	consume := lastOfType[protocol.InventoryUpdate](t, connA)
	assert.Equal(t, protocol.ReasonConsume, consume.Reason)
	assert.Empty(t, consume.Items)
}

func TestHandleUseItem_Shield(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	giveItem(r, a.ID, game.Item{ID: "sh1", Type: game.ItemShield})
	r.HandleUseItem(a, "sh1")

	assert.True(t, r.State(a.ID).ShieldOn)

	applied := lastOfType[protocol.ItemApplied](t, connA)
	assert.Equal(t, "shield", applied.TypeName)
	assert.Equal(t, "p1", applied.TargetID)
	assert.Zero(t, applied.EffectUntil, "shield persists until consumed")
}

func TestHandleUseItem_SmokeDebuff(t *testing.T) {
	m := newTestManager(time.Minute)
	a, _ := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	giveItem(r, a.ID, game.Item{ID: "sm1", Type: game.ItemSmoke})
	before := time.Now()
	r.HandleUseItem(a, "sm1")

	applied := lastOfType[protocol.ItemApplied](t, connB)
	assert.Equal(t, "smoke", applied.TypeName)
	assert.Equal(t, "p2", applied.TargetID)
	assert.False(t, applied.Blocked)
	expiry := time.UnixMilli(applied.EffectUntil)
	assert.WithinDuration(t, before.Add(game.SmokeDuration), expiry, 100*time.Millisecond)
}

func TestHandleUseItem_SmokeBlockedByShield(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, connB := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.State(b.ID).ShieldOn = true
	giveItem(r, a.ID, game.Item{ID: "sm1", Type: game.ItemSmoke})
	r.HandleUseItem(a, "sm1")

	assert.False(t, r.State(b.ID).ShieldOn, "shield is consumed by the smoke")

	applied := lastOfType[protocol.ItemApplied](t, connA)
	assert.True(t, applied.Blocked)
	assert.Zero(t, applied.EffectUntil, "no debuff when blocked")

	// Target is told privately that its shield was spent; the shield was
	// never an inventory item, only a flag.
	update := lastOfType[protocol.InventoryUpdate](t, connB)
	assert.Equal(t, protocol.ReasonShieldConsumed, update.Reason)
}

func TestHandleUseItem_ReuseGate(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	giveItem(r, a.ID, game.Item{ID: "i1", Type: game.ItemOrb})
	giveItem(r, a.ID, game.Item{ID: "i2", Type: game.ItemOrb})

	r.HandleUseItem(a, "i1")
	require.Len(t, r.State(a.ID).Inventory, 1)

	// Rewind the cooldown: the stage gate alone must still reject.
	r.State(a.ID).LastItemUsedAt = time.Now().Add(-game.ItemCooldown - time.Second)
	r.HandleUseItem(a, "i2")
	assert.Len(t, r.State(a.ID).Inventory, 1, "same stage value blocks a second use")

	// Reaching a new stage unlocks it.
	r.HandleStageReached(a, 2)
	r.HandleUseItem(a, "i2")
	assert.Empty(t, r.State(a.ID).Inventory)
	assert.Equal(t, 2, countOfType[protocol.ItemApplied](connA))
}

func TestHandleUseItem_CooldownGate(t *testing.T) {
	m := newTestManager(time.Minute)
	a, _ := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	giveItem(r, a.ID, game.Item{ID: "i1", Type: game.ItemOrb})
	giveItem(r, a.ID, game.Item{ID: "i2", Type: game.ItemOrb})

	r.HandleUseItem(a, "i1")
	r.HandleStageReached(a, 2)

	// New stage reached, but the cooldown has not elapsed.
	r.HandleUseItem(a, "i2")
	assert.Len(t, r.State(a.ID).Inventory, 1)
}

func TestHandleUseItem_Lockout(t *testing.T) {
	m := newTestManager(time.Minute)
	a, _ := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	giveItem(r, a.ID, game.Item{ID: "i1", Type: game.ItemOrb})

	r.endAt = time.Now().Add(game.ItemLockout - time.Second)
	r.HandleUseItem(a, "i1")
	assert.Len(t, r.State(a.ID).Inventory, 1, "items disabled in the final stretch")

	r.endAt = time.Now().Add(-time.Second)
	r.HandleUseItem(a, "i1")
	assert.Len(t, r.State(a.ID).Inventory, 1, "items disabled after the match")
}

func TestHandleUseItem_UnknownItem(t *testing.T) {
	m := newTestManager(time.Minute)
	a, connA := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)

	r.HandleUseItem(a, "nope")

	assert.Zero(t, countOfType[protocol.ItemApplied](connA))
	assert.True(t, r.State(a.ID).LastItemUsedAt.IsZero(), "failed use does not start the cooldown")
}

func TestSnapshot(t *testing.T) {
	m := newTestManager(time.Minute)
	a, _ := newTestPlayer("p1")
	b, _ := newTestPlayer("p2")
	r := m.BeginMatch(a, b)
	r.HandleFound(a)

	snaps := m.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, string(r.ID), snaps[0].ID)
	assert.Equal(t, "active", snaps[0].Phase)
	assert.ElementsMatch(t, []string{"p1", "p2"}, snaps[0].Players)
	assert.Equal(t, map[string]int{"p1": 1, "p2": 0}, snaps[0].Scores)
}
