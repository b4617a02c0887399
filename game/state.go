package game

import (
	"math"
	"time"
)

// MatchState is one player's in-match item state. It lives inside a room
// and dies with it; all mutation happens under the owning room's lock.
type MatchState struct {
	Inventory         []Item
	NextGrantStage    int
	LastItemUsedAt    time.Time // zero = never
	LastItemUsedStage int       // 0 = never
	ShieldOn          bool
	StageReached      int
	BuffUntil         time.Time // zero = no live orb buff
}

func NewMatchState() *MatchState {
	return &MatchState{
		Inventory:      make([]Item, 0, MaxInventory),
		NextGrantStage: FirstGrantStage,
		StageReached:   InitialStage,
	}
}

// maxStage bounds client-reported progress; anything past it is garbage.
const maxStage = 1 << 31

// CoerceStage turns a client-reported progress value into a usable stage
// number. Non-finite, non-positive, and absurdly large values are
// rejected.
func CoerceStage(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 1 || v >= maxStage {
		return 0, false
	}
	return int(v), true
}

// AdvanceStage raises StageReached (never lowers it) and runs every grant
// cycle the new value unlocks. NextGrantStage advances by GrantStep on
// each crossed threshold whether or not an item was actually granted, so
// a grant arriving against a full inventory is lost for good.
func (s *MatchState) AdvanceStage(stage int) (granted bool) {
	if stage > s.StageReached {
		s.StageReached = stage
	}
	for s.StageReached >= s.NextGrantStage {
		if len(s.Inventory) < MaxInventory {
			s.Inventory = append(s.Inventory, NewRandomItem())
			granted = true
		}
		s.NextGrantStage += GrantStep
	}
	return granted
}

// UseReady reports whether the cooldown and the per-stage gate both allow
// consuming an item right now. The two checks are independent: elapsed
// cooldown does not help until the player has also reached a new stage.
func (s *MatchState) UseReady(now time.Time) bool {
	if now.Sub(s.LastItemUsedAt) < ItemCooldown {
		return false
	}
	if s.LastItemUsedStage == s.StageReached {
		return false
	}
	return true
}

// TakeItem removes and returns the first inventory item with the given id.
func (s *MatchState) TakeItem(id string) (Item, bool) {
	for i, it := range s.Inventory {
		if it.ID == id {
			s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
			return it, true
		}
	}
	return Item{}, false
}

// MarkUsed records a successful consumption for the cooldown and the
// per-stage reuse gate.
func (s *MatchState) MarkUsed(now time.Time) {
	s.LastItemUsedAt = now
	s.LastItemUsedStage = s.StageReached
}
