package game

import "time"

// Gameplay constants. Match length itself comes from configuration; the
// values here are part of the item rules and are not meant to be tuned
// per deployment.
const (
	// DeadlineGrace pads the room deadline so the timer never fires
	// before endAt comparisons start failing.
	DeadlineGrace = 20 * time.Millisecond

	// MaxInventory caps how many unconsumed items a player can hold.
	MaxInventory = 2

	// FirstGrantStage is the first progress value that qualifies for an
	// item grant; GrantStep spaces the ones after it.
	FirstGrantStage = 5
	GrantStep       = 5

	// InitialStage is where every player's progress counter starts.
	InitialStage = 1

	// ItemCooldown is the minimum wall-clock gap between two item uses.
	ItemCooldown = 8 * time.Second

	// ItemLockout disables item use during the final stretch of a match.
	ItemLockout = 3 * time.Second

	// Effect durations.
	OrbDuration   = 3 * time.Second
	SmokeDuration = 2 * time.Second
)
