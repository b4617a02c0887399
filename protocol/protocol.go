package protocol

import "encoding/json"

// Client -> server message types.
const (
	TypeFound        = "found"
	TypeStageReached = "stage_reached"
	TypeUseItem      = "use_item"
	TypeRematch      = "rematch"
)

// Server -> client message types.
const (
	TypeWaiting         = "waiting"
	TypeMatchStart      = "match_start"
	TypeScoreUpdate     = "score_update"
	TypeInventoryUpdate = "inventory_update"
	TypeItemApplied     = "item_applied"
	TypeMatchEnd        = "match_end"
	TypeOpponentLeft    = "opponent_left"
)

// Reasons attached to inventory_update.
const (
	ReasonGrant          = "grant"
	ReasonSync           = "sync"
	ReasonConsume        = "consume"
	ReasonShieldConsumed = "shield_consumed"
)

// ClientMessage is the single inbound frame shape. Unknown or missing
// fields for a given type are ignored along with the frame.
type ClientMessage struct {
	Type   string  `json:"type"`
	Stage  float64 `json:"stage,omitempty"`
	ItemID string  `json:"itemId,omitempty"`
}

// Decode parses a raw text frame. A nil result means the frame was
// malformed and must be dropped silently.
func Decode(data []byte) *ClientMessage {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil
	}
	if msg.Type == "" {
		return nil
	}
	return &msg
}

// ItemView is the client-visible shape of an inventory item.
type ItemView struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Waiting struct {
	Type string `json:"type"`
}

func NewWaiting() Waiting {
	return Waiting{Type: TypeWaiting}
}

type MatchStart struct {
	Type     string         `json:"type"`
	RoomID   string         `json:"roomId"`
	PlayerID string         `json:"playerId"`
	Scores   map[string]int `json:"scores"`
	EndAt    int64          `json:"endAt"`
}

func NewMatchStart(roomID, playerID string, scores map[string]int, endAt int64) MatchStart {
	return MatchStart{Type: TypeMatchStart, RoomID: roomID, PlayerID: playerID, Scores: scores, EndAt: endAt}
}

type ScoreUpdate struct {
	Type   string         `json:"type"`
	Scores map[string]int `json:"scores"`
}

func NewScoreUpdate(scores map[string]int) ScoreUpdate {
	return ScoreUpdate{Type: TypeScoreUpdate, Scores: scores}
}

type InventoryUpdate struct {
	Type   string     `json:"type"`
	Items  []ItemView `json:"items"`
	Reason string     `json:"reason"`
}

func NewInventoryUpdate(items []ItemView, reason string) InventoryUpdate {
	return InventoryUpdate{Type: TypeInventoryUpdate, Items: items, Reason: reason}
}

type ItemApplied struct {
	Type        string `json:"type"`
	By          string `json:"by"`
	TypeName    string `json:"typeName"`
	TargetID    string `json:"targetId,omitempty"`
	EffectUntil int64  `json:"effectUntil,omitempty"`
	Blocked     bool   `json:"blocked,omitempty"`
}

type MatchEnd struct {
	Type   string         `json:"type"`
	Scores map[string]int `json:"scores"`
	EndAt  int64          `json:"endAt"`
}

func NewMatchEnd(scores map[string]int, endAt int64) MatchEnd {
	return MatchEnd{Type: TypeMatchEnd, Scores: scores, EndAt: endAt}
}

type OpponentLeft struct {
	Type string `json:"type"`
}

func NewOpponentLeft() OpponentLeft {
	return OpponentLeft{Type: TypeOpponentLeft}
}
