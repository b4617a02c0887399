package game

import (
	"math/rand"

	"github.com/google/uuid"
)

// ItemType is the kind of consumable a player can hold.
type ItemType string

const (
	ItemOrb    ItemType = "orb"
	ItemSmoke  ItemType = "smoke"
	ItemShield ItemType = "shield"
)

var itemTypes = [...]ItemType{ItemOrb, ItemSmoke, ItemShield}

// Item is a single consumable. It exists only inside an inventory; once
// consumed it is gone for good.
type Item struct {
	ID   string
	Type ItemType
}

// NewRandomItem mints an item with a globally unique id and a type drawn
// uniformly at random.
func NewRandomItem() Item {
	return Item{
		ID:   uuid.New().String(),
		Type: itemTypes[rand.Intn(len(itemTypes))],
	}
}
