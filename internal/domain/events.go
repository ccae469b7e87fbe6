package domain

import "time"

// Signal bus channels for room lifecycle events. RoomChannel carries every
// event; per-room channels ("ch:rooms:<address>") carry the same payloads
// scoped to one room.
const (
	RoomChannel        = "ch:rooms"
	RoomChannelPattern = "ch:rooms:*"
)

// Room event names.
const (
	EventRoomCreated   = "room_created"
	EventPlayerJoined  = "player_joined"
	EventRoomSettled   = "room_settled"
	EventStakeRefunded = "stake_refunded"
)

// RoomEvent is the JSON payload published on the signal bus for every room
// lifecycle change.
type RoomEvent struct {
	Event      string    `json:"event"`
	Room       Address   `json:"room"`
	RoomKey    int64     `json:"room_key"`
	Slot       *uint8    `json:"slot,omitempty"`
	Pair       *BetPair  `json:"pair,omitempty"`
	Amount     uint64    `json:"amount,omitempty"`
	FeeAmount  uint64    `json:"fee_amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
