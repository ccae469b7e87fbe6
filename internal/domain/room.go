// Package domain defines the core types, error kinds, and store/cache
// interfaces for the poolroom settlement service. It has no dependencies on
// concrete storage or transport.
package domain

import "time"

// PlayerMetadataVersion is the current schema version written into new
// player metadata records.
const PlayerMetadataVersion int16 = 1

// Room is one pari-mutuel wagering pool for a single oracle outcome.
type Room struct {
	Address      Address   `json:"address"`
	Oracle       Address   `json:"oracle"`
	Key          int64     `json:"key"`
	Finished     bool      `json:"finished"`
	InitAmount   uint64    `json:"init_amount"`
	PlayersCount uint8     `json:"players_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PlayerMetadata binds a participant's slot within a room to their payout
// destination and withdrawal status. One record per participant per room,
// addressed by (room, slot).
type PlayerMetadata struct {
	Address       Address   `json:"address"`
	Version       int16     `json:"version"`
	Room          Address   `json:"room"`
	RoomKey       int64     `json:"room_key"`
	CreatedBy     string    `json:"created_by"`
	PayoutAccount Address   `json:"payout_account"`
	Slot          uint8     `json:"slot"`
	Withdrawn     bool      `json:"withdrawn"`
	CreatedAt     time.Time `json:"created_at"`
}
