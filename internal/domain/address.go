package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Address identifies a stored account (room, player metadata, bet list,
// token account, oracle, authorizer). Addresses are derived, never chosen:
// any party can recompute an account's address from its logical key, so no
// directory structure is persisted anywhere.
type Address string

// addressSpace is the fixed namespace for poolroom address derivation.
var addressSpace = uuid.MustParse("b7d21f6e-43a9-5a0e-9c14-8e2f0d7a6c31")

// Derive produces the deterministic child address for a (parent, role tag)
// pair. The same inputs always yield the same address, and the storage layer
// rejects a second create at an existing address, which is what enforces room
// and slot uniqueness.
func Derive(parent Address, tag string) Address {
	return Address(uuid.NewSHA1(addressSpace, []byte(string(parent)+"/"+tag)).String())
}

// AuthorizerAddress derives the address of an authorizer record from its
// caller-chosen identifier.
func AuthorizerAddress(id string) Address {
	return Derive("", "authorizer-"+id)
}

// OracleAddress derives an oracle's address under its authorizer.
func OracleAddress(authorizer Address, id string) Address {
	return Derive(authorizer, "oracle-"+id)
}

// RoomAddress derives a room's address from its oracle and caller-chosen key.
func RoomAddress(oracle Address, key int64) Address {
	return Derive(oracle, fmt.Sprintf("room-%d", key))
}

// PlayerAddress derives the metadata address for a slot within a room.
func PlayerAddress(room Address, slot uint8) Address {
	return Derive(room, fmt.Sprintf("player-%d", slot))
}

// BetsAddress derives the bet-list address for a room.
func BetsAddress(room Address) Address {
	return Derive(room, "players")
}

// VaultAddress derives the pooled-funds vault address for a room.
func VaultAddress(room Address) Address {
	return Derive(room, "vault")
}

// FeeVaultAddress derives the fee-collection vault for an authorizer.
func FeeVaultAddress(authorizer Address) Address {
	return Derive(authorizer, "vault")
}

// TokenAddress derives a participant's token account for a given asset type.
func TokenAddress(owner string, mint string) Address {
	return Derive(Address(owner), "token-"+mint)
}
