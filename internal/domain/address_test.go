package domain

import "testing"

func TestDeriveIsDeterministic(t *testing.T) {
	oracle := OracleAddress(AuthorizerAddress("season-1"), "match-42")

	a := RoomAddress(oracle, 7)
	b := RoomAddress(oracle, 7)
	if a != b {
		t.Fatalf("same seeds derived different addresses: %s vs %s", a, b)
	}

	if RoomAddress(oracle, 8) == a {
		t.Fatal("different room keys must derive different addresses")
	}
}

func TestDerivedRolesAreDistinct(t *testing.T) {
	oracle := OracleAddress(AuthorizerAddress("season-1"), "match-42")
	room := RoomAddress(oracle, 1)

	addrs := map[Address]string{
		room:                   "room",
		PlayerAddress(room, 0): "player-0",
		PlayerAddress(room, 1): "player-1",
		BetsAddress(room):      "players",
		VaultAddress(room):     "vault",
	}
	if len(addrs) != 5 {
		t.Fatalf("derived addresses collide: %v", addrs)
	}
}
