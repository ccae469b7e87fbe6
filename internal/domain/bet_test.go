package domain

import "testing"

func TestBetListRejectsDuplicatePair(t *testing.T) {
	l := NewBetList()
	if err := l.Add(Bet{Pair: BetPair{A: 1, B: 0}, Slot: 0}); err != nil {
		t.Fatalf("add first bet: %v", err)
	}
	if err := l.Add(Bet{Pair: BetPair{A: 1, B: 0}, Slot: 1}); err != ErrBetDuplicated {
		t.Fatalf("expected ErrBetDuplicated, got %v", err)
	}
	if len(l.Entries) != 1 {
		t.Fatalf("rejected bet must not be appended, have %d entries", len(l.Entries))
	}

	// Same values in the opposite order are a different prediction.
	if err := l.Add(Bet{Pair: BetPair{A: 0, B: 1}, Slot: 1}); err != nil {
		t.Fatalf("add reversed pair: %v", err)
	}
}

func TestBetListWinner(t *testing.T) {
	l := NewBetList()
	for i, p := range []BetPair{{2, 1}, {0, 0}, {1, 3}} {
		if err := l.Add(Bet{Pair: p, Slot: uint8(i)}); err != nil {
			t.Fatalf("add bet %d: %v", i, err)
		}
	}

	slot, ok := l.Winner(BetPair{A: 1, B: 3})
	if !ok || slot != 2 {
		t.Fatalf("expected winner slot 2, got %d ok=%v", slot, ok)
	}

	if _, ok := l.Winner(BetPair{A: 9, B: 9}); ok {
		t.Fatal("never-bet result must have no winner")
	}
}

func TestBetListGrow(t *testing.T) {
	l := NewBetList()
	if l.Space != 16 {
		t.Fatalf("empty list space = %d, want 16", l.Space)
	}

	if grown := l.Grow(); grown != 0 {
		t.Fatalf("grow of empty list: grown=%d, want 0", grown)
	}

	if err := l.Add(Bet{Pair: BetPair{A: 1, B: 0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if grown := l.Grow(); grown != 8 || l.Space != 24 {
		t.Fatalf("grow after append: grown=%d space=%d, want 8/24", grown, l.Space)
	}

	// Growing again without appending is a no-op.
	if grown := l.Grow(); grown != 0 {
		t.Fatalf("grow with free space: grown=%d, want 0", grown)
	}
}

func TestBetListBytesRoundTrip(t *testing.T) {
	l := NewBetList()
	_ = l.Add(Bet{Pair: BetPair{A: 3, B: 2}, Slot: 0})
	l.Grow()
	_ = l.Add(Bet{Pair: BetPair{A: 0, B: 1}, Slot: 1})
	l.Grow()

	got := BetListFromBytes(l.Bytes(), l.Space)
	if len(got.Entries) != 2 || got.Space != l.Space {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, l)
	}
	for i := range l.Entries {
		if got.Entries[i] != l.Entries[i] {
			t.Fatalf("entry %d mismatch: %+v vs %+v", i, got.Entries[i], l.Entries[i])
		}
	}
}
