package domain

const (
	// betEntrySize is the serialized size of one bet entry: the predicted
	// pair plus the slot byte, padded to the storage stride.
	betEntrySize = 8

	// betListOverhead is the fixed byte cost of an empty bet list.
	betListOverhead = 16
)

// BetPair is a predicted outcome pair.
type BetPair struct {
	A byte `json:"a"`
	B byte `json:"b"`
}

// Bet is one admitted entry in a room's bet list.
type Bet struct {
	Pair BetPair `json:"pair"`
	Slot uint8   `json:"slot"`
}

// BetList is the append-only collection of bets for a room. It enforces the
// one-bettor-per-prediction rule and resolves the winner against a published
// result. Space tracks the allocated byte size of the backing record;
// callers grow it explicitly so the growth cost can be attributed to the
// actor causing it.
type BetList struct {
	Entries []Bet
	Space   int
}

// NewBetList returns an empty bet list with its base allocation.
func NewBetList() BetList {
	return BetList{Space: betListOverhead}
}

// RequiredSpace returns the byte size the list needs to hold its current
// entries.
func (l *BetList) RequiredSpace() int {
	return betListOverhead + len(l.Entries)*betEntrySize
}

// Grow reallocates the list to fit its current entries and returns the
// number of bytes added. Callers invoke it after each append and charge the
// appending actor for the returned growth. It returns 0 when the current
// allocation already fits.
func (l *BetList) Grow() int {
	need := l.RequiredSpace()
	if need <= l.Space {
		return 0
	}
	grown := need - l.Space
	l.Space = need
	return grown
}

// Add validates and appends a bet. It returns ErrBetDuplicated when the
// predicted pair is already taken; the slot byte is not part of the
// comparison.
func (l *BetList) Add(b Bet) error {
	for _, e := range l.Entries {
		if e.Pair == b.Pair {
			return ErrBetDuplicated
		}
	}
	l.Entries = append(l.Entries, b)
	return nil
}

// Winner returns the slot of the entry matching the published result. Add
// guarantees pair uniqueness, so at most one entry can match and the scan
// order carries no meaning.
func (l *BetList) Winner(result BetPair) (uint8, bool) {
	for _, e := range l.Entries {
		if e.Pair == result {
			return e.Slot, true
		}
	}
	return 0, false
}

// Bytes serializes the entries as packed (a, b, slot) triples.
func (l *BetList) Bytes() []byte {
	out := make([]byte, 0, len(l.Entries)*3)
	for _, e := range l.Entries {
		out = append(out, e.Pair.A, e.Pair.B, e.Slot)
	}
	return out
}

// BetListFromBytes rebuilds a bet list from packed triples and a recorded
// allocation size.
func BetListFromBytes(data []byte, space int) BetList {
	l := BetList{Space: space}
	for i := 0; i+2 < len(data); i += 3 {
		l.Entries = append(l.Entries, Bet{
			Pair: BetPair{A: data[i], B: data[i+1]},
			Slot: data[i+2],
		})
	}
	return l
}
