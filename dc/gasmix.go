package dc

import "golang.org/x/exp/slices"

// GasMix is a tank's fractional gas composition. O2+He+N2 must sum to 1,
// and each fraction lies in [0,1]; N2 is implied (1 - O2 - He) by several
// parsers that only transmit (O2, He) on the wire.
type GasMix struct {
	O2 float64
	He float64
	N2 float64
}

// NewGasMixFromO2He fills in N2 = 1 - O2 - He, the common case for parsers
// that only carry (O2, He) bytes (Diverite, Seac Screen, per spec §4.5).
func NewGasMixFromO2He(o2, he float64) GasMix {
	return GasMix{O2: o2, He: he, N2: 1 - o2 - he}
}

// GasMixTable is the small append-only, find-or-insert table several
// parsers build from raw (O2,He) gas-change records instead of a wire
// index (spec §4.5 "gas-mix table building"). Duplicate detection is exact
// byte-for-byte match on (O2, He), expressed here as an exact float
// equality since both sides are always derived from the same fixed-point
// wire encoding (e.g. whole percent bytes), never independently rounded.
type GasMixTable struct {
	Capacity int
	mixes    []GasMix
}

// NewGasMixTable returns an empty table with the given capacity (7 for
// Diverite NiteKQ, 2 for Seac Screen, per spec §4.5).
func NewGasMixTable(capacity int) *GasMixTable {
	return &GasMixTable{Capacity: capacity}
}

// FindOrInsert returns the index of the mix matching (o2, he), inserting a
// new entry if none matches. It returns ok=false if the table is already at
// capacity and no matching entry exists (overflow is MalformedData at the
// caller, per spec §4.5).
func (t *GasMixTable) FindOrInsert(o2, he float64) (index int, ok bool) {
	if i := slices.IndexFunc(t.mixes, func(m GasMix) bool { return m.O2 == o2 && m.He == he }); i >= 0 {
		return i, true
	}
	if len(t.mixes) >= t.Capacity {
		return -1, false
	}
	t.mixes = append(t.mixes, NewGasMixFromO2He(o2, he))
	return len(t.mixes) - 1, true
}

// Len returns the number of distinct mixes recorded so far.
func (t *GasMixTable) Len() int { return len(t.mixes) }

// At returns the mix at index i.
func (t *GasMixTable) At(i int) GasMix { return t.mixes[i] }

// All returns every mix recorded, in insertion order. The returned slice
// must not be mutated by the caller.
func (t *GasMixTable) All() []GasMix { return t.mixes }
