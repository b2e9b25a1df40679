// ABOUTME: Canonical ordering of participant pairs
// ABOUTME: Makes (a, b) and (b, a) resolve to the same conversation key

package store

// Pair is two distinct participants in canonical order (Low < High)
type Pair struct {
	Low  int64
	High int64
}

// CanonicalPair orders two participant ids ascending.
// Returns ErrSameParticipant if a == b.
func CanonicalPair(a, b int64) (Pair, error) {
	if a == b {
		return Pair{}, ErrSameParticipant
	}
	if a < b {
		return Pair{Low: a, High: b}, nil
	}
	return Pair{Low: b, High: a}, nil
}

// Contains reports whether id is one side of the pair
func (p Pair) Contains(id int64) bool {
	return id == p.Low || id == p.High
}
