package group

import (
	"fmt"

	"github.com/cronokirby/saferith"
)

// Encode maps m ∈ [0, q) injectively into the order q subgroup.
//
// m + 1 is used directly if it is a quadratic residue, and p - (m + 1) otherwise.
// Since p = 3 mod 4, -1 is a non residue, so exactly one of the two lies in the subgroup.
func (G *Group) Encode(m *saferith.Nat) (*saferith.Nat, error) {
	if _, _, lt := m.CmpMod(G.q); lt != 1 {
		return nil, fmt.Errorf("group: encode: message must lie in [0, q)")
	}
	t := new(saferith.Nat).ModAdd(m, G.one, G.p)
	if G.InSubgroup(t) {
		return t, nil
	}
	return new(saferith.Nat).ModNeg(t, G.p), nil
}

// Decode inverts Encode.
//
// Encoded values ≤ q were m + 1, larger ones were p - (m + 1).
func (G *Group) Decode(e *saferith.Nat) (*saferith.Nat, error) {
	if !G.InSubgroup(e) {
		return nil, ErrNotInSubgroup
	}
	if gt, _, _ := e.CmpMod(G.q); gt == 1 {
		// e > q
		neg := new(saferith.Nat).ModNeg(e, G.p)
		return neg.ModSub(neg, G.one, G.p), nil
	}
	return new(saferith.Nat).ModSub(e, G.one, G.p), nil
}
