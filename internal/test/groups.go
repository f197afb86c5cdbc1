// Package test holds fixtures shared by the tests of this module.
package test

import (
	"io"
	"math/big"
	mrand "math/rand"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
	"github.com/taurusgroup/multi-party-vote/pkg/math/sample"
)

// TinyGroup is p = 11, g = 2. The generator has order p - 1, not q.
func TinyGroup() *group.Group {
	return group.FromUint64(11, 2)
}

// SmallGroup is p = 1019, q = 509, g = 4, with g generating the order q subgroup.
func SmallGroup() *group.Group {
	return group.FromUint64(1019, 4)
}

// MediumGroup is p = 2039, q = 1019, g = 4.
func MediumGroup() *group.Group {
	return group.FromUint64(2039, 4)
}

// Reader returns a deterministic reader seeded with seed.
func Reader(seed int64) io.Reader {
	return mrand.New(mrand.NewSource(seed))
}

// Messages draws n plaintexts in [1, p-1], reproducibly for a given seed.
func Messages(seed int64, G *group.Group, n int) []*saferith.Nat {
	r := mrand.New(mrand.NewSource(seed))
	hi := new(big.Int).Sub(G.P().Big(), big.NewInt(1))
	out := make([]*saferith.Nat, n)
	for i := range out {
		out[i] = new(saferith.Nat).SetBig(sample.NonCryptoInterval(r, big.NewInt(1), hi), hi.BitLen())
	}
	return out
}
