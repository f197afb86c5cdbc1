// Package zksch implements a Fiat–Shamir Schnorr proof of knowledge of x such that X = Bˣ.
package zksch

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

type Public struct {
	// Base = B
	Base *saferith.Nat
	// X = Bˣ
	X *saferith.Nat
}

// Proof is given in challenge form, the commitment A = Bᵃ is recomputed by the verifier.
type Proof struct {
	// C = H(A, B, X) mod q
	C *saferith.Nat
	// Z = a + c⋅x mod (p-1)
	Z *saferith.Nat
}

func challenge(hash *hash.Hash, G *group.Group, public Public, A *saferith.Nat) *saferith.Nat {
	_ = hash.WriteAny(G, public.Base, public.X, A)
	return G.Challenge(hash.SumNat())
}

// NewProof proves knowledge of x. Any context the proof should be bound to
// must already be written to hash.
func NewProof(rand io.Reader, hash *hash.Hash, G *group.Group, public Public, x *saferith.Nat) *Proof {
	a := G.RandomExponent(rand)
	A := G.Exp(public.Base, a)
	c := challenge(hash, G, public, A)
	return &Proof{
		C: c,
		Z: G.Response(a, c, x),
	}
}

// IsValid checks the ranges of the proof's elements.
func (p *Proof) IsValid(G *group.Group) bool {
	if p == nil || p.C == nil || p.Z == nil {
		return false
	}
	if _, _, lt := p.C.CmpMod(G.Q()); lt != 1 {
		return false
	}
	if _, _, lt := p.Z.CmpMod(G.PMinus1()); lt != 1 {
		return false
	}
	return true
}

// Verify recomputes A = Bᶻ⋅X⁻ᶜ and checks that it hashes to the same challenge.
func (p *Proof) Verify(hash *hash.Hash, G *group.Group, public Public) bool {
	if !p.IsValid(G) {
		return false
	}
	if !G.IsElement(public.Base) || !G.IsElement(public.X) {
		return false
	}
	A := G.ExpCheck(public.Base, p.Z, public.X, p.C)
	return challenge(hash, G, public, A).Eq(p.C) == 1
}
