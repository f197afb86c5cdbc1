// Package zkdleq implements the Chaum–Pedersen proof that two pairs share a discrete logarithm:
// H₁ = G₁ˣ and H₂ = G₂ˣ.
package zkdleq

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

type (
	Public struct {
		G1, H1 *saferith.Nat
		G2, H2 *saferith.Nat
	}
	Private struct {
		X *saferith.Nat
	}
)

type Proof struct {
	// E = H(public, G₁ˢ, G₂ˢ) mod q
	E *saferith.Nat
	// F = s + E⋅x mod (p-1)
	F *saferith.Nat
}

func (public Public) valid(G *group.Group) bool {
	return G.IsElement(public.G1) && G.IsElement(public.H1) &&
		G.IsElement(public.G2) && G.IsElement(public.H2)
}

func challenge(hash *hash.Hash, G *group.Group, public Public, A1, A2 *saferith.Nat) *saferith.Nat {
	_ = hash.WriteAny(G, public.G1, public.H1, public.G2, public.H2, A1, A2)
	return G.Challenge(hash.SumNat())
}

func NewProof(rand io.Reader, hash *hash.Hash, G *group.Group, public Public, private Private) *Proof {
	s := G.RandomExponent(rand)
	A1 := G.Exp(public.G1, s)
	A2 := G.Exp(public.G2, s)
	e := challenge(hash, G, public, A1, A2)
	return &Proof{
		E: e,
		F: G.Response(s, e, private.X),
	}
}

// IsValid checks the ranges of the proof's elements.
func (p *Proof) IsValid(G *group.Group) bool {
	if p == nil || p.E == nil || p.F == nil {
		return false
	}
	if _, _, lt := p.E.CmpMod(G.Q()); lt != 1 {
		return false
	}
	if _, _, lt := p.F.CmpMod(G.PMinus1()); lt != 1 {
		return false
	}
	return true
}

func (p *Proof) Verify(hash *hash.Hash, G *group.Group, public Public) bool {
	if !p.IsValid(G) || !public.valid(G) {
		return false
	}
	// A₁ = G₁ᶠ⋅H₁⁻ᵉ, A₂ = G₂ᶠ⋅H₂⁻ᵉ
	A1 := G.ExpCheck(public.G1, p.F, public.H1, p.E)
	A2 := G.ExpCheck(public.G2, p.F, public.H2, p.E)
	return challenge(hash, G, public, A1, A2).Eq(p.E) == 1
}
