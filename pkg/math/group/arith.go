package group

import (
	"github.com/cronokirby/saferith"
)

// Add returns x + y mod p.
func (G *Group) Add(x, y *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModAdd(x, y, G.p)
}

// Sub returns x - y mod p.
func (G *Group) Sub(x, y *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModSub(x, y, G.p)
}

// Mul returns x ⋅ y mod p.
func (G *Group) Mul(x, y *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModMul(x, y, G.p)
}

// Exp returns xᵉ mod p.
func (G *Group) Exp(x, e *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Exp(G.Reduce(x), e, G.p)
}

// ExpG returns gᵉ mod p.
func (G *Group) ExpG(e *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Exp(G.g, e, G.p)
}

// Inv returns x⁻¹ mod p.
func (G *Group) Inv(x *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModInverse(x, G.p)
}

// Div returns x ⋅ y⁻¹ mod p.
func (G *Group) Div(x, y *saferith.Nat) *saferith.Nat {
	return G.Mul(x, G.Inv(y))
}

// Reduce returns x mod p.
func (G *Group) Reduce(x *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Mod(x, G.p)
}

// Eq returns true if x = y mod p.
func (G *Group) Eq(x, y *saferith.Nat) bool {
	return G.Reduce(x).Eq(G.Reduce(y)) == 1
}

// AddQ returns x + y mod q.
func (G *Group) AddQ(x, y *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModAdd(x, y, G.q)
}

// SubQ returns x - y mod q.
func (G *Group) SubQ(x, y *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModSub(x, y, G.q)
}

// MulQ returns x ⋅ y mod q.
func (G *Group) MulQ(x, y *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModMul(x, y, G.q)
}

// ExpQ returns xᵉ mod q.
func (G *Group) ExpQ(x, e *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Exp(new(saferith.Nat).Mod(x, G.q), e, G.q)
}

// InvQ returns x⁻¹ mod q using Fermat's little theorem, x^(q-2).
//
// x must not be 0 mod q.
func (G *Group) InvQ(x *saferith.Nat) *saferith.Nat {
	qm2 := new(saferith.Nat).Sub(G.qm1, G.one, G.qm1.AnnouncedLen())
	return G.ExpQ(new(saferith.Nat).Mod(x, G.q), qm2)
}

// ReduceQ returns x mod q.
func (G *Group) ReduceQ(x *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Mod(x, G.q)
}

// Response returns s + c⋅x mod (p - 1).
//
// This is the response of every Schnorr-like proof in this module. Working modulo p - 1
// keeps the proofs valid for bases of any order in ℤₚˣ.
func (G *Group) Response(s, c, x *saferith.Nat) *saferith.Nat {
	cx := new(saferith.Nat).ModMul(
		new(saferith.Nat).Mod(c, G.pMinus1),
		new(saferith.Nat).Mod(x, G.pMinus1),
		G.pMinus1)
	return cx.ModAdd(cx, new(saferith.Nat).Mod(s, G.pMinus1), G.pMinus1)
}

// Challenge reduces a digest to a challenge in [0, q).
func (G *Group) Challenge(digest *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Mod(digest, G.q)
}

// ExpCheck returns aᶻ ⋅ b⁻ᶜ mod p, the commitment recomputed by Schnorr-like verifiers.
func (G *Group) ExpCheck(a, z, b, c *saferith.Nat) *saferith.Nat {
	return G.Div(G.Exp(a, z), G.Exp(b, c))
}

// HashToElement maps a digest to an element of the order q subgroup.
//
// The digest is reduced into [1, p-1] and squared.
func (G *Group) HashToElement(digest *saferith.Nat) *saferith.Nat {
	h := new(saferith.Nat).Mod(digest, G.pMinus1)
	h.ModAdd(h, G.one, G.p)
	return G.Mul(h, h)
}
