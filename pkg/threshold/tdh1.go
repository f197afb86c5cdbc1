package threshold

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	"github.com/taurusgroup/multi-party-vote/internal/params"
)

// Ciphertext is a TDH1 ciphertext (c, u, ū, e, f) of Shoup and Gennaro.
//
//	c = H(Xʳ) ⊕ m, u = gʳ, ū = ḡʳ with ḡ = H(c, u, gˢ),
//	e = H(ḡ, ū, ḡˢ), f = s + r⋅e.
//
// (e, f) proves that log_g u = log_ḡ ū, so a ciphertext cannot be mauled into another one.
type Ciphertext struct {
	C  *saferith.Nat
	U  *saferith.Nat
	Ub *saferith.Nat
	E  *saferith.Nat
	F  *saferith.Nat
}

func (pk *PublicKey) mask(v *saferith.Nat) []byte {
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "TDH1 mask"}, pk.Group, v)
	return h.Sum()
}

func (pk *PublicKey) gBar(c, u, w *saferith.Nat) *saferith.Nat {
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "TDH1 generator"}, pk, c, u, w)
	return pk.Group.HashToElement(h.SumNat())
}

func (pk *PublicKey) tdh1Challenge(gb, ub, wb *saferith.Nat) *saferith.Nat {
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "TDH1 proof"}, pk, gb, ub, wb)
	return pk.Group.Challenge(h.SumNat())
}

func xor(m *saferith.Nat, mask []byte) (*saferith.Nat, error) {
	if m.Big().BitLen() > params.DigestBits {
		return nil, fmt.Errorf("threshold: message longer than %d bits", params.DigestBits)
	}
	buf := m.Big().FillBytes(make([]byte, params.DigestBytes))
	for i := range buf {
		buf[i] ^= mask[i]
	}
	return new(saferith.Nat).SetBytes(buf), nil
}

// Encrypt encrypts a message of at most 512 bits.
func (pk *PublicKey) Encrypt(rand io.Reader, m *saferith.Nat) (*Ciphertext, error) {
	G := pk.Group
	r := G.RandomScalar(rand)
	s := G.RandomScalar(rand)

	c, err := xor(m, pk.mask(G.Exp(pk.X, r)))
	if err != nil {
		return nil, err
	}
	u := G.ExpG(r)
	w := G.ExpG(s)
	gb := pk.gBar(c, u, w)
	ub := G.Exp(gb, r)
	wb := G.Exp(gb, s)
	e := pk.tdh1Challenge(gb, ub, wb)

	return &Ciphertext{
		C:  c,
		U:  u,
		Ub: ub,
		E:  e,
		F:  G.Response(s, e, r),
	}, nil
}

// WellFormed recomputes w = gᶠ⋅u⁻ᵉ, ḡ, w̄ = ḡᶠ⋅ū⁻ᵉ and checks e = H(ḡ, ū, w̄).
func (ct *Ciphertext) WellFormed(pk *PublicKey) bool {
	G := pk.Group
	if ct == nil || ct.C == nil || ct.E == nil || ct.F == nil {
		return false
	}
	if !G.InSubgroup(ct.U) || !G.InSubgroup(ct.Ub) {
		return false
	}
	if ct.C.Big().BitLen() > params.DigestBits {
		return false
	}
	w := G.ExpCheck(G.Generator(), ct.F, ct.U, ct.E)
	gb := pk.gBar(ct.C, ct.U, w)
	wb := G.ExpCheck(gb, ct.F, ct.Ub, ct.E)
	return pk.tdh1Challenge(gb, ct.Ub, wb).Eq(ct.E) == 1
}

// PartialDecrypt returns uˣⁱ with its proof, after checking the ciphertext is well formed.
func (sk *PrivateKey) PartialDecrypt(rand io.Reader, ct *Ciphertext) (*PartialDecryption, error) {
	if !ct.WellFormed(sk.PublicKey) {
		return nil, ErrMalformedCiphertext
	}
	return sk.partialDecrypt(rand, ct.U), nil
}

// VerifyShare checks a partial decryption of ct.
func (ct *Ciphertext) VerifyShare(pk *PublicKey, share *PartialDecryption) error {
	return share.Verify(pk, ct.U)
}

// Combine verifies the shares and recovers m = c ⊕ H(Xʳ), with Xʳ interpolated from K shares.
func (ct *Ciphertext) Combine(pk *PublicKey, shares []*PartialDecryption) (*saferith.Nat, error) {
	if !ct.WellFormed(pk) {
		return nil, ErrMalformedCiphertext
	}
	xr, err := pk.combine(ct.U, shares)
	if err != nil {
		return nil, err
	}
	return xor(ct.C, pk.mask(xr))
}
