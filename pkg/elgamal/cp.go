package elgamal

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

// CPCiphertext is an ElGamal ciphertext (R, Y) = (gʳ, m⋅Xʳ) carrying a Chaum–Pedersen proof
// that log_g R = log_X Rᵖ, where Rᵖ = Xʳ = Rˣ.
//
// Only the key holder can recompute Rᵖ and Aᵖ = Aˣ, so the proof is checked during decryption.
type CPCiphertext struct {
	R *saferith.Nat
	Y *saferith.Nat
	// A = gᵃ
	A *saferith.Nat
	// S = a + c⋅r mod (p-1)
	S *saferith.Nat
}

func cpChallenge(G *group.Group, Y, R, Rp, A, Ap *saferith.Nat) *saferith.Nat {
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "CPCiphertext"}, G, Y, R, Rp, A, Ap)
	return G.Challenge(h.SumNat())
}

// EncryptCP encrypts m ∈ (0, p) with a Chaum–Pedersen proof.
func (pk *PublicKey) EncryptCP(rand io.Reader, m *saferith.Nat) (*CPCiphertext, error) {
	G := pk.Group
	if !G.IsElement(m) {
		return nil, ErrInvalidMessage
	}
	r := G.RandomExponent(rand)
	a := G.RandomExponent(rand)

	R := G.ExpG(r)
	Rp := G.Exp(pk.X, r)
	Y := G.Mul(m, Rp)
	A := G.ExpG(a)
	Ap := G.Exp(pk.X, a)

	c := cpChallenge(G, Y, R, Rp, A, Ap)
	return &CPCiphertext{
		R: R,
		Y: Y,
		A: A,
		S: G.Response(a, c, r),
	}, nil
}

// DecryptCP checks gˢ = A⋅Rᶜ and Xˢ = Aᵖ⋅(Rᵖ)ᶜ before the range check, then returns Y⋅(Rᵖ)⁻¹.
func (sk *PrivateKey) DecryptCP(ct *CPCiphertext) (*saferith.Nat, error) {
	if ct == nil || ct.R == nil || ct.Y == nil || ct.A == nil || ct.S == nil {
		return nil, ErrMalformedCiphertext
	}
	G := sk.Group
	R, Y, A := G.Reduce(ct.R), G.Reduce(ct.Y), G.Reduce(ct.A)
	S := new(saferith.Nat).Mod(ct.S, G.PMinus1())

	Rp := G.Exp(R, sk.x)
	Ap := G.Exp(A, sk.x)
	c := cpChallenge(G, Y, R, Rp, A, Ap)

	if !G.Eq(G.ExpG(S), G.Mul(A, G.Exp(R, c))) {
		return nil, ErrSignatureInvalid
	}
	if !G.Eq(G.Exp(sk.X, S), G.Mul(Ap, G.Exp(Rp, c))) {
		return nil, ErrSignatureInvalid
	}

	if err := ct.Core().Validate(G); err != nil {
		return nil, err
	}
	return G.Div(ct.Y, Rp), nil
}

// Domain implements hash.WriterToWithDomain.
func (*CPCiphertext) Domain() string { return "CPCiphertext" }

// WriteTo implements io.WriterTo.
func (ct *CPCiphertext) WriteTo(w io.Writer) (int64, error) {
	if ct == nil {
		return 0, ErrMalformedCiphertext
	}
	return writeNats(w, ct.R, ct.Y, ct.A, ct.S)
}
