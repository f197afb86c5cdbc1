package elgamal

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

// Ciphertext is the pair (γ, δ) = (gᵏ, m⋅Xᵏ).
type Ciphertext struct {
	Gamma *saferith.Nat
	Delta *saferith.Nat
}

// Encrypt encrypts m ∈ (0, p) with a fresh nonce.
func (pk *PublicKey) Encrypt(rand io.Reader, m *saferith.Nat) (*Ciphertext, error) {
	ct, _, err := pk.encrypt(rand, m)
	return ct, err
}

func (pk *PublicKey) encrypt(rand io.Reader, m *saferith.Nat) (*Ciphertext, *saferith.Nat, error) {
	if !pk.Group.IsElement(m) {
		return nil, nil, ErrInvalidMessage
	}
	k := pk.Group.RandomExponent(rand)
	return pk.EncryptWithNonce(m, k), k, nil
}

// EncryptWithNonce returns (gᵏ, m⋅Xᵏ). The caller is responsible for the ranges of m and k.
func (pk *PublicKey) EncryptWithNonce(m, k *saferith.Nat) *Ciphertext {
	G := pk.Group
	return &Ciphertext{
		Gamma: G.ExpG(k),
		Delta: G.Mul(m, G.Exp(pk.X, k)),
	}
}

// Decrypt returns δ⋅γ^(p-1-x).
func (sk *PrivateKey) Decrypt(ct *Ciphertext) (*saferith.Nat, error) {
	if err := ct.Validate(sk.Group); err != nil {
		return nil, err
	}
	G := sk.Group
	e := new(saferith.Nat).ModSub(new(saferith.Nat).SetUint64(0), sk.x, G.PMinus1())
	return G.Mul(G.Exp(ct.Gamma, e), ct.Delta), nil
}

// Validate checks that both components lie in [1, p-1].
func (ct *Ciphertext) Validate(G *group.Group) error {
	if ct == nil || !G.IsElement(ct.Gamma) || !G.IsElement(ct.Delta) {
		return ErrMalformedCiphertext
	}
	return nil
}

// Reencrypt returns (γ⋅gᵏ, δ⋅Xᵏ), an encryption of the same plaintext.
func (ct *Ciphertext) Reencrypt(pk *PublicKey, k *saferith.Nat) *Ciphertext {
	G := pk.Group
	return &Ciphertext{
		Gamma: G.Mul(ct.Gamma, G.ExpG(k)),
		Delta: G.Mul(ct.Delta, G.Exp(pk.X, k)),
	}
}

// Reencrypt re-randomizes ct with a fresh k ∈ [1, p-2], which is returned as well.
func (pk *PublicKey) Reencrypt(rand io.Reader, ct *Ciphertext) (*Ciphertext, *saferith.Nat) {
	k := pk.Group.RandomExponent(rand)
	return ct.Reencrypt(pk, k), k
}

// Equal compares both components.
func (ct *Ciphertext) Equal(other *Ciphertext) bool {
	if ct == nil || other == nil {
		return ct == other
	}
	return ct.Gamma.Eq(other.Gamma) == 1 && ct.Delta.Eq(other.Delta) == 1
}

// Clone returns a deep copy.
func (ct *Ciphertext) Clone() *Ciphertext {
	return &Ciphertext{
		Gamma: new(saferith.Nat).SetNat(ct.Gamma),
		Delta: new(saferith.Nat).SetNat(ct.Delta),
	}
}

// Domain implements hash.WriterToWithDomain.
func (*Ciphertext) Domain() string { return "ElGamal Ciphertext" }

// WriteTo implements io.WriterTo.
func (ct *Ciphertext) WriteTo(w io.Writer) (int64, error) {
	if ct == nil {
		return 0, ErrMalformedCiphertext
	}
	return writeNats(w, ct.Gamma, ct.Delta)
}

// writeNats writes each value as a 2 byte length followed by its minimal big-endian bytes.
// A nil value is malformed.
func writeNats(w io.Writer, values ...*saferith.Nat) (int64, error) {
	total := int64(0)
	for _, v := range values {
		if v == nil {
			return total, ErrMalformedCiphertext
		}
		b := v.Big().Bytes()
		n, err := w.Write([]byte{byte(len(b) >> 8), byte(len(b))})
		total += int64(n)
		if err != nil {
			return total, err
		}
		n, err = w.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
