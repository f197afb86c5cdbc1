// Package threshold implements k-out-of-n decryption: the TDH1 cryptosystem, and threshold
// decryption of ElGamal ciphertexts, with Chaum–Pedersen proofs on every partial decryption.
package threshold

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
	"github.com/taurusgroup/multi-party-vote/pkg/math/polynomial"
)

var (
	// ErrNotEnoughShares is returned when combining fewer than K distinct partial decryptions.
	ErrNotEnoughShares = errors.New("threshold: not enough partial decryptions")
	// ErrMalformedCiphertext is returned when a ciphertext is not well formed.
	ErrMalformedCiphertext = errors.New("threshold: malformed ciphertext")
)

// PublicKey is X = gˣ where x is shared among N() trustees, any K of which can decrypt.
//
// H[i] = g^xᵢ is the verification key of trustee i, whose share xᵢ = f(i + 1).
type PublicKey struct {
	Group *group.Group
	X     *saferith.Nat
	H     []*saferith.Nat
	K     int
}

// N returns the number of trustees.
func (pk *PublicKey) N() int {
	return len(pk.H)
}

// ElGamal returns X as an ElGamal public key, under which ballots are encrypted.
func (pk *PublicKey) ElGamal() *elgamal.PublicKey {
	return &elgamal.PublicKey{Group: pk.Group, X: pk.X}
}

// Validate checks the shape of the key and that every component lies in the subgroup.
func (pk *PublicKey) Validate() error {
	if pk == nil || pk.Group == nil {
		return errors.New("threshold: nil public key")
	}
	if pk.K < 1 || pk.K > len(pk.H) {
		return fmt.Errorf("threshold: invalid threshold %d for %d trustees", pk.K, len(pk.H))
	}
	if !pk.Group.InSubgroup(pk.X) {
		return errors.New("threshold: public key not in subgroup")
	}
	for i, h := range pk.H {
		if !pk.Group.InSubgroup(h) {
			return fmt.Errorf("threshold: verification key %d not in subgroup", i)
		}
	}
	return nil
}

// Domain implements hash.WriterToWithDomain.
func (*PublicKey) Domain() string { return "Threshold PublicKey" }

// WriteTo implements io.WriterTo.
func (pk *PublicKey) WriteTo(w io.Writer) (int64, error) {
	total, err := pk.Group.WriteTo(w)
	if err != nil {
		return total, err
	}
	for _, v := range append([]*saferith.Nat{pk.X, new(saferith.Nat).SetUint64(uint64(pk.K))}, pk.H...) {
		b := v.Big().Bytes()
		n, err := w.Write(append([]byte{byte(len(b) >> 8), byte(len(b))}, b...))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PrivateKey holds the share of trustee Index.
type PrivateKey struct {
	*PublicKey
	Index int
	share *saferith.Nat
}

// NewPrivateKey checks that share matches the verification key of trustee index.
func NewPrivateKey(pk *PublicKey, index int, share *saferith.Nat) (*PrivateKey, error) {
	if index < 0 || index >= pk.N() {
		return nil, fmt.Errorf("threshold: trustee index %d out of range", index)
	}
	if pk.Group.ExpG(share).Eq(pk.H[index]) != 1 {
		return nil, fmt.Errorf("threshold: share of trustee %d does not match its verification key", index)
	}
	return &PrivateKey{PublicKey: pk, Index: index, share: share}, nil
}

type privateMarshal struct {
	PublicKey *PublicKey
	Index     int
	Share     *saferith.Nat
}

// MarshalBinary includes the share, it is meant for private backups only.
func (sk *PrivateKey) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(privateMarshal{PublicKey: sk.PublicKey, Index: sk.Index, Share: sk.share})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (sk *PrivateKey) UnmarshalBinary(data []byte) error {
	var pm privateMarshal
	if err := cbor.Unmarshal(data, &pm); err != nil {
		return fmt.Errorf("threshold: unmarshal private key: %w", err)
	}
	if pm.PublicKey == nil || pm.Share == nil {
		return errors.New("threshold: unmarshal private key: missing field")
	}
	key, err := NewPrivateKey(pm.PublicKey, pm.Index, pm.Share)
	if err != nil {
		return err
	}
	*sk = *key
	return nil
}

// Deal splits a fresh secret among n trustees with a trusted dealer.
//
// Elections use the distributed key generation of package vss instead; this is for
// single authority setups.
func Deal(rand io.Reader, G *group.Group, k, n int) (*PublicKey, []*PrivateKey, error) {
	if k < 1 || k > n {
		return nil, nil, fmt.Errorf("threshold: invalid threshold %d for %d trustees", k, n)
	}
	f := polynomial.NewPolynomial(rand, G, k-1, nil)
	pk := &PublicKey{
		Group: G,
		X:     G.ExpG(f.Constant()),
		H:     make([]*saferith.Nat, n),
		K:     k,
	}
	shares := make([]*saferith.Nat, n)
	for i := range shares {
		shares[i] = f.EvaluateAt(i + 1)
		pk.H[i] = G.ExpG(shares[i])
	}
	keys := make([]*PrivateKey, n)
	for i := range keys {
		keys[i] = &PrivateKey{PublicKey: pk, Index: i, share: shares[i]}
	}
	return pk, keys, nil
}
