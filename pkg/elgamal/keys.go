// Package elgamal implements multiplicative ElGamal over a safe prime group,
// its re-encryption, and two self-authenticating variants.
package elgamal

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

var (
	// ErrMalformedCiphertext is returned when a ciphertext component lies outside [1, p-1].
	ErrMalformedCiphertext = errors.New("elgamal: malformed ciphertext")
	// ErrSignatureInvalid is returned when the proof attached to a ciphertext does not verify.
	ErrSignatureInvalid = errors.New("elgamal: signature is incorrect")
	// ErrInvalidMessage is returned when encrypting a message outside (0, p).
	ErrInvalidMessage = errors.New("elgamal: message must lie in (0, p)")
)

// PublicKey is X = gˣ, together with the group it lives in.
type PublicKey struct {
	Group *group.Group
	X     *saferith.Nat
}

// PrivateKey holds the secret exponent x ∈ [1, p-2].
type PrivateKey struct {
	*PublicKey
	x *saferith.Nat
}

// GenerateKey samples a fresh key pair.
func GenerateKey(rand io.Reader, G *group.Group) *PrivateKey {
	x := G.RandomExponent(rand)
	return NewPrivateKey(G, x)
}

// NewPrivateKey derives the key pair for a known secret.
func NewPrivateKey(G *group.Group, x *saferith.Nat) *PrivateKey {
	return &PrivateKey{
		PublicKey: &PublicKey{Group: G, X: G.ExpG(x)},
		x:         x,
	}
}

// Public returns the public half of the key pair.
func (sk *PrivateKey) Public() *PublicKey {
	return sk.PublicKey
}

// Validate checks that X is a group element.
func (pk *PublicKey) Validate() error {
	if pk == nil || pk.Group == nil || !pk.Group.IsElement(pk.X) {
		return errors.New("elgamal: invalid public key")
	}
	return nil
}

// Equal returns true if both keys are the same element of the same group.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.Group.Equal(other.Group) && pk.X.Eq(other.X) == 1
}

// Domain implements hash.WriterToWithDomain.
func (*PublicKey) Domain() string { return "ElGamal PublicKey" }

// WriteTo implements io.WriterTo.
func (pk *PublicKey) WriteTo(w io.Writer) (int64, error) {
	n, err := pk.Group.WriteTo(w)
	if err != nil {
		return n, err
	}
	m, err := w.Write(pk.X.Big().Bytes())
	return n + int64(m), err
}

type privateMarshal struct {
	Group *group.Group
	X     *saferith.Nat
}

// MarshalBinary includes the secret exponent, it is meant for private backups only.
func (sk *PrivateKey) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(privateMarshal{Group: sk.Group, X: sk.x})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (sk *PrivateKey) UnmarshalBinary(data []byte) error {
	var pm privateMarshal
	if err := cbor.Unmarshal(data, &pm); err != nil {
		return fmt.Errorf("elgamal: unmarshal private key: %w", err)
	}
	if pm.Group == nil || pm.X == nil {
		return errors.New("elgamal: unmarshal private key: missing field")
	}
	*sk = *NewPrivateKey(pm.Group, pm.X)
	return nil
}
