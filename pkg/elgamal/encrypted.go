package elgamal

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
)

// Kind tags the variants of Encrypted.
type Kind uint8

const (
	KindPlain Kind = iota + 1
	KindSigned
	KindChaumPedersen
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindSigned:
		return "signed"
	case KindChaumPedersen:
		return "chaum-pedersen"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Encrypted is the closed set of ciphertext variants: *Ciphertext, *SignedCiphertext and *CPCiphertext.
type Encrypted interface {
	Kind() Kind
	// Core returns the underlying (γ, δ) pair, which is what gets re-encrypted.
	Core() *Ciphertext
	sealed()
}

func (*Ciphertext) Kind() Kind { return KindPlain }
func (ct *Ciphertext) Core() *Ciphertext { return ct }
func (*Ciphertext) sealed() {}

func (*SignedCiphertext) Kind() Kind { return KindSigned }
func (ct *SignedCiphertext) Core() *Ciphertext { return &ct.Ciphertext }
func (*SignedCiphertext) sealed() {}

func (*CPCiphertext) Kind() Kind { return KindChaumPedersen }
func (ct *CPCiphertext) Core() *Ciphertext {
	return &Ciphertext{Gamma: ct.R, Delta: ct.Y}
}
func (*CPCiphertext) sealed() {}

// EncryptAs encrypts m with the requested variant.
func (pk *PublicKey) EncryptAs(rand io.Reader, kind Kind, m *saferith.Nat) (Encrypted, error) {
	var (
		ct  Encrypted
		err error
	)
	switch kind {
	case KindPlain:
		ct, err = pk.Encrypt(rand, m)
	case KindSigned:
		ct, err = pk.EncryptSigned(rand, m)
	case KindChaumPedersen:
		ct, err = pk.EncryptCP(rand, m)
	default:
		return nil, fmt.Errorf("elgamal: unknown kind %v", kind)
	}
	if err != nil {
		return nil, err
	}
	return ct, nil
}

// DecryptAny decrypts any variant, checking its proof when it carries one.
func (sk *PrivateKey) DecryptAny(ct Encrypted) (*saferith.Nat, error) {
	switch t := ct.(type) {
	case *Ciphertext:
		return sk.Decrypt(t)
	case *SignedCiphertext:
		return sk.DecryptSigned(t)
	case *CPCiphertext:
		return sk.DecryptCP(t)
	default:
		return nil, errors.New("elgamal: unknown ciphertext type")
	}
}

// Verify performs every check possible without the private key.
//
// For *CPCiphertext this is only the range check, since its proof needs the key.
func Verify(pk *PublicKey, ct Encrypted) error {
	switch t := ct.(type) {
	case *Ciphertext:
		return t.Validate(pk.Group)
	case *SignedCiphertext:
		return t.Verify(pk)
	case *CPCiphertext:
		return t.Core().Validate(pk.Group)
	default:
		return errors.New("elgamal: unknown ciphertext type")
	}
}

// Envelope is the tagged serialized form of an Encrypted value.
type Envelope struct {
	Kind   Kind
	Plain  *Ciphertext       `cbor:",omitempty"`
	Signed *SignedCiphertext `cbor:",omitempty"`
	CP     *CPCiphertext     `cbor:",omitempty"`
}

// Wrap puts ct in an Envelope.
func Wrap(ct Encrypted) *Envelope {
	e := &Envelope{Kind: ct.Kind()}
	switch t := ct.(type) {
	case *Ciphertext:
		e.Plain = t
	case *SignedCiphertext:
		e.Signed = t
	case *CPCiphertext:
		e.CP = t
	}
	return e
}

// Open returns the variant stored in the envelope, checking the tag.
func (e *Envelope) Open() (Encrypted, error) {
	switch {
	case e.Kind == KindPlain && e.Plain != nil:
		return e.Plain, nil
	case e.Kind == KindSigned && e.Signed != nil:
		return e.Signed, nil
	case e.Kind == KindChaumPedersen && e.CP != nil:
		return e.CP, nil
	default:
		return nil, fmt.Errorf("elgamal: envelope of kind %v is empty", e.Kind)
	}
}
