package elgamal

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	zksch "github.com/taurusgroup/multi-party-vote/pkg/zk/sch"
)

// SignedCiphertext is an ElGamal ciphertext with a Schnorr proof of knowledge of its nonce,
// bound to δ. It cannot be re-encrypted without losing the proof, which prevents
// copying another voter's ciphertext with a different nonce.
type SignedCiphertext struct {
	Ciphertext
	Proof *zksch.Proof
}

func signedHash(pk *PublicKey, delta *saferith.Nat) *hash.Hash {
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "SignedCiphertext"}, pk, delta)
	return h
}

// EncryptSigned encrypts m ∈ (0, p) and proves knowledge of the nonce.
func (pk *PublicKey) EncryptSigned(rand io.Reader, m *saferith.Nat) (*SignedCiphertext, error) {
	ct, k, err := pk.encrypt(rand, m)
	if err != nil {
		return nil, err
	}
	public := zksch.Public{Base: pk.Group.Generator(), X: ct.Gamma}
	return &SignedCiphertext{
		Ciphertext: *ct,
		Proof:      zksch.NewProof(rand, signedHash(pk, ct.Delta), pk.Group, public, k),
	}, nil
}

// Verify checks the ranges of the ciphertext and the attached proof. γ = gᵏ must lie in the
// order q subgroup, so signed ciphertexts need a group whose generator has order q.
func (ct *SignedCiphertext) Verify(pk *PublicKey) error {
	if ct == nil {
		return ErrMalformedCiphertext
	}
	if err := ct.Ciphertext.Validate(pk.Group); err != nil {
		return err
	}
	if !pk.Group.InSubgroup(ct.Gamma) {
		return ErrMalformedCiphertext
	}
	public := zksch.Public{Base: pk.Group.Generator(), X: ct.Gamma}
	if !ct.Proof.Verify(signedHash(pk, ct.Delta), pk.Group, public) {
		return ErrSignatureInvalid
	}
	return nil
}

// DecryptSigned verifies the proof before decrypting.
func (sk *PrivateKey) DecryptSigned(ct *SignedCiphertext) (*saferith.Nat, error) {
	if err := ct.Verify(sk.PublicKey); err != nil {
		return nil, err
	}
	return sk.Decrypt(&ct.Ciphertext)
}

// Domain implements hash.WriterToWithDomain.
func (*SignedCiphertext) Domain() string { return "SignedCiphertext" }

// WriteTo implements io.WriterTo.
func (ct *SignedCiphertext) WriteTo(w io.Writer) (int64, error) {
	if ct == nil || ct.Proof == nil {
		return 0, ErrMalformedCiphertext
	}
	return writeNats(w, ct.Gamma, ct.Delta, ct.Proof.C, ct.Proof.Z)
}
