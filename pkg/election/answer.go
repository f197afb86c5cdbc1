package election

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/params"
	"github.com/taurusgroup/multi-party-vote/pkg/bitstream"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
	"github.com/taurusgroup/multi-party-vote/pkg/mixnet"
)

// EncryptedAnswer is an answer split into blocks, each encrypted with signed ElGamal.
type EncryptedAnswer struct {
	Blocks []*elgamal.SignedCiphertext
}

// Entry returns the plain ciphertexts of the blocks, as they enter the mix chain.
// Missing blocks stay nil, for the mix verification to reject.
func (a *EncryptedAnswer) Entry() mixnet.Entry {
	out := make(mixnet.Entry, len(a.Blocks))
	for i, b := range a.Blocks {
		if b != nil && b.Gamma != nil && b.Delta != nil {
			out[i] = b.Core().Clone()
		}
	}
	return out
}

// Verify checks the signature of every block.
func (a *EncryptedAnswer) Verify(pk *elgamal.PublicKey) error {
	for i, b := range a.Blocks {
		if err := b.Verify(pk); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

// Blocks returns the number of blocks every answer to q is padded to, so that all entries of
// a mix have the same shape.
func (q *Question) Blocks(G *group.Group) int {
	bits := params.StringLengthBits + params.CharBits*q.textLength()
	b := G.BlockBits()
	return (bits + b - 1) / b
}

// EncryptAnswer packs the JSON text of a into blocks of G.BlockBits() bits, encodes each
// block into the subgroup, and encrypts it.
func EncryptAnswer(rand io.Reader, pk *elgamal.PublicKey, q *Question, a *Answer) (*EncryptedAnswer, error) {
	if err := q.Check(a); err != nil {
		return nil, err
	}
	G := pk.Group
	text, err := json.Marshal(q.normalize(a))
	if err != nil {
		return nil, err
	}

	bs := bitstream.New()
	if err = bs.WriteString(string(text)); err != nil {
		return nil, err
	}
	width := q.Blocks(G) * G.BlockBits()
	if bs.Len() > width {
		return nil, fmt.Errorf("%w: answer does not fit in %d bits", ErrInvalidAnswer, width)
	}
	if err = bs.Seek(bs.Len()); err != nil {
		return nil, err
	}
	if err = bs.Write(new(big.Int), width-bs.Len()); err != nil {
		return nil, err
	}

	blocks, err := bitstream.Map(bs, G.BlockBits(), func(v *big.Int) (*elgamal.SignedCiphertext, error) {
		m, err := G.Encode(new(saferith.Nat).SetBig(v, G.BlockBits()))
		if err != nil {
			return nil, err
		}
		return pk.EncryptSigned(rand, m)
	})
	if err != nil {
		return nil, err
	}
	return &EncryptedAnswer{Blocks: blocks}, nil
}

// DecodeAnswer reverses EncryptAnswer, given the decrypted blocks.
func DecodeAnswer(G *group.Group, plaintexts []*saferith.Nat) (*Answer, error) {
	bs, err := bitstream.Unmap(plaintexts, G.BlockBits(), func(m *saferith.Nat) (*big.Int, error) {
		v, err := G.Decode(m)
		if err != nil {
			return nil, err
		}
		return v.Big(), nil
	})
	if err != nil {
		return nil, err
	}
	text, err := bs.ReadString()
	if err != nil {
		return nil, err
	}
	var a Answer
	if err = json.Unmarshal([]byte(text), &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	return &a, nil
}
