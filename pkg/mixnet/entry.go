package mixnet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
)

// Entry is the unit being shuffled: the blocks of one encrypted answer.
// All blocks of an entry move together.
type Entry []*elgamal.Ciphertext

// Reencrypt re-encrypts every block with its own exponent.
func (e Entry) Reencrypt(pk *elgamal.PublicKey, ks []*saferith.Nat) Entry {
	out := make(Entry, len(e))
	for i, ct := range e {
		out[i] = ct.Reencrypt(pk, ks[i])
	}
	return out
}

// Equal compares the entries block by block.
func (e Entry) Equal(other Entry) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if !e[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Validate checks that the entry has blocks, and the range of every block.
func (e Entry) Validate(pk *elgamal.PublicKey) error {
	if len(e) == 0 {
		return fmt.Errorf("%w: empty entry", elgamal.ErrMalformedCiphertext)
	}
	for b, ct := range e {
		if err := ct.Validate(pk.Group); err != nil {
			return fmt.Errorf("block %d: %w", b, err)
		}
	}
	return nil
}

// Domain implements hash.WriterToWithDomain.
func (Entry) Domain() string { return "Mix Entry" }

// WriteTo implements io.WriterTo.
func (e Entry) WriteTo(w io.Writer) (int64, error) {
	total := int64(0)
	n, err := w.Write([]byte{byte(len(e) >> 24), byte(len(e) >> 16), byte(len(e) >> 8), byte(len(e))})
	total += int64(n)
	if err != nil {
		return total, err
	}
	for _, ct := range e {
		m, err := ct.WriteTo(w)
		total += m
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// key is a canonical encoding, used to detect duplicates.
func (e Entry) key() string {
	var buf bytes.Buffer
	_, _ = e.WriteTo(&buf)
	return buf.String()
}
