package hash

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/params"
	"github.com/zeebo/blake3"
)

const DigestLengthBytes = params.DigestBytes // 64

// Hash is the hash function we use for generating commitments, challenges, and fingerprints.
//
// Internally, this is a wrapper around blake3, but any hash function with
// an easily extendable output would work as well.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash struct where the internal hash function is initialized with "multi-party-vote".
func New() *Hash {
	hash := &Hash{h: blake3.New()}
	_, _ = hash.h.Write([]byte("multi-party-vote"))
	return hash
}

// Digest returns a reader for the current output of the function.
//
// This finalizes the current state of the hash, and returns what's
// essentially a stream of random bytes.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current hash state.
// If a different length is required, use io.ReadFull(hash.Digest(), out) instead.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// SumNat interprets Sum as a big-endian integer.
func (hash *Hash) SumNat() *saferith.Nat {
	return new(saferith.Nat).SetBytes(hash.Sum())
}

// WriteAny takes many different data types and writes them to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - string
//   - int, uint32, uint64
//   - *saferith.Nat
//   - *saferith.Modulus
//   - *big.Int
//   - hash.WriterToWithDomain
//
// This function will apply its own domain separation for the first types.
// The last type already suggests which domain to use, and this function respects it.
func (hash *Hash) WriteAny(data ...interface{}) error {
	return Encode(hash.h, data...)
}

// Encode writes data to w with the same framing as WriteAny.
//
// This lets other hash functions (e.g. for published fingerprints) consume the
// canonical encoding of our types.
func Encode(w io.Writer, data ...interface{}) error {
	var toBeWritten WriterToWithDomain
	for _, d := range data {
		switch t := d.(type) {
		case []byte:
			toBeWritten = &BytesWithDomain{"[]byte", t}
		case string:
			toBeWritten = &BytesWithDomain{"string", []byte(t)}
		case int:
			if t < 0 {
				return fmt.Errorf("hash.Hash: write int: negative value %d", t)
			}
			toBeWritten = &BytesWithDomain{"uint64", binary.BigEndian.AppendUint64(nil, uint64(t))}
		case uint32:
			toBeWritten = &BytesWithDomain{"uint32", binary.BigEndian.AppendUint32(nil, t)}
		case uint64:
			toBeWritten = &BytesWithDomain{"uint64", binary.BigEndian.AppendUint64(nil, t)}
		case *saferith.Nat:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *saferith.Nat: nil")
			}
			toBeWritten = &BytesWithDomain{"saferith.Nat", t.Big().Bytes()}
		case *saferith.Modulus:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *saferith.Modulus: nil")
			}
			toBeWritten = &BytesWithDomain{"saferith.Modulus", t.Big().Bytes()}
		case *big.Int:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *big.Int: nil")
			}
			if t.Sign() < 0 {
				return fmt.Errorf("hash.Hash: write *big.Int: negative value")
			}
			toBeWritten = &BytesWithDomain{"big.Int", t.Bytes()}
		case WriterToWithDomain:
			toBeWritten = t
		default:
			panic("hash.Hash: unsupported type")
		}
		if err := writeWithDomain(w, toBeWritten); err != nil {
			return fmt.Errorf("hash.Hash: write %s: %w", toBeWritten.Domain(), err)
		}
	}
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}
