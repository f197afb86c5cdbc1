package hash

import (
	"encoding/binary"
)

// Bits is a deterministic stream of bits derived from a seed.
//
// Block i of the stream is H("bits", seed, i); bits are consumed most significant first.
// Any party holding the seed reproduces the same stream, which is what the
// cut-and-choose verifier relies on.
type Bits struct {
	seed    []byte
	counter uint64
	block   []byte
	offset  int
}

// NewBits creates a bit stream from seed.
func NewBits(seed []byte) *Bits {
	return &Bits{seed: append([]byte(nil), seed...)}
}

func (b *Bits) refill() {
	h := New()
	_ = h.WriteAny(&BytesWithDomain{"Bits", b.seed}, binary.BigEndian.AppendUint64(nil, b.counter))
	b.block = h.Sum()
	b.counter++
	b.offset = 0
}

// Next returns the next bit of the stream, as 0 or 1.
func (b *Bits) Next() uint8 {
	if b.block == nil || b.offset == 8*len(b.block) {
		b.refill()
	}
	bit := (b.block[b.offset/8] >> (7 - uint(b.offset%8))) & 1
	b.offset++
	return bit
}

// Take returns the next n bits of the stream.
func (b *Bits) Take(n int) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = b.Next()
	}
	return out
}
