// Package bitstream implements an MSB-first bit buffer backed by a single integer,
// used to pack arbitrary payloads into fixed size group blocks.
package bitstream

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/taurusgroup/multi-party-vote/internal/params"
)

var (
	// ErrOutOfRange is returned when reading past the end, or seeking outside the stream.
	ErrOutOfRange = errors.New("bitstream: out of range")
	// ErrTooWide is returned when a value does not fit in the requested number of bits.
	ErrTooWide = errors.New("bitstream: value does not fit")
	// ErrNonASCII is returned when writing a string containing characters outside 7-bit ASCII.
	ErrNonASCII = errors.New("bitstream: string is not 7-bit ASCII")
)

// BitStream is a sequence of Len() bits, the first of which is the most significant bit
// of the backing integer. Leading zero bits are part of the stream.
//
// The cursor Pos() lies in [0, Len()]. Writes insert at the cursor and advance it.
type BitStream struct {
	value *big.Int
	nbits int
	ptr   int
}

// New returns an empty stream.
func New() *BitStream {
	return &BitStream{value: new(big.Int)}
}

// FromInt returns a stream holding the BitLen() bits of v, with the cursor at 0.
func FromInt(v *big.Int) *BitStream {
	return &BitStream{value: new(big.Int).Set(v), nbits: v.BitLen()}
}

// Len returns the number of bits in the stream.
func (bs *BitStream) Len() int { return bs.nbits }

// Pos returns the cursor position.
func (bs *BitStream) Pos() int { return bs.ptr }

// Remaining returns the number of bits after the cursor.
func (bs *BitStream) Remaining() int { return bs.nbits - bs.ptr }

// Int returns a copy of the backing integer.
func (bs *BitStream) Int() *big.Int { return new(big.Int).Set(bs.value) }

// Seek moves the cursor to pos.
func (bs *BitStream) Seek(pos int) error {
	if pos < 0 || pos > bs.nbits {
		return fmt.Errorf("%w: seek to %d in %d bits", ErrOutOfRange, pos, bs.nbits)
	}
	bs.ptr = pos
	return nil
}

func mask(n int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(n))
	return m.Sub(m, big.NewInt(1))
}

// Read returns the next n bits as an integer and advances the cursor.
func (bs *BitStream) Read(n int) (*big.Int, error) {
	if n < 0 || n > bs.Remaining() {
		return nil, fmt.Errorf("%w: read %d bits with %d remaining", ErrOutOfRange, n, bs.Remaining())
	}
	v := new(big.Int).Rsh(bs.value, uint(bs.Remaining()-n))
	v.And(v, mask(n))
	bs.ptr += n
	return v, nil
}

// Write inserts the n low bits of bits at the cursor and advances it.
func (bs *BitStream) Write(bits *big.Int, n int) error {
	if n < 0 || bits.Sign() < 0 || bits.BitLen() > n {
		return fmt.Errorf("%w: %d bits into %d", ErrTooWide, bits.BitLen(), n)
	}
	remaining := uint(bs.Remaining())
	head := new(big.Int).Rsh(bs.value, remaining)
	head.Lsh(head, remaining+uint(n))
	middle := new(big.Int).Lsh(bits, remaining)
	tail := new(big.Int).And(bs.value, mask(int(remaining)))

	bs.value = head.Or(head, middle).Or(head, tail)
	bs.nbits += n
	bs.ptr += n
	return nil
}

// WriteUint is Write for small values.
func (bs *BitStream) WriteUint(v uint64, n int) error {
	return bs.Write(new(big.Int).SetUint64(v), n)
}

// MultipleOf zero-extends the stream to a multiple of blockSize bits.
//
// With padAtEnd the zeros are appended and the cursor moves to the end. Otherwise the stream
// is extended at the front, which leaves the integer value unchanged; the cursor keeps
// pointing at the same bit.
func (bs *BitStream) MultipleOf(blockSize int, padAtEnd bool) error {
	if blockSize <= 0 {
		return fmt.Errorf("bitstream: block size must be positive, got %d", blockSize)
	}
	r := bs.nbits % blockSize
	if r == 0 {
		return nil
	}
	diff := blockSize - r
	if padAtEnd {
		bs.ptr = bs.nbits
		return bs.Write(new(big.Int), diff)
	}
	bs.nbits += diff
	bs.ptr += diff
	return nil
}

// WriteString writes a 32-bit length followed by 7 bits per character.
func (bs *BitStream) WriteString(s string) error {
	if uint64(len(s)) >= 1<<params.StringLengthBits {
		return fmt.Errorf("%w: string of length %d", ErrTooWide, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] >= 1<<params.CharBits {
			return ErrNonASCII
		}
	}
	if err := bs.WriteUint(uint64(len(s)), params.StringLengthBits); err != nil {
		return err
	}
	for i := 0; i < len(s); i++ {
		if err := bs.WriteUint(uint64(s[i]), params.CharBits); err != nil {
			return err
		}
	}
	return nil
}

// ReadString reads a string written by WriteString.
func (bs *BitStream) ReadString() (string, error) {
	length, err := bs.Read(params.StringLengthBits)
	if err != nil {
		return "", err
	}
	n := int(length.Uint64())
	if n*params.CharBits > bs.Remaining() {
		return "", fmt.Errorf("%w: string of %d characters with %d bits remaining", ErrOutOfRange, n, bs.Remaining())
	}
	out := make([]byte, n)
	for i := range out {
		c, err := bs.Read(params.CharBits)
		if err != nil {
			return "", err
		}
		out[i] = byte(c.Uint64())
	}
	return string(out), nil
}

// Map splits the stream into blocks of blockSize bits from the start, and applies f to each.
//
// The length of the stream must be a multiple of blockSize, see MultipleOf.
func Map[T any](bs *BitStream, blockSize int, f func(*big.Int) (T, error)) ([]T, error) {
	if blockSize <= 0 || bs.nbits%blockSize != 0 {
		return nil, fmt.Errorf("bitstream: %d bits are not a multiple of %d", bs.nbits, blockSize)
	}
	if err := bs.Seek(0); err != nil {
		return nil, err
	}
	out := make([]T, 0, bs.nbits/blockSize)
	for bs.Remaining() > 0 {
		block, err := bs.Read(blockSize)
		if err != nil {
			return nil, err
		}
		v, err := f(block)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Unmap is the inverse of Map: it writes f(v) on blockSize bits for each value, and
// returns the resulting stream with the cursor at 0.
func Unmap[T any](values []T, blockSize int, f func(T) (*big.Int, error)) (*BitStream, error) {
	bs := New()
	for _, v := range values {
		block, err := f(v)
		if err != nil {
			return nil, err
		}
		if err = bs.Write(block, blockSize); err != nil {
			return nil, err
		}
	}
	bs.ptr = 0
	return bs, nil
}
