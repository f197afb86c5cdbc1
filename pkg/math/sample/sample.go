package sample

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
)

const maxIterations = 255

var ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

func mustReadBits(rand io.Reader, buf []byte) {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return
		}
	}
	panic(ErrMaxIterations)
}

// ModN samples an element of ℤₙ uniformly.
//
// Candidates are masked to the bit length of n and rejected when ≥ n,
// so the acceptance probability is always above 1/2.
func ModN(rand io.Reader, n *saferith.Modulus) *saferith.Nat {
	out := new(saferith.Nat)
	bits := n.BitLen()
	buf := make([]byte, (bits+7)/8)
	mask := byte(0xff)
	if r := bits % 8; r != 0 {
		mask = byte(1<<uint(r)) - 1
	}
	for {
		mustReadBits(rand, buf)
		buf[0] &= mask
		out.SetBytes(buf)
		_, _, lt := out.CmpMod(n)
		if lt == 1 {
			break
		}
	}
	return out
}

// Interval samples uniformly from the closed interval [lo, hi].
//
// It panics if hi < lo.
func Interval(rand io.Reader, lo, hi *saferith.Nat) *saferith.Nat {
	gt, _, _ := lo.Cmp(hi)
	if gt == 1 {
		panic("sample.Interval: empty interval")
	}
	// width = hi - lo + 1
	width := new(saferith.Nat).Sub(hi, lo, hi.AnnouncedLen())
	width.Add(width, new(saferith.Nat).SetUint64(1), hi.AnnouncedLen()+1)
	offset := ModN(rand, saferith.ModulusFromNat(width))
	return new(saferith.Nat).Add(lo, offset, hi.AnnouncedLen()+1)
}
