package hash

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_WriteAny(t *testing.T) {
	var err error

	testFunc := func(vs ...interface{}) error {
		h := New()
		for _, v := range vs {
			err = h.WriteAny(v)
			if err != nil {
				return err
			}
		}
		return nil
	}
	b := big.NewInt(35)
	n := new(saferith.Nat).SetBig(b, b.BitLen())
	m := saferith.ModulusFromBytes(b.Bytes())

	assert.NoError(t, testFunc(b, n, m))
	assert.NoError(t, testFunc([]byte{1, 4, 6}, "abc", 7, uint32(3), uint64(9)))
	assert.Error(t, testFunc(-1))
	assert.Error(t, testFunc((*saferith.Nat)(nil)))
}

func TestHash_WriteAny_Collision(t *testing.T) {
	testFunc := func(vs ...interface{}) []byte {
		h := New()
		require.NoError(t, h.WriteAny(vs...))
		return h.Sum()
	}
	b1 := []byte("1)(big.Int\x02*data_added*")
	b2 := []byte("3")
	n2 := new(big.Int)
	n2.SetString(hex.EncodeToString(b2), 16)
	h1 := testFunc(b1, n2)

	b1 = []byte("1")
	b2 = []byte("*data_added*)(big.Int\x023")
	n2 = new(big.Int)
	n2.SetString(hex.EncodeToString(b2), 16)
	h2 := testFunc(b1, n2)

	assert.NotEqual(t, h1, h2)

	assert.NotEqual(t, testFunc([]byte("ab"), []byte("c")), testFunc([]byte("a"), []byte("bc")))
}

func TestHash_NatCanonical(t *testing.T) {
	// the same value with different announced lengths hashes identically
	a := new(saferith.Nat).SetUint64(5)
	b := new(saferith.Nat).SetBytes([]byte{0, 0, 0, 5})
	h1, h2 := New(), New()
	require.NoError(t, h1.WriteAny(a))
	require.NoError(t, h2.WriteAny(b))
	assert.Equal(t, h1.Sum(), h2.Sum())
}

func TestHash_Clone(t *testing.T) {
	h := New()
	require.NoError(t, h.WriteAny([]byte("prefix")))
	c := h.Clone()
	require.NoError(t, c.WriteAny([]byte("suffix")))
	assert.NotEqual(t, h.Sum(), c.Sum())
	assert.Len(t, h.Sum(), DigestLengthBytes)
}

func TestCommit(t *testing.T) {
	h := New()
	c, d, err := h.Commit(rand.Reader, []byte("data"), 4)
	require.NoError(t, err)
	assert.True(t, h.Decommit(c, d, []byte("data"), 4))
	assert.False(t, h.Decommit(c, d, []byte("data"), 5))

	d[0] ^= 1
	assert.False(t, h.Decommit(c, d, []byte("data"), 4))
}

func TestBits(t *testing.T) {
	seed := []byte("seed")
	a := NewBits(seed).Take(1000)
	b := NewBits(seed).Take(1000)
	assert.Equal(t, a, b)

	ones := 0
	for _, bit := range a {
		require.LessOrEqual(t, bit, uint8(1))
		ones += int(bit)
	}
	// 1000 fair coins land far from the extremes
	assert.Greater(t, ones, 400)
	assert.Less(t, ones, 600)

	other := NewBits([]byte("other")).Take(1000)
	assert.False(t, bytes.Equal(a, other))
}
