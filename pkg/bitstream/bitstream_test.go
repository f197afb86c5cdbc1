package bitstream

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binary(t *testing.T, s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 2)
	require.True(t, ok)
	return v
}

func TestReadWrite(t *testing.T) {
	bs := FromInt(binary(t, "100101"))
	require.Equal(t, 6, bs.Len())

	v, err := bs.Read(3)
	require.NoError(t, err)
	assert.Equal(t, int64(0b100), v.Int64())
	v, err = bs.Read(3)
	require.NoError(t, err)
	assert.Equal(t, int64(0b101), v.Int64())
	_, err = bs.Read(1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// writes insert at the cursor
	require.NoError(t, bs.Seek(4))
	require.NoError(t, bs.Write(binary(t, "11"), 2))
	assert.Equal(t, 8, bs.Len())
	assert.Equal(t, 6, bs.Pos())
	assert.Zero(t, binary(t, "10011101").Cmp(bs.Int()))

	// leading zeros are kept
	bs = New()
	require.NoError(t, bs.Write(big.NewInt(1), 4))
	require.NoError(t, bs.Write(big.NewInt(0), 3))
	assert.Equal(t, 7, bs.Len())
	require.NoError(t, bs.Seek(0))
	v, err = bs.Read(4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int64())

	assert.ErrorIs(t, bs.Write(big.NewInt(8), 3), ErrTooWide)
	assert.ErrorIs(t, bs.Seek(8), ErrOutOfRange)
}

func TestMultipleOf(t *testing.T) {
	bs := FromInt(binary(t, "10110"))
	require.NoError(t, bs.MultipleOf(4, true))
	assert.Equal(t, 8, bs.Len())
	assert.Zero(t, binary(t, "10110000").Cmp(bs.Int()))

	bs = FromInt(binary(t, "10110"))
	require.NoError(t, bs.MultipleOf(4, false))
	assert.Equal(t, 8, bs.Len())
	assert.Zero(t, binary(t, "10110").Cmp(bs.Int()))
	require.NoError(t, bs.Seek(0))
	v, err := bs.Read(4)
	require.NoError(t, err)
	assert.Equal(t, int64(0b0001), v.Int64())

	bs = FromInt(binary(t, "1011"))
	require.NoError(t, bs.MultipleOf(4, true))
	assert.Equal(t, 4, bs.Len())
}

func TestString(t *testing.T) {
	for _, s := range []string{"", "a", "Hello World!", `{"choices":[0,2]}`} {
		bs := New()
		require.NoError(t, bs.WriteString(s))
		assert.Equal(t, 32+7*len(s), bs.Len())
		require.NoError(t, bs.Seek(0))
		got, err := bs.ReadString()
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	assert.ErrorIs(t, New().WriteString("héllo"), ErrNonASCII)

	bs := New()
	require.NoError(t, bs.WriteUint(10, 32))
	require.NoError(t, bs.Seek(0))
	_, err := bs.ReadString()
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestMapUnmap(t *testing.T) {
	const blockSize = 8
	message := "Lorem ipsum dolor sit amet"

	bs := New()
	require.NoError(t, bs.WriteString(message))
	require.NoError(t, bs.MultipleOf(blockSize, true))

	blocks, err := Map(bs, blockSize, func(b *big.Int) (*big.Int, error) { return b, nil })
	require.NoError(t, err)
	assert.Len(t, blocks, bs.Len()/blockSize)
	for _, b := range blocks {
		assert.LessOrEqual(t, b.BitLen(), blockSize)
	}

	again, err := Unmap(blocks, blockSize, func(b *big.Int) (*big.Int, error) { return b, nil })
	require.NoError(t, err)
	assert.Equal(t, bs.Len(), again.Len())
	got, err := again.ReadString()
	require.NoError(t, err)
	assert.Equal(t, message, got)

	_, err = Map(FromInt(big.NewInt(0b101)), blockSize, func(b *big.Int) (*big.Int, error) { return b, nil })
	assert.Error(t, err)
}
