package elgamal

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-vote/internal/test"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

func nat(x uint64) *saferith.Nat {
	return new(saferith.Nat).SetUint64(x)
}

func TestEncryptKnownValues(t *testing.T) {
	G := test.TinyGroup()
	sk := NewPrivateKey(G, nat(3))
	assert.Equal(t, uint64(8), sk.X.Big().Uint64())

	ct := sk.EncryptWithNonce(nat(3), nat(4))
	assert.Equal(t, uint64(5), ct.Gamma.Big().Uint64())
	assert.Equal(t, uint64(1), ct.Delta.Big().Uint64())

	m, err := sk.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.Big().Uint64())
}

func TestEncryptDecrypt(t *testing.T) {
	G := test.SmallGroup()
	sk := GenerateKey(rand.Reader, G)
	for i := 0; i < 50; i++ {
		m := G.RandomElement(rand.Reader)
		ct, err := sk.Encrypt(rand.Reader, m)
		require.NoError(t, err)
		got, err := sk.Decrypt(ct)
		require.NoError(t, err)
		assert.True(t, got.Eq(m) == 1)
	}

	_, err := sk.Encrypt(rand.Reader, nat(0))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = sk.Encrypt(rand.Reader, nat(1019))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDecryptMalformed(t *testing.T) {
	G := test.TinyGroup()
	sk := NewPrivateKey(G, nat(3))
	for _, ct := range []*Ciphertext{
		{Gamma: nat(0), Delta: nat(1)},
		{Gamma: nat(11), Delta: nat(1)},
		{Gamma: nat(5), Delta: nat(0)},
		{Gamma: nat(5), Delta: nat(12)},
	} {
		_, err := sk.Decrypt(ct)
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	}
}

func TestReencrypt(t *testing.T) {
	G := test.SmallGroup()
	sk := GenerateKey(rand.Reader, G)
	m := G.RandomElement(rand.Reader)
	ct, err := sk.Encrypt(rand.Reader, m)
	require.NoError(t, err)

	again, k := sk.Reencrypt(rand.Reader, ct)
	assert.True(t, again.Equal(ct.Reencrypt(sk.PublicKey, k)))
	got, err := sk.Decrypt(again)
	require.NoError(t, err)
	assert.True(t, got.Eq(m) == 1)
	assert.True(t, ct.Clone().Equal(ct))
}

func TestSigned(t *testing.T) {
	G := group.Default()
	sk := GenerateKey(rand.Reader, G)
	m := nat(42)

	ct, err := sk.EncryptSigned(rand.Reader, m)
	require.NoError(t, err)
	require.NoError(t, ct.Verify(sk.PublicKey))
	got, err := sk.DecryptSigned(ct)
	require.NoError(t, err)
	assert.True(t, got.Eq(m) == 1)

	// re-randomizing the pair invalidates the proof
	reenc, _ := sk.Reencrypt(rand.Reader, &ct.Ciphertext)
	tampered := &SignedCiphertext{Ciphertext: *reenc, Proof: ct.Proof}
	assert.ErrorIs(t, tampered.Verify(sk.PublicKey), ErrSignatureInvalid)

	tampered = &SignedCiphertext{
		Ciphertext: Ciphertext{Gamma: ct.Gamma, Delta: G.Mul(ct.Delta, nat(2))},
		Proof:      ct.Proof,
	}
	_, err = sk.DecryptSigned(tampered)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	other := GenerateKey(rand.Reader, G)
	assert.ErrorIs(t, ct.Verify(other.PublicKey), ErrSignatureInvalid)
}

func TestCP(t *testing.T) {
	G := group.Default()
	sk := GenerateKey(rand.Reader, G)
	m := nat(1234567)

	ct, err := sk.EncryptCP(rand.Reader, m)
	require.NoError(t, err)
	got, err := sk.DecryptCP(ct)
	require.NoError(t, err)
	assert.True(t, got.Eq(m) == 1)

	bad := *ct
	bad.S = G.Add(ct.S, nat(1))
	_, err = sk.DecryptCP(&bad)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	bad = *ct
	bad.Y = G.Mul(ct.Y, nat(2))
	_, err = sk.DecryptCP(&bad)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	// the proof is checked before the range
	bad = *ct
	bad.R = nat(0)
	_, err = sk.DecryptCP(&bad)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	_, err = sk.DecryptCP(&CPCiphertext{})
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestEncryptedVariants(t *testing.T) {
	G := test.SmallGroup()
	sk := GenerateKey(rand.Reader, G)
	m := nat(77)
	for _, kind := range []Kind{KindPlain, KindSigned, KindChaumPedersen} {
		ct, err := sk.EncryptAs(rand.Reader, kind, m)
		require.NoError(t, err)
		assert.Equal(t, kind, ct.Kind())
		require.NoError(t, Verify(sk.PublicKey, ct))

		data, err := cbor.Marshal(Wrap(ct))
		require.NoError(t, err)
		var envelope Envelope
		require.NoError(t, cbor.Unmarshal(data, &envelope))
		opened, err := envelope.Open()
		require.NoError(t, err, kind.String())
		assert.Equal(t, kind, opened.Kind())

		got, err := sk.DecryptAny(opened)
		require.NoError(t, err)
		assert.True(t, got.Eq(m) == 1)

		// the core of every variant is an ordinary ciphertext of m
		core, err := sk.Decrypt(opened.Core())
		require.NoError(t, err)
		assert.True(t, core.Eq(m) == 1)
	}

	_, err := sk.EncryptAs(rand.Reader, Kind(9), m)
	assert.Error(t, err)
	_, err = (&Envelope{Kind: KindSigned}).Open()
	assert.Error(t, err)
}

func TestEncryptAsInvalidMessage(t *testing.T) {
	sk := GenerateKey(rand.Reader, test.SmallGroup())
	for _, kind := range []Kind{KindPlain, KindSigned, KindChaumPedersen} {
		ct, err := sk.EncryptAs(rand.Reader, kind, nat(0))
		assert.ErrorIs(t, err, ErrInvalidMessage, kind.String())
		assert.True(t, ct == nil, kind.String())
	}
}

func TestSignedOutsideSubgroup(t *testing.T) {
	G := test.SmallGroup()
	sk := GenerateKey(rand.Reader, G)
	ct, err := sk.EncryptSigned(rand.Reader, nat(42))
	require.NoError(t, err)

	// -γ has the same square as γ, but lies outside the order q subgroup since p = 3 mod 4
	negated := *ct
	negated.Gamma = G.Sub(new(saferith.Nat).SetUint64(0), ct.Gamma)
	require.True(t, G.IsElement(negated.Gamma))
	assert.ErrorIs(t, negated.Verify(sk.PublicKey), ErrMalformedCiphertext)

	var missing *SignedCiphertext
	assert.ErrorIs(t, missing.Verify(sk.PublicKey), ErrMalformedCiphertext)
}

func TestWriteMalformed(t *testing.T) {
	var buf bytes.Buffer
	_, err := (&Ciphertext{Gamma: nat(3)}).WriteTo(&buf)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
	var missing *Ciphertext
	_, err = missing.WriteTo(&buf)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
	_, err = (&SignedCiphertext{Ciphertext: Ciphertext{Gamma: nat(3), Delta: nat(4)}}).WriteTo(&buf)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestPrivateKeyMarshal(t *testing.T) {
	G := test.SmallGroup()
	sk := GenerateKey(rand.Reader, G)
	data, err := sk.MarshalBinary()
	require.NoError(t, err)

	var sk2 PrivateKey
	require.NoError(t, sk2.UnmarshalBinary(data))
	assert.True(t, sk.PublicKey.Equal(sk2.PublicKey))

	ct, err := sk.Encrypt(rand.Reader, nat(5))
	require.NoError(t, err)
	m, err := sk2.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), m.Big().Uint64())
}
