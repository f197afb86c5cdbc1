package vss

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-vote/internal/test"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
	"github.com/taurusgroup/multi-party-vote/pkg/threshold"
)

func trustees(G *group.Group, n int) ([]*elgamal.PrivateKey, []*elgamal.PublicKey) {
	sks := make([]*elgamal.PrivateKey, n)
	pks := make([]*elgamal.PublicKey, n)
	for i := range sks {
		sks[i] = elgamal.GenerateKey(rand.Reader, G)
		pks[i] = sks[i].PublicKey
	}
	return sks, pks
}

func commitAll(t *testing.T, s *Setup) []*Commitment {
	commitments := make([]*Commitment, s.N())
	for j := range commitments {
		c, err := s.GenerateCommitment(rand.Reader)
		require.NoError(t, err)
		commitments[j] = c
	}
	return commitments
}

func decryptWith(t *testing.T, pk *threshold.PublicKey, keys []*threshold.PrivateKey, m *saferith.Nat) *saferith.Nat {
	ct, err := pk.ElGamal().Encrypt(rand.Reader, m)
	require.NoError(t, err)
	shares := make([]*threshold.PartialDecryption, 0, len(keys))
	for _, sk := range keys {
		d, err := sk.DecryptShare(rand.Reader, ct)
		require.NoError(t, err)
		shares = append(shares, d)
	}
	got, err := pk.CombineElGamal(ct, shares)
	require.NoError(t, err)
	return got
}

func TestKeyGeneration(t *testing.T) {
	G := test.SmallGroup()
	sks, pks := trustees(G, 3)
	s, err := NewSetup(G, 2, pks)
	require.NoError(t, err)

	for j, c := range commitAll(t, s) {
		require.NoError(t, s.AddCommitment(j, c))
	}
	for i, sk := range sks {
		require.NoError(t, s.VerifyCommitments(i, sk))
	}
	assert.Equal(t, []int{0, 1, 2}, s.Qualified())

	pk, err := s.PublicKey()
	require.NoError(t, err)
	require.NoError(t, pk.Validate())

	keys := make([]*threshold.PrivateKey, 3)
	for i, sk := range sks {
		keys[i], err = s.PrivateKey(i, sk)
		require.NoError(t, err)
	}

	m := G.ExpG(new(saferith.Nat).SetUint64(17))
	for _, subset := range [][]*threshold.PrivateKey{keys[:2], keys[1:], {keys[0], keys[2]}} {
		assert.True(t, decryptWith(t, pk, subset, m).Eq(m) == 1)
	}
}

func TestInconsistentShare(t *testing.T) {
	G := test.SmallGroup()
	sks, pks := trustees(G, 3)
	s, err := NewSetup(G, 2, pks)
	require.NoError(t, err)

	commitments := commitAll(t, s)
	// trustee 1 deals a share to trustee 2 that is off by one
	encoded, err := sks[2].DecryptCP(commitments[1].Private[2])
	require.NoError(t, err)
	share, err := G.Decode(encoded)
	require.NoError(t, err)
	wrong, err := G.Encode(G.AddQ(share, new(saferith.Nat).SetUint64(1)))
	require.NoError(t, err)
	commitments[1].Private[2], err = pks[2].EncryptCP(rand.Reader, wrong)
	require.NoError(t, err)

	for j, c := range commitments {
		require.NoError(t, s.AddCommitment(j, c))
	}
	require.NoError(t, s.VerifyCommitments(0, sks[0]))

	err = s.VerifyCommitments(2, sks[2])
	require.ErrorIs(t, err, ErrShareInconsistent)
	assert.NotErrorIs(t, err, ErrTooFewTrustees)
	var shareErr *ShareError
	require.True(t, errors.As(err, &shareErr))
	assert.Equal(t, 1, shareErr.Trustee)
	assert.Contains(t, err.Error(), "invalid commitment by trustee 1")

	assert.Equal(t, []int{0, 2}, s.Qualified())

	pk, err := s.PublicKey()
	require.NoError(t, err)
	k0, err := s.PrivateKey(0, sks[0])
	require.NoError(t, err)
	k2, err := s.PrivateKey(2, sks[2])
	require.NoError(t, err)
	m := G.ExpG(new(saferith.Nat).SetUint64(5))
	assert.True(t, decryptWith(t, pk, []*threshold.PrivateKey{k0, k2}, m).Eq(m) == 1)
}

func TestAudit(t *testing.T) {
	G := test.SmallGroup()
	sks, pks := trustees(G, 3)
	s, err := NewSetup(G, 2, pks)
	require.NoError(t, err)
	for j, c := range commitAll(t, s) {
		require.NoError(t, s.AddCommitment(j, c))
	}
	for i, sk := range sks {
		require.NoError(t, s.VerifyCommitments(i, sk))
	}
	require.NoError(t, s.Audit())

	// a recorded transcript whose qualified commitment was altered afterwards
	v := s.Commitments[1].Verification
	v[2] = G.Mul(v[2], G.Generator())
	err = s.Audit()
	require.ErrorIs(t, err, ErrShareInconsistent)
	var shareErr *ShareError
	require.True(t, errors.As(err, &shareErr))
	assert.Equal(t, 1, shareErr.Trustee)

	s.Commitments = s.Commitments[:2]
	assert.Error(t, s.Audit())
}

func TestTooFewTrustees(t *testing.T) {
	G := test.SmallGroup()
	sks, pks := trustees(G, 3)
	s, err := NewSetup(G, 3, pks)
	require.NoError(t, err)

	commitments := commitAll(t, s)
	// a malformed commitment is rejected on receipt
	commitments[0].Verification[2] = G.Mul(commitments[0].Verification[2], G.Generator())
	err = s.AddCommitment(0, commitments[0])
	assert.ErrorIs(t, err, ErrShareInconsistent)
	require.NoError(t, s.AddCommitment(1, commitments[1]))
	require.NoError(t, s.AddCommitment(2, commitments[2]))

	err = s.VerifyCommitments(1, sks[1])
	assert.ErrorIs(t, err, ErrTooFewTrustees)
	_, err = s.PublicKey()
	assert.ErrorIs(t, err, ErrTooFewTrustees)
}

func TestNewSetup(t *testing.T) {
	_, pks := trustees(test.SmallGroup(), 2)
	_, err := NewSetup(test.SmallGroup(), 3, pks)
	assert.Error(t, err)

	_, tiny := trustees(test.TinyGroup(), 2)
	_, err = NewSetup(test.TinyGroup(), 1, tiny)
	assert.ErrorIs(t, err, group.ErrGroupParameterInvalid)

	_, err = NewSetup(test.MediumGroup(), 1, pks)
	assert.Error(t, err)
}
