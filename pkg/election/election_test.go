package election

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-vote/internal/test"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/mixnet"
	"github.com/taurusgroup/multi-party-vote/pkg/store"
	"github.com/taurusgroup/multi-party-vote/pkg/vss"
	"github.com/taurusgroup/multi-party-vote/pkg/zk"
)

var votes = [][][]int{
	{{0}, {0}},
	{{0, 1}, {1}},
	{{2}, {0}},
}

func questions() []*Question {
	return []*Question{
		{Prompt: "President", Kind: Approval, Choices: []string{"John Smith", "Joe Bloggs", "John Q. Public"}},
		{Prompt: "Chairman", Kind: Approval, Choices: []string{"John Doe", "Andrew Citizen"}},
	}
}

func newElection(t *testing.T) *Election {
	e, err := New("Test Election", test.SmallGroup(), 2, []string{"A", "B", "C"}, questions(), []string{"v1", "v2", "v3"})
	require.NoError(t, err)
	return e
}

func castAll(t *testing.T, r *Runner) {
	ctx := context.Background()
	for v, ballot := range votes {
		answers := make([]*Answer, len(ballot))
		for q, choices := range ballot {
			answers[q] = &Answer{Choices: choices}
		}
		_, err := r.Cast(ctx, v, answers)
		require.NoError(t, err)
	}
}

// tallied runs a complete election on a memory store.
func tallied(t *testing.T) (*Runner, *store.Memory) {
	s := store.NewMemory()
	r := NewRunner(newElection(t), s)
	ctx := context.Background()
	require.NoError(t, r.SetupKeys(ctx))
	castAll(t, r)
	require.NoError(t, r.Tally(ctx))
	return r, s
}

func TestElection(t *testing.T) {
	r, _ := tallied(t)
	e := r.Election

	assert.True(t, e.Released)
	assert.Equal(t, map[int]int{0: 2, 1: 1, 2: 1}, e.Results[0].Tally())
	assert.Equal(t, map[int]int{0: 2, 1: 1}, e.Results[1].Tally())

	var got [][]int
	for _, a := range e.Results[0].Answers {
		got = append(got, a.Choices)
	}
	sort.Slice(got, func(i, j int) bool { return got[i][0] < got[j][0] || (got[i][0] == got[j][0] && len(got[i]) < len(got[j])) })
	assert.Equal(t, [][]int{{0}, {0, 1}, {2}}, got)

	assert.NoError(t, Verify(context.Background(), e))
}

func TestVerifyTamperedMix(t *testing.T) {
	r, _ := tallied(t)
	e := r.Election

	ct := e.Mixes[0][0].Outputs[0][0]
	ct.Delta = e.Group.Mul(ct.Delta, new(saferith.Nat).SetUint64(2))

	err := Verify(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, zk.ErrProofInvalid)
	var verr *VerifyError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, verr.Question)
	assert.Equal(t, 0, verr.Stage)
}

func TestVerifyTamperedBallot(t *testing.T) {
	r, _ := tallied(t)
	e := r.Election

	ct := e.Voters[1].Votes[0].Ballot.Answers[1].Blocks[0]
	ct.Gamma = e.Group.Mul(ct.Gamma, e.Group.Generator())

	err := Verify(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, elgamal.ErrSignatureInvalid)
	assert.ErrorIs(t, err, zk.ErrProofInvalid)
}

func TestVerifyMalformedMix(t *testing.T) {
	r, _ := tallied(t)
	e := r.Election

	e.Mixes[0][1].Outputs[0] = mixnet.Entry{nil}
	err := Verify(context.Background(), e)
	require.Error(t, err)
	assert.ErrorIs(t, err, elgamal.ErrMalformedCiphertext)
	var verr *VerifyError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, verr.Question)
	assert.Equal(t, 1, verr.Stage)
	assert.Equal(t, 0, verr.Position)

	e.Mixes[0][1] = nil
	err = Verify(context.Background(), e)
	assert.ErrorIs(t, err, zk.ErrProofInvalid)
	assert.ErrorIs(t, err, ErrResultMismatch)

	e.Decryptions[1][0] = nil
	assert.ErrorIs(t, Verify(context.Background(), e), ErrResultMismatch)
}

func TestVerifyKeyGeneration(t *testing.T) {
	r, _ := tallied(t)
	e := r.Election

	v := e.KeyGeneration.Commitments[1].Verification
	v[0] = e.Group.Mul(v[0], e.Group.Generator())
	err := Verify(context.Background(), e)
	assert.ErrorIs(t, err, vss.ErrShareInconsistent)
	var verr *VerifyError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Trustee)
}

// spoil casts a correctly signed ballot for voter v whose blocks decode to no answer.
func spoil(t *testing.T, r *Runner, v int) {
	e := r.Election
	fingerprint, err := e.Fingerprint()
	require.NoError(t, err)
	zero, err := e.Group.Encode(new(saferith.Nat).SetUint64(0))
	require.NoError(t, err)
	b := &Ballot{ElectionID: e.ID, ElectionHash: fingerprint}
	pk := e.PublicKey.ElGamal()
	for _, q := range e.Questions {
		a := &EncryptedAnswer{}
		for i := 0; i < q.Blocks(e.Group); i++ {
			ct, err := pk.EncryptSigned(r.Rand, zero)
			require.NoError(t, err)
			a.Blocks = append(a.Blocks, ct)
		}
		b.Answers = append(b.Answers, a)
	}
	require.NoError(t, r.CastBallot(context.Background(), v, b))
}

func TestSpoiledBallot(t *testing.T) {
	s := store.NewMemory()
	r := NewRunner(newElection(t), s)
	ctx := context.Background()
	require.NoError(t, r.SetupKeys(ctx))
	castAll(t, r)
	spoil(t, r, 0)
	require.NoError(t, r.Tally(ctx))

	e := r.Election
	assert.Equal(t, 1, e.Results[0].Spoiled())
	assert.Equal(t, 1, e.Results[1].Spoiled())
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 1}, e.Results[0].Tally())
	assert.Equal(t, map[int]int{0: 1, 1: 1}, e.Results[1].Tally())
	assert.NoError(t, Verify(ctx, e))

	// claiming the spoiled entry as a vote is caught
	for i, a := range e.Results[0].Answers {
		if a == nil {
			e.Results[0].Answers[i] = &Answer{Choices: []int{0}}
		}
	}
	assert.ErrorIs(t, Verify(ctx, e), ErrResultMismatch)
}

func TestBallotOutsideSubgroup(t *testing.T) {
	s := store.NewMemory()
	r := NewRunner(newElection(t), s)
	require.NoError(t, r.SetupKeys(context.Background()))
	b, err := r.Election.EncryptBallot(r.Rand, []*Answer{{Choices: []int{0}}, {Choices: []int{1}}})
	require.NoError(t, err)

	ct := b.Answers[0].Blocks[0]
	ct.Gamma = r.Election.Group.Sub(new(saferith.Nat).SetUint64(0), ct.Gamma)
	err = r.CastBallot(context.Background(), 0, b)
	assert.ErrorIs(t, err, elgamal.ErrMalformedCiphertext)
	assert.Empty(t, r.Election.Voters[0].Votes)
}

func TestVerifyTamperedResult(t *testing.T) {
	r, _ := tallied(t)
	e := r.Election

	a := e.Results[1].Answers[0]
	if a.Choices[0] == 0 {
		a.Choices[0] = 1
	} else {
		a.Choices[0] = 0
	}
	err := Verify(context.Background(), e)
	assert.ErrorIs(t, err, ErrResultMismatch)
	assert.NotErrorIs(t, err, zk.ErrProofInvalid)
}

func TestVerifyReplayedBallot(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	r := NewRunner(newElection(t), s)
	require.NoError(t, r.SetupKeys(ctx))
	other := NewRunner(newElection(t), s)
	require.NoError(t, other.SetupKeys(ctx))

	b, err := other.Election.EncryptBallot(other.Rand, []*Answer{{Choices: []int{0}}, {Choices: []int{1}}})
	require.NoError(t, err)
	assert.ErrorIs(t, r.CastBallot(ctx, 0, b), ErrElectionMismatch)

	// Forcing it into the record is caught by verification.
	r.Election.Voters[0].Votes = append(r.Election.Voters[0].Votes, &Vote{Ballot: b})
	err = Verify(ctx, r.Election)
	assert.ErrorIs(t, err, ErrElectionMismatch)
	var verr *VerifyError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, verr.Voter)
}

func TestCastInvalid(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newElection(t), store.NewMemory())

	_, err := r.Cast(ctx, 0, []*Answer{{Choices: []int{0}}, {Choices: []int{0}}})
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, r.SetupKeys(ctx))
	_, err = r.Cast(ctx, 0, []*Answer{{Choices: []int{3}}, {Choices: []int{0}}})
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	_, err = r.Cast(ctx, 0, []*Answer{{Choices: []int{0, 0}}, {Choices: []int{0}}})
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	_, err = r.Cast(ctx, 0, []*Answer{{Choices: []int{0}}})
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	_, err = r.Cast(ctx, 7, []*Answer{{Choices: []int{0}}, {Choices: []int{0}}})
	assert.Error(t, err)
}

func TestStagesIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newElection(t), store.NewMemory())
	require.NoError(t, r.SetupKeys(ctx))
	pk := r.Election.PublicKey
	require.NoError(t, r.SetupKeys(ctx))
	assert.Same(t, pk, r.Election.PublicKey)
	castAll(t, r)

	assert.ErrorIs(t, r.RunMixStage(ctx, 0, 1), ErrNotReady)
	require.NoError(t, r.RunMixStage(ctx, 0, 0))
	require.NoError(t, r.RunMixStage(ctx, 0, 0))
	assert.Len(t, r.Election.Mixes[0], 1)

	_, err := r.Cast(ctx, 0, []*Answer{{Choices: []int{1}}, {Choices: []int{1}}})
	assert.ErrorIs(t, err, ErrVotingClosed)

	assert.ErrorIs(t, r.ProveMixStage(ctx, 0, 0), ErrNotReady)
	assert.ErrorIs(t, r.DecryptQuestion(ctx, 0), ErrNotReady)
	assert.ErrorIs(t, r.ReleaseResults(ctx), ErrNotReady)

	require.NoError(t, r.Tally(ctx))
	results := r.Election.Results[0]
	require.NoError(t, r.DecryptQuestion(ctx, 0))
	assert.Same(t, results, r.Election.Results[0])
}

type failingStore struct {
	*store.Memory
	fail bool
}

func (s *failingStore) Commit(ctx context.Context, election string, records ...store.Record) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Memory.Commit(ctx, election, records...)
}

func TestStageAtomic(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{Memory: store.NewMemory()}
	r := NewRunner(newElection(t), s)
	require.NoError(t, r.SetupKeys(ctx))
	castAll(t, r)

	s.fail = true
	assert.Error(t, r.RunMixStage(ctx, 0, 0))
	assert.Empty(t, r.Election.Mixes[0])
	_, err := s.Get(ctx, r.Election.ID.String(), mixerKey(0, 0), true)
	assert.ErrorIs(t, err, store.ErrNotFound)

	s.fail = false
	require.NoError(t, r.RunMixStage(ctx, 0, 0))
	assert.Len(t, r.Election.Mixes[0], 1)
}

type missingShare struct {
	*store.Memory
	trustee int
}

func (s *missingShare) Get(ctx context.Context, election, key string, private bool) ([]byte, error) {
	if private && key == shareKey(s.trustee) {
		return nil, store.ErrNotFound
	}
	return s.Memory.Get(ctx, election, key, private)
}

func TestDecryptWithThreshold(t *testing.T) {
	ctx := context.Background()
	s := &missingShare{Memory: store.NewMemory(), trustee: 1}
	r := NewRunner(newElection(t), s)
	require.NoError(t, r.SetupKeys(ctx))
	castAll(t, r)
	require.NoError(t, r.Tally(ctx))

	assert.Len(t, r.Election.Decryptions[0], 2)
	assert.Equal(t, map[int]int{0: 2, 1: 1}, r.Election.Results[1].Tally())
	assert.NoError(t, Verify(ctx, r.Election))
}

func TestLoad(t *testing.T) {
	r, s := tallied(t)
	ctx := context.Background()

	e, err := Load(ctx, s, r.Election.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Election.ID, e.ID)
	assert.Equal(t, r.Election.Results[0].Tally(), e.Results[0].Tally())

	want, err := r.Election.Fingerprint()
	require.NoError(t, err)
	got, err := e.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.NoError(t, Verify(ctx, e))
}

func TestFingerprint(t *testing.T) {
	r := NewRunner(newElection(t), store.NewMemory())
	_, err := r.Election.Fingerprint()
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, r.SetupKeys(context.Background()))
	a, err := r.Election.Fingerprint()
	require.NoError(t, err)

	r.Election.Voters = nil
	b, err := r.Election.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	r.Election.Questions[0].Prompt = "Mayor"
	c, err := r.Election.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
