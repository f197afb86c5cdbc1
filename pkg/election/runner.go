package election

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/mixnet"
	"github.com/taurusgroup/multi-party-vote/pkg/pool"
	"github.com/taurusgroup/multi-party-vote/pkg/store"
	"github.com/taurusgroup/multi-party-vote/pkg/threshold"
	"github.com/taurusgroup/multi-party-vote/pkg/vss"
)

const electionKey = "election"

var now = func() time.Time { return time.Now().UTC() }

func trusteeKey(i int) string  { return fmt.Sprintf("trustee/%d/key", i) }
func shareKey(i int) string    { return fmt.Sprintf("trustee/%d/share", i) }
func mixerKey(q, t int) string { return fmt.Sprintf("mix/%d/%d", q, t) }

// Store persists the public election record next to private trustee backups.
type Store interface {
	Commit(ctx context.Context, election string, records ...store.Record) error
	Get(ctx context.Context, election, key string, private bool) ([]byte, error)
}

// Runner advances an election through its stages. Every operation is idempotent, and either
// commits all of its records or leaves the election as it was.
//
// A Runner is not safe for concurrent use.
type Runner struct {
	Election *Election
	Store    Store
	Rand     io.Reader
	// Pool parallelizes work over ciphertexts, it may be nil.
	Pool *pool.Pool
	Log  logrus.FieldLogger
}

// NewRunner returns a runner using crypto/rand and discarding logs.
func NewRunner(e *Election, s Store) *Runner {
	l := logrus.New()
	l.Out = io.Discard
	return &Runner{Election: e, Store: s, Rand: rand.Reader, Log: l}
}

// Load reads the public record of an election.
func Load(ctx context.Context, s Store, id uuid.UUID) (*Election, error) {
	data, err := s.Get(ctx, id.String(), electionKey, false)
	if err != nil {
		return nil, err
	}
	e := new(Election)
	if err = cbor.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("election: unmarshal %s: %w", id, err)
	}
	return e, nil
}

func (r *Runner) log() logrus.FieldLogger {
	return r.Log.WithField("election", r.Election.ID.String())
}

// Save commits the public record together with private records.
func (r *Runner) Save(ctx context.Context, private ...store.Record) error {
	data, err := cbor.Marshal(r.Election)
	if err != nil {
		return fmt.Errorf("election: marshal: %w", err)
	}
	records := append([]store.Record{{Key: electionKey, Value: data}}, private...)
	return r.Store.Commit(ctx, r.Election.ID.String(), records...)
}

func (r *Runner) private(ctx context.Context, key string, v interface{ UnmarshalBinary([]byte) error }) error {
	data, err := r.Store.Get(ctx, r.Election.ID.String(), key, true)
	if err != nil {
		return fmt.Errorf("election: private record %s: %w", key, err)
	}
	return v.UnmarshalBinary(data)
}

func marshalPrivate(key string, v interface{ MarshalBinary() ([]byte, error) }) (store.Record, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return store.Record{}, err
	}
	return store.Record{Key: key, Value: data, Private: true}, nil
}

// SetupKeys runs the distributed key generation among the trustees and publishes the joint key.
//
// Every trustee's encryption key and threshold share are kept as private records.
func (r *Runner) SetupKeys(ctx context.Context) error {
	e := r.Election
	if e.PublicKey != nil {
		r.log().Debug("keys already generated")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n := len(e.Trustees)
	keys := make([]*elgamal.PrivateKey, n)
	publics := make([]*elgamal.PublicKey, n)
	for i := range keys {
		keys[i] = elgamal.GenerateKey(r.Rand, e.Group)
		publics[i] = keys[i].PublicKey
	}
	setup, err := vss.NewSetup(e.Group, e.Threshold, publics)
	if err != nil {
		return err
	}
	for j := 0; j < n; j++ {
		c, err := setup.GenerateCommitment(r.Rand)
		if err != nil {
			return err
		}
		if err = setup.AddCommitment(j, c); err != nil {
			r.log().WithField("trustee", j).WithError(err).Warn("commitment rejected")
		}
	}
	for i, sk := range keys {
		if err = setup.VerifyCommitments(i, sk); err != nil {
			r.log().WithField("trustee", i).WithError(err).Warn("inconsistent shares")
			if errors.Is(err, vss.ErrTooFewTrustees) {
				return err
			}
		}
	}
	pk, err := setup.PublicKey()
	if err != nil {
		return err
	}

	var records []store.Record
	for i, sk := range keys {
		share, err := setup.PrivateKey(i, sk)
		if err != nil {
			return err
		}
		keyRecord, err := marshalPrivate(trusteeKey(i), sk)
		if err != nil {
			return err
		}
		shareRecord, err := marshalPrivate(shareKey(i), share)
		if err != nil {
			return err
		}
		records = append(records, keyRecord, shareRecord)
	}

	for i, t := range e.Trustees {
		t.Key = publics[i]
	}
	e.KeyGeneration, e.PublicKey = setup, pk
	if err = r.Save(ctx, records...); err != nil {
		for _, t := range e.Trustees {
			t.Key = nil
		}
		e.KeyGeneration, e.PublicKey = nil, nil
		return err
	}
	r.log().WithField("qualified", len(setup.Qualified())).Info("keys generated")
	return nil
}

// Cast encrypts the answers of voter v and casts the ballot.
func (r *Runner) Cast(ctx context.Context, v int, answers []*Answer) (*Ballot, error) {
	b, err := r.Election.EncryptBallot(r.Rand, answers)
	if err != nil {
		return nil, err
	}
	return b, r.CastBallot(ctx, v, b)
}

// CastBallot records b as the latest vote of voter v.
func (r *Runner) CastBallot(ctx context.Context, v int, b *Ballot) error {
	e := r.Election
	voter, err := e.Voter(v)
	if err != nil {
		return err
	}
	if e.MixingStarted() {
		return ErrVotingClosed
	}
	if err = e.CheckBallot(b); err != nil {
		return err
	}
	votes := voter.Votes
	voter.Votes = append(votes, &Vote{Ballot: b, CastAt: now()})
	if err = r.Save(ctx); err != nil {
		voter.Votes = votes
		return err
	}
	r.log().WithField("voter", v).Info("ballot cast")
	return nil
}

// RunMixStage shuffles question q as trustee t. Stages run in trustee order.
func (r *Runner) RunMixStage(ctx context.Context, q, t int) error {
	e := r.Election
	if _, err := e.Question(q); err != nil {
		return err
	}
	if e.PublicKey == nil {
		return fmt.Errorf("%w: no public key", ErrNotReady)
	}
	if t < 0 || t >= len(e.Trustees) {
		return fmt.Errorf("election: no trustee %d", t)
	}
	log := r.log().WithFields(logrus.Fields{"question": q, "trustee": t})
	stages := e.Mixes[q]
	if len(stages) > t {
		log.Debug("already mixed")
		return nil
	}
	if len(stages) < t {
		return fmt.Errorf("%w: question %d stage %d not mixed", ErrNotReady, q, len(stages))
	}
	inputs := e.Inputs(q)
	if t > 0 {
		inputs = stages[t-1].Outputs
	}
	mixer, stage, err := mixnet.Shuffle(ctx, r.Rand, e.PublicKey.ElGamal(), t, inputs, r.Pool)
	if err != nil {
		return err
	}
	record, err := marshalPrivate(mixerKey(q, t), mixer)
	if err != nil {
		return err
	}
	e.Mixes[q] = append(stages, stage)
	if err = r.Save(ctx, record); err != nil {
		e.Mixes[q] = stages
		return err
	}
	log.WithField("entries", len(inputs)).Info("mixed")
	return nil
}

// ProveMixStage publishes the proof of trustee t's shuffle of question q.
//
// All stages must be mixed, and the earlier ones proven.
func (r *Runner) ProveMixStage(ctx context.Context, q, t int) error {
	e := r.Election
	if _, err := e.Question(q); err != nil {
		return err
	}
	stages := e.Mixes[q]
	if len(stages) != len(e.Trustees) {
		return fmt.Errorf("%w: question %d has %d of %d stages", ErrNotReady, q, len(stages), len(e.Trustees))
	}
	if t < 0 || t >= len(stages) {
		return fmt.Errorf("election: no trustee %d", t)
	}
	log := r.log().WithFields(logrus.Fields{"question": q, "trustee": t})
	if stages[t].Proven() {
		log.Debug("already proven")
		return nil
	}
	mixer := new(mixnet.Mixer)
	if err := r.private(ctx, mixerKey(q, t), mixer); err != nil {
		return err
	}
	if err := mixer.Prove(e.PublicKey.ElGamal(), e.Inputs(q), stages); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if err := r.Save(ctx); err != nil {
		stages[t].Challenge, stages[t].Openings = nil, nil
		return err
	}
	log.Info("proven")
	return nil
}

// DecryptQuestion collects a partial decryption of the last mix of question q from every
// trustee with a share, and publishes the combined answers.
func (r *Runner) DecryptQuestion(ctx context.Context, q int) error {
	e := r.Election
	if _, err := e.Question(q); err != nil {
		return err
	}
	log := r.log().WithField("question", q)
	if e.Results[q] != nil {
		log.Debug("already decrypted")
		return nil
	}
	stages := e.Mixes[q]
	if len(stages) != len(e.Trustees) {
		return fmt.Errorf("%w: question %d has %d of %d stages", ErrNotReady, q, len(stages), len(e.Trustees))
	}
	for t, s := range stages {
		if !s.Proven() {
			return fmt.Errorf("%w: question %d stage %d not proven", ErrNotReady, q, t)
		}
	}
	final := mixnet.Outputs(e.Inputs(q), stages)

	var decryptions []*Decryption
	for i := range e.Trustees {
		sk := new(threshold.PrivateKey)
		if err := r.private(ctx, shareKey(i), sk); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.WithField("trustee", i).Warn("no share, skipping")
				continue
			}
			return err
		}
		d, err := r.partialDecrypt(ctx, sk, final)
		if err != nil {
			return err
		}
		decryptions = append(decryptions, d)
	}
	result, err := combine(ctx, r.Pool, e, q, final, decryptions)
	if err != nil {
		return err
	}
	if spoiled := result.Spoiled(); spoiled > 0 {
		log.WithField("spoiled", spoiled).Warn("answers that do not decode are not counted")
	}

	e.Decryptions[q], e.Results[q] = decryptions, result
	if err = r.Save(ctx); err != nil {
		e.Decryptions[q], e.Results[q] = nil, nil
		return err
	}
	log.WithField("answers", len(result.Answers)).Info("decrypted")
	return nil
}

func (r *Runner) partialDecrypt(ctx context.Context, sk *threshold.PrivateKey, final []mixnet.Entry) (*Decryption, error) {
	reader := pool.NewLockedReader(r.Rand)
	shares, err := r.Pool.Parallelize(ctx, len(final), func(i int) (interface{}, error) {
		out := make([]*threshold.PartialDecryption, len(final[i]))
		for b, ct := range final[i] {
			d, err := sk.DecryptShare(reader, ct)
			if err != nil {
				return nil, err
			}
			out[b] = d
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	d := &Decryption{
		Trustee: sk.Index,
		Inputs:  final,
		Shares:  make([][]*threshold.PartialDecryption, len(shares)),
	}
	for i, s := range shares {
		d.Shares[i] = s.([]*threshold.PartialDecryption)
	}
	return d, nil
}

// combine decrypts every entry of question q from the partial decryptions and decodes the answers.
// An entry that does not decode to a valid answer is recorded as spoiled, a nil answer.
func combine(ctx context.Context, pl *pool.Pool, e *Election, q int, final []mixnet.Entry, decryptions []*Decryption) (*Result, error) {
	question := e.Questions[q]
	answers, err := pl.Parallelize(ctx, len(final), func(i int) (interface{}, error) {
		plaintexts := make([]*saferith.Nat, len(final[i]))
		for b, ct := range final[i] {
			shares := make([]*threshold.PartialDecryption, 0, len(decryptions))
			for _, d := range decryptions {
				if i < len(d.Shares) && b < len(d.Shares[i]) {
					shares = append(shares, d.Shares[i][b])
				}
			}
			m, err := e.PublicKey.CombineElGamal(ct, shares)
			if err != nil {
				return nil, fmt.Errorf("entry %d block %d: %w", i, b, err)
			}
			plaintexts[b] = m
		}
		a, err := DecodeAnswer(e.Group, plaintexts)
		if err != nil || question.Check(a) != nil {
			return (*Answer)(nil), nil
		}
		return question.normalize(a), nil
	})
	if err != nil {
		return nil, err
	}
	result := &Result{Answers: make([]*Answer, len(answers))}
	for i, a := range answers {
		result.Answers[i] = a.(*Answer)
	}
	return result, nil
}

// ReleaseResults marks the results public once every question is decrypted.
func (r *Runner) ReleaseResults(ctx context.Context) error {
	e := r.Election
	if e.Released {
		return nil
	}
	for q, res := range e.Results {
		if res == nil {
			return fmt.Errorf("%w: question %d not decrypted", ErrNotReady, q)
		}
	}
	e.Released = true
	if err := r.Save(ctx); err != nil {
		e.Released = false
		return err
	}
	r.log().Info("results released")
	return nil
}

// Tally runs every remaining stage of every question: all mixes, then all proofs, then
// the decryption, and releases the results.
func (r *Runner) Tally(ctx context.Context) error {
	for q := range r.Election.Questions {
		for t := range r.Election.Trustees {
			if err := r.RunMixStage(ctx, q, t); err != nil {
				return err
			}
		}
		for t := range r.Election.Trustees {
			if err := r.ProveMixStage(ctx, q, t); err != nil {
				return err
			}
		}
		if err := r.DecryptQuestion(ctx, q); err != nil {
			return err
		}
	}
	return r.ReleaseResults(ctx)
}
