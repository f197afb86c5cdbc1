package election

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taurusgroup/multi-party-vote/pkg/mixnet"
	"github.com/taurusgroup/multi-party-vote/pkg/vss"
	"github.com/taurusgroup/multi-party-vote/pkg/zk"
	"golang.org/x/sync/errgroup"
)

// VerifyError locates a failure in the published election. Fields that do not apply are -1.
type VerifyError struct {
	Question int
	Stage    int
	Trustee  int
	Position int
	Voter    int
	Err      error
}

func (e *VerifyError) Error() string {
	var loc []string
	for _, f := range []struct {
		name  string
		value int
	}{
		{"voter", e.Voter},
		{"question", e.Question},
		{"stage", e.Stage},
		{"trustee", e.Trustee},
		{"position", e.Position},
	} {
		if f.value >= 0 {
			loc = append(loc, fmt.Sprintf("%s %d", f.name, f.value))
		}
	}
	if len(loc) == 0 {
		return fmt.Sprintf("election: %v", e.Err)
	}
	return fmt.Sprintf("election: %s: %v", strings.Join(loc, ", "), e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

func located(err error) *VerifyError {
	return &VerifyError{Question: -1, Stage: -1, Trustee: -1, Position: -1, Voter: -1, Err: err}
}

// Verify checks everything an observer can check in a published election:
//
//   - the key generation produced the published key;
//   - every counted ballot is bound to this election and correctly signed;
//   - every proven mix stage of every question;
//   - every decryption: its inputs are the output of the last mix, its partial decryptions are
//     proven, and they combine into the published answers.
//
// Checks run concurrently. Every failure is reported, as a *VerifyError, joined in a fixed order.
func Verify(ctx context.Context, e *Election) error {
	fingerprint, err := e.Fingerprint()
	if err != nil {
		return err
	}
	nq := len(e.Questions)
	if len(e.Mixes) != nq || len(e.Decryptions) != nq || len(e.Results) != nq {
		return located(fmt.Errorf("%w: records for %d questions", ErrElectionMismatch, nq))
	}

	keyErr := make([]error, 1)
	voterErrs := make([]error, len(e.Voters))
	mixErrs := make([][]error, nq)
	resultErrs := make([][]error, nq)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keyErr[0] = verifyKeys(e)
		return nil
	})
	for v := range e.Voters {
		v := v
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			voterErrs[v] = verifyVoter(e, fingerprint, v)
			return nil
		})
	}
	for q := range e.Questions {
		q := q
		mixErrs[q] = make([]error, len(e.Mixes[q]))
		for t := range e.Mixes[q] {
			t := t
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				mixErrs[q][t] = verifyStage(e, q, t)
				return nil
			})
		}
		g.Go(func() error {
			resultErrs[q] = verifyResult(ctx, e, q)
			return ctx.Err()
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	errs := append(keyErr, voterErrs...)
	for q := range e.Questions {
		errs = append(errs, mixErrs[q]...)
		errs = append(errs, resultErrs[q]...)
	}
	return errors.Join(errs...)
}

func verifyKeys(e *Election) error {
	kg := e.KeyGeneration
	if kg == nil || kg.Group == nil {
		return located(fmt.Errorf("%w: no key generation", ErrElectionMismatch))
	}
	if !kg.Group.Equal(e.Group) || kg.N() != len(e.Trustees) {
		return located(fmt.Errorf("%w: key generation for another group or trustee set", ErrElectionMismatch))
	}
	for i, t := range e.Trustees {
		if t == nil || !kg.Trustees[i].Equal(t.Key) {
			verr := located(fmt.Errorf("%w: trustee key differs from key generation", ErrElectionMismatch))
			verr.Trustee = i
			return verr
		}
	}
	if err := kg.Audit(); err != nil {
		verr := located(err)
		var shareErr *vss.ShareError
		if errors.As(err, &shareErr) {
			verr.Trustee = shareErr.Trustee
		}
		return verr
	}
	pk, err := kg.PublicKey()
	if err != nil {
		return located(err)
	}
	if pk.X.Eq(e.PublicKey.X) != 1 || pk.K != e.PublicKey.K || len(pk.H) != len(e.PublicKey.H) {
		return located(fmt.Errorf("%w: public key does not follow from key generation", ErrElectionMismatch))
	}
	for i := range pk.H {
		if pk.H[i].Eq(e.PublicKey.H[i]) != 1 {
			verr := located(fmt.Errorf("%w: verification key does not follow from key generation", ErrElectionMismatch))
			verr.Trustee = i
			return verr
		}
	}
	return nil
}

func verifyVoter(e *Election, fingerprint string, v int) error {
	if e.Voters[v] == nil {
		verr := located(fmt.Errorf("%w: missing voter", ErrElectionMismatch))
		verr.Voter = v
		return verr
	}
	votes := e.Voters[v].Votes
	if len(votes) == 0 {
		return nil
	}
	var b *Ballot
	if vote := votes[len(votes)-1]; vote != nil {
		b = vote.Ballot
	}
	var err error
	switch {
	case b == nil:
		err = fmt.Errorf("%w: missing ballot", ErrInvalidAnswer)
	case b.ElectionID != e.ID:
		err = fmt.Errorf("%w: ballot for election %s", ErrElectionMismatch, b.ElectionID)
	case b.ElectionHash != fingerprint:
		err = fmt.Errorf("%w: ballot for election hash %s", ErrElectionMismatch, b.ElectionHash)
	default:
		err = e.CheckBallot(b)
	}
	if err != nil {
		verr := located(err)
		verr.Voter = v
		return verr
	}
	return nil
}

func verifyStage(e *Election, q, t int) error {
	stages := e.Mixes[q]
	var err error
	if t >= len(e.Trustees) {
		err = fmt.Errorf("%w: more stages than trustees", zk.ErrProofInvalid)
	} else {
		err = mixnet.Verify(e.PublicKey.ElGamal(), e.Inputs(q), stages, t)
	}
	if err == nil {
		return nil
	}
	verr := located(err)
	verr.Question, verr.Stage = q, t
	var proofErr *mixnet.ProofError
	if errors.As(err, &proofErr) {
		verr.Stage, verr.Position, verr.Err = proofErr.Stage, proofErr.Position, proofErr.Err
	}
	return verr
}

func verifyResult(ctx context.Context, e *Election, q int) []error {
	result, decryptions := e.Results[q], e.Decryptions[q]
	if result == nil && len(decryptions) == 0 {
		return nil
	}
	fail := func(trustee, position int, err error) error {
		verr := located(err)
		verr.Question, verr.Trustee, verr.Position = q, trustee, position
		return verr
	}
	if result == nil {
		return []error{fail(-1, -1, fmt.Errorf("%w: decrypted but no result", ErrResultMismatch))}
	}
	stages := e.Mixes[q]
	if len(stages) != len(e.Trustees) {
		return []error{fail(-1, -1, fmt.Errorf("%w: decrypted before mixing completed", ErrResultMismatch))}
	}
	for _, s := range stages {
		if !s.Proven() {
			return []error{fail(-1, -1, fmt.Errorf("%w: decrypted before mixing completed", ErrResultMismatch))}
		}
	}
	final := mixnet.Outputs(e.Inputs(q), stages)
	if len(result.Answers) != len(final) {
		return []error{fail(-1, -1, fmt.Errorf("%w: %d answers for %d ciphertexts", ErrResultMismatch, len(result.Answers), len(final)))}
	}
	pk := e.PublicKey.ElGamal()
	for i, entry := range final {
		if err := entry.Validate(pk); err != nil {
			return []error{fail(-1, i, fmt.Errorf("%w: last mix: %v", ErrResultMismatch, err))}
		}
	}

	var errs []error
	valid := make([]*Decryption, 0, len(decryptions))
	seen := make(map[int]bool, len(decryptions))
	for _, d := range decryptions {
		if d == nil {
			errs = append(errs, fail(-1, -1, fmt.Errorf("%w: missing decryption", ErrResultMismatch)))
			continue
		}
		if err := verifyDecryption(e, final, d); err != nil {
			errs = append(errs, fail(d.Trustee, -1, err))
			continue
		}
		if seen[d.Trustee] {
			errs = append(errs, fail(d.Trustee, -1, fmt.Errorf("%w: duplicate decryption", ErrResultMismatch)))
			continue
		}
		seen[d.Trustee] = true
		valid = append(valid, d)
	}

	combined, err := combine(ctx, nil, e, q, final, valid)
	if err != nil {
		return append(errs, fail(-1, -1, fmt.Errorf("%w: %v", ErrResultMismatch, err)))
	}
	for i, a := range combined.Answers {
		if !a.Equal(result.Answers[i]) {
			errs = append(errs, fail(-1, i, fmt.Errorf("%w: published answer differs", ErrResultMismatch)))
		}
	}
	return errs
}

// verifyDecryption checks one trustee's decryption against the last mix.
func verifyDecryption(e *Election, final []mixnet.Entry, d *Decryption) error {
	if len(d.Inputs) != len(final) || len(d.Shares) != len(final) {
		return fmt.Errorf("%w: decryption of %d ciphertexts, expected %d", ErrResultMismatch, len(d.Inputs), len(final))
	}
	for i := range final {
		if !d.Inputs[i].Equal(final[i]) || len(d.Shares[i]) != len(final[i]) {
			return fmt.Errorf("%w: position %d: ciphertext differs from last mix", ErrResultMismatch, i)
		}
		for b, share := range d.Shares[i] {
			if share == nil || share.Index != d.Trustee {
				return fmt.Errorf("%w: position %d block %d: share of another trustee", zk.ErrProofInvalid, i, b)
			}
			if err := share.Verify(e.PublicKey, final[i][b].Gamma); err != nil {
				return fmt.Errorf("position %d block %d: %w", i, b, err)
			}
		}
	}
	return nil
}
