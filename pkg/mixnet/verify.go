package mixnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/zk"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrChallengeMismatch is returned when a stage's challenge is not the hash of the transcript.
	ErrChallengeMismatch = fmt.Errorf("%w: challenge mismatch", zk.ErrProofInvalid)
	// ErrPermutationInconsistent is returned when the opened indices cannot come from a permutation.
	ErrPermutationInconsistent = errors.New("mixnet: permutation inconsistent")
	// ErrDuplicateCiphertext is returned when a stage outputs the same entry twice.
	ErrDuplicateCiphertext = errors.New("mixnet: duplicate ciphertext")
)

// ProofError locates a verification failure. Position is -1 when the whole stage is at fault,
// and Stage is -1 when the chain inputs are.
type ProofError struct {
	Stage    int
	Position int
	Err      error
}

func (e *ProofError) Error() string {
	if e.Stage < 0 {
		return fmt.Sprintf("mixnet: input %d: %v", e.Position, e.Err)
	}
	if e.Position < 0 {
		return fmt.Sprintf("mixnet: stage %d: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("mixnet: stage %d, position %d: %v", e.Stage, e.Position, e.Err)
}

func (e *ProofError) Unwrap() error { return e.Err }

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{zk.ErrProofInvalid}, args...)...)
}

// checkShape rejects missing stages and malformed entries anywhere in the transcript,
// before anything is hashed or re-encrypted.
func checkShape(pk *elgamal.PublicKey, inputs []Entry, stages []*Stage) error {
	for p, e := range inputs {
		if err := e.Validate(pk); err != nil {
			return &ProofError{Stage: -1, Position: p, Err: err}
		}
	}
	for j, s := range stages {
		if s == nil {
			return &ProofError{Stage: j, Position: -1, Err: invalid("stage missing")}
		}
		for p, e := range s.Outputs {
			if err := e.Validate(pk); err != nil {
				return &ProofError{Stage: j, Position: p, Err: err}
			}
		}
	}
	return nil
}

// Verify checks the proof of stage index, given the chain inputs and all published stages.
//
// The first failing check is returned as a *ProofError.
func Verify(pk *elgamal.PublicKey, inputs []Entry, stages []*Stage, index int) error {
	if index < 0 || index >= len(stages) {
		return fmt.Errorf("mixnet: stage %d missing", index)
	}
	if err := checkShape(pk, inputs, stages); err != nil {
		return err
	}
	stage := stages[index]
	fail := func(position int, err error) error {
		return &ProofError{Stage: index, Position: position, Err: err}
	}
	if stage.Index != index {
		return fail(-1, fmt.Errorf("mixnet: stage recorded with index %d", stage.Index))
	}
	in := inputs
	if index > 0 {
		in = stages[index-1].Outputs
	}
	n := len(in)
	if len(stage.Outputs) != n || len(stage.Commitments) != n || len(stage.Openings) != n {
		return fail(-1, invalid("expected %d outputs, commitments and openings", n))
	}
	challenge, err := Challenge(pk, inputs, stages, index)
	if err != nil {
		return fail(-1, invalid("transcript: %v", err))
	}
	if !bytes.Equal(challenge, stage.Challenge) {
		return fail(-1, ErrChallengeMismatch)
	}

	responded := make([]bool, n)
	h := commitHash(index)
	for p, b := range RevealBits(challenge, n) {
		o := stage.Openings[p]
		if !Reveal(index, b) {
			if o != nil {
				return fail(p, invalid("unexpected opening"))
			}
			continue
		}
		if o == nil {
			return fail(p, invalid("missing opening"))
		}
		if o.ChallengeIndex != p {
			return fail(p, invalid("opening for position %d", o.ChallengeIndex))
		}
		if o.ResponseIndex < 0 || o.ResponseIndex >= n {
			return fail(p, ErrPermutationInconsistent)
		}
		if !h.Decommit(stage.Commitments[p], o.Decommitment, o.committed()...) {
			return fail(p, invalid("commitment not opened"))
		}
		from, to := in[p], stage.Outputs[o.ResponseIndex]
		if !stage.even() {
			from, to = in[o.ResponseIndex], stage.Outputs[p]
		}
		if len(o.Reencryptions) != len(from) || len(from) != len(to) {
			return fail(p, invalid("block count mismatch"))
		}
		if !from.Reencrypt(pk, o.Reencryptions).Equal(to) {
			return fail(p, invalid("not a re-encryption"))
		}
		if responded[o.ResponseIndex] {
			return fail(p, ErrPermutationInconsistent)
		}
		responded[o.ResponseIndex] = true
	}

	seen := make(map[string]int, n)
	for p, e := range stage.Outputs {
		if q, ok := seen[e.key()]; ok {
			return fail(p, fmt.Errorf("%w: same as position %d", ErrDuplicateCiphertext, q))
		}
		seen[e.key()] = p
	}
	return nil
}

// VerifyChain verifies every stage concurrently, and returns all failures joined.
func VerifyChain(ctx context.Context, pk *elgamal.PublicKey, inputs []Entry, stages []*Stage) error {
	errs := make([]error, len(stages))
	g, ctx := errgroup.WithContext(ctx)
	for i := range stages {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			errs[i] = Verify(pk, inputs, stages, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Outputs returns the entries leaving the chain.
func Outputs(inputs []Entry, stages []*Stage) []Entry {
	if len(stages) == 0 {
		return inputs
	}
	return stages[len(stages)-1].Outputs
}
