// Package mixnet implements a chain of re-encryption shuffles, each proven with a
// Fiat–Shamir cut-and-choose argument: half of the input/output correspondences of each stage
// are opened, alternating sides between consecutive stages, so that no single ballot can be
// traced through two consecutive stages.
package mixnet

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/math/sample"
	"github.com/taurusgroup/multi-party-vote/pkg/pool"
)

// Mixer is the secret state of one stage, kept between mixing and proving.
type Mixer struct {
	Index int
	// Permutation maps input i to output Permutation[i].
	Permutation []int
	// Reencryptions[i] are the exponents applied to the blocks of input i.
	Reencryptions [][]*saferith.Nat
	// Decommitments[p] opens the commitment at position p.
	Decommitments []hash.Decommitment

	inverse []int
}

// permutation samples a uniform permutation with Fisher–Yates.
func permutation(rand io.Reader, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(sample.ModN(rand, saferith.ModulusFromUint64(uint64(i+1))).Big().Uint64())
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

func inverse(perm []int) []int {
	inv := make([]int, len(perm))
	for i, j := range perm {
		inv[j] = i
	}
	return inv
}

// Shuffle permutes and re-encrypts inputs as stage index of the chain.
//
// Re-encryption runs on pl, which may be nil; ctx is checked between entries.
func Shuffle(ctx context.Context, rand io.Reader, pk *elgamal.PublicKey, index int, inputs []Entry, pl *pool.Pool) (*Mixer, *Stage, error) {
	if index < 0 {
		return nil, nil, errors.New("mixnet: negative stage index")
	}
	for i, e := range inputs {
		if err := e.Validate(pk); err != nil {
			return nil, nil, fmt.Errorf("mixnet: input %d: %w", i, err)
		}
	}
	n := len(inputs)
	m := &Mixer{
		Index:         index,
		Permutation:   permutation(rand, n),
		Reencryptions: make([][]*saferith.Nat, n),
	}
	for i, e := range inputs {
		m.Reencryptions[i] = make([]*saferith.Nat, len(e))
		for b := range e {
			m.Reencryptions[i][b] = pk.Group.RandomExponent(rand)
		}
	}

	stage, err := m.publish(ctx, rand, pk, inputs, pl)
	if err != nil {
		return nil, nil, err
	}
	return m, stage, nil
}

// publish applies the mixer's permutation and exponents, and commits to every position.
func (m *Mixer) publish(ctx context.Context, rand io.Reader, pk *elgamal.PublicKey, inputs []Entry, pl *pool.Pool) (*Stage, error) {
	n := len(inputs)
	reencrypted, err := pl.Parallelize(ctx, n, func(i int) (interface{}, error) {
		return inputs[i].Reencrypt(pk, m.Reencryptions[i]), nil
	})
	if err != nil {
		return nil, err
	}

	stage := &Stage{
		Index:       m.Index,
		Outputs:     make([]Entry, n),
		Commitments: make([]hash.Commitment, n),
	}
	for i, e := range reencrypted {
		stage.Outputs[m.Permutation[i]] = e.(Entry)
	}
	m.Decommitments = make([]hash.Decommitment, n)
	for p := 0; p < n; p++ {
		o := m.opening(p, nil)
		stage.Commitments[p], m.Decommitments[p], err = commitHash(m.Index).Commit(rand, o.committed()...)
		if err != nil {
			return nil, err
		}
	}
	return stage, nil
}

// opening returns the opening of position p.
func (m *Mixer) opening(p int, d hash.Decommitment) *Opening {
	o := &Opening{ChallengeIndex: p, Decommitment: d}
	if m.Index%2 == 0 {
		o.ResponseIndex = m.Permutation[p]
		o.Reencryptions = m.Reencryptions[p]
	} else {
		if m.inverse == nil {
			m.inverse = inverse(m.Permutation)
		}
		i := m.inverse[p]
		o.ResponseIndex = i
		o.Reencryptions = m.Reencryptions[i]
	}
	return o
}

// Prove publishes the challenge and openings of the mixer's stage.
//
// Every stage of the chain must be mixed, and every earlier stage proven, since the challenge
// covers all outputs and commitments, and the openings of earlier stages.
func (m *Mixer) Prove(pk *elgamal.PublicKey, inputs []Entry, stages []*Stage) error {
	if m.Index >= len(stages) {
		return fmt.Errorf("mixnet: stage %d missing", m.Index)
	}
	for i, s := range stages {
		if !s.Mixed() {
			return fmt.Errorf("mixnet: stage %d not mixed yet", i)
		}
		if i < m.Index && !s.Proven() {
			return fmt.Errorf("mixnet: stage %d not proven yet", i)
		}
	}
	stage := stages[m.Index]
	challenge, err := Challenge(pk, inputs, stages, m.Index)
	if err != nil {
		return err
	}
	openings := make([]*Opening, len(stage.Outputs))
	for p, b := range RevealBits(challenge, len(openings)) {
		if Reveal(m.Index, b) {
			openings[p] = m.opening(p, m.Decommitments[p])
		}
	}
	stage.Challenge = challenge
	stage.Openings = openings
	return nil
}

// Challenge hashes the public key, the inputs, every stage's outputs and commitments,
// then the openings of the stages before index.
func Challenge(pk *elgamal.PublicKey, inputs []Entry, stages []*Stage, index int) ([]byte, error) {
	h := hash.New()
	write := func(data ...interface{}) error {
		return h.WriteAny(data...)
	}
	if err := write(&hash.BytesWithDomain{TheDomain: "Mix Challenge"}, pk, index, len(stages), len(inputs)); err != nil {
		return nil, err
	}
	for _, e := range inputs {
		if err := write(e); err != nil {
			return nil, err
		}
	}
	for _, s := range stages {
		if err := write(s.Index, len(s.Outputs)); err != nil {
			return nil, err
		}
		for _, e := range s.Outputs {
			if err := write(e); err != nil {
				return nil, err
			}
		}
		for _, c := range s.Commitments {
			if err := write(c); err != nil {
				return nil, err
			}
		}
	}
	for _, s := range stages[:index] {
		for _, o := range s.Openings {
			var err error
			if o == nil {
				err = write(&hash.BytesWithDomain{TheDomain: "Mix Withheld"})
			} else {
				err = write(o)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return h.Sum(), nil
}

type mixerMarshal struct {
	Index         int
	Permutation   []int
	Reencryptions [][]*saferith.Nat
	Decommitments [][]byte
}

// MarshalBinary serializes the secret state, for private backups only.
func (m *Mixer) MarshalBinary() ([]byte, error) {
	ds := make([][]byte, len(m.Decommitments))
	for i, d := range m.Decommitments {
		ds[i] = d
	}
	return cbor.Marshal(mixerMarshal{
		Index:         m.Index,
		Permutation:   m.Permutation,
		Reencryptions: m.Reencryptions,
		Decommitments: ds,
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Mixer) UnmarshalBinary(data []byte) error {
	var mm mixerMarshal
	if err := cbor.Unmarshal(data, &mm); err != nil {
		return fmt.Errorf("mixnet: unmarshal mixer: %w", err)
	}
	n := len(mm.Permutation)
	if len(mm.Reencryptions) != n || len(mm.Decommitments) != n {
		return errors.New("mixnet: unmarshal mixer: inconsistent sizes")
	}
	m.Index = mm.Index
	m.inverse = nil
	m.Permutation = mm.Permutation
	m.Reencryptions = mm.Reencryptions
	m.Decommitments = make([]hash.Decommitment, n)
	for i, d := range mm.Decommitments {
		m.Decommitments[i] = d
	}
	return nil
}
