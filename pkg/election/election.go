// Package election holds the records of an election, the stage-advance operations that move it
// from key generation to released results, and the verification of a published election.
package election

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
	"github.com/taurusgroup/multi-party-vote/pkg/mixnet"
	"github.com/taurusgroup/multi-party-vote/pkg/threshold"
	"github.com/taurusgroup/multi-party-vote/pkg/vss"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrElectionMismatch is returned when a ballot is bound to another election, or a record
	// contradicts the election it belongs to.
	ErrElectionMismatch = errors.New("election: record does not match election")
	// ErrResultMismatch is returned when published results do not follow from the decryptions.
	ErrResultMismatch = errors.New("election: result does not match decryption")
	// ErrInvalidAnswer is returned when an answer does not fit its question.
	ErrInvalidAnswer = errors.New("election: invalid answer")
	// ErrNotReady is returned when an operation runs before the stages it depends on.
	ErrNotReady = errors.New("election: prerequisite stage not complete")
	// ErrVotingClosed is returned when casting after mixing has started.
	ErrVotingClosed = errors.New("election: voting is closed")
)

// Trustee is a key holder. Every trustee deals in the key generation, mixes once per question,
// and contributes a partial decryption.
type Trustee struct {
	Name string
	// Key receives the shares dealt to this trustee.
	Key *elgamal.PublicKey `cbor:",omitempty"`
}

// Vote is one cast ballot. Only a voter's latest vote is counted.
type Vote struct {
	Ballot *Ballot
	CastAt time.Time
}

// Voter is an eligible voter.
type Voter struct {
	ID    uuid.UUID
	Name  string
	Votes []*Vote `cbor:",omitempty"`
}

// Decryption is the contribution of one trustee to the decryption of a question.
//
// Inputs are the ciphertexts that were decrypted; Shares[i][b] decrypts block b of Inputs[i].
type Decryption struct {
	Trustee int
	Inputs  []mixnet.Entry
	Shares  [][]*threshold.PartialDecryption
}

// Election is the public record of an election. It never holds secrets.
//
// Mixes, Decryptions and Results are indexed by question.
type Election struct {
	ID        uuid.UUID
	Name      string
	Group     *group.Group
	Threshold int
	Trustees  []*Trustee
	Questions []*Question
	Voters    []*Voter

	KeyGeneration *vss.Setup           `cbor:",omitempty"`
	PublicKey     *threshold.PublicKey `cbor:",omitempty"`

	Mixes       [][]*mixnet.Stage
	Decryptions [][]*Decryption
	Results     []*Result
	Released    bool
}

// New creates an election ready for key generation.
func New(name string, G *group.Group, k int, trustees []string, questions []*Question, voters []string) (*Election, error) {
	if len(trustees) == 0 {
		return nil, errors.New("election: no trustees")
	}
	if k < 1 || k > len(trustees) {
		return nil, fmt.Errorf("election: invalid threshold %d for %d trustees", k, len(trustees))
	}
	if len(questions) == 0 {
		return nil, errors.New("election: no questions")
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("election: question %d: %w", i, err)
		}
	}
	e := &Election{
		ID:          uuid.New(),
		Name:        name,
		Group:       G,
		Threshold:   k,
		Trustees:    make([]*Trustee, len(trustees)),
		Questions:   questions,
		Voters:      make([]*Voter, len(voters)),
		Mixes:       make([][]*mixnet.Stage, len(questions)),
		Decryptions: make([][]*Decryption, len(questions)),
		Results:     make([]*Result, len(questions)),
	}
	for i, t := range trustees {
		e.Trustees[i] = &Trustee{Name: t}
	}
	for i, v := range voters {
		e.Voters[i] = &Voter{ID: uuid.New(), Name: v}
	}
	return e, nil
}

// Question returns question q, or an error if there is none.
func (e *Election) Question(q int) (*Question, error) {
	if q < 0 || q >= len(e.Questions) {
		return nil, fmt.Errorf("election: no question %d", q)
	}
	return e.Questions[q], nil
}

// Voter returns the voter with the given index.
func (e *Election) Voter(v int) (*Voter, error) {
	if v < 0 || v >= len(e.Voters) {
		return nil, fmt.Errorf("election: no voter %d", v)
	}
	return e.Voters[v], nil
}

// Ballots returns the counted ballot of every voter who voted, in voter order.
func (e *Election) Ballots() []*Ballot {
	var out []*Ballot
	for _, v := range e.Voters {
		if v == nil || len(v.Votes) == 0 {
			continue
		}
		if vote := v.Votes[len(v.Votes)-1]; vote != nil {
			out = append(out, vote.Ballot)
		}
	}
	return out
}

// Inputs returns the entries that enter the mix chain of question q.
func (e *Election) Inputs(q int) []mixnet.Entry {
	ballots := e.Ballots()
	out := make([]mixnet.Entry, 0, len(ballots))
	for _, b := range ballots {
		if b != nil && q < len(b.Answers) && b.Answers[q] != nil {
			out = append(out, b.Answers[q].Entry())
		}
	}
	return out
}

// MixingStarted returns true once any question has a mix stage.
func (e *Election) MixingStarted() bool {
	for _, stages := range e.Mixes {
		if len(stages) > 0 {
			return true
		}
	}
	return false
}

// Fingerprint is the published hash of the election definition and keys, which every ballot embeds.
//
// Voters, mixes, decryptions and results are not covered.
func (e *Election) Fingerprint() (string, error) {
	if e.PublicKey == nil {
		return "", fmt.Errorf("%w: no public key", ErrNotReady)
	}
	h := sha3.New256()
	if err := hash.Encode(h, e); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Domain implements hash.WriterToWithDomain.
func (*Election) Domain() string { return "Election" }

// WriteTo implements io.WriterTo.
func (e *Election) WriteTo(w io.Writer) (int64, error) {
	data := []interface{}{e.ID[:], e.Name, e.Group, e.Threshold, e.PublicKey, len(e.Trustees)}
	for _, t := range e.Trustees {
		data = append(data, t)
	}
	data = append(data, len(e.Questions))
	for _, q := range e.Questions {
		data = append(data, q)
	}
	return writeAll(w, data...)
}

// Domain implements hash.WriterToWithDomain.
func (*Trustee) Domain() string { return "Trustee" }

// WriteTo implements io.WriterTo.
func (t *Trustee) WriteTo(w io.Writer) (int64, error) {
	if t.Key == nil {
		return writeAll(w, t.Name)
	}
	return writeAll(w, t.Name, t.Key)
}

func writeAll(w io.Writer, data ...interface{}) (int64, error) {
	var buf bytes.Buffer
	if err := hash.Encode(&buf, data...); err != nil {
		return 0, err
	}
	return buf.WriteTo(w)
}
