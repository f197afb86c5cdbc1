package mixnet

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/internal/hash"
)

// Stage is the public record of one mixing trustee's shuffle.
//
// Commitments[p] binds the correspondence at position p. On even stages position p is input p,
// and the opening reveals its output index; on odd stages position p is output p, and the
// opening reveals its input index. Challenge and Openings are empty until the stage is proven;
// Openings[p] is nil when the challenge says to withhold it.
type Stage struct {
	Index       int
	Outputs     []Entry
	Commitments []hash.Commitment
	Challenge   []byte     `cbor:",omitempty"`
	Openings    []*Opening `cbor:",omitempty"`
}

// Mixed returns true once the outputs and commitments are published.
func (s *Stage) Mixed() bool {
	return s != nil && s.Outputs != nil && len(s.Commitments) == len(s.Outputs)
}

// Proven returns true once the challenge and openings are published.
func (s *Stage) Proven() bool {
	return s.Mixed() && s.Challenge != nil && len(s.Openings) == len(s.Outputs)
}

// even stages are challenged on their inputs, odd stages on their outputs.
func (s *Stage) even() bool {
	return s.Index%2 == 0
}

// Opening reveals the correspondence committed at ChallengeIndex.
type Opening struct {
	ChallengeIndex int
	ResponseIndex  int
	Reencryptions  []*saferith.Nat
	Decommitment   hash.Decommitment
}

// Domain implements hash.WriterToWithDomain.
func (*Opening) Domain() string { return "Mix Opening" }

// WriteTo implements io.WriterTo.
func (o *Opening) WriteTo(w io.Writer) (int64, error) {
	h := hash.New()
	if err := h.WriteAny(o.committed()...); err != nil {
		return 0, err
	}
	if err := h.WriteAny(o.Decommitment); err != nil {
		return 0, err
	}
	n, err := w.Write(h.Sum())
	return int64(n), err
}

func (o *Opening) committed() []interface{} {
	data := make([]interface{}, 0, 2+len(o.Reencryptions))
	data = append(data, o.ChallengeIndex, o.ResponseIndex)
	for _, k := range o.Reencryptions {
		data = append(data, k)
	}
	return data
}

func commitHash(stage int) *hash.Hash {
	h := hash.New()
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "Mix Commitment"}, stage)
	return h
}

// Reveal returns true if the opening at a position with challenge bit b must be published.
func Reveal(stage int, b uint8) bool {
	return stage%2 == int(b)%2
}

// RevealBits expands a challenge into n bits.
func RevealBits(challenge []byte, n int) []uint8 {
	return hash.NewBits(challenge).Take(n)
}
