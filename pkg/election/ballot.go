package election

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Ballot carries one encrypted answer per question, bound to an election by its ID and fingerprint.
type Ballot struct {
	ElectionID   uuid.UUID
	ElectionHash string
	Answers      []*EncryptedAnswer
}

// EncryptBallot encrypts one answer per question under the election key.
func (e *Election) EncryptBallot(rand io.Reader, answers []*Answer) (*Ballot, error) {
	fingerprint, err := e.Fingerprint()
	if err != nil {
		return nil, err
	}
	if len(answers) != len(e.Questions) {
		return nil, fmt.Errorf("%w: %d answers for %d questions", ErrInvalidAnswer, len(answers), len(e.Questions))
	}
	b := &Ballot{
		ElectionID:   e.ID,
		ElectionHash: fingerprint,
		Answers:      make([]*EncryptedAnswer, len(answers)),
	}
	pk := e.PublicKey.ElGamal()
	for q, a := range answers {
		if b.Answers[q], err = EncryptAnswer(rand, pk, e.Questions[q], a); err != nil {
			return nil, fmt.Errorf("question %d: %w", q, err)
		}
	}
	return b, nil
}

// CheckBallot verifies the binding of b to the election, its shape, and every block signature.
func (e *Election) CheckBallot(b *Ballot) error {
	fingerprint, err := e.Fingerprint()
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: missing ballot", ErrInvalidAnswer)
	}
	if b.ElectionID != e.ID {
		return fmt.Errorf("%w: ballot for election %s", ErrElectionMismatch, b.ElectionID)
	}
	if b.ElectionHash != fingerprint {
		return fmt.Errorf("%w: ballot for election hash %s", ErrElectionMismatch, b.ElectionHash)
	}
	if len(b.Answers) != len(e.Questions) {
		return fmt.Errorf("%w: %d answers for %d questions", ErrInvalidAnswer, len(b.Answers), len(e.Questions))
	}
	pk := e.PublicKey.ElGamal()
	for q, a := range b.Answers {
		if a == nil || len(a.Blocks) != e.Questions[q].Blocks(e.Group) {
			return fmt.Errorf("%w: question %d: unexpected number of blocks", ErrInvalidAnswer, q)
		}
		if err = a.Verify(pk); err != nil {
			return fmt.Errorf("question %d: %w", q, err)
		}
	}
	return nil
}
