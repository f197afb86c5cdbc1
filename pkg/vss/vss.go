// Package vss implements distributed key generation among n trustees with Pedersen's
// verifiable secret sharing. Every trustee deals a random polynomial; the joint secret is the
// sum of the constants and is never known to anyone.
package vss

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/pkg/elgamal"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
	"github.com/taurusgroup/multi-party-vote/pkg/math/polynomial"
	"github.com/taurusgroup/multi-party-vote/pkg/threshold"
)

var (
	// ErrShareInconsistent is returned when a dealt share does not match the dealer's commitment.
	ErrShareInconsistent = errors.New("vss: share inconsistent with commitment")
	// ErrTooFewTrustees is returned when fewer than K trustees remain qualified.
	ErrTooFewTrustees = errors.New("vss: fewer than k qualified trustees")
)

// ShareError locates a failure at the dealer Trustee.
type ShareError struct {
	Trustee int
	Err     error
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("vss: invalid commitment by trustee %d: %v", e.Trustee, e.Err)
}

func (e *ShareError) Unwrap() error { return e.Err }

func inconsistent(trustee int, format string, args ...interface{}) *ShareError {
	return &ShareError{
		Trustee: trustee,
		Err:     fmt.Errorf("%w: %s", ErrShareInconsistent, fmt.Sprintf(format, args...)),
	}
}

// Commitment is what a trustee publishes for its polynomial f of degree K - 1.
type Commitment struct {
	// Public[l] = g^aₗ
	Public []*saferith.Nat
	// Verification[i] = g^f(i), for i = 0, …, n
	Verification []*saferith.Nat
	// Private[i] encrypts Encode(f(i + 1)) to trustee i
	Private []*elgamal.CPCiphertext
}

// Setup is the state of a key generation among len(Trustees) trustees with threshold K.
type Setup struct {
	Group       *group.Group
	K           int
	Trustees    []*elgamal.PublicKey
	Commitments []*Commitment
	// Disqualified lists the dealers excluded so far, in the order they were found.
	Disqualified []int
}

// NewSetup starts a key generation. The group must have a generator of order q.
func NewSetup(G *group.Group, k int, trustees []*elgamal.PublicKey) (*Setup, error) {
	if err := G.ValidateSubgroup(); err != nil {
		return nil, err
	}
	if k < 1 || k > len(trustees) {
		return nil, fmt.Errorf("vss: invalid threshold %d for %d trustees", k, len(trustees))
	}
	for i, pk := range trustees {
		if err := pk.Validate(); err != nil {
			return nil, fmt.Errorf("vss: trustee %d: %w", i, err)
		}
		if !pk.Group.Equal(G) {
			return nil, fmt.Errorf("vss: trustee %d: key in another group", i)
		}
	}
	return &Setup{
		Group:       G,
		K:           k,
		Trustees:    trustees,
		Commitments: make([]*Commitment, len(trustees)),
	}, nil
}

// N returns the number of trustees.
func (s *Setup) N() int {
	return len(s.Trustees)
}

// GenerateCommitment deals a fresh random polynomial. The polynomial itself is discarded.
func (s *Setup) GenerateCommitment(rand io.Reader) (*Commitment, error) {
	G := s.Group
	f := polynomial.NewPolynomial(rand, G, s.K-1, nil)
	exponent := polynomial.NewPolynomialExponent(f)

	c := &Commitment{
		Public:       exponent.Coefficients(),
		Verification: make([]*saferith.Nat, s.N()+1),
		Private:      make([]*elgamal.CPCiphertext, s.N()),
	}
	for i := 0; i <= s.N(); i++ {
		c.Verification[i] = G.ExpG(f.EvaluateAt(i))
	}
	for i, pk := range s.Trustees {
		encoded, err := G.Encode(f.EvaluateAt(i + 1))
		if err != nil {
			return nil, err
		}
		if c.Private[i], err = pk.EncryptCP(rand, encoded); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Validate checks the shape of c, and that the verification factors are the evaluations
// of the committed polynomial.
func (c *Commitment) Validate(G *group.Group, k, n int) error {
	if c == nil {
		return errors.New("missing commitment")
	}
	if len(c.Public) != k || len(c.Verification) != n+1 || len(c.Private) != n {
		return fmt.Errorf("wrong sizes %d/%d/%d", len(c.Public), len(c.Verification), len(c.Private))
	}
	exponent, err := polynomial.NewExponent(G, c.Public)
	if err != nil {
		return err
	}
	for i, v := range c.Verification {
		if exponent.EvaluateAt(i).Eq(v) != 1 {
			return fmt.Errorf("verification factor %d", i)
		}
	}
	return nil
}

// AddCommitment records the commitment of trustee j, disqualifying it if malformed.
func (s *Setup) AddCommitment(j int, c *Commitment) error {
	if j < 0 || j >= s.N() {
		return fmt.Errorf("vss: trustee index %d out of range", j)
	}
	if err := c.Validate(s.Group, s.K, s.N()); err != nil {
		s.disqualify(j)
		return inconsistent(j, "%v", err)
	}
	s.Commitments[j] = c
	return nil
}

func (s *Setup) disqualify(j int) {
	if s.isDisqualified(j) {
		return
	}
	s.Disqualified = append(s.Disqualified, j)
}

func (s *Setup) isDisqualified(j int) bool {
	for _, d := range s.Disqualified {
		if d == j {
			return true
		}
	}
	return false
}

// Qualified returns the trustees whose commitment was received and not disqualified.
func (s *Setup) Qualified() []int {
	out := make([]int, 0, s.N())
	for j, c := range s.Commitments {
		if c != nil && !s.isDisqualified(j) {
			out = append(out, j)
		}
	}
	return out
}

// share decrypts and checks the share dealt by trustee j to trustee i.
func (s *Setup) share(j, i int, sk *elgamal.PrivateKey) (*saferith.Nat, error) {
	G := s.Group
	c := s.Commitments[j]
	encoded, err := sk.DecryptCP(c.Private[i])
	if err != nil {
		return nil, inconsistent(j, "share for trustee %d: %v", i, err)
	}
	share, err := G.Decode(encoded)
	if err != nil {
		return nil, inconsistent(j, "share for trustee %d: %v", i, err)
	}
	exponent, err := polynomial.NewExponent(G, c.Public)
	if err != nil {
		return nil, inconsistent(j, "%v", err)
	}
	if G.ExpG(share).Eq(exponent.EvaluateAt(i+1)) != 1 {
		return nil, inconsistent(j, "share for trustee %d", i)
	}
	return share, nil
}

// VerifyCommitments is run by trustee i once every commitment is in. Dealers whose share to i
// is inconsistent are disqualified; each of them is reported as a *ShareError.
func (s *Setup) VerifyCommitments(i int, sk *elgamal.PrivateKey) error {
	if i < 0 || i >= s.N() {
		return fmt.Errorf("vss: trustee index %d out of range", i)
	}
	if !sk.PublicKey.Equal(s.Trustees[i]) {
		return fmt.Errorf("vss: key does not belong to trustee %d", i)
	}
	var errs []error
	for j, c := range s.Commitments {
		if c == nil && !s.isDisqualified(j) {
			s.disqualify(j)
			errs = append(errs, &ShareError{Trustee: j, Err: errors.New("no commitment received")})
			continue
		}
		if s.isDisqualified(j) {
			continue
		}
		if _, err := s.share(j, i, sk); err != nil {
			s.disqualify(j)
			errs = append(errs, err)
		}
	}
	if len(s.Qualified()) < s.K {
		errs = append(errs, ErrTooFewTrustees)
	}
	return errors.Join(errs...)
}

// Audit rechecks the public part of the transcript: every qualified commitment must be well formed.
// An observer cannot check the encrypted shares, so the disqualifications themselves are taken as
// recorded. Each bad commitment is reported as a *ShareError.
func (s *Setup) Audit() error {
	if s.K < 1 || s.K > s.N() || len(s.Commitments) != s.N() {
		return fmt.Errorf("vss: %d commitments for %d trustees with threshold %d", len(s.Commitments), s.N(), s.K)
	}
	var errs []error
	for _, j := range s.Qualified() {
		if err := s.Commitments[j].Validate(s.Group, s.K, s.N()); err != nil {
			errs = append(errs, inconsistent(j, "%v", err))
		}
	}
	if len(s.Qualified()) < s.K {
		errs = append(errs, ErrTooFewTrustees)
	}
	return errors.Join(errs...)
}

// PublicKey combines the commitments of the qualified trustees:
// X = ∏ⱼ Publicⱼ[0] and hᵢ = ∏ⱼ Verificationⱼ[i + 1].
func (s *Setup) PublicKey() (*threshold.PublicKey, error) {
	qualified := s.Qualified()
	if len(qualified) < s.K {
		return nil, ErrTooFewTrustees
	}
	G := s.Group
	pk := &threshold.PublicKey{
		Group: G,
		X:     new(saferith.Nat).SetUint64(1),
		H:     make([]*saferith.Nat, s.N()),
		K:     s.K,
	}
	for i := range pk.H {
		pk.H[i] = new(saferith.Nat).SetUint64(1)
	}
	for _, j := range qualified {
		c := s.Commitments[j]
		pk.X = G.Mul(pk.X, c.Public[0])
		for i := range pk.H {
			pk.H[i] = G.Mul(pk.H[i], c.Verification[i+1])
		}
	}
	return pk, nil
}

// PrivateKey returns the share of trustee i: the sum of the shares dealt to it by the qualified trustees.
func (s *Setup) PrivateKey(i int, sk *elgamal.PrivateKey) (*threshold.PrivateKey, error) {
	pk, err := s.PublicKey()
	if err != nil {
		return nil, err
	}
	G := s.Group
	sum := new(saferith.Nat).SetUint64(0)
	for _, j := range s.Qualified() {
		share, err := s.share(j, i, sk)
		if err != nil {
			return nil, err
		}
		sum = G.AddQ(sum, share)
	}
	return threshold.NewPrivateKey(pk, i, sum)
}
