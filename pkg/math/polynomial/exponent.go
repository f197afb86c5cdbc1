package polynomial

import (
	"errors"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

// Exponent represents the commitment gᶠ⁽ˣ⁾ to a polynomial f,
// given by its coefficients g^a₀, …, g^aₜ.
type Exponent struct {
	group        *group.Group
	coefficients []*saferith.Nat
}

// NewPolynomialExponent commits to every coefficient of polynomial.
func NewPolynomialExponent(polynomial *Polynomial) *Exponent {
	p := &Exponent{
		group:        polynomial.group,
		coefficients: make([]*saferith.Nat, len(polynomial.coefficients)),
	}
	for i, a := range polynomial.coefficients {
		p.coefficients[i] = p.group.ExpG(a)
	}
	return p
}

// NewExponent wraps published coefficient commitments.
func NewExponent(G *group.Group, coefficients []*saferith.Nat) (*Exponent, error) {
	if len(coefficients) == 0 {
		return nil, errors.New("polynomial: exponent needs at least one coefficient")
	}
	for _, c := range coefficients {
		if !G.IsElement(c) {
			return nil, errors.New("polynomial: coefficient is not a group element")
		}
	}
	return &Exponent{group: G, coefficients: coefficients}, nil
}

// Evaluate returns ∏ₗ Cₗ^(xˡ), which equals g^f(x).
//
// Horner's method carries over to the multiplicative notation:
// Bₙ₋₁ = Bₙˣ ⋅ Cₙ₋₁.
func (p *Exponent) Evaluate(x *saferith.Nat) *saferith.Nat {
	result := new(saferith.Nat).SetUint64(1)
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		result = p.group.Mul(p.group.Exp(result, x), p.coefficients[i])
	}
	return result
}

// EvaluateAt is Evaluate for a small index.
func (p *Exponent) EvaluateAt(x int) *saferith.Nat {
	return p.Evaluate(new(saferith.Nat).SetUint64(uint64(x)))
}

// Constant returns g^a₀.
func (p *Exponent) Constant() *saferith.Nat {
	return p.coefficients[0]
}

// Coefficients returns the coefficient commitments.
func (p *Exponent) Coefficients() []*saferith.Nat {
	return p.coefficients
}

// Degree is the highest power of the polynomial.
func (p *Exponent) Degree() int {
	return len(p.coefficients) - 1
}
