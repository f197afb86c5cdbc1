package polynomial

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

// Polynomial represents f(X) = a₀ + a₁⋅X + … + aₜ⋅Xᵗ over ℤ_q.
type Polynomial struct {
	group        *group.Group
	coefficients []*saferith.Nat
}

// NewPolynomial generates a Polynomial f(X) = secret + a₁⋅X + … + aₜ⋅Xᵗ,
// with coefficients sampled from [1, q-1], and degree t.
//
// If constant is nil, it is sampled as well.
func NewPolynomial(rand io.Reader, G *group.Group, degree int, constant *saferith.Nat) *Polynomial {
	polynomial := &Polynomial{
		group:        G,
		coefficients: make([]*saferith.Nat, degree+1),
	}

	if constant == nil {
		constant = G.RandomScalar(rand)
	}
	polynomial.coefficients[0] = G.ReduceQ(constant)

	for i := 1; i <= degree; i++ {
		polynomial.coefficients[i] = G.RandomScalar(rand)
	}

	return polynomial
}

// Evaluate evaluates the polynomial at x, modulo q.
// We use Horner's method: https://en.wikipedia.org/wiki/Horner%27s_method
func (p *Polynomial) Evaluate(x *saferith.Nat) *saferith.Nat {
	x = p.group.ReduceQ(x)
	result := new(saferith.Nat).SetUint64(0)
	// reverse order
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// bₙ₋₁ = bₙ * x + aₙ₋₁
		result = p.group.AddQ(p.group.MulQ(result, x), p.coefficients[i])
	}
	return result
}

// EvaluateAt is Evaluate for a small index.
func (p *Polynomial) EvaluateAt(x int) *saferith.Nat {
	return p.Evaluate(new(saferith.Nat).SetUint64(uint64(x)))
}

// Constant returns a reference to the constant coefficient of the polynomial.
func (p *Polynomial) Constant() *saferith.Nat {
	return p.coefficients[0]
}

// Degree is the highest power of the Polynomial.
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}
