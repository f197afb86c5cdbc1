package polynomial

import (
	"crypto/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

func smallGroup() *group.Group {
	return group.FromUint64(1019, 4)
}

func TestPolynomial_Constant(t *testing.T) {
	G := smallGroup()
	secret := G.RandomScalar(rand.Reader)
	poly := NewPolynomial(rand.Reader, G, 10, secret)
	assert.True(t, poly.Constant().Eq(secret) == 1)
	assert.Equal(t, 10, poly.Degree())
	assert.True(t, poly.EvaluateAt(0).Eq(secret) == 1)
}

func TestPolynomial_Evaluate(t *testing.T) {
	G := smallGroup()
	// f(X) = 1 + X²
	poly := &Polynomial{group: G, coefficients: []*saferith.Nat{
		new(saferith.Nat).SetUint64(1),
		new(saferith.Nat).SetUint64(0),
		new(saferith.Nat).SetUint64(1),
	}}
	for x := uint64(0); x < 600; x += 13 {
		expected := (x*x + 1) % 509
		assert.Equal(t, expected, poly.EvaluateAt(int(x)).Big().Uint64())
	}
}

func TestExponent_Evaluate(t *testing.T) {
	G := smallGroup()
	poly := NewPolynomial(rand.Reader, G, 4, nil)
	exp := NewPolynomialExponent(poly)
	for i := 1; i < 20; i++ {
		assert.True(t, exp.EvaluateAt(i).Eq(G.ExpG(poly.EvaluateAt(i))) == 1)
	}
	assert.True(t, exp.Constant().Eq(G.ExpG(poly.Constant())) == 1)

	again, err := NewExponent(G, exp.Coefficients())
	require.NoError(t, err)
	assert.True(t, again.EvaluateAt(5).Eq(exp.EvaluateAt(5)) == 1)

	_, err = NewExponent(G, nil)
	assert.Error(t, err)
}

func TestLagrange(t *testing.T) {
	G := smallGroup()
	secret := G.RandomScalar(rand.Reader)
	poly := NewPolynomial(rand.Reader, G, 2, secret)

	for _, points := range [][]int{{1, 2, 3}, {1, 3, 5}, {2, 4, 5, 6}} {
		coefficients, err := Lagrange(G, points)
		require.NoError(t, err)
		sum := new(saferith.Nat).SetUint64(0)
		for _, x := range points {
			sum = G.AddQ(sum, G.MulQ(coefficients[x], poly.EvaluateAt(x)))
		}
		assert.True(t, sum.Eq(secret) == 1, "points %v", points)
	}

	_, err := Lagrange(G, []int{1, 1})
	assert.ErrorIs(t, err, ErrDuplicatePoint)
	_, err = Lagrange(G, []int{1, 510})
	assert.ErrorIs(t, err, ErrDuplicatePoint)
}
