package polynomial

import (
	"errors"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

// ErrDuplicatePoint is returned when the interpolation domain contains a point twice.
var ErrDuplicatePoint = errors.New("polynomial: duplicate interpolation point")

// Lagrange returns the Lagrange coefficients at 0 for every point in the interpolation domain, mod q.
//
// Points are the evaluation indices (trustee i evaluates at i + 1) and must be non zero and distinct mod q.
//
// The following formulas are taken from
// https://en.wikipedia.org/wiki/Lagrange_polynomial
//
//	          ∏_{m≠j} xₘ
//	lⱼ(0) = ---------------
//	        ∏_{m≠j} (xₘ - xⱼ)
//
// The inverse of the denominator is computed with Fermat's little theorem.
func Lagrange(G *group.Group, points []int) (map[int]*saferith.Nat, error) {
	scalars := make(map[int]*saferith.Nat, len(points))
	for _, x := range points {
		if _, ok := scalars[x]; ok {
			return nil, ErrDuplicatePoint
		}
		s := G.ReduceQ(new(saferith.Nat).SetUint64(uint64(x)))
		if s.EqZero() == 1 {
			return nil, errors.New("polynomial: interpolation point is 0 mod q")
		}
		scalars[x] = s
	}

	coefficients := make(map[int]*saferith.Nat, len(points))
	for _, j := range points {
		xJ := scalars[j]
		numerator := new(saferith.Nat).SetUint64(1)
		denominator := new(saferith.Nat).SetUint64(1)
		for _, m := range points {
			if m == j {
				continue
			}
			xM := scalars[m]
			numerator = G.MulQ(numerator, xM)
			diff := G.SubQ(xM, xJ)
			if diff.EqZero() == 1 {
				return nil, ErrDuplicatePoint
			}
			denominator = G.MulQ(denominator, diff)
		}
		coefficients[j] = G.MulQ(numerator, G.InvQ(denominator))
	}
	return coefficients, nil
}
