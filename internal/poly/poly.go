// Package poly implements the quintic jerk-minimising trajectory solver and
// small polynomial helpers used by prediction and trajectory generation.
package poly

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateTime is returned when a trajectory is requested over a
// non-positive time horizon.
var ErrDegenerateTime = errors.New("poly: non-positive time horizon")

// Boundary is a 1-D kinematic boundary condition.
type Boundary struct {
	Pos float64
	Vel float64
	Acc float64
}

// Coeffs holds polynomial coefficients in ascending order: c[i] multiplies t^i.
type Coeffs []float64

// JMT solves for the quintic polynomial that transitions from one boundary
// state to another over time t while minimising integrated squared jerk.
// The first three coefficients follow directly from the start state; the
// remaining three come from a 3x3 linear system over the end state.
func JMT(from, to Boundary, t float64) (Coeffs, error) {
	if t <= 0 {
		return nil, fmt.Errorf("%w: t=%v", ErrDegenerateTime, t)
	}

	a0 := from.Pos
	a1 := from.Vel
	a2 := from.Acc / 2

	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	t5 := t4 * t

	a := mat.NewDense(3, 3, []float64{
		t3, t4, t5,
		3 * t2, 4 * t3, 5 * t4,
		6 * t, 12 * t2, 20 * t3,
	})
	b := mat.NewVecDense(3, []float64{
		to.Pos - (a0 + a1*t + a2*t2),
		to.Vel - (a1 + 2*a2*t),
		to.Acc - 2*a2,
	})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("poly: singular boundary system: %w", err)
	}

	return Coeffs{a0, a1, a2, x.AtVec(0), x.AtVec(1), x.AtVec(2)}, nil
}

// Eval evaluates the polynomial at t by Horner's rule.
func (c Coeffs) Eval(t float64) float64 {
	var v float64
	for i := len(c) - 1; i >= 0; i-- {
		v = v*t + c[i]
	}
	return v
}

// Deriv returns the coefficients of the derivative polynomial.
func (c Coeffs) Deriv() Coeffs {
	if len(c) <= 1 {
		return Coeffs{0}
	}
	d := make(Coeffs, len(c)-1)
	for i := 1; i < len(c); i++ {
		d[i-1] = float64(i) * c[i]
	}
	return d
}
