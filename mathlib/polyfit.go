package mathlib

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a fit has no unique solution.
var ErrSingular = errors.New("singular system")

// PolyFit returns the coefficients a0..an of the polynomial of order
// len(x)-1 passing through every (x[i], y[i]). Orders up to 3 use closed
// forms, higher orders go through MultiSolve.
func PolyFit(x, y []float64) ([]float64, error) {
	if len(x) != len(y) || len(x) < 2 {
		return nil, errors.Errorf("polyfit needs matching x and y of at least two points, got %d and %d", len(x), len(y))
	}
	order := len(x) - 1
	a := make([]float64, order+1)
	switch order {
	case 1:
		if x[1] == x[0] {
			return nil, ErrSingular
		}
		a[1] = (y[1] - y[0]) / (x[1] - x[0])
		a[0] = y[1] - a[1]*x[1]
		return a, nil
	case 2, 3:
		// Newton divided differences, then expanded into monomials.
		dd := append([]float64(nil), y...)
		for j := 1; j <= order; j++ {
			for i := order; i >= j; i-- {
				den := x[i] - x[i-j]
				if den == 0 {
					return nil, ErrSingular
				}
				dd[i] = (dd[i] - dd[i-1]) / den
			}
		}
		// Horner on the Newton form: p = dd[n]; p = p*(t - x[k]) + dd[k].
		a[0] = dd[order]
		for k := order - 1; k >= 0; k-- {
			for i := order; i > 0; i-- {
				a[i] = a[i-1] - x[k]*a[i]
			}
			a[0] = dd[k] - x[k]*a[0]
		}
		return a, nil
	}
	rows := make([][]float64, order+1)
	for r := range rows {
		rows[r] = make([]float64, order+1)
		for c := range rows[r] {
			rows[r][c] = math.Pow(x[r], float64(c))
		}
	}
	if err := MultiSolve(rows, y, a); err != nil {
		return nil, err
	}
	return a, nil
}

// MultiSolve solves the N equations Σ x[r][c]·a[c] = y[r] in N unknowns by
// recursive elimination of the first unknown. The result is written into a,
// which must hold len(y) values.
func MultiSolve(x [][]float64, y []float64, a []float64) error {
	n := len(y)
	if n == 0 || len(x) != n || len(a) < n {
		return errors.Errorf("multisolve needs %d rows and parameters", n)
	}
	order := n - 1
	if order > 0 {
		dx := make([][]float64, order)
		dy := make([]float64, order)
		da := make([]float64, order)
		for r := 1; r <= order; r++ {
			dy[r-1] = y[r]*x[0][0] - y[0]*x[r][0]
			dx[r-1] = make([]float64, order)
			for c := 1; c <= order; c++ {
				dx[r-1][c-1] = x[r][c]*x[0][0] - x[0][c]*x[r][0]
			}
		}
		if err := MultiSolve(dx, dy, da); err != nil {
			return err
		}
		copy(a[1:], da)
	}

	// Back substitute with the row carrying the largest leading coefficient.
	best, bestx := 0, 0.
	for i := 0; i < n; i++ {
		if math.Abs(x[i][0]) > bestx {
			bestx = math.Abs(x[i][0])
			best = i
		}
	}
	if bestx == 0 {
		return ErrSingular
	}
	a[0] = y[best]
	for i := 1; i <= order; i++ {
		a[0] -= a[i] * x[best][i]
	}
	a[0] /= x[best][0]
	return nil
}

// LeastSquares returns the coefficients of the polynomial of the given order
// that best fits (x, y) in the least-squares sense. x is offset by basex
// before fitting.
func LeastSquares(x, y []float64, order int, basex float64) ([]float64, error) {
	if len(x) != len(y) || len(x) <= order {
		return nil, errors.Errorf("least squares of order %d needs more than %d points, got %d", order, order, len(x))
	}
	v := mat.NewDense(len(x), order+1, nil)
	for i, xi := range x {
		cx, p := xi-basex, 1.
		for j := 0; j <= order; j++ {
			v.Set(i, j, p)
			p *= cx
		}
	}
	var qr mat.QR
	qr.Factorize(v)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, mat.NewDense(len(y), 1, append([]float64(nil), y...))); err != nil {
		return nil, errors.Wrap(ErrSingular, err.Error())
	}
	a := make([]float64, order+1)
	for j := range a {
		a[j] = sol.At(j, 0)
	}
	return a, nil
}

// EvalPoly returns a0 + a1·x + ... + an·xⁿ.
func EvalPoly(x float64, a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	r := a[len(a)-1]
	for i := len(a) - 2; i >= 0; i-- {
		r = r*x + a[i]
	}
	return r
}

// EvalPolySlope returns the first derivative of the polynomial a at x.
func EvalPolySlope(x float64, a []float64) float64 {
	return EvalPoly(x, derivative(a))
}

// EvalPolyAccel returns the second derivative of the polynomial a at x.
func EvalPolyAccel(x float64, a []float64) float64 {
	return EvalPoly(x, derivative(derivative(a)))
}

// EvalPolyJerk returns the third derivative of the polynomial a at x.
func EvalPolyJerk(x float64, a []float64) float64 {
	return EvalPoly(x, derivative(derivative(derivative(a))))
}

func derivative(a []float64) []float64 {
	if len(a) < 2 {
		return nil
	}
	d := make([]float64, len(a)-1)
	for i := 1; i < len(a); i++ {
		d[i-1] = float64(i) * a[i]
	}
	return d
}

// EvalPolyVector evaluates one polynomial per axis.
func EvalPolyVector(x float64, a [3][]float64) Vector {
	return Vector{EvalPoly(x, a[0]), EvalPoly(x, a[1]), EvalPoly(x, a[2])}
}

// EvalPolyVectorSlope evaluates the derivative of one polynomial per axis.
func EvalPolyVectorSlope(x float64, a [3][]float64) Vector {
	return Vector{EvalPolySlope(x, a[0]), EvalPolySlope(x, a[1]), EvalPolySlope(x, a[2])}
}

// EvalPolyQuaternion evaluates one polynomial per quaternion element, in the
// x, y, z, w order.
func EvalPolyQuaternion(x float64, a [4][]float64) Quaternion {
	return NewQuaternion(EvalPoly(x, a[0]), EvalPoly(x, a[1]), EvalPoly(x, a[2]), EvalPoly(x, a[3]))
}

// EvalPolyQuaternionSlope evaluates the derivative of one polynomial per
// quaternion element.
func EvalPolyQuaternionSlope(x float64, a [4][]float64) Quaternion {
	return NewQuaternion(EvalPolySlope(x, a[0]), EvalPolySlope(x, a[1]), EvalPolySlope(x, a[2]), EvalPolySlope(x, a[3]))
}
