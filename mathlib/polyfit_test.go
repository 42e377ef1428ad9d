package mathlib

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestPolyFit(t *testing.T) {
	for order := 1; order <= 6; order++ {
		exp := make([]float64, order+1)
		for i := range exp {
			exp[i] = float64(i+1) * math.Pow(-1, float64(i)) / 3
		}
		x := make([]float64, order+1)
		y := make([]float64, order+1)
		for i := range x {
			x[i] = float64(i)*0.7 - 1.1
			y[i] = EvalPoly(x[i], exp)
		}
		a, err := PolyFit(x, y)
		if err != nil {
			t.Fatalf("order %d: %s", order, err)
		}
		if !floats.EqualApprox(a, exp, 1e-8) {
			t.Fatalf("order %d: got %v expected %v", order, a, exp)
		}
	}
	if _, err := PolyFit([]float64{1, 1}, []float64{0, 2}); err == nil {
		t.Fatal("duplicate x should be singular")
	}
	if _, err := PolyFit([]float64{1}, []float64{0}); err == nil {
		t.Fatal("a single point cannot be fit")
	}
}

func TestEvalPolyDerivatives(t *testing.T) {
	a := []float64{1, 2, 3, 4} // 1 + 2x + 3x² + 4x³
	x := 2.
	if EvalPoly(x, a) != 49 {
		t.Fatal("value")
	}
	if EvalPolySlope(x, a) != 2+12+48 {
		t.Fatal("slope")
	}
	if EvalPolyAccel(x, a) != 6+48 {
		t.Fatal("accel")
	}
	if EvalPolyJerk(x, a) != 24 {
		t.Fatal("jerk")
	}
	if EvalPoly(x, nil) != 0 {
		t.Fatal("empty polynomial")
	}
}

func TestLeastSquares(t *testing.T) {
	x := []float64{10, 11, 12, 13, 14, 15}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 3 - 2*(xi-10)
	}
	a, err := LeastSquares(x, y, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(a, []float64{3, -2}, 1e-12) {
		t.Fatalf("got %v", a)
	}
}
