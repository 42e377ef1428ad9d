package mathlib

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestCross(t *testing.T) {
	i, j, k := UnitX(), UnitY(), UnitZ()
	if !i.Cross(j).Equals(k, 1e-15) {
		t.Fatal("i x j != k")
	}
	if !j.Cross(k).Equals(i, 1e-15) {
		t.Fatal("j x k != i")
	}
	if !NewVector(2, 3, 4).Cross(NewVector(5, 6, 7)).Equals(NewVector(-3, 6, -3), 1e-15) {
		t.Fatal("cross fail")
	}
	// From Vallado
	r := NewVector(6524.834, 6862.875, 6448.296)
	v := NewVector(4.901327, 5.533756, -1.976341)
	exp := NewVector(-4.924667792015100e4, 4.450050424118601e4, 0.246964476137900e4)
	if !r.Cross(v).Equals(exp, 1e-9) {
		t.Fatalf("cross fail: %+v", r.Cross(v))
	}
}

func TestRowConversion(t *testing.T) {
	v := NewVector(1, -2, 3)
	if v.Row().Vector() != v {
		t.Fatal("row round trip changed the vector")
	}
	if FromSlice([]float64{4, 5}) != NewVector(4, 5, 0) {
		t.Fatal("short slice should be zero padded")
	}
	if FromR3(v.R3()) != v {
		t.Fatal("r3 round trip changed the vector")
	}
}

func TestVectorNormalizeDeadZone(t *testing.T) {
	u := NewVector(1, 0, 0)
	w := u
	w.Normalize()
	if w != u {
		t.Fatalf("unit vector was perturbed: %+v", w)
	}
	z := Zero()
	z.Normalize()
	if !z.IsZero() {
		t.Fatal("zero vector should stay zero")
	}
	v := NewVector(3, 4, 0)
	v.Normalize()
	if !scalar.EqualWithinAbs(v.Norm(), 1, 1e-15) || !scalar.EqualWithinAbs(v.X, .6, 1e-15) {
		t.Fatalf("normalize failed: %+v", v)
	}
}

func TestVectorMisc(t *testing.T) {
	five0 := NewVector(5, 6, 7)
	if !scalar.EqualWithinRel(five0.Norm(), math.Sqrt(110), 1e-15) {
		t.Fatal("norm of [5, 6, 7] is invalid")
	}
	if !Zero().Unit().IsZero() {
		t.Fatal("unit of nil vector should be nil")
	}
	if NewVector(1, 2, 3).Div(NewVector(0, 2, 3)) != NewVector(0, 1, 1) {
		t.Fatal("division by a zero component should give zero")
	}
	if !scalar.EqualWithinAbs(UnitX().Separation(UnitY()), math.Pi/2, 1e-15) {
		t.Fatal("separation of orthogonal axes")
	}
	if Zero().Separation(UnitY()) != 0 {
		t.Fatal("separation with the zero vector should be zero")
	}
	if !NewVector(math.NaN(), 0, 0).IsNaN() {
		t.Fatal("NaN not detected")
	}
}

func TestAngles(t *testing.T) {
	for i := 0.0; i < 360; i += 0.5 {
		if !scalar.EqualWithinAbs(Rad2deg(Deg2rad(i)), i, 1e-10) {
			t.Fatalf("incorrect conversion for %3.2f", i)
		}
	}
	if !scalar.EqualWithinAbs(Rad2deg(Deg2rad(-359.)), 1, 1e-10) {
		t.Fatal("incorrect conversion for -359")
	}
	if !scalar.EqualWithinAbs(Ranrms(3*math.Pi/2), -math.Pi/2, 1e-15) {
		t.Fatal("ranrms failed")
	}
}

func TestSpherical2Cartesian(t *testing.T) {
	incr := math.Pi / 10
	for r := 100.0; r < 1000; r += 100 {
		for θ := incr; θ < math.Pi; θ += incr {
			for φ := -math.Pi + incr; φ < math.Pi; φ += incr {
				r1, θ1, φ1 := Cartesian2Spherical(Spherical2Cartesian(r, θ, φ))
				if !scalar.EqualWithinAbs(r, r1, 1e-10) || !scalar.EqualWithinAbs(θ, θ1, 1e-10) || !scalar.EqualWithinAbs(φ, φ1, 1e-10) {
					t.Fatalf("(%f, %f, %f) became (%f, %f, %f)", r, θ, φ, r1, θ1, φ1)
				}
			}
		}
	}
	if r, θ, φ := Cartesian2Spherical(Zero()); r != 0 || θ != 0 || φ != 0 {
		t.Fatal("zero norm should return zeros")
	}
}
