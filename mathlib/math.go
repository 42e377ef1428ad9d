package mathlib

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	// D2PI is 2π.
	D2PI = 2 * math.Pi
	// DPI2 is π/2.
	DPI2 = math.Pi / 2
	// DD2R converts degrees to radians.
	DD2R = math.Pi / 180
	// DR2D converts radians to degrees.
	DR2D = 180 / math.Pi
)

// Sign returns the sign of v, counting zero as positive.
func Sign(v float64) float64 {
	if scalar.EqualWithinAbs(v, 0, 1e-12) {
		return 1
	}
	return v / math.Abs(v)
}

// Deg2rad converts degrees to radians in [0, 2π).
func Deg2rad(a float64) float64 {
	return Ranrm(a * DD2R)
}

// Rad2deg converts radians to degrees in [0, 360).
func Rad2deg(a float64) float64 {
	return Ranrm(a) * DR2D
}

// Ranrm wraps an angle into [0, 2π).
func Ranrm(a float64) float64 {
	a = math.Mod(a, D2PI)
	if a < 0 {
		a += D2PI
	}
	return a
}

// Ranrms wraps an angle into [-π, π).
func Ranrms(a float64) float64 {
	a = Ranrm(a)
	if a >= math.Pi {
		a -= D2PI
	}
	return a
}

// Spherical2Cartesian converts (r, θ, φ), θ being the colatitude, to Cartesian.
func Spherical2Cartesian(r, θ, φ float64) Vector {
	sθ, cθ := math.Sincos(θ)
	sφ, cφ := math.Sincos(φ)
	return Vector{r * sθ * cφ, r * sθ * sφ, r * cθ}
}

// Cartesian2Spherical converts v to (r, θ, φ), θ being the colatitude.
// The zero vector yields zeros.
func Cartesian2Spherical(v Vector) (r, θ, φ float64) {
	r = v.Norm()
	if r == 0 {
		return 0, 0, 0
	}
	return r, math.Acos(v.Z / r), math.Atan2(v.Y, v.X)
}

// Factorials returns 0! through n!.
func Factorials(n int) []float64 {
	f := make([]float64, n+1)
	f[0] = 1
	for i := 1; i <= n; i++ {
		f[i] = float64(i) * f[i-1]
	}
	return f
}
