package mathlib

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

// DSmall is the dead-zone used by normalization: a magnitude within DSmall of
// zero or of one is left untouched.
const DSmall = 1e-76

// Vector is a Cartesian 3-vector with named components.
type Vector struct {
	X, Y, Z float64
}

// RVector is the indexed ("row") form of a 3-vector.
type RVector [3]float64

// NewVector returns a Vector from its components.
func NewVector(x, y, z float64) Vector {
	return Vector{x, y, z}
}

// Zero returns the nil vector.
func Zero() Vector {
	return Vector{}
}

// UnitX returns the x-axis unit vector.
func UnitX() Vector { return Vector{1, 0, 0} }

// UnitY returns the y-axis unit vector.
func UnitY() Vector { return Vector{0, 1, 0} }

// UnitZ returns the z-axis unit vector.
func UnitZ() Vector { return Vector{0, 0, 1} }

// Row returns the indexed form of v.
func (v Vector) Row() RVector {
	return RVector{v.X, v.Y, v.Z}
}

// Vector returns the named form of r.
func (r RVector) Vector() Vector {
	return Vector{r[0], r[1], r[2]}
}

// Slice returns a newly allocated []float64 of r.
func (r RVector) Slice() []float64 {
	return []float64{r[0], r[1], r[2]}
}

// R3 returns v as a gonum spatial vector.
func (v Vector) R3() r3.Vec {
	return r3.Vec(v)
}

// FromR3 converts a gonum spatial vector.
func FromR3(p r3.Vec) Vector {
	return Vector(p)
}

// FromSlice reads the first three values of s. Short slices are zero padded.
func FromSlice(s []float64) Vector {
	var r RVector
	copy(r[:], s)
	return r.Vector()
}

// Slice returns v as a []float64.
func (v Vector) Slice() []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// At returns the i-th component, or 0 for an out of range index.
func (v Vector) At(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	return 0
}

// Set sets the i-th component. Out of range indices are ignored.
func (v *Vector) Set(i int, val float64) {
	switch i {
	case 0:
		v.X = val
	case 1:
		v.Y = val
	case 2:
		v.Z = val
	}
}

// Add returns v+w.
func (v Vector) Add(w Vector) Vector {
	return FromR3(r3.Add(v.R3(), w.R3()))
}

// Sub returns v-w.
func (v Vector) Sub(w Vector) Vector {
	return FromR3(r3.Sub(v.R3(), w.R3()))
}

// Scale returns f*v.
func (v Vector) Scale(f float64) Vector {
	return FromR3(r3.Scale(f, v.R3()))
}

// Mul returns the element-wise product of v and w.
func (v Vector) Mul(w Vector) Vector {
	return Vector{v.X * w.X, v.Y * w.Y, v.Z * w.Z}
}

// Div returns the element-wise quotient of v and w. Division by a zero
// component yields a zero component.
func (v Vector) Div(w Vector) Vector {
	var o Vector
	for i := 0; i < 3; i++ {
		if d := w.At(i); d != 0 {
			o.Set(i, v.At(i)/d)
		}
	}
	return o
}

// SDiv returns v/f, or the zero vector if f is zero.
func (v Vector) SDiv(f float64) Vector {
	if f == 0 {
		return Vector{}
	}
	return v.Scale(1 / f)
}

// Neg returns -v.
func (v Vector) Neg() Vector {
	return Vector{-v.X, -v.Y, -v.Z}
}

// Dot returns the inner product of v and w.
func (v Vector) Dot(w Vector) float64 {
	return r3.Dot(v.R3(), w.R3())
}

// Cross returns v×w.
func (v Vector) Cross(w Vector) Vector {
	return FromR3(r3.Cross(v.R3(), w.R3()))
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return r3.Norm(v.R3())
}

// Norm2 returns the squared length of v.
func (v Vector) Norm2() float64 {
	return r3.Norm2(v.R3())
}

// Normalize rescales v to unit length in place, unless its length is within
// DSmall of zero or one.
func (v *Vector) Normalize() {
	mag := v.Norm()
	if math.Abs(mag) > DSmall && math.Abs(mag-1) > DSmall {
		*v = v.Scale(1 / mag)
	}
}

// Normalized returns the normalized copy of v (see Normalize).
func (v Vector) Normalized() Vector {
	v.Normalize()
	return v
}

// Unit returns the unit vector of v, or the zero vector if |v| is below 1e-12.
func (v Vector) Unit() Vector {
	n := v.Norm()
	if scalar.EqualWithinAbs(n, 0, 1e-12) {
		return Vector{}
	}
	return v.Scale(1 / n)
}

// Separation returns the angle between v and w, in [0, π].
func (v Vector) Separation(w Vector) float64 {
	nv, nw := v.Norm(), w.Norm()
	if nv == 0 || nw == 0 {
		return 0
	}
	c := v.Dot(w) / (nv * nw)
	switch {
	case c > 1:
		c = 1
	case c < -1:
		c = -1
	}
	return math.Acos(c)
}

// IsZero returns whether all components are exactly zero.
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// IsNaN returns whether any component is NaN.
func (v Vector) IsNaN() bool {
	return math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z)
}

// Equals returns whether v and w are equal within tol on every axis.
func (v Vector) Equals(w Vector, tol float64) bool {
	return floats.EqualApprox(v.Slice(), w.Slice(), tol)
}

// Sum returns the sum of the components.
func (v Vector) Sum() float64 {
	return v.X + v.Y + v.Z
}

// MaxAbs returns the largest absolute component.
func (v Vector) MaxAbs() float64 {
	return math.Max(math.Abs(v.X), math.Max(math.Abs(v.Y), math.Abs(v.Z)))
}
