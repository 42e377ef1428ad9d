package mathlib

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a 3x3 matrix stored as three rows.
type Matrix [3]RVector

// Eye returns the identity matrix.
func Eye() Matrix {
	return Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag returns the diagonal matrix of v.
func Diag(v Vector) Matrix {
	return Matrix{{v.X, 0, 0}, {0, v.Y, 0}, {0, 0, v.Z}}
}

// FromRows builds a matrix from three row vectors.
func FromRows(r0, r1, r2 Vector) Matrix {
	return Matrix{r0.Row(), r1.Row(), r2.Row()}
}

// Row returns the i-th row as a Vector.
func (m Matrix) Row(i int) Vector {
	return m[i].Vector()
}

// Col returns the j-th column as a Vector.
func (m Matrix) Col(j int) Vector {
	return Vector{m[0][j], m[1][j], m[2][j]}
}

// MulVec returns m·v.
func (m Matrix) MulVec(v Vector) Vector {
	return Vector{m.Row(0).Dot(v), m.Row(1).Dot(v), m.Row(2).Dot(v)}
}

// Mul returns m·n.
func (m Matrix) Mul(n Matrix) Matrix {
	var o Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			o[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return o
}

// Add returns m+n.
func (m Matrix) Add(n Matrix) Matrix {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] += n[i][j]
		}
	}
	return m
}

// Sub returns m-n.
func (m Matrix) Sub(n Matrix) Matrix {
	return m.Add(n.Scale(-1))
}

// Scale returns f·m.
func (m Matrix) Scale(f float64) Matrix {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] *= f
		}
	}
	return m
}

// Transpose returns mᵀ.
func (m Matrix) Transpose() Matrix {
	var o Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			o[i][j] = m[j][i]
		}
	}
	return o
}

// Trace returns the sum of the diagonal.
func (m Matrix) Trace() float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

// Det returns the determinant of m.
func (m Matrix) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse of m computed as adjugate over determinant.
// A singular matrix yields the zero matrix.
func (m Matrix) Inverse() Matrix {
	det := m.Det()
	if det == 0 || math.IsNaN(det) {
		return Matrix{}
	}
	adj := Matrix{
		{m[1][1]*m[2][2] - m[1][2]*m[2][1], m[0][2]*m[2][1] - m[0][1]*m[2][2], m[0][1]*m[1][2] - m[0][2]*m[1][1]},
		{m[1][2]*m[2][0] - m[1][0]*m[2][2], m[0][0]*m[2][2] - m[0][2]*m[2][0], m[0][2]*m[1][0] - m[0][0]*m[1][2]},
		{m[1][0]*m[2][1] - m[1][1]*m[2][0], m[0][1]*m[2][0] - m[0][0]*m[2][1], m[0][0]*m[1][1] - m[0][1]*m[1][0]},
	}
	return adj.Scale(1 / det)
}

// Dense returns m as a gonum dense matrix.
func (m Matrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2]})
}

// FromDense reads the top-left 3x3 block of d.
func FromDense(d mat.Matrix) Matrix {
	var o Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			o[i][j] = d.At(i, j)
		}
	}
	return o
}

// Equals returns whether every element of m and n matches within tol.
func (m Matrix) Equals(n Matrix, tol float64) bool {
	return mat.EqualApprox(m.Dense(), n.Dense(), tol)
}

// R1 is the frame rotation about the first axis.
func R1(x float64) Matrix {
	s, c := math.Sincos(x)
	return Matrix{{1, 0, 0}, {0, c, s}, {0, -s, c}}
}

// R2 is the frame rotation about the second axis.
func R2(x float64) Matrix {
	s, c := math.Sincos(x)
	return Matrix{{c, 0, -s}, {0, 1, 0}, {s, 0, c}}
}

// R3 is the frame rotation about the third axis.
func R3(x float64) Matrix {
	s, c := math.Sincos(x)
	return Matrix{{c, s, 0}, {-s, c, 0}, {0, 0, 1}}
}

// R3R1R3 performs a 3-1-3 Euler frame rotation.
func R3R1R3(θ1, θ2, θ3 float64) Matrix {
	return R3(θ3).Mul(R1(θ2)).Mul(R3(θ1))
}
