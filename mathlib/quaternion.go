package mathlib

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a rotation quaternion with the vector part first and the
// scalar part last.
type Quaternion struct {
	D Vector
	W float64
}

// Identity returns the unit quaternion of the null rotation.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

// NewQuaternion returns the quaternion x·i + y·j + z·k + w.
func NewQuaternion(x, y, z, w float64) Quaternion {
	return Quaternion{Vector{x, y, z}, w}
}

// Pure returns the quaternion with vector part v and no scalar part.
func Pure(v Vector) Quaternion {
	return Quaternion{D: v}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.D.X, Jmag: q.D.Y, Kmag: q.D.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{Vector{n.Imag, n.Jmag, n.Kmag}, n.Real}
}

// Mul returns the Hamilton product q⊗p.
func (q Quaternion) Mul(p Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), p.number()))
}

// Conj returns the conjugate of q.
func (q Quaternion) Conj() Quaternion {
	return fromNumber(quat.Conj(q.number()))
}

// Add returns q+p.
func (q Quaternion) Add(p Quaternion) Quaternion {
	return fromNumber(quat.Add(q.number(), p.number()))
}

// Sub returns q-p.
func (q Quaternion) Sub(p Quaternion) Quaternion {
	return fromNumber(quat.Sub(q.number(), p.number()))
}

// Scale returns f*q.
func (q Quaternion) Scale(f float64) Quaternion {
	return fromNumber(quat.Scale(f, q.number()))
}

// Neg returns -q, which represents the same rotation as q.
func (q Quaternion) Neg() Quaternion {
	return q.Scale(-1)
}

// Dot returns the 4-dimensional inner product of q and p.
func (q Quaternion) Dot(p Quaternion) float64 {
	return q.D.Dot(p.D) + q.W*p.W
}

// Norm returns the magnitude of q.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalize rescales q to unit magnitude in place, unless its magnitude is
// within DSmall of zero or one.
func (q *Quaternion) Normalize() {
	mag := q.Norm()
	if math.Abs(mag) > DSmall && math.Abs(mag-1) > DSmall {
		*q = q.Scale(1 / mag)
	}
}

// Normalized returns the normalized copy of q (see Normalize).
func (q Quaternion) Normalized() Quaternion {
	q.Normalize()
	return q
}

// Rotate returns q⊗v⊗q*, the active rotation of v by q.
func (q Quaternion) Rotate(v Vector) Vector {
	return q.Mul(Pure(v)).Mul(q.Conj()).D
}

// Transform returns q*⊗v⊗q, the rotation of v by the conjugate of q.
func (q Quaternion) Transform(v Vector) Vector {
	return q.Conj().Mul(Pure(v)).Mul(q).D
}

// IsNaN returns whether any element of q is NaN.
func (q Quaternion) IsNaN() bool {
	return q.D.IsNaN() || math.IsNaN(q.W)
}

// Equals returns whether q and p match within tol on every element.
func (q Quaternion) Equals(p Quaternion, tol float64) bool {
	return q.D.Equals(p.D, tol) && math.Abs(q.W-p.W) <= tol
}

// SameRotation returns whether q and p describe the same rotation within tol,
// treating q and -q as equivalent.
func (q Quaternion) SameRotation(p Quaternion, tol float64) bool {
	return q.Equals(p, tol) || q.Equals(p.Neg(), tol)
}

// FromAxisAngle returns the rotation of angle θ about axis.
func FromAxisAngle(axis Vector, θ float64) Quaternion {
	u := axis.Unit()
	if u.IsZero() {
		return Identity()
	}
	s, c := math.Sincos(θ / 2)
	return Quaternion{u.Scale(s), c}
}

// FromAxis returns the rotation encoded by a rotation vector whose direction
// is the axis and whose length is the angle.
func FromAxis(v Vector) Quaternion {
	θ := v.Norm()
	if θ == 0 {
		return Identity()
	}
	s, c := math.Sincos(θ / 2)
	return Quaternion{v.Scale(s / θ), c}
}

// AxisAngle returns the rotation vector of q (axis scaled by the angle).
func (q Quaternion) AxisAngle() Vector {
	q.Normalize()
	s := q.D.Norm()
	if s == 0 {
		return Vector{}
	}
	θ := 2 * math.Atan2(s, q.W)
	return q.D.Scale(θ / s)
}

// ChangeBetween returns the shortest rotation taking the direction of from
// onto the direction of to. Opposite vectors use an arbitrary orthogonal axis.
func ChangeBetween(from, to Vector) Quaternion {
	from.Normalize()
	to.Normalize()
	sum := from.Add(to)
	if sum.Norm() < 1e-14 {
		axis := randomUnit().Cross(to)
		if axis.Norm() < 1e-10 {
			axis = randomUnit().Cross(to)
		}
		axis.Normalize()
		return Quaternion{D: axis}
	}
	q := Quaternion{from.Cross(to), 1 + from.Dot(to)}
	q.Normalize()
	return q
}

func randomUnit() Vector {
	v := Vector{rand.Float64() - .5, rand.Float64() - .5, rand.Float64() - .5}
	return v.Unit()
}

// DrotateBetween returns the rotation that takes the pair (a1, a2) onto the
// pair (b1, b2): a1 is aligned with b1 exactly, then a2 is brought as close as
// possible to b2 by rotating about b1.
func DrotateBetween(a1, a2, b1, b2 Vector) Quaternion {
	q1 := ChangeBetween(a1, b1)
	a2r := q1.Rotate(a2)
	b1u := b1.Unit()
	// Project both secondary vectors onto the plane normal to b1.
	pa := a2r.Sub(b1u.Scale(a2r.Dot(b1u)))
	pb := b2.Sub(b1u.Scale(b2.Dot(b1u)))
	if pa.Norm() < 1e-14 || pb.Norm() < 1e-14 {
		return q1
	}
	q2 := ChangeBetween(pa, pb)
	if pa.Unit().Add(pb.Unit()).Norm() < 1e-14 {
		q2 = Quaternion{D: b1u}
	}
	q := q2.Mul(q1)
	q.Normalize()
	return q
}

// ToDCM returns the direction cosine matrix M such that M·v == q.Rotate(v).
func (q Quaternion) ToDCM() Matrix {
	x, y, z, w := q.D.X, q.D.Y, q.D.Z, q.W
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	xw, yw, zw := x*w, y*w, z*w
	return Matrix{
		{1 - 2*(yy+zz), 2 * (xy - zw), 2 * (xz + yw)},
		{2 * (xy + zw), 1 - 2*(xx+zz), 2 * (yz - xw)},
		{2 * (xz - yw), 2 * (yz + xw), 1 - 2*(xx+yy)},
	}
}

// FromDCM returns the unit quaternion of the rotation matrix m. The branch is
// chosen on the trace and the largest diagonal element to avoid dividing by a
// small number.
func FromDCM(m Matrix) Quaternion {
	var q Quaternion
	tr := m.Trace()
	switch {
	case tr > 0:
		s := .5 / math.Sqrt(tr+1)
		q.W = .25 / s
		q.D.X = (m[2][1] - m[1][2]) * s
		q.D.Y = (m[0][2] - m[2][0]) * s
		q.D.Z = (m[1][0] - m[0][1]) * s
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q.W = (m[2][1] - m[1][2]) / s
		q.D.X = .25 * s
		q.D.Y = (m[0][1] + m[1][0]) / s
		q.D.Z = (m[0][2] + m[2][0]) / s
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q.W = (m[0][2] - m[2][0]) / s
		q.D.X = (m[0][1] + m[1][0]) / s
		q.D.Y = .25 * s
		q.D.Z = (m[1][2] + m[2][1]) / s
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q.W = (m[1][0] - m[0][1]) / s
		q.D.X = (m[0][2] + m[2][0]) / s
		q.D.Y = (m[1][2] + m[2][1]) / s
		q.D.Z = .25 * s
	}
	q.Normalize()
	return q
}

// Derivative returns dq/dt of a reference-to-body quaternion q spinning at
// ω, with ω expressed in the reference frame: -½·q⊗ω.
func (q Quaternion) Derivative(ω Vector) Quaternion {
	return q.Mul(Pure(ω)).Scale(-.5)
}

// Spin returns q after a rotation of the body by the rotation vector θ,
// expressed in the reference frame.
func (q Quaternion) Spin(θ Vector) Quaternion {
	r := q.Mul(FromAxis(θ).Conj())
	r.Normalize()
	return r
}
