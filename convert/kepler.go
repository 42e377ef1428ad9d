package convert

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	eccentricityε = 5e-9
	angleε        = 1e-9
	// KeplerTolerance is the convergence bound on |E - e·sin(E) - M|.
	KeplerTolerance = 1e-12
	// KeplerMaxIterations bounds the Newton iteration of SolveKepler.
	KeplerMaxIterations = 100
)

// KepStruc holds classical Keplerian elements about the Earth. Angles are in
// radians, A in meters, MM in radians per second and Period in seconds.
type KepStruc struct {
	UTC    float64
	A      float64
	E      float64
	I      float64
	RAAN   float64
	AP     float64
	EA     float64 // eccentric anomaly
	MA     float64 // mean anomaly
	TA     float64 // true anomaly
	MM     float64 // mean motion
	Period float64
	H      mathlib.Vector
}

func (k KepStruc) String() string {
	return fmt.Sprintf("a=%.3f e=%.6f i=%.4f° Ω=%.4f° ω=%.4f° ν=%.4f°", k.A, k.E, mathlib.Rad2deg(k.I),
		mathlib.Rad2deg(k.RAAN), mathlib.Rad2deg(k.AP), mathlib.Rad2deg(k.TA))
}

// SemiParameter returns the semi-latus rectum.
func (k KepStruc) SemiParameter() float64 {
	return k.A * (1 - k.E*k.E)
}

// SolveKepler solves Kepler's equation M = E - e·sin(E) for E by Newton
// iteration. The best iterate is returned even when the iteration does not
// converge within KeplerMaxIterations.
func SolveKepler(M, e float64) (E float64, iterations int, converged bool) {
	M = mathlib.Ranrm(M)
	E = M
	if e > .8 {
		E = math.Pi
	}
	for iterations = 1; iterations <= KeplerMaxIterations; iterations++ {
		f := E - e*math.Sin(E) - M
		if math.Abs(f) < KeplerTolerance {
			return E, iterations, true
		}
		E -= f / (1 - e*math.Cos(E))
	}
	return E, KeplerMaxIterations, math.Abs(E-e*math.Sin(E)-M) < KeplerTolerance
}

// EA2TA converts an eccentric anomaly to a true anomaly.
func EA2TA(ea, e float64) float64 {
	sinE, cosE := math.Sincos(ea)
	return math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)
}

// TA2EA converts a true anomaly to an eccentric anomaly.
func TA2EA(ta, e float64) float64 {
	sinν, cosν := math.Sincos(ta)
	denom := 1 + e*cosν
	return math.Atan2(math.Sqrt(1-e*e)*sinν/denom, (e+cosν)/denom)
}

// PQW2ECI returns the rotation from the perifocal frame to ECI.
func PQW2ECI(i, ω, Ω float64) mathlib.Matrix {
	return mathlib.R3R1R3(-ω, -i, -Ω)
}

// Kep2ECI returns the inertial state described by the elements, using the
// eccentric anomaly.
func Kep2ECI(kep KepStruc) CartPos {
	sea, cea := math.Sincos(kep.EA)
	sqe := math.Sqrt(1 - kep.E*kep.E)
	mm := math.Sqrt(GMEarth / (kep.A * kep.A * kep.A))
	qpos := mathlib.NewVector(kep.A*(cea-kep.E), kep.A*sqe*sea, 0)
	den := 1 - kep.E*cea
	qvel := mathlib.NewVector(-mm*kep.A*sea/den, mm*kep.A*sqe*cea/den, 0)
	rot := PQW2ECI(kep.I, kep.AP, kep.RAAN)
	s := rot.MulVec(qpos)
	r := s.Norm()
	return CartPos{
		UTC: kep.UTC,
		S:   s,
		V:   rot.MulVec(qvel),
		A:   s.Scale(-GMEarth / (r * r * r)),
	}
}

// ECI2Kep returns the elements of an inertial state. Circular orbits take
// a zero argument of periapsis and equatorial orbits a zero ascending node,
// with the anomaly measured from the node or from the x axis instead.
func ECI2Kep(eci CartPos) KepStruc {
	kep := KepStruc{UTC: eci.UTC}
	R, V := eci.S, eci.V
	r, v := R.Norm(), V.Norm()
	if r < mathlib.DSmall {
		return kep
	}
	h := R.Cross(V)
	kep.H = h
	hn := h.Norm()
	if hn < mathlib.DSmall {
		return kep
	}
	n := mathlib.UnitZ().Cross(h)
	ξ := v*v/2 - GMEarth/r
	kep.A = -GMEarth / (2 * ξ)
	eVec := R.Scale(v*v - GMEarth/r).Sub(V.Scale(R.Dot(V))).Scale(1 / GMEarth)
	kep.E = eVec.Norm()
	kep.I = math.Acos(clamp(h.Z / hn))

	circular := kep.E < eccentricityε
	equatorial := n.Norm() < angleε*hn

	if !equatorial {
		kep.RAAN = math.Acos(clamp(n.X / n.Norm()))
		if n.Y < 0 {
			kep.RAAN = 2*math.Pi - kep.RAAN
		}
	}
	switch {
	case circular && equatorial:
		// True longitude.
		kep.TA = math.Atan2(R.Y, R.X)
		if h.Z < 0 {
			kep.TA = -kep.TA
		}
	case circular:
		// Argument of latitude.
		kep.TA = math.Acos(clamp(n.Dot(R) / (n.Norm() * r)))
		if R.Z < 0 {
			kep.TA = 2*math.Pi - kep.TA
		}
	default:
		if equatorial {
			kep.AP = math.Atan2(eVec.Y, eVec.X)
			if h.Z < 0 {
				kep.AP = -kep.AP
			}
		} else {
			kep.AP = math.Acos(clamp(n.Dot(eVec) / (n.Norm() * kep.E)))
			if eVec.Z < 0 {
				kep.AP = 2*math.Pi - kep.AP
			}
		}
		cosν := eVec.Dot(R) / (kep.E * r)
		if abscosν := math.Abs(cosν); abscosν > 1 && scalar.EqualWithinAbs(abscosν, 1, 1e-12) {
			cosν = mathlib.Sign(cosν)
		}
		kep.TA = math.Acos(clamp(cosν))
		if R.Dot(V) < 0 {
			kep.TA = 2*math.Pi - kep.TA
		}
	}
	kep.AP = mathlib.Ranrm(kep.AP)
	kep.TA = mathlib.Ranrm(kep.TA)
	if kep.E < 1 {
		kep.EA = mathlib.Ranrm(TA2EA(kep.TA, kep.E))
		kep.MA = mathlib.Ranrm(kep.EA - kep.E*math.Sin(kep.EA))
		kep.MM = math.Sqrt(GMEarth / (kep.A * kep.A * kep.A))
		kep.Period = 2 * math.Pi / kep.MM
	}
	return kep
}

// KepPropagate advances the elements to utc along the unperturbed orbit and
// returns the new elements and the Kepler solver result.
func KepPropagate(kep KepStruc, utc float64) (KepStruc, bool) {
	if kep.MM == 0 {
		kep.MM = math.Sqrt(GMEarth / (kep.A * kep.A * kep.A))
		kep.Period = 2 * math.Pi / kep.MM
	}
	dt := Seconds(utc - kep.UTC)
	kep.MA = mathlib.Ranrm(kep.MA + kep.MM*dt)
	ea, _, ok := SolveKepler(kep.MA, kep.E)
	kep.EA = ea
	kep.TA = mathlib.Ranrm(EA2TA(ea, kep.E))
	kep.UTC = utc
	return kep, ok
}

func clamp(c float64) float64 {
	return math.Max(-1, math.Min(1, c))
}
