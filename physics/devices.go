package physics

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// Wheel is a reaction wheel spinning about the z axis of its device frame.
// Align rotates device vectors into the body frame.
type Wheel struct {
	Align mathlib.Quaternion
	// MOM is the rotor moment of inertia in kg·m².
	MOM      float64
	MaxOmega float64
	MaxAlpha float64
	// Tc is the time constant of the acceleration response in seconds.
	Tc float64

	Omega float64
	Alpha float64
	// Commanded is the requested rotor angular acceleration.
	Commanded float64
}

// Update advances the rotor by dt seconds. The command is clamped to
// MaxAlpha and zeroed when the rotor is saturated in the commanded direction.
func (w *Wheel) Update(dt float64) {
	target := math.Max(-w.MaxAlpha, math.Min(w.MaxAlpha, w.Commanded))
	if w.MaxOmega > 0 && math.Abs(w.Omega) >= w.MaxOmega && target*w.Omega > 0 {
		target = 0
	}
	w.Alpha += (target - w.Alpha) * lag(dt, w.Tc)
	w.Omega += w.Alpha * dt
	if w.MaxOmega > 0 {
		w.Omega = math.Max(-w.MaxOmega, math.Min(w.MaxOmega, w.Omega))
	}
}

func (w *Wheel) axis() mathlib.Vector {
	return w.Align.Rotate(mathlib.UnitZ())
}

// Momentum returns the rotor angular momentum in the body frame.
func (w *Wheel) Momentum() mathlib.Vector {
	return w.axis().Scale(w.MOM * w.Omega)
}

// Torque returns the reaction torque on the body, in the body frame.
func (w *Wheel) Torque() mathlib.Vector {
	return w.axis().Scale(-w.MOM * w.Alpha)
}

// Magnetorquer is a coil producing a dipole along the z axis of its device
// frame. The moment responds to its command with a first order lag and the
// coil current follows Moment = Poly[0] + Poly[1]·I + Poly[2]·I².
type Magnetorquer struct {
	Align     mathlib.Quaternion
	MaxMoment float64
	Tc        float64
	Poly      [3]float64

	Moment    float64
	Current   float64
	Commanded float64
}

// Update advances the coil by dt seconds.
func (m *Magnetorquer) Update(dt float64) {
	target := m.Commanded
	if m.MaxMoment > 0 {
		target = math.Max(-m.MaxMoment, math.Min(m.MaxMoment, target))
	}
	m.Moment += (target - m.Moment) * lag(dt, m.Tc)
	m.Current = m.current(m.Moment)
}

// current inverts the response polynomial, taking the root of smallest
// magnitude.
func (m *Magnetorquer) current(moment float64) float64 {
	a, b, c := m.Poly[2], m.Poly[1], m.Poly[0]-moment
	if a == 0 {
		if b == 0 {
			return 0
		}
		return -c / b
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return -b / (2 * a)
	}
	sq := math.Sqrt(disc)
	r1, r2 := (-b+sq)/(2*a), (-b-sq)/(2*a)
	if math.Abs(r1) < math.Abs(r2) {
		return r1
	}
	return r2
}

// BodyMoment returns the dipole in the body frame, in A·m².
func (m *Magnetorquer) BodyMoment() mathlib.Vector {
	return m.Align.Rotate(mathlib.UnitZ()).Scale(m.Moment)
}

// lag is the fraction of a step response covered in dt with time constant
// tc. A zero time constant responds immediately.
func lag(dt, tc float64) float64 {
	if tc <= 0 {
		return 1
	}
	return 1 - math.Exp(-math.Abs(dt)/tc)
}
