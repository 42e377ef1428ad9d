package physics

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
)

const (
	// SolarPressure is the radiation pressure at one astronomical unit, N/m².
	SolarPressure = 4.56e-6
	// DipoleStrength is the equatorial surface field of the Earth dipole, T.
	DipoleStrength = 2.9404e-5
)

// North geomagnetic pole of the tilted dipole.
var (
	dipolePoleLat = 80.65 * math.Pi / 180
	dipolePoleLon = -72.68 * math.Pi / 180
)

// DipoleField returns the tilted dipole field in Tesla at the Earth-fixed
// position s, in the Earth-fixed frame.
func DipoleField(s mathlib.Vector) mathlib.Vector {
	r := s.Norm()
	if r < 1 || s.IsNaN() {
		return mathlib.Zero()
	}
	// The dipole moment points toward the southern geomagnetic pole.
	m := mathlib.Spherical2Cartesian(1, math.Pi/2-dipolePoleLat, dipolePoleLon).Neg()
	u := s.Unit()
	k := DipoleStrength * math.Pow(convert.REarth/r, 3)
	return u.Scale(3 * m.Dot(u)).Sub(m).Scale(k)
}

// Sunlight returns 1 when the Sun is visible from s and 0 inside the
// cylindrical shadow of the Earth.
func Sunlight(s, sun mathlib.Vector) float64 {
	û := sun.Unit()
	along := s.Dot(û)
	if along >= 0 {
		return 1
	}
	if s.Sub(û.Scale(along)).Norm() < convert.REarth {
		return 0
	}
	return 1
}

// attitudeOf returns the ICRF attitude of loc, or the identity when none was
// ever set.
func attitudeOf(loc *convert.Location) mathlib.Quaternion {
	q := loc.Att.ICRF.S
	if q.Norm() < .5 {
		return mathlib.Identity()
	}
	return q
}

// surfaceForces accumulates drag and radiation pressure over the panels, or
// over a sphere of phys.Area when there are none. It fills ADrag, RDrag and
// ATorque in the body frame.
func surfaceForces(loc *convert.Location, phys *Physics) {
	phys.ADrag, phys.RDrag, phys.ATorque = mathlib.Zero(), mathlib.Zero(), mathlib.Zero()
	if phys.Mass <= 0 {
		return
	}
	q := attitudeOf(loc)
	s, v := loc.Pos.ECI.S, loc.Pos.ECI.V

	var ρ float64
	if phys.Atmosphere != nil {
		ρ = phys.Atmosphere.Density(loc.Pos.Geod.S, loc.Pos.ECI.UTC, phys.F107Avg, phys.F107, phys.Ap)
	}
	vrel := v.Sub(mathlib.UnitZ().Scale(convert.EarthRotationRate).Cross(s))
	flow := q.Rotate(vrel)
	speed := flow.Norm()
	dynamic := .5 * ρ * speed * speed

	var pressure float64
	var toSun mathlib.Vector
	if !loc.SkipBodies && loc.Pos.Sunradiance > 0 && !loc.Pos.Extra.SunPos.IsZero() {
		d := loc.Pos.Extra.SunPos.Sub(s)
		au := convert.AU / d.Norm()
		pressure = SolarPressure * au * au * loc.Pos.Sunradiance
		toSun = q.Rotate(d.Unit())
	}

	var fd, fr, τ mathlib.Vector
	if len(phys.Panels) == 0 {
		if speed > 0 {
			fd = flow.Unit().Scale(-dynamic * phys.Cd * phys.Area)
		}
		fr = toSun.Scale(-pressure * phys.Cr * phys.Area)
	}
	for _, p := range phys.Panels {
		n := p.Normal.Unit()
		if speed > 0 {
			if c := n.Dot(flow.Unit()); c > 0 {
				f := flow.Unit().Scale(-dynamic * p.Cd * p.Area * c)
				fd = fd.Add(f)
				τ = τ.Add(p.Center.Cross(f))
			}
		}
		if pressure > 0 {
			if c := n.Dot(toSun); c > 0 {
				f := toSun.Scale(-pressure * p.Cr * p.Area * c)
				fr = fr.Add(f)
				τ = τ.Add(p.Center.Cross(f))
			}
		}
	}
	phys.ADrag = fd.Scale(1 / phys.Mass)
	phys.RDrag = fr.Scale(1 / phys.Mass)
	phys.ATorque = τ
}

// PosAccel sets the ECI acceleration of loc from the central body field, the
// Sun and Moon, drag, radiation pressure and thrust. loc must be up to date.
// It also refreshes the Earth field and the sunlight fraction. Only the ECI
// acceleration is written.
func PosAccel(loc *convert.Location, phys *Physics, coef *Coefficients) {
	s := loc.Pos.ECI.S
	r := s.Norm()
	if r < 1 || s.IsNaN() {
		loc.Pos.ECI.A = mathlib.Zero()
		return
	}
	var a mathlib.Vector
	if phys.Degree >= 2 && coef != nil {
		a = loc.Pos.Extra.E2J.MulVec(GravityAccel(coef, loc.Pos.Geoc.S, phys.Degree))
	} else {
		a = s.Scale(-convert.GMEarth / (r * r * r))
	}

	loc.Pos.Sunradiance = 1
	if !loc.SkipBodies && !loc.Pos.Extra.SunPos.IsZero() {
		loc.Pos.Sunradiance = Sunlight(s, loc.Pos.Extra.SunPos)
		if phys.ThirdBody {
			a = a.Add(thirdBody(s, loc.Pos.Extra.SunPos, convert.GMSun))
			a = a.Add(thirdBody(s, loc.Pos.Extra.MoonPos, convert.GMMoon))
		}
	}

	surfaceForces(loc, phys)
	q := attitudeOf(loc)
	a = a.Add(q.Transform(phys.ADrag.Add(phys.RDrag)))
	if phys.Mass > 0 {
		a = a.Add(phys.Thrust.Scale(1 / phys.Mass))
		phys.FDrag = q.Rotate(phys.Thrust).Scale(1 / phys.Mass)
	}
	loc.Pos.BEarth = loc.Pos.Extra.E2J.MulVec(DipoleField(loc.Pos.Geoc.S))
	loc.Pos.ECI.A = a
}

// thirdBody returns the direct and indirect perturbation of a body at d
// (geocentric) on a satellite at s.
func thirdBody(s, d mathlib.Vector, gm float64) mathlib.Vector {
	if d.IsZero() {
		return mathlib.Zero()
	}
	rel := d.Sub(s)
	dr := rel.Norm()
	dd := d.Norm()
	return rel.Scale(gm / (dr * dr * dr)).Sub(d.Scale(gm / (dd * dd * dd)))
}

// GravityGradientTorque returns 3μ/r³·u×(I·u), u being the body frame unit
// vector toward the Earth center.
func GravityGradientTorque(q mathlib.Quaternion, s, moi mathlib.Vector) mathlib.Vector {
	r := s.Norm()
	if r < 1 {
		return mathlib.Zero()
	}
	u := q.Rotate(s.Neg().Unit())
	return u.Cross(moi.Mul(u)).Scale(3 * convert.GMEarth / (r * r * r))
}

// AttAccel sums the torques on the body, sets the ICRF angular acceleration
// and refreshes the other attitude frames.
func AttAccel(loc *convert.Location, phys *Physics) error {
	q := attitudeOf(loc)
	ωb := q.Rotate(loc.Att.ICRF.V)

	phys.HMomentum, phys.RTorque = mathlib.Zero(), mathlib.Zero()
	for _, w := range phys.Wheels {
		phys.HMomentum = phys.HMomentum.Add(w.Momentum())
		phys.RTorque = phys.RTorque.Add(w.Torque())
	}
	phys.Moment = mathlib.Zero()
	for _, m := range phys.Magnetorquer {
		phys.Moment = phys.Moment.Add(m.BodyMoment())
	}
	phys.GTorque = GravityGradientTorque(q, loc.Pos.ECI.S, phys.MOI)
	phys.HTorque = ωb.Cross(phys.MOI.Mul(ωb).Add(phys.HMomentum)).Neg()
	phys.MTorque = phys.Moment.Cross(q.Rotate(loc.Pos.BEarth))
	phys.FTorque = phys.Torque

	τ := phys.FTorque.Add(phys.GTorque).Add(phys.HTorque).Add(phys.MTorque).Add(phys.ATorque).Add(phys.RTorque)
	var αb mathlib.Vector
	for i := 0; i < 3; i++ {
		if I := phys.MOI.At(i); I > 0 {
			αb.Set(i, τ.At(i)/I)
		}
	}
	att := loc.Att.ICRF
	att.S = q
	att.A = q.Transform(αb)
	if att.UTC == 0 {
		att.UTC = loc.UTC
	}
	loc.SetAttICRF(att)
	return loc.AttICRF2All()
}
