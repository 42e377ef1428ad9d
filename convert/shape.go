package convert

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// Shape describes a circular orbit by a point it flies over: the satellite
// is above the geodetic point (Lat, Lon, Alt) at UTC+Shift seconds, on the
// ascending part of an orbit of inclination Inclination.
type Shape struct {
	UTC         float64
	Lat         float64
	Lon         float64
	Alt         float64
	Inclination float64
	Shift       float64
}

// Kep returns the circular elements of the shape at s.UTC.
func (s Shape) Kep(orientation EarthOrientation) (KepStruc, error) {
	if orientation == nil {
		orientation = DefaultOrientation
	}
	if s.UTC == 0 || math.IsNaN(s.UTC) {
		return KepStruc{}, ErrNoTime
	}
	over := s.UTC + Days(s.Shift)
	geoc := GeodeticPoint(s.Lat, s.Lon, s.Alt)
	j2e, _, _ := orientation.J2E(over)
	eci := j2e.Transpose().MulVec(geoc)
	r := eci.Norm()
	if r < MinOrbitRadius {
		return KepStruc{}, ErrRadiusTooSmall
	}
	δ := math.Asin(eci.Z / r)
	α := math.Atan2(eci.Y, eci.X)
	si := math.Sin(s.Inclination)
	su := 1.
	if si != 0 {
		su = math.Sin(δ) / si
	}
	// Points beyond the reach of the inclination get the northernmost or
	// southernmost point of the orbit.
	su = math.Max(-1, math.Min(1, su))
	u := math.Asin(su)
	Ω := α - math.Atan2(math.Cos(s.Inclination)*su, math.Cos(u))
	kep := KepStruc{
		UTC:  over,
		A:    r,
		I:    s.Inclination,
		RAAN: mathlib.Ranrm(Ω),
		EA:   mathlib.Ranrm(u),
		MA:   mathlib.Ranrm(u),
		TA:   mathlib.Ranrm(u),
		MM:   math.Sqrt(GMEarth / (r * r * r)),
	}
	kep.Period = 2 * math.Pi / kep.MM
	if s.Shift != 0 {
		kep, _ = KepPropagate(kep, s.UTC)
	}
	return kep, nil
}

// ECI returns the inertial state of the shape at s.UTC.
func (s Shape) ECI(orientation EarthOrientation) (CartPos, error) {
	kep, err := s.Kep(orientation)
	if err != nil {
		return CartPos{UTC: s.UTC}, err
	}
	return Kep2ECI(kep), nil
}
