package convert

import (
	"math"
	"strings"

	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/solar"
)

const (
	// AU is one astronomical unit in meters.
	AU = 1.49597870700e11
	// REarth is the WGS84 equatorial radius in meters.
	REarth = 6378137.
	// Flattening is the WGS84 flattening.
	Flattening = 1 / 298.257223563
	// FRatio is 1-f.
	FRatio = 1 - Flattening
	// FRatio2 is (1-f)².
	FRatio2 = FRatio * FRatio
	// GMEarth is the WGS84 gravitational parameter in m³/s².
	GMEarth = 3.986004415e14
	// GMSun is the heliocentric gravitational parameter in m³/s².
	GMSun = 1.32712440017987e20
	// GMMoon is the selenocentric gravitational parameter in m³/s².
	GMMoon = 4.9048695e12
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
	// SecondsPerDay is the number of seconds in a day.
	SecondsPerDay = 86400.
)

// CelestialObject defines a celestial object.
type CelestialObject struct {
	Name       string
	Radius     float64
	μ          float64
	Flattening float64
	Rotation   float64 // rad/s
	J2         float64
	J3         float64
	J4         float64
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// J returns the perturbing J_n factor for the provided n.
func (c CelestialObject) J(n uint8) float64 {
	switch n {
	case 2:
		return c.J2
	case 3:
		return c.J3
	case 4:
		return c.J4
	default:
		return 0.0
	}
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// Equals returns whether the provided celestial object is the same.
func (c CelestialObject) Equals(b CelestialObject) bool {
	return c.Name == b.Name && c.Radius == b.Radius && c.μ == b.μ
}

// CelestialObjectFromString returns the object from its name.
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "earth":
		return Earth, nil
	case "sun":
		return Sun, nil
	case "moon":
		return Moon, nil
	default:
		return CelestialObject{}, errors.Errorf("undefined celestial object %q", name)
	}
}

// Earth is home.
var Earth = CelestialObject{"Earth", REarth, GMEarth, Flattening, EarthRotationRate, 1082.6269e-6, -2.5324e-6, -1.6204e-6}

// Sun is our closest star.
var Sun = CelestialObject{"Sun", 695700e3, GMSun, 0, 0, 0, 0, 0}

// Moon is Earth's natural satellite.
var Moon = CelestialObject{"Moon", 1737.4e3, GMMoon, 0.0012, 2.6617e-6, 202.7e-6, 0, 0}

// SunPosition returns the geocentric equatorial position of the Sun at the
// given UTC MJD, in meters.
func SunPosition(mjd float64) mathlib.Vector {
	jde := MJD2JD(UTC2TT(mjd))
	α, δ := solar.ApparentEquatorial(jde)
	r := solar.Radius(base.J2000Century(jde)) * AU
	sa, ca := math.Sincos(α.Rad())
	sd, cd := math.Sincos(δ.Rad())
	return mathlib.NewVector(r*cd*ca, r*cd*sa, r*sd)
}

// MoonPosition returns the geocentric equatorial position of the Moon at the
// given UTC MJD, in meters.
func MoonPosition(mjd float64) mathlib.Vector {
	jde := MJD2JD(UTC2TT(mjd))
	λ, β, Δ := moonposition.Position(jde)
	ε := nutation.MeanObliquity(jde).Rad()
	ecl := mathlib.NewVector(math.Cos(β.Rad())*math.Cos(λ.Rad()), math.Cos(β.Rad())*math.Sin(λ.Rad()), math.Sin(β.Rad()))
	// Ecliptic to equatorial is a frame rotation of -ε about x.
	return mathlib.R1(-ε).MulVec(ecl).Scale(Δ * 1e3)
}
