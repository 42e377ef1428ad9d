package convert

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// EarthOrientation supplies the rotation from the inertial frame to the
// Earth-fixed frame, along with its first and second time derivatives (per
// second). Precession, nutation and polar motion live behind this interface.
type EarthOrientation interface {
	J2E(utc float64) (j2e, dj2e, ddj2e mathlib.Matrix)
}

// GMSTOrientation rotates about the pole by the Greenwich mean sidereal angle.
type GMSTOrientation struct{}

// J2E implements EarthOrientation.
func (GMSTOrientation) J2E(utc float64) (j2e, dj2e, ddj2e mathlib.Matrix) {
	θ := GMST(utc)
	s, c := math.Sincos(θ)
	ω := EarthRotationRate
	j2e = mathlib.R3(θ)
	dj2e = mathlib.Matrix{{-s * ω, c * ω, 0}, {-c * ω, -s * ω, 0}, {0, 0, 0}}
	ddj2e = mathlib.Matrix{{-c * ω * ω, -s * ω * ω, 0}, {s * ω * ω, -c * ω * ω, 0}, {0, 0, 0}}
	return
}

// DefaultOrientation is used by Location values that carry none.
var DefaultOrientation EarthOrientation = GMSTOrientation{}
