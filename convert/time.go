package convert

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

const (
	// MJDOffset is JD - MJD.
	MJDOffset = 2400000.5
	// MJD2000 is the MJD of the J2000 epoch.
	MJD2000 = 51544.5
	// TTMinusUTC is TAI-UTC plus TT-TAI, in seconds. Leap seconds are frozen
	// at the 2017 value.
	TTMinusUTC = 37 + 32.184
)

// MJD2JD converts a Modified Julian Date to a Julian Date.
func MJD2JD(mjd float64) float64 {
	return mjd + MJDOffset
}

// JD2MJD converts a Julian Date to a Modified Julian Date.
func JD2MJD(jd float64) float64 {
	return jd - MJDOffset
}

// Time2MJD converts a time to MJD (UTC).
func Time2MJD(t time.Time) float64 {
	return JD2MJD(julian.TimeToJD(t.UTC()))
}

// MJD2Time converts an MJD (UTC) to a time.
func MJD2Time(mjd float64) time.Time {
	return julian.JDToTime(MJD2JD(mjd)).UTC()
}

// UTC2TT converts UTC MJD to Terrestrial Time MJD.
func UTC2TT(mjd float64) float64 {
	return mjd + TTMinusUTC/SecondsPerDay
}

// UTC2UT1 converts UTC MJD to UT1 MJD. DUT1 is below a second and ignored.
func UTC2UT1(mjd float64) float64 {
	return mjd
}

// GMST returns the Greenwich mean sidereal angle in radians at the given UTC
// MJD.
func GMST(mjd float64) float64 {
	θ := sidereal.Mean(MJD2JD(UTC2UT1(mjd))).Angle().Rad()
	θ = math.Mod(θ, 2*math.Pi)
	if θ < 0 {
		θ += 2 * math.Pi
	}
	return θ
}

// Days converts seconds to days.
func Days(seconds float64) float64 {
	return seconds / SecondsPerDay
}

// Seconds converts days to seconds.
func Seconds(days float64) float64 {
	return days * SecondsPerDay
}
