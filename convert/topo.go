package convert

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// TopoBasis returns the matrix whose rows are the east, north and up axes at
// the geodetic point g, expressed in the Earth-fixed frame.
func TopoBasis(g Geoid) mathlib.Matrix {
	slat, clat := math.Sincos(g.Lat)
	slon, clon := math.Sincos(g.Lon)
	return mathlib.Matrix{
		{-slon, clon, 0},
		{-slat * clon, -slat * slon, clat},
		{clat * clon, clat * slon, slat},
	}
}

// Geoc2Topo returns the east, north, up position of the Earth-fixed point
// target as seen from the geodetic location source.
func Geoc2Topo(source Geoid, target mathlib.Vector) mathlib.Vector {
	return TopoBasis(source).MulVec(target.Sub(GeodeticPoint(source.Lat, source.Lon, source.H)))
}

// SEZ returns the south, east, zenith components of the Earth-fixed
// vector ρ at the given latitude and longitude.
func SEZ(lat, lon float64, ρ mathlib.Vector) mathlib.Vector {
	return mathlib.R2(math.Pi/2 - lat).MulVec(mathlib.R3(lon).MulVec(ρ))
}

// Topo2AzEl returns the azimuth (from north, positive toward east, in
// [0, 2π)) and the elevation of a topocentric east, north, up vector.
func Topo2AzEl(topo mathlib.Vector) (az, el float64) {
	az = math.Atan2(topo.X, topo.Y)
	if az < 0 {
		az += 2 * math.Pi
	}
	el = math.Atan2(topo.Z, math.Hypot(topo.X, topo.Y))
	return
}

// RangeAzEl returns the range, azimuth and elevation of the Earth-fixed
// point target seen from the geodetic location source.
func RangeAzEl(source Geoid, target mathlib.Vector) (ρ, az, el float64) {
	topo := Geoc2Topo(source, target)
	az, el = Topo2AzEl(topo)
	return topo.Norm(), az, el
}

// Geod2Sep returns the great circle distance between two geodetic points on
// a sphere of the equatorial radius.
func Geod2Sep(src, dst Geoid) float64 {
	dφ := dst.Lat - src.Lat
	dλ := dst.Lon - src.Lon
	sφ, sλ := math.Sin(dφ/2), math.Sin(dλ/2)
	a := sφ*sφ + math.Cos(src.Lat)*math.Cos(dst.Lat)*sλ*sλ
	a = math.Min(1, a)
	return REarth * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
