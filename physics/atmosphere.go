package physics

import (
	"math"
	"sort"

	"github.com/ChristopherRabotin/cosmos/convert"
)

// Atmosphere returns the neutral density in kg/m³ at a geodetic point. The
// solar flux (F10.7 and its 81 day average) and the Ap index are passed for
// models which use them.
type Atmosphere interface {
	Density(geod convert.Geoid, utc, f107avg, f107, ap float64) float64
}

type atmosphereLayer struct {
	base    float64 // km
	density float64 // kg/m³
	scale   float64 // km
}

// From Vallado, Fundamentals of Astrodynamics and Applications, table 8-4.
var exponentialLayers = []atmosphereLayer{
	{0, 1.225, 7.249},
	{25, 3.899e-2, 6.349},
	{30, 1.774e-2, 6.682},
	{40, 3.972e-3, 7.554},
	{50, 1.057e-3, 8.382},
	{60, 3.206e-4, 7.714},
	{70, 8.770e-5, 6.549},
	{80, 1.905e-5, 5.799},
	{90, 3.396e-6, 5.382},
	{100, 5.297e-7, 5.877},
	{110, 9.661e-8, 7.263},
	{120, 2.438e-8, 9.473},
	{130, 8.484e-9, 12.636},
	{140, 3.845e-9, 16.149},
	{150, 2.070e-9, 22.523},
	{180, 5.464e-10, 29.740},
	{200, 2.789e-10, 37.105},
	{250, 7.248e-11, 45.546},
	{300, 2.418e-11, 53.628},
	{350, 9.518e-12, 53.298},
	{400, 3.725e-12, 58.515},
	{450, 1.585e-12, 60.828},
	{500, 6.967e-13, 63.822},
	{600, 1.454e-13, 71.835},
	{700, 3.614e-14, 88.667},
	{800, 1.170e-14, 124.64},
	{900, 5.245e-15, 181.05},
	{1000, 3.019e-15, 268.00},
}

// ExponentialAtmosphere is the piecewise exponential static model. It
// ignores the solar and geomagnetic indices.
type ExponentialAtmosphere struct{}

// Density implements Atmosphere.
func (ExponentialAtmosphere) Density(geod convert.Geoid, utc, f107avg, f107, ap float64) float64 {
	h := geod.H / 1e3
	if math.IsNaN(h) {
		return 0
	}
	if h < 0 {
		h = 0
	}
	i := sort.Search(len(exponentialLayers), func(i int) bool { return exponentialLayers[i].base > h }) - 1
	l := exponentialLayers[i]
	return l.density * math.Exp(-(h-l.base)/l.scale)
}

// CachedAtmosphere extrapolates the density of Model linearly in time while
// the estimated period of change is longer than the time elapsed since the
// last evaluation. It is not safe for concurrent use.
type CachedAtmosphere struct {
	Model Atmosphere
	// Evaluations counts the calls that reached Model.
	Evaluations int

	lastMJD     float64
	lastDensity float64
	lastPeriod  float64
}

// Density implements Atmosphere.
func (c *CachedAtmosphere) Density(geod convert.Geoid, utc, f107avg, f107, ap float64) float64 {
	elapsed := utc - c.lastMJD
	if c.lastPeriod != 0 && math.Abs(c.lastPeriod) > elapsed {
		return c.lastDensity * (1 + .001*elapsed/c.lastPeriod)
	}
	d := c.Model.Density(geod, utc, f107avg, f107, ap)
	c.Evaluations++
	if c.lastMJD != 0 && d != c.lastDensity {
		c.lastPeriod = elapsed * .001 * d / (d - c.lastDensity)
	}
	c.lastMJD = utc
	c.lastDensity = d
	return d
}
