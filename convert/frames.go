package convert

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// ECI2Geoc rotates an inertial state into the Earth-fixed frame using the
// transform j2e and its derivatives. Velocity, acceleration and jerk include
// the transport terms of the rotating frame.
func ECI2Geoc(eci CartPos, j2e, dj2e, ddj2e mathlib.Matrix) CartPos {
	g := CartPos{UTC: eci.UTC, Pass: eci.Pass}
	g.S = j2e.MulVec(eci.S)
	g.V = j2e.MulVec(eci.V).Add(dj2e.MulVec(eci.S))
	g.A = j2e.MulVec(eci.A).Add(dj2e.MulVec(eci.V).Scale(2)).Add(ddj2e.MulVec(eci.S))
	g.J = j2e.MulVec(eci.J).Add(dj2e.MulVec(eci.A).Scale(3)).Add(ddj2e.MulVec(eci.V).Scale(3))
	return g
}

// Geoc2ECI is the inverse of ECI2Geoc.
func Geoc2ECI(geoc CartPos, j2e, dj2e, ddj2e mathlib.Matrix) CartPos {
	e2j := j2e.Transpose()
	c := CartPos{UTC: geoc.UTC, Pass: geoc.Pass}
	c.S = e2j.MulVec(geoc.S)
	c.V = e2j.MulVec(geoc.V.Sub(dj2e.MulVec(c.S)))
	c.A = e2j.MulVec(geoc.A.Sub(dj2e.MulVec(c.V).Scale(2)).Sub(ddj2e.MulVec(c.S)))
	c.J = e2j.MulVec(geoc.J.Sub(dj2e.MulVec(c.A).Scale(3)).Sub(ddj2e.MulVec(c.V).Scale(3)))
	return c
}

// PosECI2Geoc refreshes the Earth-fixed state from the ECI state.
func (l *Location) PosECI2Geoc() error {
	if err := l.PosExtra(l.Pos.ECI.UTC); err != nil {
		return err
	}
	x := l.Pos.Extra
	l.Pos.Geoc = ECI2Geoc(l.Pos.ECI, x.J2E, x.DJ2E, x.DDJ2E)
	return nil
}

// PosGeoc2ECI refreshes the ECI state from the Earth-fixed state.
func (l *Location) PosGeoc2ECI() error {
	if err := l.PosExtra(l.Pos.Geoc.UTC); err != nil {
		return err
	}
	x := l.Pos.Extra
	l.Pos.ECI = Geoc2ECI(l.Pos.Geoc, x.J2E, x.DJ2E, x.DDJ2E)
	return nil
}

// Geoc2Geod converts an Earth-fixed Cartesian state to geodetic coordinates
// on the WGS84 ellipsoid, with rates. The zero vector maps to the zero state.
func Geoc2Geod(geoc CartPos) GeoidPos {
	g := GeoidPos{UTC: geoc.UTC, Pass: geoc.Pass}
	x, y, z := geoc.S.X, geoc.S.Y, geoc.S.Z
	p := math.Hypot(x, y)
	if p == 0 && z == 0 || geoc.S.IsNaN() {
		return g
	}
	g.S.Lon = math.Atan2(y, x)

	e2 := 1 - FRatio2
	var φ, h float64
	if p < 1e-9 {
		// On the polar axis.
		φ = math.Copysign(math.Pi/2, z)
		h = math.Abs(z) - REarth*FRatio
	} else {
		nh := math.Hypot(p, z) - REarth
		φ = math.Atan2(z, p)
		for i := 0; i < 50; i++ {
			h = nh
			st := math.Sin(φ)
			rn := REarth / math.Sqrt(1-e2*st*st)
			nh = p/math.Cos(φ) - rn
			φ = math.Atan((z / p) / (1 - e2*rn/(rn+nh)))
			if math.Abs(nh-h) <= 1e-7 {
				h = nh
				break
			}
		}
	}
	g.S.Lat, g.S.H = φ, h

	st, ct := math.Sincos(g.S.Lat)
	sn, cn := math.Sincos(g.S.Lon)
	c := 1 / math.Sqrt(ct*ct+FRatio2*st*st)
	rp := g.S.H + REarth*FRatio2*c*c*c
	a1, b1, c1 := ct*cn, -y, -st*cn*rp
	a2, b2, c2 := ct*sn, x, -st*sn*rp
	a3, c3 := st, ct*rp
	if c3 == 0 {
		return g
	}
	rbc := (b1*c2 - b2*c1) / c3
	den := b2*a1 - b1*a2 + rbc*a3
	if den == 0 {
		return g
	}
	v := geoc.V
	g.V.H = (b2*v.X - b1*v.Y + rbc*v.Z) / den
	g.V.Lat = (v.Z - a3*g.V.H) / c3
	if math.Abs(b1) > math.Abs(b2) {
		g.V.Lon = (v.X - a1*g.V.H - c1*g.V.Lat) / b1
	} else if b2 != 0 {
		g.V.Lon = (v.Y - a2*g.V.H - c2*g.V.Lat) / b2
	}
	return g
}

// Geod2Geoc converts a geodetic state to Earth-fixed Cartesian, with rates.
// NaN coordinates map to the zero state.
func Geod2Geoc(geod GeoidPos) CartPos {
	c := CartPos{UTC: geod.UTC, Pass: geod.Pass}
	if math.IsNaN(geod.S.Lat) || math.IsNaN(geod.S.Lon) || math.IsNaN(geod.S.H) {
		return c
	}
	st, ct := math.Sincos(geod.S.Lat)
	sn, cn := math.Sincos(geod.S.Lon)
	cc := 1 / math.Sqrt(ct*ct+FRatio2*st*st)
	s := FRatio2 * cc
	r := (REarth*cc + geod.S.H) * ct
	c.S = mathlib.NewVector(r*cn, r*sn, (REarth*s+geod.S.H)*st)

	rp := geod.S.H + REarth*s*cc*cc
	c.V.Z = st*geod.V.H + rp*ct*geod.V.Lat
	c.V.X = cn*ct*geod.V.H - c.S.Y*geod.V.Lon - rp*cn*st*geod.V.Lat
	c.V.Y = sn*ct*geod.V.H + c.S.X*geod.V.Lon - rp*sn*st*geod.V.Lat
	return c
}

// PosGeoc2Geod refreshes the geodetic state from the Earth-fixed state.
func (l *Location) PosGeoc2Geod() {
	l.Pos.Geod = Geoc2Geod(l.Pos.Geoc)
}

// PosGeod2Geoc refreshes the Earth-fixed state from the geodetic state.
func (l *Location) PosGeod2Geoc() error {
	if err := l.PosExtra(l.Pos.Geod.UTC); err != nil {
		return err
	}
	l.Pos.Geoc = Geod2Geoc(l.Pos.Geod)
	return nil
}

// Geoc2Geos converts an Earth-fixed Cartesian state to geocentric spherical
// coordinates, with rates.
func Geoc2Geos(geoc CartPos) SpherPos {
	g := SpherPos{UTC: geoc.UTC, Pass: geoc.Pass}
	s, v := geoc.S, geoc.V
	minir2 := s.X*s.X + s.Y*s.Y
	minir := math.Sqrt(minir2)
	r2 := minir2 + s.Z*s.Z
	r := math.Sqrt(r2)
	if r == 0 || s.IsNaN() {
		return g
	}
	g.S.R = r
	g.S.Phi = math.Asin(s.Z / r)
	g.S.Lambda = math.Atan2(s.Y, s.X)
	g.V.R = s.Dot(v) / r
	if minir == 0 {
		return g
	}
	xvx, yvy := s.X*v.X, s.Y*v.Y
	g.V.Phi = (-(xvx+yvy)*s.Z + minir2*v.Z) / (r2 * minir)
	g.V.Lambda = (s.X*v.Y - s.Y*v.X) / minir2
	return g
}

// Geos2Geoc converts a geocentric spherical state to Earth-fixed Cartesian,
// with rates.
func Geos2Geoc(geos SpherPos) CartPos {
	c := CartPos{UTC: geos.UTC, Pass: geos.Pass}
	sp, cp := math.Sincos(geos.S.Phi)
	sl, cl := math.Sincos(geos.S.Lambda)
	r := geos.S.R
	cpr := cp * r
	c.S = mathlib.NewVector(cpr*cl, cpr*sl, r*sp)
	c.V.X = geos.V.R*cp*cl - geos.V.Lambda*cpr*sl - geos.V.Phi*r*sp*cl
	c.V.Y = geos.V.R*cp*sl + geos.V.Lambda*cpr*cl - geos.V.Phi*r*sp*sl
	c.V.Z = geos.V.R*sp + geos.V.Phi*cpr
	return c
}

// PosGeoc2Geos refreshes the spherical state from the Earth-fixed state.
func (l *Location) PosGeoc2Geos() {
	l.Pos.Geos = Geoc2Geos(l.Pos.Geoc)
}

// PosGeos2Geoc refreshes the Earth-fixed state from the spherical state.
func (l *Location) PosGeos2Geoc() error {
	if err := l.PosExtra(l.Pos.Geos.UTC); err != nil {
		return err
	}
	l.Pos.Geoc = Geos2Geoc(l.Pos.Geos)
	return nil
}

// GeodeticPoint returns the Earth-fixed position of a surface point.
func GeodeticPoint(lat, lon, h float64) mathlib.Vector {
	return Geod2Geoc(GeoidPos{S: Geoid{lat, lon, h}}).S
}
