package convert

import (
	"math"
	"testing"

	"github.com/ChristopherRabotin/cosmos/mathlib"
	"gonum.org/v1/gonum/floats/scalar"
)

const testUTC = 60107.01

func vallado() CartPos {
	s := mathlib.NewVector(6524.834e3, 6862.875e3, 6448.296e3)
	v := mathlib.NewVector(4.901327e3, 5.533756e3, -1.976341e3)
	r := s.Norm()
	return CartPos{
		UTC: testUTC,
		S:   s,
		V:   v,
		A:   s.Scale(-GMEarth / (r * r * r)),
		J:   mathlib.NewVector(.01, -.02, .005),
	}
}

func leo() CartPos {
	r := REarth + 400e3
	vc := math.Sqrt(GMEarth / r)
	m := mathlib.R1(-mathlib.Deg2rad(51.6))
	s := m.MulVec(mathlib.NewVector(r*math.Cos(.3), r*math.Sin(.3), 0))
	v := m.MulVec(mathlib.NewVector(-vc*math.Sin(.3), vc*math.Cos(.3), 0))
	return CartPos{UTC: testUTC, S: s, V: v, A: s.Scale(-GMEarth / (r * r * r))}
}

func relClose(got, want mathlib.Vector, rel float64) bool {
	n := want.Norm()
	if n == 0 {
		return got.Norm() <= rel
	}
	return got.Sub(want).Norm()/n <= rel
}

func TestECIGeocRoundTrip(t *testing.T) {
	eci := vallado()
	j2e, dj2e, ddj2e := GMSTOrientation{}.J2E(eci.UTC)
	geoc := ECI2Geoc(eci, j2e, dj2e, ddj2e)
	if !scalar.EqualWithinRel(geoc.S.Norm(), eci.S.Norm(), 1e-14) {
		t.Fatalf("rotation changed the radius: %f != %f", geoc.S.Norm(), eci.S.Norm())
	}
	back := Geoc2ECI(geoc, j2e, dj2e, ddj2e)
	for i, pair := range [][2]mathlib.Vector{{back.S, eci.S}, {back.V, eci.V}, {back.A, eci.A}, {back.J, eci.J}} {
		if !relClose(pair[0], pair[1], 1e-9) {
			t.Fatalf("derivative %d differs: %+v != %+v", i, pair[0], pair[1])
		}
	}
	// A point fixed on the Earth has no Earth-fixed velocity.
	fixed := CartPos{UTC: eci.UTC, S: mathlib.NewVector(REarth, 0, 0)}
	fixedECI := Geoc2ECI(fixed, j2e, dj2e, ddj2e)
	if !scalar.EqualWithinRel(fixedECI.V.Norm(), REarth*EarthRotationRate, 1e-9) {
		t.Fatalf("surface speed %f", fixedECI.V.Norm())
	}
	if !fixedECI.V.Cross(fixedECI.S).Unit().Equals(mathlib.UnitZ().Neg(), 1e-12) {
		t.Fatal("Earth does not rotate eastward")
	}
}

func TestGeodRoundTrip(t *testing.T) {
	for _, eci := range []CartPos{vallado(), leo()} {
		j2e, dj2e, ddj2e := GMSTOrientation{}.J2E(eci.UTC)
		geoc := ECI2Geoc(eci, j2e, dj2e, ddj2e)
		geod := Geoc2Geod(geoc)
		back := Geod2Geoc(geod)
		if !relClose(back.S, geoc.S, 1e-9) {
			t.Fatalf("position differs: %+v != %+v", back.S, geoc.S)
		}
		if !relClose(back.V, geoc.V, 1e-6) {
			t.Fatalf("velocity differs: %+v != %+v", back.V, geoc.V)
		}
		full := Geoc2ECI(back, j2e, dj2e, ddj2e)
		if !relClose(full.S, eci.S, 1e-6) || !relClose(full.V, eci.V, 1e-6) {
			t.Fatal("ECI to geodetic to ECI round trip failed")
		}
	}
}

func TestGeodKnownPoints(t *testing.T) {
	// On the equator the height is the distance to the equatorial radius.
	g := Geoc2Geod(CartPos{UTC: testUTC, S: mathlib.NewVector(REarth+1000, 0, 0)})
	if !scalar.EqualWithinAbs(g.S.Lat, 0, 1e-12) || !scalar.EqualWithinAbs(g.S.H, 1000, 1e-6) {
		t.Fatalf("equator: %+v", g.S)
	}
	// At the pole it is the distance to the polar radius.
	g = Geoc2Geod(CartPos{UTC: testUTC, S: mathlib.NewVector(0, 0, REarth*FRatio+500)})
	if !scalar.EqualWithinAbs(g.S.Lat, math.Pi/2, 1e-12) || !scalar.EqualWithinAbs(g.S.H, 500, 1e-6) {
		t.Fatalf("pole: %+v", g.S)
	}
	p := GeodeticPoint(mathlib.Deg2rad(45), mathlib.Deg2rad(10), 0)
	g = Geoc2Geod(CartPos{UTC: testUTC, S: p})
	if !scalar.EqualWithinAbs(mathlib.Rad2deg(g.S.Lat), 45, 1e-9) || !scalar.EqualWithinAbs(mathlib.Rad2deg(g.S.Lon), 10, 1e-9) {
		t.Fatalf("45N 10E: %+v", g.S)
	}
	if !scalar.EqualWithinAbs(g.S.H, 0, 1e-6) {
		t.Fatalf("height at sea level: %f", g.S.H)
	}
}

func TestDegenerateFrames(t *testing.T) {
	g := Geoc2Geod(CartPos{UTC: testUTC})
	if g.S != (Geoid{}) {
		t.Fatalf("zero vector should give a zero geodetic state: %+v", g.S)
	}
	c := Geod2Geoc(GeoidPos{UTC: testUTC, S: Geoid{math.NaN(), 0, 0}})
	if !c.S.IsZero() {
		t.Fatalf("NaN latitude should give a zero state: %+v", c.S)
	}
	s := Geoc2Geos(CartPos{UTC: testUTC})
	if s.S != (Spher{}) {
		t.Fatalf("zero vector should give a zero spherical state: %+v", s.S)
	}
	if _, _, _, err := LVLHBasis(CartPos{S: mathlib.NewVector(1, 0, 0), V: mathlib.NewVector(0, 1, 0)}); err != ErrRadiusTooSmall {
		t.Fatalf("expected ErrRadiusTooSmall, got %v", err)
	}
}

func TestGeosRoundTrip(t *testing.T) {
	eci := vallado()
	j2e, dj2e, ddj2e := GMSTOrientation{}.J2E(eci.UTC)
	geoc := ECI2Geoc(eci, j2e, dj2e, ddj2e)
	geos := Geoc2Geos(geoc)
	if !scalar.EqualWithinRel(geos.S.R, geoc.S.Norm(), 1e-14) {
		t.Fatal("radius mismatch")
	}
	back := Geos2Geoc(geos)
	if !relClose(back.S, geoc.S, 1e-12) || !relClose(back.V, geoc.V, 1e-12) {
		t.Fatalf("spherical round trip failed: %+v != %+v", back, geoc)
	}
}

func TestLVLHRoundTrip(t *testing.T) {
	origin := leo()
	sat := origin
	sat.S = sat.S.Add(mathlib.NewVector(120, -45, 300))
	sat.V = sat.V.Add(mathlib.NewVector(.1, .2, -.05))
	sat.A = sat.A.Add(mathlib.NewVector(1e-4, 0, 2e-4))
	lv, err := ECI2LVLH(origin, sat)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinRel(lv.S.Norm(), sat.S.Sub(origin.S).Norm(), 1e-12) {
		t.Fatal("LVLH changed the relative distance")
	}
	back, err := LVLH2ECI(origin, lv)
	if err != nil {
		t.Fatal(err)
	}
	if !relClose(back.S, sat.S, 1e-12) || !relClose(back.V, sat.V, 1e-9) || !relClose(back.A, sat.A, 1e-9) {
		t.Fatalf("LVLH round trip failed:\n%+v\n%+v", back, sat)
	}
}

func TestLVLHAxes(t *testing.T) {
	r := REarth + 500e3
	vc := math.Sqrt(GMEarth / r)
	origin := CartPos{
		UTC: testUTC,
		S:   mathlib.NewVector(r, 0, 0),
		V:   mathlib.NewVector(0, vc, 0),
		A:   mathlib.NewVector(-vc*vc/r, 0, 0),
	}
	θ := 1e-3
	ahead := CartPos{
		UTC: testUTC,
		S:   mathlib.NewVector(r*math.Cos(θ), r*math.Sin(θ), 0),
		V:   mathlib.NewVector(-vc*math.Sin(θ), vc*math.Cos(θ), 0),
		A:   mathlib.NewVector(-vc*vc/r*math.Cos(θ), -vc*vc/r*math.Sin(θ), 0),
	}
	lv, err := ECI2LVLH(origin, ahead)
	if err != nil {
		t.Fatal(err)
	}
	if lv.S.X <= 0 || math.Abs(lv.S.Y) > 1e-9 || lv.S.Z <= 0 {
		t.Fatalf("a leading satellite should be along +x and slightly toward +z: %+v", lv.S)
	}
	// Both satellites fly the same circular orbit so the relative state is frozen.
	if lv.V.Norm() > 1e-6 {
		t.Fatalf("relative velocity should vanish: %+v", lv.V)
	}
	ric := LVLH2RIC(lv)
	if ric.S.Y <= 0 || !RIC2LVLH(ric).S.Equals(lv.S, 1e-12) {
		t.Fatalf("RIC mapping: %+v", ric.S)
	}
}

func TestRIC2ECI(t *testing.T) {
	origin := leo()
	c, err := RIC2ECI(origin, mathlib.NewVector(1000, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(c.S.Norm()-origin.S.Norm(), 1000, 1e-6) {
		t.Fatalf("radial offset: %f", c.S.Norm()-origin.S.Norm())
	}
	if !scalar.EqualWithinRel(c.V.Norm(), math.Sqrt(GMEarth/c.S.Norm()), 1e-9) {
		t.Fatal("velocity should be circular at the new radius")
	}
	c, err = RIC2ECI(origin, mathlib.NewVector(0, 5000, 0))
	if err != nil {
		t.Fatal(err)
	}
	r := origin.S.Norm()
	chord := c.S.Sub(origin.S).Norm()
	if !scalar.EqualWithinAbs(chord, 2*r*math.Sin(5000/(2*r)), 1e-6) {
		t.Fatalf("in-track chord: %f", chord)
	}
	if c.S.Sub(origin.S).Dot(origin.V) <= 0 {
		t.Fatal("in-track offset should lead the origin")
	}
}

func randomAtt() QAtt {
	q := mathlib.FromAxisAngle(mathlib.NewVector(.3, -.5, .8), 1.1)
	return QAtt{UTC: testUTC, S: q, V: mathlib.NewVector(.01, -.02, .03), A: mathlib.NewVector(1e-4, 2e-4, -3e-4)}
}

func TestAttitudeRoundTrips(t *testing.T) {
	l := &Location{SkipBodies: true}
	l.SetECI(leo())
	if err := l.Update(); err != nil {
		t.Fatal(err)
	}
	att := randomAtt()
	check := func(name string, got QAtt) {
		if !got.S.SameRotation(att.S, 1e-12) || !got.V.Equals(att.V, 1e-12) || !got.A.Equals(att.A, 1e-12) {
			t.Fatalf("%s round trip failed:\n%+v\n%+v", name, got, att)
		}
	}

	l.Att.ICRF = att
	if err := l.AttICRF2Geoc(); err != nil {
		t.Fatal(err)
	}
	if err := l.AttGeoc2ICRF(); err != nil {
		t.Fatal(err)
	}
	check("geocentric", l.Att.ICRF)

	l.Att.ICRF = att
	if err := l.AttICRF2LVLH(); err != nil {
		t.Fatal(err)
	}
	if err := l.AttLVLH2ICRF(); err != nil {
		t.Fatal(err)
	}
	check("LVLH", l.Att.ICRF)

	l.Att.Geoc = att
	if err := l.AttGeoc2Topo(); err != nil {
		t.Fatal(err)
	}
	if err := l.AttTopo2Geoc(); err != nil {
		t.Fatal(err)
	}
	check("topocentric", l.Att.Geoc)
}

func TestAttitudeFrameRates(t *testing.T) {
	l := &Location{SkipBodies: true}
	l.SetECI(leo())
	l.SetAttICRF(QAtt{UTC: testUTC, S: mathlib.Identity()})
	if err := l.Update(); err != nil {
		t.Fatal(err)
	}
	// An inertially fixed body counter-rotates in the Earth-fixed frame.
	if !l.Att.Geoc.V.Equals(mathlib.NewVector(0, 0, -EarthRotationRate), 1e-15) {
		t.Fatalf("geocentric rate %+v", l.Att.Geoc.V)
	}
	// And rotates about the orbit normal (LVLH +y) relative to the orbital frame.
	n := math.Sqrt(GMEarth / math.Pow(l.Pos.ECI.S.Norm(), 3))
	if !l.Att.LVLH.V.Equals(mathlib.NewVector(0, n, 0), 1e-12) {
		t.Fatalf("LVLH rate %+v, expected %f about y", l.Att.LVLH.V, n)
	}
	// A body frame equal to LVLH maps the nadir onto +z.
	l.SetAttLVLH(QAtt{UTC: testUTC, S: mathlib.Identity()})
	if err := l.Update(); err != nil {
		t.Fatal(err)
	}
	nadir := l.Att.ICRF.S.Rotate(l.Pos.ECI.S.Neg().Unit())
	if !nadir.Equals(mathlib.UnitZ(), 1e-12) {
		t.Fatalf("nadir in body %+v", nadir)
	}
}

func TestLocationUpdate(t *testing.T) {
	l := &Location{}
	eci := vallado()
	l.SetECI(eci)
	if err := l.Update(); err != nil {
		t.Fatal(err)
	}
	if l.Pos.Geoc.Pass != l.Pos.ECI.Pass || l.Pos.Geod.Pass != l.Pos.ECI.Pass {
		t.Fatal("derived frames should share the pass of the ECI state")
	}
	if l.Pos.Extra.SunPos.Norm() < .98*AU || l.Pos.Extra.SunPos.Norm() > 1.02*AU {
		t.Fatalf("sun distance %f AU", l.Pos.Extra.SunPos.Norm()/AU)
	}
	if l.Pos.Extra.MoonPos.Norm() < 3.5e8 || l.Pos.Extra.MoonPos.Norm() > 4.1e8 {
		t.Fatalf("moon distance %f km", l.Pos.Extra.MoonPos.Norm()/1e3)
	}
	// Write the geodetic frame back: the ECI state is rebuilt from it.
	geod := l.Pos.Geod
	l.SetGeod(geod)
	if l.Pos.Geod.Pass <= l.Pos.ECI.Pass {
		t.Fatal("setting a frame must make it the freshest")
	}
	if err := l.Update(); err != nil {
		t.Fatal(err)
	}
	if !relClose(l.Pos.ECI.S, eci.S, 1e-9) || !relClose(l.Pos.ECI.V, eci.V, 1e-6) {
		t.Fatalf("geodetic to ECI failed:\n%+v\n%+v", l.Pos.ECI, eci)
	}
	if err := (&Location{}).Update(); err != ErrNoTime {
		t.Fatalf("a location without time should fail with ErrNoTime, got %v", err)
	}
}

func TestLocationLVLHOrigin(t *testing.T) {
	origin := leo()
	l := &Location{Origin: &origin, SkipBodies: true}
	l.SetLVLH(CartPos{UTC: testUTC, S: mathlib.NewVector(100, 0, 0)})
	if err := l.Update(); err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(l.Pos.ECI.S.Sub(origin.S).Norm(), 100, 1e-6) {
		t.Fatal("LVLH offset not applied")
	}
	if l.Pos.ECI.S.Sub(origin.S).Dot(origin.V) <= 0 {
		t.Fatal("+x LVLH should lead the origin")
	}
	if _, err := ECI2LVLH(CartPos{}, origin); err != ErrRadiusTooSmall {
		t.Fatal("zero origin must fail")
	}
	l2 := &Location{SkipBodies: true}
	l2.SetLVLH(CartPos{UTC: testUTC})
	if err := l2.Update(); err != ErrNoOrigin {
		t.Fatalf("expected ErrNoOrigin, got %v", err)
	}
}
