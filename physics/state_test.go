package physics

import (
	"testing"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func newTestState(t *testing.T, name string, p PositionType, a AttitudeType, phys *Physics) *State {
	s, err := NewState(name, p, a, phys)
	if err != nil {
		t.Fatal(err)
	}
	s.Loc.SkipBodies = true
	return s
}

func leoCondition() InitialCondition {
	eci := leo()
	return InitialCondition{ECI: &eci}
}

func TestNewStateTypes(t *testing.T) {
	if _, err := NewState("x", 0, AttLVLH, nil); errors.Cause(err) != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := NewState("x", PosInertial, 99, nil); errors.Cause(err) != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	s, err := NewState("x", PosInertial, AttLVLH, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Phys == nil || s.Order != DefaultOrder || s.Initialized() {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestStateInitErrors(t *testing.T) {
	geod := convert.Geoid{Lat: .3, Lon: 1, H: 10}
	for name, tc := range map[string]struct {
		p  PositionType
		ic InitialCondition
	}{
		"gj without orbit":        {PosGaussJackson, InitialCondition{Geod: &geod}},
		"iterative without orbit": {PosIterative, InitialCondition{}},
		"tle without elements":    {PosTle, leoCondition()},
		"lvlh without origin":     {PosLvlh, InitialCondition{}},
		"geo without position":    {PosGeo, InitialCondition{}},
	} {
		s := newTestState(t, name, tc.p, AttLVLH, PointMass(10))
		if err := s.Init(0, testUTC, tc.ic); errors.Cause(err) != ErrNoInitialState {
			t.Fatalf("%s: expected ErrNoInitialState, got %v", name, err)
		}
	}
	s := newTestState(t, "idle", PosInertial, AttLVLH, PointMass(0))
	if _, err := s.Increment(testUTC + 1); errors.Cause(err) != ErrNoInitialState {
		t.Fatalf("expected ErrNoInitialState, got %v", err)
	}
	if err := s.Init(0, testUTC, leoCondition()); err == nil {
		t.Fatal("zero step accepted")
	}
}

func TestInertialState(t *testing.T) {
	s := newTestState(t, "sat", PosInertial, AttLVLH, PointMass(60))
	if err := s.Init(0, testUTC, leoCondition()); err != nil {
		t.Fatal(err)
	}
	before := testutil.ToFloat64(propagationSteps.WithLabelValues("inertial"))
	n, err := s.Increment(testUTC + convert.Days(600))
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 || s.Ticks() != 10 {
		t.Fatalf("%d steps, %d ticks", n, s.Ticks())
	}
	if got := testutil.ToFloat64(propagationSteps.WithLabelValues("inertial")) - before; got != 10 {
		t.Fatalf("counter moved by %f", got)
	}
	var k KeplerSolver
	want := k.ECI(convert.ECI2Kep(leo()), convert.Seconds(s.UTC()-testUTC))
	if d := s.Loc.Pos.ECI.S.Sub(want.S).Norm(); d > 1e-3 {
		t.Fatalf("position off by %f m", d)
	}
	// The body follows its LVLH frame.
	if !s.Loc.Att.LVLH.S.SameRotation(mathlib.Identity(), 1e-9) {
		t.Fatalf("lvlh attitude %v", s.Loc.Att.LVLH.S)
	}
	// Requests behind the node do nothing.
	if n, err := s.Increment(testUTC); err != nil || n != 0 {
		t.Fatalf("%d steps backward (%v)", n, err)
	}

	if err := s.Reset(testUTC); err != nil {
		t.Fatal(err)
	}
	if s.UTC() != testUTC || s.Ticks() != 0 || s.Loc.Pos.ECI.S != leo().S {
		t.Fatalf("reset to %f after %d ticks", s.UTC(), s.Ticks())
	}
	s.End()
	if s.Initialized() {
		t.Fatal("ended state still initialized")
	}
}

func TestIterativeMatchesKepler(t *testing.T) {
	iter := newTestState(t, "rk4", PosIterative, AttLVLH, PointMass(10))
	if err := iter.Init(0, testUTC, leoCondition()); err != nil {
		t.Fatal(err)
	}
	gj := newTestState(t, "gj", PosGaussJackson, AttLVLH, PointMass(10))
	if err := gj.Init(0, testUTC, leoCondition()); err != nil {
		t.Fatal(err)
	}
	end := testUTC + convert.Days(900)
	for _, s := range []*State{iter, gj} {
		if _, err := s.Increment(end); err != nil {
			t.Fatal(err)
		}
		var k KeplerSolver
		want := k.ECI(convert.ECI2Kep(leo()), convert.Seconds(s.UTC()-testUTC))
		if d := s.Loc.Pos.ECI.S.Sub(want.S).Norm(); d > 1 {
			t.Fatalf("%s: position off by %f m", s.Name, d)
		}
		if !scalar.EqualWithinAbs(s.Loc.UTC, s.UTC(), 1e-9) {
			t.Fatalf("%s: location at %f, state at %f", s.Name, s.Loc.UTC, s.UTC())
		}
	}
}

func TestIterativeBackward(t *testing.T) {
	s := newTestState(t, "rk4", PosIterative, AttNone, PointMass(-10))
	if err := s.Init(0, testUTC, leoCondition()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Increment(testUTC - convert.Days(300)); err != nil {
		t.Fatal(err)
	}
	var k KeplerSolver
	want := k.ECI(convert.ECI2Kep(leo()), convert.Seconds(s.UTC()-testUTC))
	if d := s.Loc.Pos.ECI.S.Sub(want.S).Norm(); d > 1 {
		t.Fatalf("position off by %f m", d)
	}
}

func TestGeoState(t *testing.T) {
	geod := convert.Geoid{Lat: .35, Lon: -2.7, H: 100}
	s := newTestState(t, "station", PosGeo, AttTopo, nil)
	if err := s.Init(60, testUTC, InitialCondition{Geod: &geod}); err != nil {
		t.Fatal(err)
	}
	start := s.Loc.Pos.Geoc.S
	if _, err := s.Increment(testUTC + convert.Days(3600)); err != nil {
		t.Fatal(err)
	}
	if d := s.Loc.Pos.Geoc.S.Sub(start).Norm(); d > 1e-6 {
		t.Fatalf("station drifted by %f m", d)
	}
	g := s.Loc.Pos.Geod.S
	if !scalar.EqualWithinAbs(g.Lat, geod.Lat, 1e-10) || !scalar.EqualWithinAbs(g.H, geod.H, 1e-6) {
		t.Fatalf("geodetic position %+v", g)
	}
	if !s.Loc.Att.Topo.S.SameRotation(mathlib.Identity(), 1e-9) {
		t.Fatalf("topo attitude %v", s.Loc.Att.Topo.S)
	}
}

// tilted is a surface sloping toward the east everywhere.
type tilted struct{}

func (tilted) Normal(lat, lon, utc float64) mathlib.Vector {
	return mathlib.NewVector(1, 0, 1).Unit()
}

func TestTopoAttitudeSurface(t *testing.T) {
	geod := convert.Geoid{Lat: .35, Lon: -2.7, H: 100}
	s := newTestState(t, "rover", PosGeo, AttTopo, nil)
	s.Surface = tilted{}
	if err := s.Init(60, testUTC, InitialCondition{Geod: &geod}); err != nil {
		t.Fatal(err)
	}
	// The body z axis is the terrain normal.
	up := s.Loc.Att.Topo.S.Transform(mathlib.UnitZ())
	if !up.Equals(tilted{}.Normal(0, 0, 0), 1e-12) {
		t.Fatalf("body z in topo %v", up)
	}
}

func TestLVLHState(t *testing.T) {
	mother := newTestState(t, "mother", PosInertial, AttLVLH, PointMass(10))
	if err := mother.Init(0, testUTC, leoCondition()); err != nil {
		t.Fatal(err)
	}
	child := newTestState(t, "child", PosLvlh, AttLVLH, PointMass(10))
	child.Origin = mother
	rel := convert.CartPos{S: mathlib.NewVector(0, -100, 20)}
	if err := child.Init(0, testUTC, InitialCondition{LVLH: &rel}); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		utc := testUTC + convert.Days(float64(i)*10)
		for _, s := range []*State{mother, child} {
			if _, err := s.Increment(utc); err != nil {
				t.Fatal(err)
			}
		}
		if d := child.Loc.Pos.ECI.S.Sub(mother.Loc.Pos.ECI.S).Norm(); !scalar.EqualWithinAbs(d, rel.S.Norm(), 1e-6) {
			t.Fatalf("tick %d: separation %f m", i, d)
		}
		if !child.Loc.Pos.LVLH.S.Equals(rel.S, 1e-9) {
			t.Fatalf("tick %d: offset %v", i, child.Loc.Pos.LVLH.S)
		}
	}
}

func TestTLEState(t *testing.T) {
	tle, err := convert.ParseTLE("ISS", issLine1, issLine2)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestState(t, "iss", PosTle, AttNone, PointMass(30))
	if err := s.Init(0, tle.Epoch, InitialCondition{TLE: tle}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Increment(tle.Epoch + convert.Days(300)); err != nil {
		t.Fatal(err)
	}
	want, err := tle.ECI(s.UTC())
	if err != nil {
		t.Fatal(err)
	}
	if s.Loc.Pos.ECI.S != want.S {
		t.Fatalf("position %v, want %v", s.Loc.Pos.ECI.S, want.S)
	}
}

func TestNoneState(t *testing.T) {
	s := newTestState(t, "clock", PosNone, AttNone, nil)
	if err := s.Init(1, testUTC, InitialCondition{}); err != nil {
		t.Fatal(err)
	}
	if n, err := s.Increment(testUTC + convert.Days(5)); err != nil || n != 5 {
		t.Fatalf("%d steps (%v)", n, err)
	}
	if !scalar.EqualWithinAbs(s.Loc.UTC, testUTC+convert.Days(5), 1e-9) {
		t.Fatalf("clock at %f", s.Loc.UTC)
	}
}

func TestTargetAttitude(t *testing.T) {
	target := convert.Location{SkipBodies: true}
	target.SetGeod(convert.GeoidPos{UTC: testUTC, S: convert.Geoid{Lat: .5, Lon: 1}})
	if err := target.Update(); err != nil {
		t.Fatal(err)
	}
	s := newTestState(t, "pointer", PosInertial, AttTarget, PointMass(10))
	s.Target = &target
	if err := s.Init(0, testUTC, leoCondition()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Increment(testUTC + convert.Days(30)); err != nil {
		t.Fatal(err)
	}
	los := s.Loc.Pos.Extra.E2J.MulVec(target.Pos.Geoc.S).Sub(s.Loc.Pos.ECI.S).Unit()
	boresight := s.Loc.Att.ICRF.S.Transform(mathlib.UnitZ())
	if c := boresight.Dot(los); c < 1-1e-9 {
		t.Fatalf("boresight off the target by cos %f", c)
	}
}

func TestWheelMomentumExchange(t *testing.T) {
	phys := PointMass(1)
	phys.Wheels = []*Wheel{{Align: mathlib.Identity(), MOM: .1, MaxAlpha: 1}}
	s := newTestState(t, "wheel", PosIterative, AttInertial, phys)
	eci := leo()
	ic := InitialCondition{ECI: &eci, Att: &convert.QAtt{S: mathlib.Identity()}}
	if err := s.Init(0, testUTC, ic); err != nil {
		t.Fatal(err)
	}
	if err := s.SetWheel(0, .01); err != nil {
		t.Fatal(err)
	}
	if err := s.SetWheel(1, .01); err == nil {
		t.Fatal("missing wheel accepted")
	}
	if _, err := s.Increment(testUTC + convert.Days(10)); err != nil {
		t.Fatal(err)
	}
	// The body lags the wheel by one step.
	h := phys.Wheels[0].Momentum().Z
	body := phys.MOI.Z * s.Loc.Att.ICRF.V.Z
	if !scalar.EqualWithinAbs(body+h, .1*.01*s.DT, 1e-9) {
		t.Fatalf("body %g wheel %g", body, h)
	}
}

func TestThrustLVLH(t *testing.T) {
	s := newTestState(t, "burn", PosInertial, AttLVLH, PointMass(10))
	if err := s.Init(0, testUTC, leoCondition()); err != nil {
		t.Fatal(err)
	}
	s.SetThrustLVLH(mathlib.UnitX())
	if !s.Phys.Thrust.Equals(s.Loc.Pos.Extra.P2L.Row(0), 1e-15) {
		t.Fatalf("thrust %v", s.Phys.Thrust)
	}
}
