package physics

import (
	"math"
	"testing"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
)

const testUTC = 58000.5

// leo is a 400 km circular orbit inclined at 51.6°.
func leo() convert.CartPos {
	r := convert.REarth + 400e3
	vc := math.Sqrt(convert.GMEarth / r)
	m := mathlib.R1(-51.6 * math.Pi / 180)
	s := m.MulVec(mathlib.NewVector(r*math.Cos(.3), r*math.Sin(.3), 0))
	v := m.MulVec(mathlib.NewVector(-vc*math.Sin(.3), vc*math.Cos(.3), 0))
	return convert.CartPos{UTC: testUTC, S: s, V: v}
}

// leoLocation is leo as an up to date location without the sun and moon.
func leoLocation(t *testing.T) convert.Location {
	loc := convert.Location{SkipBodies: true}
	loc.SetECI(leo())
	if err := loc.Update(); err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestPositionTypeStrings(t *testing.T) {
	for p := PosIterative; p <= PosNone; p++ {
		back, err := ParsePositionType(p.String())
		if err != nil || back != p {
			t.Fatalf("%s parsed as %s (%v)", p, back, err)
		}
	}
	if _, err := ParsePositionType("warp"); errors.Cause(err) != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if s := PositionType(42).String(); s != "position(42)" {
		t.Fatalf("unexpected name %q", s)
	}
}

func TestAttitudeTypeStrings(t *testing.T) {
	for a := AttLVLH; a <= AttNone; a++ {
		back, err := ParseAttitudeType(a.String())
		if err != nil || back != a {
			t.Fatalf("%s parsed as %s (%v)", a, back, err)
		}
	}
	if _, err := ParseAttitudeType(""); errors.Cause(err) != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestPhysicsClone(t *testing.T) {
	p := NewPhysics(10)
	p.Wheels = []*Wheel{{Align: mathlib.Identity(), MOM: .01, Omega: 3}}
	p.Magnetorquer = []*Magnetorquer{{Align: mathlib.Identity(), Moment: 1}}
	p.Panels = []Panel{{Name: "zenith", Area: 1}}
	c := p.Clone()
	c.Wheels[0].Omega = 4
	c.Magnetorquer[0].Moment = 2
	c.Panels[0].Area = 2
	if p.Wheels[0].Omega != 3 || p.Magnetorquer[0].Moment != 1 || p.Panels[0].Area != 1 {
		t.Fatal("clone shares device state")
	}
}

func TestPointMass(t *testing.T) {
	p := PointMass(1)
	if p.Degree != 0 || p.ThirdBody || p.Atmosphere != nil || p.Cr != 0 {
		t.Fatalf("unexpected environment %+v", p)
	}
	if !floatsEqual(p.DTJ, 1/convert.SecondsPerDay) {
		t.Fatalf("dtj %g", p.DTJ)
	}
}

func floatsEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-15*math.Max(1, math.Abs(b))
}
