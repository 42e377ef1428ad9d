package physics

import (
	"math"
	"testing"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
)

func pointMassAccel(loc *convert.Location) error {
	s := loc.Pos.ECI.S
	r := s.Norm()
	loc.Pos.ECI.A = s.Scale(-convert.GMEarth / (r * r * r))
	return nil
}

func TestGaussJacksonSetup(t *testing.T) {
	var kernels KernelCache
	gj, err := NewGaussJackson(&kernels, 8, testUTC, 10)
	if err != nil {
		t.Fatal(err)
	}
	if gj.State() != GJKernelBuilt || gj.Order() != 8 || len(gj.Steps()) != 10 {
		t.Fatalf("state %s order %d slots %d", gj.State(), gj.Order(), len(gj.Steps()))
	}
	if math.Abs(gj.DT()-10) > 1e-6 {
		t.Fatalf("step adjusted to %f", gj.DT())
	}
	if _, err := gj.Propagate(testUTC + 1); errors.Cause(err) != ErrNoInitialState {
		t.Fatalf("expected ErrNoInitialState, got %v", err)
	}
	if _, err := NewGaussJackson(&kernels, 30, testUTC, 10); errors.Cause(err) != ErrKernelAlloc {
		t.Fatalf("expected ErrKernelAlloc, got %v", err)
	}
	if err := gj.InitTLE(leoLocation(t), nil); errors.Cause(err) != ErrInvalidTLE {
		t.Fatalf("expected ErrInvalidTLE, got %v", err)
	}
}

func TestGaussJacksonConstantAcceleration(t *testing.T) {
	a := mathlib.NewVector(-1, 0, .5)
	s0 := mathlib.NewVector(7e6, 0, 0)
	v0 := mathlib.NewVector(0, 7.5e3, 0)
	gj, err := NewGaussJackson(nil, 8, testUTC, 10)
	if err != nil {
		t.Fatal(err)
	}
	gj.Accel = func(loc *convert.Location) error {
		loc.Pos.ECI.A = a
		return nil
	}
	center := convert.Location{SkipBodies: true}
	center.SetECI(convert.CartPos{UTC: testUTC, S: s0, V: v0})
	if err := center.Update(); err != nil {
		t.Fatal(err)
	}
	if err := gj.InitECI(center); err != nil {
		t.Fatal(err)
	}
	if gj.State() != GJConverged || gj.Iterations > 2 {
		t.Fatalf("state %s after %d passes", gj.State(), gj.Iterations)
	}
	const steps = 100
	c := gj.Order() / 2
	n, err := gj.Propagate(testUTC + float64(steps+c)*convert.Days(gj.DT()))
	if err != nil {
		t.Fatal(err)
	}
	if n != steps {
		t.Fatalf("%d steps", n)
	}
	dt := float64(steps+c) * gj.DT()
	want := s0.Add(v0.Scale(dt)).Add(a.Scale(dt * dt / 2))
	last := gj.Last().Pos.ECI
	if d := last.S.Sub(want).Norm(); d > 1e-5 {
		t.Fatalf("position off by %g m", d)
	}
	if d := last.V.Sub(v0.Add(a.Scale(dt))).Norm(); d > 1e-7 {
		t.Fatalf("velocity off by %g m/s", d)
	}
}

func TestGaussJacksonKepler(t *testing.T) {
	if testing.Short() {
		t.Skip("100 orbits")
	}
	gj, err := NewGaussJackson(nil, 8, testUTC, 10)
	if err != nil {
		t.Fatal(err)
	}
	gj.Accel = pointMassAccel
	center := leoLocation(t)
	kep := convert.ECI2Kep(center.Pos.ECI)
	if err := gj.InitKep(center, kep); err != nil {
		t.Fatal(err)
	}
	c := gj.Order() / 2
	steps := int(100*kep.Period/gj.DT()) - c
	if _, err := gj.Propagate(testUTC + float64(steps+c)*convert.Days(gj.DT())); err != nil {
		t.Fatal(err)
	}
	var ref KeplerSolver
	want := ref.ECI(kep, float64(steps+c)*gj.DT())
	got := gj.Last().Pos.ECI
	if d := got.S.Sub(want.S).Norm(); d > 10 {
		t.Fatalf("after 100 orbits the position is off by %f m", d)
	}
	if d := got.V.Sub(want.V).Norm(); d > .01 {
		t.Fatalf("after 100 orbits the velocity is off by %f m/s", d)
	}
}

func TestGaussJacksonLoc(t *testing.T) {
	gj, err := NewGaussJackson(nil, 8, testUTC, 10)
	if err != nil {
		t.Fatal(err)
	}
	gj.Accel = pointMassAccel
	if err := gj.InitECI(leoLocation(t)); err != nil {
		t.Fatal(err)
	}
	dtj := convert.Days(gj.DT())
	if got := gj.Loc(testUTC).Pos.ECI; got.UTC != testUTC || got.S != leo().S {
		t.Fatalf("center slot moved: %+v", got)
	}
	if got := gj.Loc(testUTC + 1.2*dtj).Pos.ECI.UTC; math.Abs(got-(testUTC+dtj)) > 1e-12 {
		t.Fatalf("nearest slot at %f", got)
	}
	if got := gj.Loc(testUTC - 100*dtj).Pos.ECI.UTC; got != gj.Steps()[0].Loc.Pos.ECI.UTC {
		t.Fatalf("clamped slot at %f", got)
	}
	// Requests inside the history do not step.
	if n, err := gj.Propagate(testUTC + 2*dtj); err != nil || n != 0 {
		t.Fatalf("%d steps (%v)", n, err)
	}
	if n, err := gj.Propagate(testUTC + float64(gj.Order())*dtj); err != nil || n != gj.Order()/2 {
		t.Fatalf("%d steps (%v)", n, err)
	}
	if gj.State() != GJPropagating {
		t.Fatalf("state %s", gj.State())
	}
	gj.End()
	if gj.State() != GJUninitialized || gj.Steps() != nil {
		t.Fatal("end kept the history")
	}
}

func TestGaussJacksonAttitude(t *testing.T) {
	gj, err := NewGaussJackson(nil, 8, testUTC, 1)
	if err != nil {
		t.Fatal(err)
	}
	gj.IntegrateAttitude = true
	ω := mathlib.NewVector(0, 0, .01)
	gj.Accel = func(loc *convert.Location) error {
		loc.Att.ICRF.A = mathlib.Zero()
		return pointMassAccel(loc)
	}
	center := leoLocation(t)
	center.SetAttICRF(convert.QAtt{UTC: testUTC, S: mathlib.Identity(), V: ω})
	if err := center.Update(); err != nil {
		t.Fatal(err)
	}
	if err := gj.InitECI(center); err != nil {
		t.Fatal(err)
	}
	const steps = 200
	c := gj.Order() / 2
	if _, err := gj.Propagate(testUTC + float64(steps+c)*convert.Days(gj.DT())); err != nil {
		t.Fatal(err)
	}
	att := gj.Last().Att.ICRF
	if d := att.V.Sub(ω).Norm(); d > 1e-12 {
		t.Fatalf("torque free rate drifted by %g", d)
	}
	want := mathlib.Identity().Spin(ω.Scale(float64(steps+c) * gj.DT()))
	if !att.S.SameRotation(want, 1e-9) {
		t.Fatalf("attitude %v, want %v", att.S, want)
	}
}
