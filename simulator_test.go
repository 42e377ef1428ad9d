package cosmos

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/ChristopherRabotin/cosmos/physics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

const testUTC = 60107.01

func newTestSimulator(t *testing.T, dt float64) *Simulator {
	t.Helper()
	sim, err := NewSimulator(testUTC, dt)
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func groundNode(t *testing.T, sim *Simulator, name string, priority int) int {
	t.Helper()
	geod := convert.Geoid{Lat: .3, Lon: -2.7, H: 10}
	n, err := sim.AddNode(name, physics.PosGeo, physics.AttGeoc, priority, physics.InitialCondition{Geod: &geod})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func honolulu() *convert.Shape {
	return &convert.Shape{
		Lat:         21.3069 * d2r,
		Lon:         -157.8583 * d2r,
		Alt:         400e3,
		Inclination: 54 * d2r,
		Shift:       300,
	}
}

func TestNewSimulator(t *testing.T) {
	for _, tc := range [][2]float64{{0, 10}, {math.NaN(), 10}, {testUTC, 0}, {testUTC, math.Inf(1)}} {
		if _, err := NewSimulator(tc[0], tc[1]); err == nil {
			t.Fatalf("simulator accepted %v", tc)
		}
	}
	sim := newTestSimulator(t, 10)
	if sim.RunState() != Halted || sim.CurrentUTC() != testUTC {
		t.Fatalf("new simulator %s at %f", sim.RunState(), sim.CurrentUTC())
	}
	// The step is adjusted to what the epoch can represent.
	if !scalar.EqualWithinAbs(sim.DT(), 10, 1e-6) {
		t.Fatalf("dt %f", sim.DT())
	}
}

func TestAddNodePriority(t *testing.T) {
	sim := newTestSimulator(t, 10)
	groundNode(t, sim, "a", 5)
	groundNode(t, sim, "b", 1)
	groundNode(t, sim, "c", 3)
	if n := groundNode(t, sim, "d", 3); n != 4 {
		t.Fatalf("%d nodes", n)
	}
	want := []string{"b", "c", "d", "a"}
	for i, n := range sim.Nodes() {
		if n.Name != want[i] {
			t.Fatalf("node %d is %s, want %s", i, n.Name, want[i])
		}
	}
	// A duplicate is ignored.
	if n := groundNode(t, sim, "c", 0); n != 4 {
		t.Fatalf("%d nodes after duplicate", n)
	}
	if n, _ := sim.Node("c"); n.Priority != 3 {
		t.Fatalf("duplicate changed priority to %d", n.Priority)
	}
	if _, ok := sim.Node("x"); ok {
		t.Fatal("unknown node found")
	}
	if _, err := sim.AddNode("bad", physics.PosInertial, physics.AttLVLH, 0, physics.InitialCondition{}); errors.Cause(err) != physics.ErrNoInitialState {
		t.Fatalf("node without orbit: %v", err)
	}
	if len(sim.Nodes()) != 4 {
		t.Fatal("failed node was inserted")
	}
}

func TestLVLHNode(t *testing.T) {
	sim := newTestSimulator(t, 60)
	if _, err := sim.AddNode("lone", physics.PosLvlh, physics.AttLVLH, 1, physics.InitialCondition{}); errors.Cause(err) != physics.ErrNoInitialState {
		t.Fatalf("lvlh without origin: %v", err)
	}
	if _, err := sim.AddNode("mother", physics.PosInertial, physics.AttLVLH, 2, physics.InitialCondition{Shape: honolulu()}); err != nil {
		t.Fatal(err)
	}
	off := convert.CartPos{S: mathlib.NewVector(100, 0, 0)}
	if _, err := sim.AddNode("early", physics.PosLvlh, physics.AttLVLH, 1, physics.InitialCondition{LVLH: &off}); errors.Cause(err) != ErrPriority {
		t.Fatalf("lvlh before its origin: %v", err)
	}
	n, err := sim.Formation("mother", []Slot{{Name: "child", LVLH: off}})
	if err != nil || n != 2 {
		t.Fatalf("%d nodes: %v", n, err)
	}
	if _, err := sim.Formation("nobody", nil); errors.Cause(err) != ErrNoNode {
		t.Fatal(err)
	}
	mother, _ := sim.Node("mother")
	child, _ := sim.Node("child")
	if child.Priority != 3 || child.State.Origin != mother.State {
		t.Fatalf("child priority %d", child.Priority)
	}
	for i := 0; i < 5; i++ {
		if err := sim.Propagate(0); err != nil {
			t.Fatal(err)
		}
		m, c := mother.Loc.Pos.ECI, child.Loc.Pos.ECI
		if !scalar.EqualWithinAbs(c.UTC, m.UTC, 1e-9) || mother.UTC() != sim.CurrentUTC() {
			t.Fatalf("step %d: child at %f, mother at %f", i, c.UTC, m.UTC)
		}
		if d := c.S.Sub(m.S).Norm(); !scalar.EqualWithinAbs(d, 100, 1e-3) {
			t.Fatalf("step %d: separation %f", i, d)
		}
	}
}

func TestTargetsIdempotent(t *testing.T) {
	sim := newTestSimulator(t, 10)
	groundNode(t, sim, "a", 0)
	if n, err := sim.AddTarget("hilo", 19.7*d2r, -155.09*d2r, 0, 0, GroundStation); err != nil || n != 1 {
		t.Fatalf("%d targets: %v", n, err)
	}
	if n, _ := sim.AddTarget("hilo", 0, 0, 0, 0, PointTarget); n != 1 {
		t.Fatalf("%d targets after duplicate", n)
	}
	if sim.Targets()[0].Type != GroundStation {
		t.Fatal("duplicate replaced the target")
	}
	if _, err := sim.AddTarget("pole", 2, 0, 0, 0, PointTarget); err == nil {
		t.Fatal("invalid latitude accepted")
	}
	groundNode(t, sim, "b", 0)
	b, _ := sim.Node("b")
	if len(b.Targets()) != 0 {
		t.Fatal("late node got targets")
	}
	if n, err := sim.SyncTargets("b"); err != nil || n != 1 {
		t.Fatalf("%d targets: %v", n, err)
	}
	if n, _ := sim.SyncTargets("b"); n != 1 {
		t.Fatalf("%d targets after a second sync", n)
	}
	if _, err := sim.SyncTargets("x"); errors.Cause(err) != ErrNoNode {
		t.Fatal(err)
	}
	d := NewDetector("cam", 1, 1e-5, 4e-7, 9e-7)
	if sim.AddDetector(d) != 1 || sim.AddDetector(NewDetector("cam", 2, 0, 0, 0)) != 1 {
		t.Fatal("detector count")
	}
	if sim.Detectors()[0] != d {
		t.Fatal("duplicate replaced the detector")
	}
}

func TestPassOverHilo(t *testing.T) {
	sim := newTestSimulator(t, 60)
	sim.AddDetector(NewDetector("cam", 120*d2r, 1e-5, 4e-7, 9e-7))
	if _, err := sim.AddNode("mother", physics.PosInertial, physics.AttLVLH, 0, physics.InitialCondition{Shape: honolulu()}, WithDetector("cam")); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.AddTarget("hilo", 19.7*d2r, -155.09*d2r, 0, 0, GroundStation); err != nil {
		t.Fatal(err)
	}
	if _, ok := sim.Metric("mother", "hilo"); ok {
		t.Fatal("metric before Target")
	}
	ranges := make([]float64, 0, 101)
	metrics := make([]Metric, 0, 101)
	sim.Target()
	for i := 0; i <= 100; i++ {
		if i > 0 {
			if err := sim.Propagate(0); err != nil {
				t.Fatal(err)
			}
			sim.Target()
		}
		m, ok := sim.Metric("mother", "hilo")
		if !ok {
			t.Fatalf("no metric at step %d", i)
		}
		ranges = append(ranges, m.Range)
		metrics = append(metrics, m)
	}
	best := floats.MinIdx(ranges)
	if best != 5 {
		t.Fatalf("closest approach at step %d, ranges %v", best, ranges[:10])
	}
	for i := 1; i <= 5; i++ {
		if ranges[i] >= ranges[i-1] {
			t.Fatalf("range not decreasing at step %d", i)
		}
	}
	for i := 6; i <= 30; i++ {
		if ranges[i] <= ranges[i-1] {
			t.Fatalf("range not increasing at step %d", i)
		}
	}
	m := metrics[best]
	if !m.Visible || m.Elevation <= 0 || m.Range < 400e3 || m.Range > 1000e3 {
		t.Fatalf("closest approach %+v", m)
	}
	if m.Resolution <= 0 || m.Coverage != 1 {
		t.Fatalf("no coverage at closest approach: %+v", m)
	}
	if metrics[20].Visible {
		t.Fatal("visible fifteen minutes after the pass")
	}
	if metrics[30].MaxElevation != m.Elevation {
		t.Fatalf("max elevation %f, want %f", metrics[30].MaxElevation, m.Elevation)
	}
	// Approaching then receding.
	if metrics[3].RangeRate >= 0 || metrics[8].RangeRate <= 0 {
		t.Fatalf("range rates %f %f", metrics[3].RangeRate, metrics[8].RangeRate)
	}
}

func TestResetAndControls(t *testing.T) {
	sim := newTestSimulator(t, 60)
	if _, err := sim.AddNode("mother", physics.PosInertial, physics.AttLVLH, 0, physics.InitialCondition{Shape: honolulu()}, WithMaxThrust(.5)); err != nil {
		t.Fatal(err)
	}
	sim.Run()
	if sim.RunState() != Running {
		t.Fatal(sim.RunState())
	}
	mother, _ := sim.Node("mother")
	start := mother.Loc.Pos.ECI.S
	before := testutil.ToFloat64(simulatorSteps)
	for i := 0; i < 3; i++ {
		if err := sim.Propagate(0); err != nil {
			t.Fatal(err)
		}
	}
	if got := testutil.ToFloat64(simulatorSteps) - before; got != 3 {
		t.Fatalf("%f steps counted", got)
	}
	if mother.Ticks() != 3 {
		t.Fatalf("%d ticks", mother.Ticks())
	}
	if err := sim.Thrust("mother", mathlib.NewVector(3, 0, 4)); err != nil {
		t.Fatal(err)
	}
	if f := mother.Phys.Thrust; !scalar.EqualWithinAbs(f.Norm(), .5, 1e-12) || !scalar.EqualWithinAbs(f.Z, .4, 1e-12) {
		t.Fatalf("thrust %v", f)
	}
	if err := sim.Torque("mother", mathlib.NewVector(0, 0, 1e-3)); err != nil || mother.Phys.Torque.Z != 1e-3 {
		t.Fatalf("torque %v: %v", mother.Phys.Torque, err)
	}
	if err := sim.Thrust("x", mathlib.Zero()); errors.Cause(err) != ErrNoNode {
		t.Fatal(err)
	}
	if err := sim.Reset(); err != nil {
		t.Fatal(err)
	}
	if sim.RunState() != Paused || sim.CurrentUTC() != testUTC || mother.UTC() != testUTC {
		t.Fatalf("reset to %f, node at %f", sim.CurrentUTC(), mother.UTC())
	}
	if !mother.Loc.Pos.ECI.S.Equals(start, 1e-6) {
		t.Fatalf("reset position %v, want %v", mother.Loc.Pos.ECI.S, start)
	}
	// Propagating to an absolute epoch.
	if err := sim.Propagate(testUTC + 300/convert.SecondsPerDay); err != nil {
		t.Fatal(err)
	}
	if mother.Ticks() != 5 {
		t.Fatalf("%d ticks to reach five steps", mother.Ticks())
	}
	snap := sim.Snapshot()
	if len(snap.Nodes) != 1 || snap.Nodes[0].ECI.UTC != mother.UTC() || snap.UTC != sim.CurrentUTC() {
		t.Fatalf("snapshot %+v", snap)
	}
	sim.End()
	if sim.RunState() != Halted || mother.Initialized() {
		t.Fatal("end left the nodes running")
	}
	if err := sim.Propagate(0); errors.Cause(err) != physics.ErrNoInitialState {
		t.Fatalf("propagating ended nodes: %v", err)
	}
}

func TestAdvanceSurvivesNodeFailure(t *testing.T) {
	sim := newTestSimulator(t, 60)
	groundNode(t, sim, "gs", 0)
	groundNode(t, sim, "lost", 1)
	lost, _ := sim.Node("lost")
	lost.End()

	dir := t.TempDir()
	rec := NewRecorder(ExportConfig{Filename: "adv", Dir: dir, AsCSV: true}, nil)
	before := testutil.ToFloat64(simulatorFailedSteps)
	if failed := sim.Advance(3, rec, true); failed != 3 {
		t.Fatalf("%d failed steps", failed)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(simulatorFailedSteps) - before; got != 3 {
		t.Fatalf("%f failed steps counted", got)
	}
	gs, _ := sim.Node("gs")
	if gs.Ticks() != 3 || !scalar.EqualWithinAbs(gs.UTC(), sim.CurrentUTC(), 1e-9) {
		t.Fatalf("healthy node at %d ticks, %f", gs.Ticks(), gs.UTC())
	}
	if rows := readCSV(t, filepath.Join(dir, "states-adv.csv")); len(rows) != 7 {
		t.Fatalf("%d rows", len(rows))
	}
	if failed := sim.Advance(0, nil, false); failed != 0 {
		t.Fatal("no steps, no failures")
	}
}
