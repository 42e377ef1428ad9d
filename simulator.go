// Package cosmos runs several spacecraft and ground nodes through time,
// and measures their geometry to ground targets.
package cosmos

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/dem"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/ChristopherRabotin/cosmos/physics"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

const (
	r2d = 180 / math.Pi
	d2r = 1 / r2d
)

var (
	// ErrNoSatellite is returned when a scenario has no node to propagate.
	ErrNoSatellite = errors.New("no satellite to simulate")
	// ErrNoNode is returned when a node name is unknown.
	ErrNoNode = errors.New("no such node")
	// ErrPriority is returned when an LVLH node would run before its origin.
	ErrPriority = errors.New("node would propagate before its origin")
	// ErrParse is returned for malformed configuration records.
	ErrParse = errors.New("cannot parse record")
)

// RunState is advisory: Propagate does not check it.
type RunState uint8

const (
	// Halted is the state of a new simulator.
	Halted RunState = iota
	// Paused is set by Pause and Reset.
	Paused
	// Running is set by Run.
	Running
)

func (r RunState) String() string {
	switch r {
	case Halted:
		return "halted"
	case Paused:
		return "paused"
	case Running:
		return "running"
	}
	return fmt.Sprintf("runstate(%d)", uint8(r))
}

// NewLogger returns a logfmt logger on stdout decorated with the simulator name.
func NewLogger(name string) kitlog.Logger {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	return kitlog.With(klog, "simulator", name)
}

// Node is a propagated state with its place in the simulation.
type Node struct {
	*physics.State
	// Priority orders the propagation: lower values run first.
	Priority int
	// Kind is the structural type of the node.
	Kind string
	// Detector names the simulator detector used for coverage.
	Detector string
	// Pointing names the target the target attitude follows. Empty means
	// the first target of the node.
	Pointing string
	// MaxThrust bounds the thrust commands in Newtons, when positive.
	MaxThrust float64

	origin  string
	targets []*coverage
}

type coverage struct {
	target *Target
	metric Metric
	seen   bool
}

// Targets returns the names of the targets tracked by the node.
func (n *Node) Targets() []string {
	names := make([]string, len(n.targets))
	for i, c := range n.targets {
		names[i] = c.target.Name
	}
	return names
}

func (n *Node) hasTarget(name string) bool {
	for _, c := range n.targets {
		if c.target.Name == name {
			return true
		}
	}
	return false
}

// NodeOption configures a node before its initialization.
type NodeOption func(*Node)

// WithPhysics sets the physical parameters of the node.
func WithPhysics(p *physics.Physics) NodeOption {
	return func(n *Node) { n.Phys = p }
}

// WithOrigin attaches an LVLH node to the named node instead of the first
// node of the simulator.
func WithOrigin(name string) NodeOption {
	return func(n *Node) { n.origin = name }
}

// WithDetector names the detector of the node.
func WithDetector(name string) NodeOption {
	return func(n *Node) { n.Detector = name }
}

// WithPointing names the target followed by the target attitude.
func WithPointing(target string) NodeOption {
	return func(n *Node) { n.Pointing = target }
}

// WithKind sets the structural type of the node.
func WithKind(kind string) NodeOption {
	return func(n *Node) { n.Kind = kind }
}

// WithMaxThrust bounds the thrust commands of the node.
func WithMaxThrust(f float64) NodeOption {
	return func(n *Node) { n.MaxThrust = f }
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger replaces the default no-op logger.
func WithLogger(l kitlog.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGravity sets the coefficient cache shared by the nodes.
func WithGravity(c *physics.CoefficientCache) Option {
	return func(s *Simulator) { s.gravity = c }
}

// WithKernels sets the Gauss-Jackson kernel cache shared by the nodes.
func WithKernels(k *physics.KernelCache) Option {
	return func(s *Simulator) { s.kernels = k }
}

// WithDEM gives the topo attitude of every node the terrain of body.
func WithDEM(c *dem.Cache, body string) Option {
	return func(s *Simulator) {
		if c != nil {
			s.surface = c.Surface(body)
		}
	}
}

// WithOrder sets the Gauss-Jackson order of the nodes.
func WithOrder(order int) Option {
	return func(s *Simulator) { s.order = order }
}

// Simulator advances its nodes in priority order on a common clock.
type Simulator struct {
	nodes       []*Node
	targets     map[string]*Target
	targetOrder []string
	detectors   map[string]*Detector
	detOrder    []string

	initialUTC, currentUTC float64
	dt, dtj                float64
	order                  int
	runState               RunState

	gravity *physics.CoefficientCache
	kernels *physics.KernelCache
	surface physics.Surface
	logger  kitlog.Logger
}

// NewSimulator returns a halted simulator starting at utc (MJD) with a
// step of dt seconds. The step is adjusted as the nodes adjust theirs so
// that both clocks stay aligned.
func NewSimulator(utc, dt float64, opts ...Option) (*Simulator, error) {
	if utc <= 0 || math.IsNaN(utc) || math.IsInf(utc, 0) {
		return nil, errors.Wrapf(convert.ErrNoTime, "simulator start %f", utc)
	}
	if dt == 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, errors.Errorf("invalid simulator step %f", dt)
	}
	s := &Simulator{
		targets:    make(map[string]*Target),
		detectors:  make(map[string]*Detector),
		initialUTC: utc,
		currentUTC: utc,
		order:      physics.DefaultOrder,
		logger:     kitlog.NewNopLogger(),
	}
	s.dtj = (utc + dt/convert.SecondsPerDay) - utc
	s.dt = s.dtj * convert.SecondsPerDay
	for _, opt := range opts {
		opt(s)
	}
	if s.kernels == nil {
		s.kernels = physics.DefaultKernels
	}
	s.logger.Log("level", "info", "subsys", "astro", "utc", utc, "dt", s.dt)
	return s, nil
}

// CurrentUTC returns the simulation clock.
func (s *Simulator) CurrentUTC() float64 { return s.currentUTC }

// InitialUTC returns the start of the simulation.
func (s *Simulator) InitialUTC() float64 { return s.initialUTC }

// DT returns the adjusted step in seconds.
func (s *Simulator) DT() float64 { return s.dt }

// RunState returns the advisory run state.
func (s *Simulator) RunState() RunState { return s.runState }

// Run marks the simulation as running.
func (s *Simulator) Run() { s.runState = Running }

// Pause marks the simulation as paused.
func (s *Simulator) Pause() { s.runState = Paused }

// Nodes returns the nodes in propagation order.
func (s *Simulator) Nodes() []*Node {
	return append([]*Node(nil), s.nodes...)
}

// Node returns the named node.
func (s *Simulator) Node(name string) (*Node, bool) {
	for _, n := range s.nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// AddNode initializes a node at the current epoch and inserts it after the
// nodes of lower or equal priority. It returns the number of nodes. A name
// already in use is left alone and the count returned without error. LVLH
// nodes are relative to the first node unless WithOrigin says otherwise.
func (s *Simulator) AddNode(name string, ptype physics.PositionType, atype physics.AttitudeType, priority int, ic physics.InitialCondition, opts ...NodeOption) (int, error) {
	if _, ok := s.Node(name); ok {
		return len(s.nodes), nil
	}
	state, err := physics.NewState(name, ptype, atype, nil)
	if err != nil {
		return len(s.nodes), errors.Wrapf(err, "node %s", name)
	}
	n := &Node{State: state, Priority: priority}
	for _, opt := range opts {
		opt(n)
	}
	origin := n.origin
	if ptype == physics.PosLvlh {
		var o *Node
		if origin == "" && len(s.nodes) > 0 {
			o = s.nodes[0]
		} else if origin != "" {
			o, _ = s.Node(origin)
		}
		if o == nil {
			return len(s.nodes), errors.Wrapf(physics.ErrNoInitialState, "node %s: no origin %q", name, origin)
		}
		if o.Priority > priority {
			return len(s.nodes), errors.Wrapf(ErrPriority, "node %s priority %d, origin %s priority %d", name, priority, o.Name, o.Priority)
		}
		state.Origin = o.State
	}
	state.Order = s.order
	state.Gravity = s.gravity
	state.Kernels = s.kernels
	state.Surface = s.surface
	state.Logger = kitlog.With(s.logger, "node", name)
	if err := state.Init(s.dt, s.currentUTC, ic); err != nil {
		s.logger.Log("level", "warning", "subsys", "astro", "node", name, "err", err)
		return len(s.nodes), err
	}
	at := sort.Search(len(s.nodes), func(i int) bool { return s.nodes[i].Priority > priority })
	s.nodes = append(s.nodes, nil)
	copy(s.nodes[at+1:], s.nodes[at:])
	s.nodes[at] = n
	return len(s.nodes), nil
}

// Slot is the place of one node of a formation in the LVLH frame of its
// origin.
type Slot struct {
	Name     string
	LVLH     convert.CartPos
	Attitude physics.AttitudeType
	Options  []NodeOption
}

// Formation adds LVLH nodes around origin, one priority after it. It stops
// on the first node that cannot be added.
func (s *Simulator) Formation(origin string, slots []Slot) (int, error) {
	o, ok := s.Node(origin)
	if !ok {
		return len(s.nodes), errors.Wrap(ErrNoNode, origin)
	}
	for _, slot := range slots {
		lvlh := slot.LVLH
		att := slot.Attitude
		if att == 0 {
			att = physics.AttLVLH
		}
		opts := append([]NodeOption{WithOrigin(origin)}, slot.Options...)
		if _, err := s.AddNode(slot.Name, physics.PosLvlh, att, o.Priority+1, physics.InitialCondition{LVLH: &lvlh}, opts...); err != nil {
			return len(s.nodes), err
		}
	}
	return len(s.nodes), nil
}

// AddTarget adds a target (radians, meters, square meters) to the
// simulator and to every node present. A name already in use is left
// alone. It returns the number of targets.
func (s *Simulator) AddTarget(name string, lat, lon, alt, area float64, ttype TargetType) (int, error) {
	if _, ok := s.targets[name]; ok {
		return len(s.targets), nil
	}
	t, err := NewTarget(name, lat, lon, alt, area, ttype, s.currentUTC)
	if err != nil {
		return len(s.targets), err
	}
	s.targets[name] = t
	s.targetOrder = append(s.targetOrder, name)
	for _, n := range s.nodes {
		n.targets = append(n.targets, &coverage{target: t})
	}
	return len(s.targets), nil
}

// Targets returns the targets in the order they were added.
func (s *Simulator) Targets() []*Target {
	ts := make([]*Target, len(s.targetOrder))
	for i, name := range s.targetOrder {
		ts[i] = s.targets[name]
	}
	return ts
}

// SyncTargets gives the named node every target it does not track yet and
// returns how many it tracks.
func (s *Simulator) SyncTargets(name string) (int, error) {
	n, ok := s.Node(name)
	if !ok {
		return 0, errors.Wrap(ErrNoNode, name)
	}
	for _, tname := range s.targetOrder {
		if !n.hasTarget(tname) {
			n.targets = append(n.targets, &coverage{target: s.targets[tname]})
		}
	}
	return len(n.targets), nil
}

// AddDetector registers d unless a detector of that name exists, and returns
// the number of detectors.
func (s *Simulator) AddDetector(d *Detector) int {
	if _, ok := s.detectors[d.Name]; !ok {
		s.detectors[d.Name] = d
		s.detOrder = append(s.detOrder, d.Name)
	}
	return len(s.detectors)
}

// Detectors returns the detectors in the order they were added.
func (s *Simulator) Detectors() []*Detector {
	ds := make([]*Detector, len(s.detOrder))
	for i, name := range s.detOrder {
		ds[i] = s.detectors[name]
	}
	return ds
}

// Propagate moves the clock to utc, or one step when utc is zero, and
// steps every node in priority order. All nodes are stepped even when one
// fails; the first error is returned.
func (s *Simulator) Propagate(utc float64) error {
	if utc == 0 {
		s.currentUTC += s.dtj
	} else {
		s.currentUTC = utc
	}
	var first error
	for _, n := range s.nodes {
		if n.AttType == physics.AttTarget {
			n.State.Target = s.pointing(n)
		}
		if _, err := n.Increment(s.currentUTC); err != nil {
			s.logger.Log("level", "critical", "subsys", "prop", "node", n.Name, "err", err)
			if first == nil {
				first = err
			}
		}
	}
	simulatorSteps.Inc()
	return first
}

func (s *Simulator) pointing(n *Node) *convert.Location {
	if n.Pointing != "" {
		if t, ok := s.targets[n.Pointing]; ok {
			return &t.Loc
		}
		return nil
	}
	if len(n.targets) > 0 {
		return &n.targets[0].target.Loc
	}
	return nil
}

// Target measures every node against each of its targets at the current
// epoch and returns the number of visible pairs.
func (s *Simulator) Target() int {
	visible := 0
	for _, t := range s.targetOrder {
		if err := s.targets[t].Update(s.currentUTC); err != nil {
			s.logger.Log("level", "warning", "subsys", "astro", "target", t, "err", err)
		}
	}
	for _, n := range s.nodes {
		det := s.detectors[n.Detector]
		for _, c := range n.targets {
			var prev *Metric
			if c.seen {
				prev = &c.metric
			}
			c.metric = Measure(n.Name, &n.Loc, c.target, det, prev)
			c.seen = true
			if c.metric.Visible {
				visible++
			}
		}
	}
	return visible
}

// Metric returns the last measure between a node and a target.
func (s *Simulator) Metric(node, target string) (Metric, bool) {
	n, ok := s.Node(node)
	if !ok {
		return Metric{}, false
	}
	for _, c := range n.targets {
		if c.target.Name == target && c.seen {
			return c.metric, true
		}
	}
	return Metric{}, false
}

// Thrust commands the ICRF thrust of a node, bounded by its MaxThrust.
func (s *Simulator) Thrust(name string, f mathlib.Vector) error {
	n, ok := s.Node(name)
	if !ok {
		return errors.Wrap(ErrNoNode, name)
	}
	n.SetThrust(n.boundThrust(f))
	return nil
}

// ThrustLVLH commands the thrust of a node in its LVLH frame.
func (s *Simulator) ThrustLVLH(name string, f mathlib.Vector) error {
	n, ok := s.Node(name)
	if !ok {
		return errors.Wrap(ErrNoNode, name)
	}
	n.SetThrustLVLH(n.boundThrust(f))
	return nil
}

func (n *Node) boundThrust(f mathlib.Vector) mathlib.Vector {
	if norm := f.Norm(); n.MaxThrust > 0 && norm > n.MaxThrust {
		return f.Scale(n.MaxThrust / norm)
	}
	return f
}

// Torque commands the body torque of a node.
func (s *Simulator) Torque(name string, τ mathlib.Vector) error {
	n, ok := s.Node(name)
	if !ok {
		return errors.Wrap(ErrNoNode, name)
	}
	n.SetTorque(τ)
	return nil
}

// Advance runs steps ticks of Propagate and Target and hands every tick to
// rec, which may be nil. A failing node does not stop the run: Propagate
// has already stepped the others. It returns the number of ticks in which
// a node failed.
func (s *Simulator) Advance(steps int, rec *Recorder, verbose bool) int {
	failed := 0
	for i := 0; i < steps; i++ {
		if err := s.Propagate(0); err != nil {
			failed++
			simulatorFailedSteps.Inc()
		}
		visible := s.Target()
		rec.Record(s)
		if verbose {
			s.logger.Log("level", "info", "subsys", "prop", "step", i, "utc", s.currentUTC, "visible", visible)
		}
	}
	return failed
}

// Reset pauses the simulation and brings every node back to its initial
// condition at the initial epoch.
func (s *Simulator) Reset() error {
	s.runState = Paused
	s.currentUTC = s.initialUTC
	var first error
	for _, n := range s.nodes {
		if err := n.Reset(s.currentUTC); err != nil && first == nil {
			first = err
		}
		for _, c := range n.targets {
			c.metric, c.seen = Metric{}, false
		}
	}
	return first
}

// End releases the propagators of every node.
func (s *Simulator) End() {
	for _, n := range s.nodes {
		n.End()
	}
	s.runState = Halted
}

// NodeState is the exported state of one node.
type NodeState struct {
	Name     string
	Priority int
	ECI      convert.CartPos
	Geod     convert.GeoidPos
	Att      convert.QAtt
	Mass     float64
	Thrust   mathlib.Vector
}

// Snapshot is the state of a simulation at one epoch.
type Snapshot struct {
	UTC      float64
	Nodes    []NodeState
	Coverage []Metric
}

// Snapshot returns the nodes and the last measures at the current epoch.
func (s *Simulator) Snapshot() Snapshot {
	snap := Snapshot{UTC: s.currentUTC, Nodes: make([]NodeState, 0, len(s.nodes))}
	for _, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, NodeState{
			Name:     n.Name,
			Priority: n.Priority,
			ECI:      n.Loc.Pos.ECI,
			Geod:     n.Loc.Pos.Geod,
			Att:      n.Loc.Att.ICRF,
			Mass:     n.Phys.Mass,
			Thrust:   n.Phys.Thrust,
		})
		for _, c := range n.targets {
			if c.seen {
				snap.Coverage = append(snap.Coverage, c.metric)
			}
		}
	}
	return snap
}
