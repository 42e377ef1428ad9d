package physics

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// DefaultOrder is the Gauss-Jackson order of new states.
const DefaultOrder = 8

// InitialCondition describes where a node starts. The first non-nil field in
// the order TLE, ECI, Kep, Shape, Geod is used; LVLH is the offset of an LVLH
// node from its origin. Epochs of zero mean the initialization epoch.
type InitialCondition struct {
	TLE   *convert.TLE
	ECI   *convert.CartPos
	// Kep must carry its mean anomaly.
	Kep   *convert.KepStruc
	Shape *convert.Shape
	Geod  *convert.Geoid
	LVLH  *convert.CartPos
	// Att is the initial ICRF attitude. Without it the body starts aligned
	// with its LVLH frame, or with the Earth-fixed frame for geo nodes.
	Att *convert.QAtt
}

func (ic InitialCondition) orbit() bool {
	return ic.TLE != nil || ic.ECI != nil || ic.Kep != nil || ic.Shape != nil
}

// State is one propagated node: its location, its physics and the
// propagator and attitude strategy selected by its types.
type State struct {
	Name    string
	Loc     convert.Location
	Phys    *Physics
	PosType PositionType
	AttType AttitudeType
	// DT is the step in seconds, adjusted at Init so that every tick epoch
	// is exact.
	DT    float64
	Order int

	// Origin is the node an LVLH node is attached to. It must be stepped
	// before this one.
	Origin *State
	// Target is the location the target attitude points at.
	Target  *convert.Location
	Surface Surface

	Gravity *CoefficientCache
	Kernels *KernelCache
	Logger  kitlog.Logger

	initial     InitialCondition
	pos         PositionPropagator
	att         AttitudeStrategy
	coef        *Coefficients
	kepler      KeplerSolver
	dtj         float64
	utc         float64
	ticks       int
	initialized bool
}

// NewState returns an uninitialized node of the given types. A nil phys
// gets NewPhysics.
func NewState(name string, ptype PositionType, atype AttitudeType, phys *Physics) (*State, error) {
	pos, err := newPositionPropagator(ptype)
	if err != nil {
		return nil, err
	}
	att, err := newAttitudeStrategy(atype)
	if err != nil {
		return nil, err
	}
	if phys == nil {
		phys = NewPhysics(0)
	}
	return &State{
		Name:    name,
		Phys:    phys,
		PosType: ptype,
		AttType: atype,
		Order:   DefaultOrder,
		Logger:  kitlog.NewNopLogger(),
		pos:     pos,
		att:     att,
	}, nil
}

// UTC returns the epoch of the last tick.
func (s *State) UTC() float64 { return s.utc }

// Ticks returns the number of steps since Init.
func (s *State) Ticks() int { return s.ticks }

// Initialized reports whether Init succeeded and End was not called since.
func (s *State) Initialized() bool { return s.initialized }

// Initial returns the initial condition given to Init.
func (s *State) Initial() InitialCondition { return s.initial }

func (s *State) ownsAttitude() bool {
	o, ok := s.pos.(attitudeOwner)
	return ok && o.ownsAttitude()
}

// orbital reports whether the node is in free flight and subject to forces.
func (s *State) orbital() bool {
	switch s.PosType {
	case PosGeo, PosNone:
		return false
	}
	return true
}

// accelerate evaluates the forces and torques on an up to date location.
func (s *State) accelerate(loc *convert.Location) error {
	if !s.orbital() {
		return nil
	}
	PosAccel(loc, s.Phys, s.coef)
	return AttAccel(loc, s.Phys)
}

func (s *State) shapeAt(utc float64) convert.Shape {
	sh := *s.initial.Shape
	if sh.UTC == 0 {
		sh.UTC = utc
	}
	// Keep the absolute overflight epoch.
	sh.Shift += convert.Seconds(sh.UTC - utc)
	sh.UTC = utc
	return sh
}

// check returns ErrNoInitialState when ic cannot start the position type.
func (s *State) check(ic InitialCondition) error {
	switch s.PosType {
	case PosIterative, PosInertial, PosGaussJackson:
		if !ic.orbit() {
			return errors.Wrapf(ErrNoInitialState, "%s propagation needs an orbit", s.PosType)
		}
	case PosTle:
		if ic.TLE == nil {
			return errors.Wrap(ErrNoInitialState, "tle propagation needs two-line elements")
		}
	case PosLvlh:
		if s.Origin == nil {
			return errors.Wrap(ErrNoInitialState, "lvlh propagation needs an origin")
		}
		if !s.Origin.initialized {
			return errors.Wrapf(ErrNoInitialState, "origin %s not initialized", s.Origin.Name)
		}
	case PosGeo:
		if !ic.orbit() && ic.Geod == nil {
			return errors.Wrap(ErrNoInitialState, "geo propagation needs a position")
		}
	}
	return nil
}

// resolve returns the initial location at utc.
func (s *State) resolve(utc float64, ic InitialCondition) (convert.Location, error) {
	loc := convert.Location{Orientation: s.Loc.Orientation, SkipBodies: s.Loc.SkipBodies}
	switch {
	case s.PosType == PosLvlh:
		origin := s.Origin.Loc.Pos.ECI
		loc.Origin = &origin
		var rel convert.CartPos
		if ic.LVLH != nil {
			rel = *ic.LVLH
		}
		rel.UTC = utc
		loc.SetLVLH(rel)
	case ic.TLE != nil:
		eci, err := ic.TLE.ECI(utc)
		if err != nil {
			return loc, err
		}
		loc.SetECI(eci)
	case ic.ECI != nil:
		eci := *ic.ECI
		if eci.UTC != 0 && eci.UTC != utc {
			eci = s.kepler.ECI(convert.ECI2Kep(eci), convert.Seconds(utc-eci.UTC))
		}
		eci.UTC = utc
		loc.SetECI(eci)
	case ic.Kep != nil:
		kep := *ic.Kep
		if kep.UTC == 0 {
			kep.UTC = utc
		}
		eci := s.kepler.ECI(kep, convert.Seconds(utc-kep.UTC))
		eci.UTC = utc
		loc.SetECI(eci)
	case ic.Shape != nil:
		eci, err := s.shapeAt(utc).ECI(loc.Orientation)
		if err != nil {
			return loc, err
		}
		loc.SetECI(eci)
	case ic.Geod != nil:
		loc.SetGeod(convert.GeoidPos{UTC: utc, S: *ic.Geod})
	default:
		loc.UTC = utc
		return loc, nil
	}
	if err := loc.Update(); err != nil {
		return loc, err
	}

	switch {
	case ic.Att != nil:
		a := *ic.Att
		a.UTC = utc
		loc.SetAttICRF(a)
	case s.PosType == PosGeo || !s.orbital():
		loc.SetAttGeoc(convert.QAtt{UTC: utc, S: mathlib.Identity()})
	default:
		loc.SetAttLVLH(convert.QAtt{UTC: utc, S: mathlib.Identity()})
	}
	return loc, loc.Update()
}

// Init places the node at utc with step dt seconds, or Phys.DT when dt is
// zero. A state may be initialized again after End.
func (s *State) Init(dt, utc float64, ic InitialCondition) error {
	if dt == 0 {
		dt = s.Phys.DT
	}
	if dt == 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return errors.Errorf("node %s: invalid step %f", s.Name, dt)
	}
	if err := s.check(ic); err != nil {
		return errors.Wrapf(err, "node %s", s.Name)
	}
	s.initial = ic
	s.dtj = (utc + dt/convert.SecondsPerDay) - utc
	s.DT = s.dtj * convert.SecondsPerDay
	s.Phys.DT, s.Phys.DTJ = s.DT, s.dtj

	s.coef = nil
	if s.orbital() && s.Phys.Degree >= 2 {
		cache := s.Gravity
		if cache == nil {
			cache = DefaultCoefficients
		}
		coef, err := cache.Load(s.Phys.Gravity)
		if err != nil {
			return errors.Wrapf(err, "node %s", s.Name)
		}
		s.coef = coef
	}

	loc, err := s.resolve(utc, ic)
	if err != nil {
		return errors.Wrapf(err, "node %s", s.Name)
	}
	s.Loc = loc
	if !s.ownsAttitude() && s.hasPosition() {
		if err := s.att.Apply(s, &s.Loc, 0); err != nil {
			return errors.Wrapf(err, "node %s attitude", s.Name)
		}
	}
	if err := s.pos.Init(s, utc); err != nil {
		return errors.Wrapf(err, "node %s", s.Name)
	}
	if !s.ownsAttitude() && s.hasPosition() {
		if err := s.accelerate(&s.Loc); err != nil {
			return errors.Wrapf(err, "node %s", s.Name)
		}
	}
	s.utc = utc
	s.ticks = 0
	s.initialized = true
	s.Logger.Log("level", "info", "subsys", "prop", "node", s.Name, "position", s.PosType, "attitude", s.AttType, "utc", utc, "dt", s.DT)
	return nil
}

func (s *State) hasPosition() bool {
	return !s.Loc.Pos.ECI.S.IsZero()
}

// Increment steps the node until its epoch is within half a step of utc and
// returns the number of steps taken. Requests behind the node do nothing.
func (s *State) Increment(utc float64) (int, error) {
	if !s.initialized {
		return 0, errors.Wrapf(ErrNoInitialState, "node %s", s.Name)
	}
	dir := math.Copysign(1, s.dtj)
	n := 0
	for (utc-s.utc)*dir > math.Abs(s.dtj)/2 {
		if err := s.tick(s.utc + s.dtj); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// tick advances the devices, then the position, then the attitude, then
// evaluates the forces at the new epoch.
func (s *State) tick(next float64) error {
	dt := convert.Seconds(next - s.utc)
	for _, w := range s.Phys.Wheels {
		w.Update(dt)
	}
	for _, m := range s.Phys.Magnetorquer {
		m.Update(dt)
	}
	if err := s.pos.Propagate(s, next); err != nil {
		return errors.Wrapf(err, "node %s", s.Name)
	}
	if !s.ownsAttitude() && s.hasPosition() {
		if err := s.att.Apply(s, &s.Loc, dt); err != nil {
			return errors.Wrapf(err, "node %s attitude", s.Name)
		}
		if err := s.accelerate(&s.Loc); err != nil {
			return errors.Wrapf(err, "node %s", s.Name)
		}
	}
	s.utc = next
	s.ticks++
	propagationSteps.WithLabelValues(s.PosType.String()).Inc()
	return nil
}

// Reset initializes the node again at utc from its initial condition.
func (s *State) Reset(utc float64) error {
	s.pos.End()
	return s.Init(s.DT, utc, s.initial)
}

// End releases the propagator.
func (s *State) End() {
	s.pos.End()
	s.initialized = false
}

// SetThrust commands a thrust in Newtons, in the ICRF.
func (s *State) SetThrust(f mathlib.Vector) { s.Phys.Thrust = f }

// SetThrustLVLH commands a thrust in Newtons, in the node's LVLH frame.
func (s *State) SetThrustLVLH(f mathlib.Vector) {
	s.Phys.Thrust = s.Loc.Pos.Extra.P2L.Transpose().MulVec(f)
}

// SetTorque commands a torque in N·m, in the body frame.
func (s *State) SetTorque(τ mathlib.Vector) { s.Phys.Torque = τ }

// SetWheel commands the angular acceleration of wheel i.
func (s *State) SetWheel(i int, alpha float64) error {
	if i < 0 || i >= len(s.Phys.Wheels) {
		return errors.Errorf("node %s: no wheel %d", s.Name, i)
	}
	s.Phys.Wheels[i].Commanded = alpha
	return nil
}

// SetMagnetorquer commands the dipole moment of magnetorquer i in A·m².
func (s *State) SetMagnetorquer(i int, moment float64) error {
	if i < 0 || i >= len(s.Phys.Magnetorquer) {
		return errors.Errorf("node %s: no magnetorquer %d", s.Name, i)
	}
	s.Phys.Magnetorquer[i].Commanded = moment
	return nil
}
