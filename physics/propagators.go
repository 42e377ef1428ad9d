package physics

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/ChristopherRabotin/ode"
	"github.com/pkg/errors"
)

// PositionPropagator advances the position of a State. Init is called with
// s.Loc already set to the initial condition at utc.
type PositionPropagator interface {
	Init(s *State, utc float64) error
	Propagate(s *State, utc float64) error
	Reset(s *State, utc float64) error
	End()
}

// attitudeOwner is implemented by propagators which set the attitude and
// the accelerations themselves.
type attitudeOwner interface {
	ownsAttitude() bool
}

func newPositionPropagator(p PositionType) (PositionPropagator, error) {
	switch p {
	case PosIterative:
		return &iterativePropagator{}, nil
	case PosInertial:
		return &inertialPropagator{}, nil
	case PosGaussJackson:
		return &gjPropagator{}, nil
	case PosGeo:
		return &geoPropagator{}, nil
	case PosTle:
		return &tlePropagator{}, nil
	case PosLvlh:
		return &lvlhPropagator{}, nil
	case PosNone:
		return &nonePropagator{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "position %d", p)
}

func setECI(s *State, eci convert.CartPos) error {
	s.Loc.SetECI(eci)
	return s.Loc.Update()
}

// iterativePropagator takes one RK4 step of the full acceleration per tick.
// The integrator only steps forward, so backward ticks run in reversed time.
type iterativePropagator struct {
	s      *State
	start  convert.Location
	sign   float64
	result []float64
	done   bool
}

func (p *iterativePropagator) Init(s *State, utc float64) error { return nil }

func (p *iterativePropagator) Propagate(s *State, utc float64) error {
	p.s, p.start = s, s.Loc
	h := convert.Seconds(utc - s.utc)
	p.sign = math.Copysign(1, h)
	p.done, p.result = false, nil
	ode.NewRK4(0, math.Abs(h), p).Solve()
	if p.result == nil {
		return errors.New("integrator returned no state")
	}
	eci := convert.CartPos{
		UTC: utc,
		S:   mathlib.NewVector(p.result[0], p.result[1], p.result[2]),
		V:   mathlib.NewVector(p.result[3], p.result[4], p.result[5]),
	}
	return setECI(s, eci)
}

func (p *iterativePropagator) Reset(s *State, utc float64) error { return p.Init(s, utc) }
func (p *iterativePropagator) End()                             { p.s = nil }

// GetState implements ode.Integrable.
func (p *iterativePropagator) GetState() []float64 {
	e := p.start.Pos.ECI
	return []float64{e.S.X, e.S.Y, e.S.Z, e.V.X, e.V.Y, e.V.Z}
}

// SetState implements ode.Integrable. The propagator stops after one step.
func (p *iterativePropagator) SetState(t float64, s []float64) {
	p.result = append([]float64(nil), s...)
	p.done = true
}

// Stop implements ode.Integrable.
func (p *iterativePropagator) Stop(t float64) bool {
	return p.done
}

// Func implements ode.Integrable.
func (p *iterativePropagator) Func(t float64, f []float64) []float64 {
	loc := p.start
	loc.SetECI(convert.CartPos{
		UTC: p.start.UTC + convert.Days(p.sign*t),
		S:   mathlib.NewVector(f[0], f[1], f[2]),
		V:   mathlib.NewVector(f[3], f[4], f[5]),
	})
	fDot := make([]float64, 6)
	for i := 0; i < 3; i++ {
		fDot[i] = p.sign * f[3+i]
	}
	if err := loc.Update(); err != nil {
		return fDot
	}
	PosAccel(&loc, p.s.Phys, p.s.coef)
	a := loc.Pos.ECI.A.Scale(p.sign)
	fDot[3], fDot[4], fDot[5] = a.X, a.Y, a.Z
	return fDot
}

// inertialPropagator follows the two-body orbit of the initial state.
type inertialPropagator struct {
	kep convert.KepStruc
}

func (p *inertialPropagator) Init(s *State, utc float64) error {
	p.kep = convert.ECI2Kep(s.Loc.Pos.ECI)
	if p.kep.A <= 0 || p.kep.E >= 1 {
		return errors.Wrap(ErrNoInitialState, "inertial propagation needs a closed orbit")
	}
	return nil
}

func (p *inertialPropagator) Propagate(s *State, utc float64) error {
	return setECI(s, s.kepler.ECI(p.kep, convert.Seconds(utc-p.kep.UTC)))
}

func (p *inertialPropagator) Reset(s *State, utc float64) error { return p.Init(s, utc) }
func (p *inertialPropagator) End()                             {}

// gjPropagator drives a GaussJackson, which also sets the attitude of each
// new slot and evaluates its accelerations.
type gjPropagator struct {
	gj *GaussJackson
}

func (p *gjPropagator) ownsAttitude() bool { return true }

func (p *gjPropagator) Init(s *State, utc float64) error {
	gj, err := NewGaussJackson(s.Kernels, s.Order, utc, s.DT)
	if err != nil {
		return err
	}
	gj.IntegrateAttitude = s.AttType == AttInertial
	gj.Accel = s.accelerate
	gj.Orient = func(loc *convert.Location) error {
		return s.att.Apply(s, loc, gj.DT())
	}
	ic := s.initial
	switch {
	case ic.TLE != nil:
		err = gj.InitTLE(s.Loc, ic.TLE)
	case ic.Kep != nil:
		err = gj.InitKep(s.Loc, convert.ECI2Kep(s.Loc.Pos.ECI))
	case ic.Shape != nil:
		err = gj.InitShape(s.Loc, s.shapeAt(utc))
	default:
		err = gj.InitECI(s.Loc)
	}
	if err != nil {
		return err
	}
	if gj.NonConverged.Load() > 0 {
		s.Logger.Log("level", "warning", "subsys", "prop", "node", s.Name, "message", "startup did not converge", "passes", gj.Iterations)
	}
	p.gj = gj
	s.Loc = gj.Loc(utc)
	return nil
}

func (p *gjPropagator) Propagate(s *State, utc float64) error {
	if p.gj == nil {
		return errors.Wrap(ErrNoInitialState, "gauss-jackson not initialized")
	}
	if _, err := p.gj.Propagate(utc); err != nil {
		return err
	}
	s.Loc = p.gj.Loc(utc)
	return nil
}

func (p *gjPropagator) Reset(s *State, utc float64) error {
	p.End()
	return p.Init(s, utc)
}

func (p *gjPropagator) End() {
	if p.gj != nil {
		p.gj.End()
		p.gj = nil
	}
}

// geoPropagator holds a geodetic position fixed on the rotating Earth.
type geoPropagator struct {
	geod convert.Geoid
}

func (p *geoPropagator) Init(s *State, utc float64) error {
	p.geod = s.Loc.Pos.Geod.S
	return nil
}

func (p *geoPropagator) Propagate(s *State, utc float64) error {
	s.Loc.SetGeod(convert.GeoidPos{UTC: utc, S: p.geod})
	return s.Loc.Update()
}

func (p *geoPropagator) Reset(s *State, utc float64) error { return p.Init(s, utc) }
func (p *geoPropagator) End()                             {}

// tlePropagator evaluates SGP4 at each tick.
type tlePropagator struct {
	tle *convert.TLE
}

func (p *tlePropagator) Init(s *State, utc float64) error {
	if s.initial.TLE == nil {
		return errors.Wrap(ErrNoInitialState, "tle propagation needs two-line elements")
	}
	p.tle = s.initial.TLE
	return nil
}

func (p *tlePropagator) Propagate(s *State, utc float64) error {
	eci, err := p.tle.ECI(utc)
	if err != nil {
		return err
	}
	return setECI(s, eci)
}

func (p *tlePropagator) Reset(s *State, utc float64) error { return p.Init(s, utc) }
func (p *tlePropagator) End()                             {}

// lvlhPropagator holds a fixed offset in the LVLH frame of the origin node,
// using the origin state of the current tick.
type lvlhPropagator struct {
	rel convert.CartPos
}

func (p *lvlhPropagator) Init(s *State, utc float64) error {
	if s.Origin == nil {
		return errors.Wrap(ErrNoInitialState, "lvlh propagation needs an origin")
	}
	p.rel = s.Loc.Pos.LVLH
	return nil
}

func (p *lvlhPropagator) Propagate(s *State, utc float64) error {
	origin := s.Origin.Loc.Pos.ECI
	s.Loc.Origin = &origin
	rel := p.rel
	rel.UTC = utc
	s.Loc.SetLVLH(rel)
	return s.Loc.Update()
}

func (p *lvlhPropagator) Reset(s *State, utc float64) error { return p.Init(s, utc) }
func (p *lvlhPropagator) End()                             {}

// nonePropagator only moves the epoch.
type nonePropagator struct{}

func (nonePropagator) Init(s *State, utc float64) error { return nil }

func (nonePropagator) Propagate(s *State, utc float64) error {
	if s.Loc.Pos.ECI.S.IsZero() {
		s.Loc.UTC = utc
		return nil
	}
	eci := s.Loc.Pos.ECI
	eci.UTC = utc
	return setECI(s, eci)
}

func (p nonePropagator) Reset(s *State, utc float64) error { return p.Init(s, utc) }
func (nonePropagator) End()                               {}
