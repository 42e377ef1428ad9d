// Package physics holds the force and torque models, the Gauss-Jackson
// integrator and the per-node propagation state machine.
package physics

import (
	"fmt"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
)

var (
	// ErrNoInitialState is returned by Init when the position type needs data
	// the initial condition does not carry.
	ErrNoInitialState = errors.New("initial condition missing for propagator")
	// ErrKernelAlloc is returned when a Gauss-Jackson kernel cannot be built.
	ErrKernelAlloc = errors.New("cannot build Gauss-Jackson kernel")
	// ErrTooLow is returned when a propagated orbit falls below the surface.
	ErrTooLow = errors.New("orbit below the Earth surface")
	// ErrUnknownType is returned for position or attitude types out of range.
	ErrUnknownType = errors.New("unknown propagator type")
	// ErrInvalidTLE aliases the convert error for callers of this package.
	ErrInvalidTLE = convert.ErrInvalidTLE
)

// PositionType selects how a node's position is advanced.
type PositionType uint8

const (
	// PosIterative integrates the full acceleration with one RK4 tick per step.
	PosIterative PositionType = iota + 1
	// PosInertial follows the unperturbed two-body orbit of the initial state.
	PosInertial
	// PosGaussJackson integrates the full acceleration with Gauss-Jackson.
	PosGaussJackson
	// PosGeo holds a fixed geodetic position.
	PosGeo
	// PosTle evaluates two-line elements with SGP4.
	PosTle
	// PosLvlh holds a fixed offset in the LVLH frame of an origin node.
	PosLvlh
	// PosNone leaves the position untouched.
	PosNone
)

func (p PositionType) String() string {
	switch p {
	case PosIterative:
		return "iterative"
	case PosInertial:
		return "inertial"
	case PosGaussJackson:
		return "gaussjackson"
	case PosGeo:
		return "geo"
	case PosTle:
		return "tle"
	case PosLvlh:
		return "lvlh"
	case PosNone:
		return "none"
	default:
		return fmt.Sprintf("position(%d)", uint8(p))
	}
}

// ParsePositionType is the inverse of PositionType.String.
func ParsePositionType(s string) (PositionType, error) {
	for p := PosIterative; p <= PosNone; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownType, "position %q", s)
}

// AttitudeType selects how a node's attitude is set each step.
type AttitudeType uint8

const (
	// AttLVLH keeps the body aligned with the node's own LVLH frame.
	AttLVLH AttitudeType = iota + 1
	// AttInertial integrates the rigid body dynamics under the modeled torques.
	AttInertial
	// AttTarget points the body z axis at a target location.
	AttTarget
	// AttGeoc keeps the body fixed with respect to the rotating Earth.
	AttGeoc
	// AttTopo aligns the body with the local east, north, up frame, or with
	// the terrain normal when a surface model is available.
	AttTopo
	// AttNone leaves the attitude untouched.
	AttNone
)

func (a AttitudeType) String() string {
	switch a {
	case AttLVLH:
		return "lvlh"
	case AttInertial:
		return "inertial"
	case AttTarget:
		return "target"
	case AttGeoc:
		return "geoc"
	case AttTopo:
		return "topo"
	case AttNone:
		return "none"
	default:
		return fmt.Sprintf("attitude(%d)", uint8(a))
	}
}

// ParseAttitudeType is the inverse of AttitudeType.String.
func ParseAttitudeType(s string) (AttitudeType, error) {
	for a := AttLVLH; a <= AttNone; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownType, "attitude %q", s)
}

// Panel is a flat surface of the spacecraft structure. Normal is the outward
// normal and Center the center of pressure, both in the body frame.
type Panel struct {
	Name   string
	Area   float64
	Normal mathlib.Vector
	Center mathlib.Vector
	Cd     float64
	// Cr is the radiation pressure coefficient: 1 absorbs, 2 reflects.
	Cr float64
}

// Physics holds the physical parameters of a node and the forces and torques
// accumulated on it. Torques and the *Drag accelerations are in the body
// frame; Thrust and Torque commands in the ICRF and body frame respectively.
type Physics struct {
	DT   float64 // seconds
	DTJ  float64 // days
	Mass float64
	// MOI is the diagonal of the body inertia tensor.
	MOI  mathlib.Vector
	Hcap float64
	Area float64
	Cd   float64
	Cr   float64

	Panels       []Panel
	Wheels       []*Wheel
	Magnetorquer []*Magnetorquer

	Thrust mathlib.Vector
	Torque mathlib.Vector

	FTorque   mathlib.Vector
	ATorque   mathlib.Vector
	RTorque   mathlib.Vector
	GTorque   mathlib.Vector
	HTorque   mathlib.Vector
	MTorque   mathlib.Vector
	HMomentum mathlib.Vector
	ADrag     mathlib.Vector
	RDrag     mathlib.Vector
	FDrag     mathlib.Vector
	Moment    mathlib.Vector

	// Mode is the attitude control mode reported with the state.
	Mode int

	Gravity    GravityModel
	Degree     int
	ThirdBody  bool
	Atmosphere Atmosphere
	F107Avg    float64
	F107       float64
	Ap         float64
}

// NewPhysics returns a 1 m² 100 kg cube with the default environment.
func NewPhysics(dt float64) *Physics {
	return &Physics{
		DT:         dt,
		DTJ:        convert.Days(dt),
		Mass:       100,
		MOI:        mathlib.NewVector(10, 10, 10),
		Area:       1,
		Cd:         2.2,
		Cr:         1.3,
		Gravity:    EGM2008Norm,
		Degree:     12,
		ThirdBody:  true,
		Atmosphere: &ExponentialAtmosphere{},
		F107Avg:    150,
		F107:       150,
		Ap:         15,
	}
}

// PointMass returns physics with only the central body point mass force:
// no harmonics, third bodies, drag or radiation pressure.
func PointMass(dt float64) *Physics {
	p := NewPhysics(dt)
	p.Degree = 0
	p.ThirdBody = false
	p.Atmosphere = nil
	p.Cr = 0
	return p
}

// Clone returns a deep copy of the devices and panels so two nodes never
// share mutable device state.
func (p *Physics) Clone() *Physics {
	c := *p
	c.Panels = append([]Panel(nil), p.Panels...)
	c.Wheels = make([]*Wheel, len(p.Wheels))
	for i, w := range p.Wheels {
		wc := *w
		c.Wheels[i] = &wc
	}
	c.Magnetorquer = make([]*Magnetorquer, len(p.Magnetorquer))
	for i, m := range p.Magnetorquer {
		mc := *m
		c.Magnetorquer[i] = &mc
	}
	return &c
}
