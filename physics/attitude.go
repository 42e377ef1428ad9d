package physics

import (
	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
)

// Surface supplies the terrain normal under a geodetic point, in the local
// east, north, up frame. A zero vector means the terrain is unknown there.
type Surface interface {
	Normal(lat, lon, utc float64) mathlib.Vector
}

// AttitudeStrategy sets the attitude of loc, which belongs to s and is dt
// seconds after the previous attitude. loc is not always s.Loc: the
// Gauss-Jackson propagator orients each of its history slots.
type AttitudeStrategy interface {
	Apply(s *State, loc *convert.Location, dt float64) error
}

func newAttitudeStrategy(a AttitudeType) (AttitudeStrategy, error) {
	switch a {
	case AttLVLH:
		return lvlhAttitude{}, nil
	case AttInertial:
		return inertialAttitude{}, nil
	case AttTarget:
		return targetAttitude{}, nil
	case AttGeoc:
		return geocAttitude{}, nil
	case AttTopo:
		return topoAttitude{}, nil
	case AttNone:
		return noneAttitude{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownType, "attitude %d", a)
}

// lvlhAttitude aligns the body with the orbit frame.
type lvlhAttitude struct{}

func (lvlhAttitude) Apply(s *State, loc *convert.Location, dt float64) error {
	loc.SetAttLVLH(convert.QAtt{UTC: loc.UTC, S: mathlib.Identity()})
	return loc.Update()
}

// inertialAttitude spins the body at its current rate and acceleration.
type inertialAttitude struct{}

func (inertialAttitude) Apply(s *State, loc *convert.Location, dt float64) error {
	if dt == 0 {
		return nil
	}
	att := loc.Att.ICRF
	ω0 := att.V
	att.V = ω0.Add(att.A.Scale(dt))
	att.S = spin(attitudeOf(loc), ω0, att.V, dt)
	att.UTC = loc.UTC
	loc.SetAttICRF(att)
	return loc.Update()
}

// targetAttitude points the body z axis at s.Target and the body x axis as
// close as possible to the velocity. Without a target it falls back to LVLH.
type targetAttitude struct{}

func (targetAttitude) Apply(s *State, loc *convert.Location, dt float64) error {
	if s.Target == nil {
		return lvlhAttitude{}.Apply(s, loc, dt)
	}
	// The Earth-fixed target position is carried to the epoch of loc.
	target := loc.Pos.Extra.E2J.MulVec(s.Target.Pos.Geoc.S)
	los := target.Sub(loc.Pos.ECI.S)
	if los.Norm() < 1 {
		return nil
	}
	q := mathlib.DrotateBetween(los, loc.Pos.ECI.V, mathlib.UnitZ(), mathlib.UnitX())
	loc.SetAttICRF(convert.QAtt{UTC: loc.UTC, S: q})
	return loc.Update()
}

// geocAttitude keeps the body fixed to the Earth.
type geocAttitude struct{}

func (geocAttitude) Apply(s *State, loc *convert.Location, dt float64) error {
	loc.SetAttGeoc(convert.QAtt{UTC: loc.UTC, S: mathlib.Identity()})
	return loc.Update()
}

// topoAttitude aligns the body with the local horizon, tilted onto the
// terrain normal when s.Surface knows it.
type topoAttitude struct{}

func (topoAttitude) Apply(s *State, loc *convert.Location, dt float64) error {
	q := mathlib.Identity()
	if s.Surface != nil {
		g := loc.Pos.Geod.S
		if n := s.Surface.Normal(g.Lat, g.Lon, loc.UTC); !n.IsZero() {
			q = mathlib.ChangeBetween(n, mathlib.UnitZ())
		}
	}
	loc.SetAttTopo(convert.QAtt{UTC: loc.UTC, S: q})
	return loc.Update()
}

type noneAttitude struct{}

func (noneAttitude) Apply(s *State, loc *convert.Location, dt float64) error { return nil }
