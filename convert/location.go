package convert

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
)

var (
	// ErrRadiusTooSmall is returned when a frame needs an orbital radius and the
	// position is too close to the center of the Earth.
	ErrRadiusTooSmall = errors.New("radius too small for an orbital frame")
	// ErrNoTime is returned when a frame has no valid epoch.
	ErrNoTime = errors.New("frame has no valid utc")
	// ErrNoOrigin is returned when a relative frame is used without an origin.
	ErrNoOrigin = errors.New("relative frame without origin")
)

// CartPos is a Cartesian kinematic state: position, velocity, acceleration
// and jerk at UTC (MJD).
type CartPos struct {
	UTC  float64
	S    mathlib.Vector
	V    mathlib.Vector
	A    mathlib.Vector
	J    mathlib.Vector
	Pass uint32
}

// Geoid holds geodetic latitude, longitude (radians) and height (meters), or
// their rates.
type Geoid struct {
	Lat, Lon, H float64
}

// GeoidPos is a geodetic kinematic state.
type GeoidPos struct {
	UTC  float64
	S    Geoid
	V    Geoid
	A    Geoid
	Pass uint32
}

// Spher holds geocentric latitude φ, longitude λ and radius r, or their rates.
type Spher struct {
	Phi, Lambda, R float64
}

// SpherPos is a geocentric spherical kinematic state.
type SpherPos struct {
	UTC  float64
	S    Spher
	V    Spher
	A    Spher
	Pass uint32
}

// QAtt is an attitude: S rotates reference-frame vectors into the body frame,
// V and A are the angular rate and acceleration expressed in the reference
// frame.
type QAtt struct {
	UTC  float64
	S    mathlib.Quaternion
	V    mathlib.Vector
	A    mathlib.Vector
	Pass uint32
}

// Extra holds the transforms derived from the epoch and the inertial state.
type Extra struct {
	UTC   float64
	TT    float64
	UT    float64
	J2E   mathlib.Matrix
	DJ2E  mathlib.Matrix
	DDJ2E mathlib.Matrix
	E2J   mathlib.Matrix
	DE2J  mathlib.Matrix
	DDE2J mathlib.Matrix
	// Rows of P2L are the LVLH axes in ECI. E2L rotates ECI vectors into LVLH.
	P2L   mathlib.Matrix
	DP2L  mathlib.Matrix
	DDP2L mathlib.Matrix
	E2L   mathlib.Quaternion
	// Rows of T2G are the east, north and up axes of the sub-satellite point
	// in the Earth-fixed frame.
	T2G     mathlib.Matrix
	SunPos  mathlib.Vector
	MoonPos mathlib.Vector
}

// PosStruc gathers every position representation of a Location.
type PosStruc struct {
	UTC    float64
	ECI    CartPos
	Geoc   CartPos
	Geod   GeoidPos
	Geos   SpherPos
	LVLH   CartPos
	Extra  Extra
	BEarth mathlib.Vector
	// Sunradiance is the fraction of the solar disc visible (0 in umbra).
	Sunradiance float64
}

// AttStruc gathers every attitude representation of a Location.
type AttStruc struct {
	UTC  float64
	ICRF QAtt
	Geoc QAtt
	Topo QAtt
	LVLH QAtt
}

// Location is a timestamped kinematic state held in several frames at once.
// Exactly one position frame and one attitude frame are authoritative: the
// ones with the highest pass counter. Update derives the others.
type Location struct {
	UTC float64
	Pos PosStruc
	Att AttStruc
	// Origin, if set, is the ECI state the LVLH position is relative to.
	Origin *CartPos
	// Orientation overrides DefaultOrientation.
	Orientation EarthOrientation
	// SkipBodies disables the sun and moon ephemerides.
	SkipBodies bool
}

func (l *Location) orientation() EarthOrientation {
	if l.Orientation != nil {
		return l.Orientation
	}
	return DefaultOrientation
}

func (l *Location) maxPosPass() uint32 {
	p := l.Pos.ECI.Pass
	for _, q := range []uint32{l.Pos.Geoc.Pass, l.Pos.Geod.Pass, l.Pos.Geos.Pass, l.Pos.LVLH.Pass} {
		if q > p {
			p = q
		}
	}
	return p
}

func (l *Location) maxAttPass() uint32 {
	p := l.Att.ICRF.Pass
	for _, q := range []uint32{l.Att.Geoc.Pass, l.Att.Topo.Pass, l.Att.LVLH.Pass} {
		if q > p {
			p = q
		}
	}
	return p
}

// SetECI makes the ECI state authoritative.
func (l *Location) SetECI(c CartPos) {
	c.Pass = l.maxPosPass() + 1
	l.Pos.ECI = c
	l.UTC = c.UTC
}

// SetGeoc makes the geocentric (Earth-fixed) state authoritative.
func (l *Location) SetGeoc(c CartPos) {
	c.Pass = l.maxPosPass() + 1
	l.Pos.Geoc = c
	l.UTC = c.UTC
}

// SetGeod makes the geodetic state authoritative.
func (l *Location) SetGeod(g GeoidPos) {
	g.Pass = l.maxPosPass() + 1
	l.Pos.Geod = g
	l.UTC = g.UTC
}

// SetGeos makes the geocentric spherical state authoritative.
func (l *Location) SetGeos(g SpherPos) {
	g.Pass = l.maxPosPass() + 1
	l.Pos.Geos = g
	l.UTC = g.UTC
}

// SetLVLH makes the origin-relative LVLH state authoritative.
func (l *Location) SetLVLH(c CartPos) {
	c.Pass = l.maxPosPass() + 1
	l.Pos.LVLH = c
	l.UTC = c.UTC
}

// SetAttICRF makes the inertial attitude authoritative.
func (l *Location) SetAttICRF(a QAtt) {
	a.Pass = l.maxAttPass() + 1
	l.Att.ICRF = a
}

// SetAttGeoc makes the Earth-fixed attitude authoritative.
func (l *Location) SetAttGeoc(a QAtt) {
	a.Pass = l.maxAttPass() + 1
	l.Att.Geoc = a
}

// SetAttTopo makes the topocentric attitude authoritative.
func (l *Location) SetAttTopo(a QAtt) {
	a.Pass = l.maxAttPass() + 1
	l.Att.Topo = a
}

// SetAttLVLH makes the LVLH attitude authoritative.
func (l *Location) SetAttLVLH(a QAtt) {
	a.Pass = l.maxAttPass() + 1
	l.Att.LVLH = a
}

// Update derives every stale frame from the freshest position frame, then
// every stale attitude frame from the freshest attitude frame.
func (l *Location) Update() error {
	if err := l.updatePos(); err != nil {
		return err
	}
	return l.updateAtt()
}

func (l *Location) updatePos() error {
	p := &l.Pos
	best := p.ECI.Pass
	var err error
	switch {
	case p.Geoc.Pass > best && p.Geoc.Pass >= p.Geod.Pass && p.Geoc.Pass >= p.Geos.Pass && p.Geoc.Pass >= p.LVLH.Pass:
		err = l.PosGeoc2ECI()
	case p.Geod.Pass > best && p.Geod.Pass >= p.Geos.Pass && p.Geod.Pass >= p.LVLH.Pass:
		if err = l.PosGeod2Geoc(); err == nil {
			err = l.PosGeoc2ECI()
		}
	case p.Geos.Pass > best && p.Geos.Pass >= p.LVLH.Pass:
		if err = l.PosGeos2Geoc(); err == nil {
			err = l.PosGeoc2ECI()
		}
	case p.LVLH.Pass > best:
		err = l.PosLVLH2ECI()
	}
	if err != nil {
		return err
	}
	return l.PosECI2All()
}

// PosECI2All refreshes every frame derived from the ECI state.
func (l *Location) PosECI2All() error {
	if err := l.PosExtra(l.Pos.ECI.UTC); err != nil {
		return err
	}
	l.UTC = l.Pos.ECI.UTC
	l.Pos.UTC = l.UTC
	pass := l.Pos.ECI.Pass
	if l.Pos.Geoc.Pass < pass {
		if err := l.PosECI2Geoc(); err != nil {
			return err
		}
	}
	if l.Pos.Geod.Pass < pass {
		l.PosGeoc2Geod()
	}
	if l.Pos.Geos.Pass < pass {
		l.PosGeoc2Geos()
	}
	// The orbital frame of the location itself; failures leave the last good
	// basis in place.
	_ = l.PosLVLHBasis()
	l.Pos.Extra.T2G = TopoBasis(l.Pos.Geod.S)
	if l.Origin != nil && l.Pos.LVLH.Pass < pass {
		if err := l.PosECI2LVLH(); err != nil {
			return err
		}
	}
	return nil
}

// PosExtra refreshes the epoch-dependent transforms.
func (l *Location) PosExtra(utc float64) error {
	if utc == 0 || math.IsNaN(utc) || math.IsInf(utc, 0) {
		return ErrNoTime
	}
	x := &l.Pos.Extra
	if x.UTC == utc {
		return nil
	}
	x.UTC = utc
	x.TT = UTC2TT(utc)
	x.UT = UTC2UT1(utc)
	x.J2E, x.DJ2E, x.DDJ2E = l.orientation().J2E(utc)
	x.E2J, x.DE2J, x.DDE2J = x.J2E.Transpose(), x.DJ2E.Transpose(), x.DDJ2E.Transpose()
	if !l.SkipBodies {
		x.SunPos = SunPosition(utc)
		x.MoonPos = MoonPosition(utc)
	}
	return nil
}
