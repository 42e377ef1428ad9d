package cosmos

import (
	"fmt"
	"math"
	"strings"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/pkg/errors"
)

// TargetType is the kind of a target.
type TargetType uint8

const (
	// GroundStation is a point on the ground communicating with the nodes.
	GroundStation TargetType = iota
	// AreaTarget is a region of Area square meters centered on its location.
	AreaTarget
	// PointTarget is a point to be imaged.
	PointTarget
)

func (t TargetType) String() string {
	switch t {
	case GroundStation:
		return "groundstation"
	case AreaTarget:
		return "area"
	case PointTarget:
		return "point"
	}
	return fmt.Sprintf("target(%d)", uint8(t))
}

// ParseTargetType is the inverse of TargetType.String. The empty string is
// a ground station.
func ParseTargetType(s string) (TargetType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "gs" {
		return GroundStation, nil
	}
	for t := GroundStation; t <= PointTarget; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, errors.Wrapf(ErrParse, "target type %q", s)
}

// Target is a fixed location on the Earth.
type Target struct {
	Name string
	Type TargetType
	Geod convert.Geoid
	Area float64
	Loc  convert.Location
}

// NewTarget returns a target at the geodetic point (radians, meters) with
// its location evaluated at utc.
func NewTarget(name string, lat, lon, alt, area float64, ttype TargetType, utc float64) (*Target, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -math.Pi/2 || lat > math.Pi/2 {
		return nil, errors.Errorf("target %s: invalid latitude %f or longitude %f", name, lat, lon)
	}
	t := &Target{Name: name, Type: ttype, Geod: convert.Geoid{Lat: lat, Lon: lon, H: alt}, Area: area}
	t.Loc.SkipBodies = true
	if err := t.Update(utc); err != nil {
		return nil, errors.Wrapf(err, "target %s", name)
	}
	return t, nil
}

// Update evaluates the inertial location of the target at utc.
func (t *Target) Update(utc float64) error {
	t.Loc.SetGeod(convert.GeoidPos{UTC: utc, S: t.Geod})
	return t.Loc.Update()
}

func (t *Target) String() string {
	return fmt.Sprintf("%s (%s) %.4f° %.4f° %.0f m", t.Name, t.Type, t.Geod.Lat*r2d, t.Geod.Lon*r2d, t.Geod.H)
}

// Metric is the geometry between one node and one target.
type Metric struct {
	Node   string
	Target string
	UTC    float64
	// Range is in meters, RangeRate in meters per second.
	Range     float64
	RangeRate float64
	// Azimuth and Elevation locate the node in the sky of the target.
	Azimuth   float64
	Elevation float64
	// AzFrom and ElFrom locate the target from below the node.
	AzFrom float64
	ElFrom float64
	// OffNadir is the angle at the node between the geodetic nadir and the
	// target.
	OffNadir float64
	// Resolution is the ground size of one detector pixel in meters.
	Resolution float64
	// Coverage is the fraction of the target inside the detector footprint.
	Coverage float64
	Visible  bool

	MinElevation float64
	MaxElevation float64

	// Noisy measurements, equal to the true values without detector noise.
	MeasuredRange     float64
	MeasuredAzimuth   float64
	MeasuredElevation float64
}

// Measure computes the geometry between the node location loc and the
// target at the epoch of loc. The detector may be nil. prev carries the
// elevation extremes of earlier calls and may be nil.
func Measure(node string, loc *convert.Location, t *Target, det *Detector, prev *Metric) Metric {
	m := Metric{Node: node, Target: t.Name, UTC: loc.UTC, MinElevation: math.Inf(1), MaxElevation: math.Inf(-1)}
	if prev != nil {
		m.MinElevation, m.MaxElevation = prev.MinElevation, prev.MaxElevation
	}
	sat := loc.Pos.Geoc
	if sat.S.IsZero() {
		return m
	}
	tgt := t.Loc.Pos.Geoc.S
	if tgt.IsZero() {
		tgt = convert.GeodeticPoint(t.Geod.Lat, t.Geod.Lon, t.Geod.H)
	}
	ds := tgt.Sub(sat.S)
	m.Range = ds.Norm()
	if m.Range == 0 {
		return m
	}
	// The target is fixed in the Earth frame.
	m.RangeRate = ds.Dot(sat.V.Neg()) / m.Range
	_, m.Azimuth, m.Elevation = convert.RangeAzEl(t.Geod, sat.S)
	_, m.AzFrom, m.ElFrom = convert.RangeAzEl(loc.Pos.Geod.S, tgt)
	m.OffNadir = math.Max(0, math.Pi/2+m.ElFrom)
	m.MinElevation = math.Min(m.MinElevation, m.Elevation)
	m.MaxElevation = math.Max(m.MaxElevation, m.Elevation)
	m.Visible = m.Elevation > 0
	m.MeasuredRange, m.MeasuredAzimuth, m.MeasuredElevation = m.Range, m.Azimuth, m.Elevation
	if det == nil || !m.Visible {
		return m
	}
	det.measure(&m)
	if det.FOV > 0 && m.OffNadir > det.FOV/2 {
		return m
	}
	sinEl := math.Sin(m.Elevation)
	if det.IFOV > 0 {
		m.Resolution = m.Range * det.IFOV / sinEl
	}
	if t.Area <= 0 {
		m.Coverage = 1
		return m
	}
	if det.FOV > 0 {
		r := m.Range * math.Tan(det.FOV/2)
		m.Coverage = math.Min(1, math.Pi*r*r/sinEl/t.Area)
	}
	return m
}
