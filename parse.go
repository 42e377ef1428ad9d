package cosmos

import (
	"bufio"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/ChristopherRabotin/cosmos/physics"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Records are one JSON object per line. Blank lines and lines starting
// with # are ignored. Angles are in degrees, distances in meters.

type physRecord struct {
	UTC   float64 `json:"utc"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"alt"`
	Angle float64 `json:"angle"`
	Shift float64 `json:"shift"`
}

type eciRecord struct {
	UTC float64    `json:"utc"`
	S   [3]float64 `json:"s"`
	V   [3]float64 `json:"v"`
}

type kepRecord struct {
	UTC  float64 `json:"utc"`
	EA   float64 `json:"ea"`
	I    float64 `json:"i"`
	AP   float64 `json:"ap"`
	RAAN float64 `json:"raan"`
	E    float64 `json:"e"`
	A    float64 `json:"a"`
}

type tleRecord struct {
	Filename string `json:"filename"`
	Index    int    `json:"index"`
}

type orbitLine struct {
	Model string      `json:"model"`
	Phys  *physRecord `json:"phys"`
	ECI   *eciRecord  `json:"eci"`
	Kep   *kepRecord  `json:"kep"`
	TLE   *tleRecord  `json:"tle"`
}

// OrbitRecord is the initial orbit of a node and the propagator it asks for.
type OrbitRecord struct {
	Model physics.PositionType
	IC    physics.InitialCondition
}

// ParseModel maps the model names of orbit files to a position type: slow
// is Gauss-Jackson, fast the two-body orbit, other names are position types.
// The empty name is Gauss-Jackson.
func ParseModel(s string) (physics.PositionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "slow":
		return physics.PosGaussJackson, nil
	case "fast":
		return physics.PosInertial, nil
	}
	p, err := physics.ParsePositionType(strings.ToLower(s))
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "model %q", s)
	}
	return p, nil
}

func (o orbitLine) record() (OrbitRecord, error) {
	model, err := ParseModel(o.Model)
	if err != nil {
		return OrbitRecord{}, err
	}
	rec := OrbitRecord{Model: model}
	switch {
	case o.TLE != nil:
		tles, err := convert.LoadTLEs(o.TLE.Filename)
		if err != nil {
			return rec, errors.Wrapf(ErrParse, "tle: %s", err)
		}
		if o.TLE.Index < 0 || o.TLE.Index >= len(tles) {
			return rec, errors.Wrapf(ErrParse, "tle %d of %d in %s", o.TLE.Index, len(tles), o.TLE.Filename)
		}
		rec.IC.TLE = tles[o.TLE.Index]
	case o.ECI != nil:
		eci := convert.CartPos{
			UTC: o.ECI.UTC,
			S:   mathlib.NewVector(o.ECI.S[0], o.ECI.S[1], o.ECI.S[2]),
			V:   mathlib.NewVector(o.ECI.V[0], o.ECI.V[1], o.ECI.V[2]),
		}
		if eci.S.Norm() < convert.MinOrbitRadius {
			return rec, errors.Wrapf(ErrParse, "eci radius %f", eci.S.Norm())
		}
		rec.IC.ECI = &eci
	case o.Kep != nil:
		k := o.Kep
		if k.A <= 0 || k.E < 0 || k.E >= 1 {
			return rec, errors.Wrapf(ErrParse, "kep a=%f e=%f", k.A, k.E)
		}
		ea := k.EA * d2r
		kep := convert.KepStruc{
			UTC:  k.UTC,
			A:    k.A,
			E:    k.E,
			I:    k.I * d2r,
			AP:   k.AP * d2r,
			RAAN: k.RAAN * d2r,
			EA:   ea,
			MA:   mathlib.Ranrm(ea - k.E*math.Sin(ea)),
			TA:   mathlib.Ranrm(convert.EA2TA(ea, k.E)),
		}
		rec.IC.Kep = &kep
	case o.Phys != nil:
		p := o.Phys
		if math.Abs(p.Lat) > 90 {
			return rec, errors.Wrapf(ErrParse, "phys latitude %f", p.Lat)
		}
		rec.IC.Shape = &convert.Shape{
			UTC:         p.UTC,
			Lat:         p.Lat * d2r,
			Lon:         p.Lon * d2r,
			Alt:         p.Alt,
			Inclination: p.Angle * d2r,
			Shift:       p.Shift,
		}
	default:
		return rec, errors.Wrap(ErrParse, "orbit without phys, eci, kep or tle")
	}
	return rec, nil
}

// scanLines calls f with the line number and text of every record line.
func scanLines(r io.Reader, f func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := f(n, line); err != nil {
			return err
		}
	}
	return errors.Wrap(sc.Err(), "reading records")
}

// ParseOrbitFile reads orbit records. It stops on the first bad line and
// returns the records read before it.
func ParseOrbitFile(r io.Reader) ([]OrbitRecord, error) {
	var recs []OrbitRecord
	err := scanLines(r, func(n int, line string) error {
		var o orbitLine
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			return errors.Wrapf(ErrParse, "orbit line %d: %s", n, err)
		}
		rec, err := o.record()
		if err != nil {
			return errors.Wrapf(err, "orbit line %d", n)
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}

type detectorRecord struct {
	FOV     float64 `json:"fov"`
	IFOV    float64 `json:"ifov"`
	SpecMin float64 `json:"specmin"`
	SpecMax float64 `json:"specmax"`
}

type lvlhRecord struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
}

type ricRecord struct {
	R  float64 `json:"r"`
	I  float64 `json:"i"`
	C  float64 `json:"c"`
	VR float64 `json:"vr"`
	VI float64 `json:"vi"`
	VC float64 `json:"vc"`
}

type satLine struct {
	Type      string          `json:"type"`
	NodeName  string          `json:"nodename"`
	NodeType  string          `json:"nodetype"`
	Attitude  string          `json:"attitude"`
	Detector  *detectorRecord `json:"detector"`
	MaxThrust float64         `json:"maxthrust"`
	MaxAlpha  float64         `json:"maxalpha"`
	MaxOmega  float64         `json:"maxomega"`
	MaxMoment float64         `json:"maxmoment"`
	LVLH      *lvlhRecord     `json:"lvlh"`
	RIC       *ricRecord      `json:"ric"`
}

// SatRecord describes one spacecraft of a scenario. A nil Offset places the
// spacecraft on the scenario orbit; otherwise it flies at Offset in the LVLH
// frame of the first spacecraft.
type SatRecord struct {
	Type      string
	Name      string
	Kind      string
	Attitude  physics.AttitudeType
	Detector  *Detector
	MaxThrust float64
	MaxAlpha  float64
	MaxOmega  float64
	MaxMoment float64
	Offset    *convert.CartPos
}

func (s satLine) record() (SatRecord, error) {
	rec := SatRecord{
		Type:      s.Type,
		Name:      s.NodeName,
		Kind:      s.NodeType,
		Attitude:  physics.AttLVLH,
		MaxThrust: s.MaxThrust,
		MaxAlpha:  s.MaxAlpha,
		MaxOmega:  s.MaxOmega,
		MaxMoment: s.MaxMoment,
	}
	if rec.Name == "" {
		return rec, errors.Wrap(ErrParse, "satellite without nodename")
	}
	if s.MaxThrust < 0 || s.MaxAlpha < 0 || s.MaxOmega < 0 || s.MaxMoment < 0 {
		return rec, errors.Wrapf(ErrParse, "satellite %s: negative limit", rec.Name)
	}
	if s.Attitude != "" {
		a, err := physics.ParseAttitudeType(strings.ToLower(s.Attitude))
		if err != nil {
			return rec, errors.Wrapf(ErrParse, "satellite %s: attitude %q", rec.Name, s.Attitude)
		}
		rec.Attitude = a
	}
	if d := s.Detector; d != nil {
		if d.FOV < 0 || d.IFOV < 0 || d.SpecMax < d.SpecMin {
			return rec, errors.Wrapf(ErrParse, "satellite %s: detector", rec.Name)
		}
		rec.Detector = NewDetector(rec.Name, d.FOV*d2r, d.IFOV, d.SpecMin, d.SpecMax)
	}
	switch {
	case s.LVLH != nil:
		l := s.LVLH
		rec.Offset = &convert.CartPos{S: mathlib.NewVector(l.X, l.Y, l.Z), V: mathlib.NewVector(l.VX, l.VY, l.VZ)}
	case s.RIC != nil:
		c := s.RIC
		lvlh := convert.RIC2LVLH(convert.CartPos{S: mathlib.NewVector(c.R, c.I, c.C), V: mathlib.NewVector(c.VR, c.VI, c.VC)})
		rec.Offset = &lvlh
	}
	return rec, nil
}

// ParseSatFile reads satellite records. It stops on the first bad line and
// returns the records read before it.
func ParseSatFile(r io.Reader) ([]SatRecord, error) {
	var recs []SatRecord
	err := scanLines(r, func(n int, line string) error {
		var s satLine
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return errors.Wrapf(ErrParse, "satellite line %d: %s", n, err)
		}
		rec, err := s.record()
		if err != nil {
			return errors.Wrapf(err, "satellite line %d", n)
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, err
}

// Physics returns the physics of the spacecraft: base with reaction wheels
// on the three body axes when the record limits them, and magnetorquers
// when it gives a maximum moment.
func (s SatRecord) Physics(base *physics.Physics) *physics.Physics {
	p := base.Clone()
	axes := bodyAxes()
	if s.MaxAlpha > 0 || s.MaxOmega > 0 {
		p.Wheels = p.Wheels[:0]
		for _, q := range axes {
			p.Wheels = append(p.Wheels, &physics.Wheel{Align: q, MOM: wheelMOM, MaxAlpha: s.MaxAlpha, MaxOmega: s.MaxOmega, Tc: 1})
		}
	}
	if s.MaxMoment > 0 {
		p.Magnetorquer = p.Magnetorquer[:0]
		for _, q := range axes {
			p.Magnetorquer = append(p.Magnetorquer, &physics.Magnetorquer{Align: q, MaxMoment: s.MaxMoment, Poly: [3]float64{0, 1, 0}, Tc: 1})
		}
	}
	return p
}

const wheelMOM = 1e-3

// bodyAxes returns rotations of the device z axis onto the body x, y and z.
func bodyAxes() [3]mathlib.Quaternion {
	h := math.Sqrt2 / 2
	return [3]mathlib.Quaternion{
		mathlib.NewQuaternion(0, h, 0, h),
		mathlib.NewQuaternion(-h, 0, 0, h),
		mathlib.Identity(),
	}
}

type targetLine struct {
	Type      string   `json:"type"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  float64  `json:"altitude"`
	Area      float64  `json:"area"`
}

// TargetRecord is a target in radians, meters and square meters.
type TargetRecord struct {
	Name                string
	Type                TargetType
	Lat, Lon, Alt, Area float64
}

func parseTargetLine(line string) (TargetRecord, error) {
	if strings.HasPrefix(line, "{") {
		var t targetLine
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			return TargetRecord{}, errors.Wrap(ErrParse, err.Error())
		}
		if t.Name == "" || t.Latitude == nil || t.Longitude == nil {
			return TargetRecord{}, errors.Wrap(ErrParse, "target needs name, latitude and longitude")
		}
		ttype, err := ParseTargetType(t.Type)
		if err != nil {
			return TargetRecord{}, err
		}
		return checkTarget(TargetRecord{Name: t.Name, Type: ttype, Lat: *t.Latitude * d2r, Lon: *t.Longitude * d2r, Alt: t.Altitude, Area: t.Area})
	}
	// name lat lon [alt] area
	f := strings.Fields(line)
	if len(f) != 4 && len(f) != 5 {
		return TargetRecord{}, errors.Wrapf(ErrParse, "%d fields", len(f))
	}
	v := make([]float64, len(f)-1)
	for i, s := range f[1:] {
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return TargetRecord{}, errors.Wrapf(ErrParse, "field %d: %q", i+2, s)
		}
		v[i] = x
	}
	rec := TargetRecord{Name: f[0], Lat: v[0] * d2r, Lon: v[1] * d2r, Area: v[len(v)-1]}
	if len(v) == 4 {
		rec.Alt = v[2]
	}
	if rec.Area > 0 {
		rec.Type = AreaTarget
	}
	return checkTarget(rec)
}

func checkTarget(t TargetRecord) (TargetRecord, error) {
	if math.Abs(t.Lat) > math.Pi/2 || math.IsNaN(t.Lat) || math.IsNaN(t.Lon) {
		return t, errors.Wrapf(ErrParse, "target %s latitude %f", t.Name, t.Lat*r2d)
	}
	if t.Area < 0 {
		return t, errors.Wrapf(ErrParse, "target %s area %f", t.Name, t.Area)
	}
	return t, nil
}

// ParseTargetFile reads targets as JSON records or as legacy
// "name lat lon [alt] area" lines. Bad lines are skipped: the error joins
// one entry per skipped line.
func ParseTargetFile(r io.Reader) ([]TargetRecord, error) {
	var (
		recs []TargetRecord
		errs error
	)
	err := scanLines(r, func(n int, line string) error {
		rec, err := parseTargetLine(line)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "target line %d", n))
			return nil
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, multierr.Append(errs, err)
}
