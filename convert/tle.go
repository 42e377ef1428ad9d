package convert

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ChristopherRabotin/cosmos/mathlib"
	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/pkg/errors"
)

// ErrInvalidTLE is returned for malformed two-line element sets.
var ErrInvalidTLE = errors.New("invalid two-line elements")

// TLE is a validated two-line element set and its SGP4 state.
type TLE struct {
	Name   string
	Line1  string
	Line2  string
	Number int
	// Epoch is the element epoch in UTC MJD.
	Epoch float64
	sat   satellite.Satellite
}

// ParseTLE validates the two lines and initializes SGP4. The lines are
// checked before SGP4 sees them because go-satellite exits the process on
// parse errors.
func ParseTLE(name, line1, line2 string) (*TLE, error) {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if err := validateTLELine(line1, '1'); err != nil {
		return nil, err
	}
	if err := validateTLELine(line2, '2'); err != nil {
		return nil, err
	}
	if line1[2:7] != line2[2:7] {
		return nil, errors.Wrap(ErrInvalidTLE, "catalog numbers differ")
	}
	num, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidTLE, "catalog number")
	}
	epoch, err := tleEpoch(line1[18:32])
	if err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, errors.Wrapf(ErrInvalidTLE, "sgp4 init: code %d %s", sat.Error, sat.ErrorStr)
	}
	return &TLE{Name: strings.TrimSpace(name), Line1: line1, Line2: line2, Number: num, Epoch: epoch, sat: sat}, nil
}

func validateTLELine(line string, first byte) error {
	if len(line) != 69 {
		return errors.Wrapf(ErrInvalidTLE, "line %c has length %d", first, len(line))
	}
	if line[0] != first || line[1] != ' ' {
		return errors.Wrapf(ErrInvalidTLE, "line %c has a bad line number", first)
	}
	sum := 0
	for _, c := range line[:68] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	if want := int(line[68] - '0'); sum%10 != want {
		return errors.Wrapf(ErrInvalidTLE, "line %c checksum %d, expected %d", first, sum%10, want)
	}
	return nil
}

// tleEpoch converts the YYDDD.DDDDDDDD epoch field to MJD.
func tleEpoch(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if len(field) < 5 {
		return 0, errors.Wrap(ErrInvalidTLE, "epoch")
	}
	yy, err := strconv.Atoi(field[:2])
	if err != nil {
		return 0, errors.Wrap(ErrInvalidTLE, "epoch year")
	}
	doy, err := strconv.ParseFloat(field[2:], 64)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidTLE, "epoch day")
	}
	year := 1900 + yy
	if yy < 57 {
		year = 2000 + yy
	}
	// Day 1.0 is January 1st at 0h.
	jan0 := Time2MJD(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)) - 1
	return jan0 + doy, nil
}

var mjdZero = time.Date(1858, 11, 17, 0, 0, 0, 0, time.UTC)

// sgp4At returns the TEME state in meters at an integer UTC second.
func (t *TLE) sgp4At(sec float64) (s, v mathlib.Vector) {
	tm := mjdZero.Add(time.Duration(int64(sec)) * time.Second)
	pos, vel := satellite.Propagate(t.sat, tm.Year(), int(tm.Month()), tm.Day(), tm.Hour(), tm.Minute(), tm.Second())
	return mathlib.NewVector(pos.X, pos.Y, pos.Z).Scale(1e3), mathlib.NewVector(vel.X, vel.Y, vel.Z).Scale(1e3)
}

// ECI returns the state at utc. SGP4 is evaluated on the whole seconds that
// bracket utc and a cubic Hermite interpolation fills the fraction. The
// TEME frame of SGP4 is used as the inertial frame.
func (t *TLE) ECI(utc float64) (CartPos, error) {
	sec := Seconds(utc)
	s0 := math.Floor(sec + 1e-7)
	τ := sec - s0
	if τ < 0 {
		τ = 0
	}
	p0, v0 := t.sgp4At(s0)
	c := CartPos{UTC: utc, S: p0, V: v0}
	if τ > 1e-6 {
		p1, v1 := t.sgp4At(s0 + 1)
		τ2, τ3 := τ*τ, τ*τ*τ
		h00 := 2*τ3 - 3*τ2 + 1
		h10 := τ3 - 2*τ2 + τ
		h01 := -2*τ3 + 3*τ2
		h11 := τ3 - τ2
		c.S = p0.Scale(h00).Add(v0.Scale(h10)).Add(p1.Scale(h01)).Add(v1.Scale(h11))
		d00 := 6*τ2 - 6*τ
		d10 := 3*τ2 - 4*τ + 1
		d01 := -6*τ2 + 6*τ
		d11 := 3*τ2 - 2*τ
		c.V = p0.Scale(d00).Add(v0.Scale(d10)).Add(p1.Scale(d01)).Add(v1.Scale(d11))
	}
	if c.S.IsNaN() || c.V.IsNaN() || c.S.Norm() < REarth*.9 {
		return CartPos{UTC: utc}, errors.Wrapf(ErrInvalidTLE, "sgp4 failed for %d at %f", t.Number, utc)
	}
	r := c.S.Norm()
	c.A = c.S.Scale(-GMEarth / (r * r * r))
	return c, nil
}

// ReadTLEs reads every element set from r. Name lines are optional.
func ReadTLEs(r io.Reader) ([]*TLE, error) {
	var (
		tles []*TLE
		name string
		l1   string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \r")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "1 ") && len(line) == 69:
			l1 = line
		case strings.HasPrefix(line, "2 ") && len(line) == 69 && l1 != "":
			t, err := ParseTLE(name, l1, line)
			if err != nil {
				return tles, err
			}
			tles = append(tles, t)
			name, l1 = "", ""
		default:
			name = strings.TrimPrefix(line, "0 ")
		}
	}
	if err := sc.Err(); err != nil {
		return tles, errors.Wrap(err, "reading TLE")
	}
	return tles, nil
}

// LoadTLEs reads every element set of a file.
func LoadTLEs(path string) ([]*TLE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return ReadTLEs(f)
}
