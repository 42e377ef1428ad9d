package physics

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
)

// GravityModel names a set of spherical harmonic coefficients.
type GravityModel uint8

const (
	// EGM2008 reads egm2008_coef.txt as unnormalized coefficients.
	EGM2008 GravityModel = iota
	// EGM2008Norm reads egm2008_coef.txt as fully normalized coefficients.
	EGM2008Norm
	// PGM2000A reads pgm2000a_coef.txt as unnormalized coefficients.
	PGM2000A
	// PGM2000ANorm reads pgm2000a_coef.txt as fully normalized coefficients.
	PGM2000ANorm
)

func (g GravityModel) String() string {
	switch g {
	case EGM2008:
		return "egm2008"
	case EGM2008Norm:
		return "egm2008norm"
	case PGM2000A:
		return "pgm2000a"
	case PGM2000ANorm:
		return "pgm2000anorm"
	}
	return "gravity(" + strconv.Itoa(int(g)) + ")"
}

// ParseGravityModel is the inverse of GravityModel.String.
func ParseGravityModel(s string) (GravityModel, error) {
	for g := EGM2008; g <= PGM2000ANorm; g++ {
		if g.String() == strings.ToLower(s) {
			return g, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownType, "gravity model %q", s)
}

func (g GravityModel) file() (name string, maxDegree int) {
	if g == PGM2000A || g == PGM2000ANorm {
		return "pgm2000a_coef.txt", 360
	}
	return "egm2008_coef.txt", 100
}

func (g GravityModel) normalized() bool {
	return g == EGM2008Norm || g == PGM2000ANorm
}

// Coefficients are fully normalized spherical harmonic coefficients indexed
// [n][m]. C[0][0] is 1 and the degree one terms are zero.
type Coefficients struct {
	Model  GravityModel
	Degree int
	C, S   [][]float64
}

// NewCoefficients returns zeroed coefficients through degree with C̄00 = 1.
func NewCoefficients(degree int) *Coefficients {
	c := &Coefficients{Degree: degree, C: make([][]float64, degree+1), S: make([][]float64, degree+1)}
	for n := range c.C {
		c.C[n] = make([]float64, n+1)
		c.S[n] = make([]float64, n+1)
	}
	c.C[0][0] = 1
	return c
}

// builtinCoefficients are the EGM2008 normalized terms through degree 4.
func builtinCoefficients() *Coefficients {
	c := NewCoefficients(4)
	c.Model = EGM2008Norm
	c.C[2][0] = -4.84165143790815e-4
	c.C[2][1], c.S[2][1] = -2.06615509074176e-10, 1.38441389137979e-9
	c.C[2][2], c.S[2][2] = 2.43938357328313e-6, -1.40027370385934e-6
	c.C[3][0] = 9.57161207093473e-7
	c.C[3][1], c.S[3][1] = 2.03046201047864e-6, 2.48200415856872e-7
	c.C[3][2], c.S[3][2] = 9.04787894809528e-7, -6.19005475177618e-7
	c.C[3][3], c.S[3][3] = 7.21321757121568e-7, 1.41434926192941e-6
	c.C[4][0] = 5.39965866638991e-7
	c.C[4][1], c.S[4][1] = -5.36321616971e-7, -4.73440265853e-7
	c.C[4][2], c.S[4][2] = 3.50693353367e-7, 6.62671227001e-7
	c.C[4][3], c.S[4][3] = 9.90856766673e-7, -2.00928369177e-7
	c.C[4][4], c.S[4][4] = -1.88560802735e-7, 3.08853169333e-7
	return c
}

// NormFactor returns the full normalization of degree n and order m, such
// that an unnormalized coefficient is NormFactor(n, m) times the normalized
// one.
func NormFactor(n, m int) float64 {
	δ := 2.
	if m == 0 {
		δ = 1
	}
	lnm, _ := math.Lgamma(float64(n - m + 1))
	lnp, _ := math.Lgamma(float64(n + m + 1))
	return math.Sqrt(δ * float64(2*n+1) * math.Exp(lnm-lnp))
}

// CoefficientCache loads coefficient files once per model and keeps them for
// its lifetime. With no directory the built-in low degree set serves every
// model.
type CoefficientCache struct {
	sync.Mutex
	dir    string
	models map[GravityModel]*Coefficients
}

// NewCoefficientCache returns a cache reading files from dir.
func NewCoefficientCache(dir string) *CoefficientCache {
	return &CoefficientCache{dir: dir}
}

// DefaultCoefficients serves nodes that are not given a cache.
var DefaultCoefficients = NewCoefficientCache("")

// Load returns the coefficients of model, reading the file on first use.
func (c *CoefficientCache) Load(model GravityModel) (*Coefficients, error) {
	c.Lock()
	defer c.Unlock()
	if c.models == nil {
		c.models = make(map[GravityModel]*Coefficients)
	}
	if coef, ok := c.models[model]; ok {
		return coef, nil
	}
	var coef *Coefficients
	if c.dir == "" {
		coef = builtinCoefficients()
	} else {
		name, max := model.file()
		f, err := os.Open(filepath.Join(c.dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "gravity model %s", model)
		}
		defer f.Close()
		if coef, err = readCoefficients(f, max, model.normalized()); err != nil {
			return nil, errors.Wrapf(err, "gravity model %s", model)
		}
	}
	coef.Model = model
	c.models[model] = coef
	return coef, nil
}

// Shutdown releases every loaded model.
func (c *CoefficientCache) Shutdown() {
	c.Lock()
	c.models = nil
	c.Unlock()
}

// readCoefficients parses "n m C S [more]" lines. Fortran D exponents are
// accepted. Lines beyond maxDegree are ignored.
func readCoefficients(f io.Reader, maxDegree int, normalized bool) (*Coefficients, error) {
	coef := NewCoefficients(maxDegree)
	degree := 0
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(strings.NewReplacer("D", "E", "d", "e").Replace(sc.Text()))
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, errors.Errorf("line %d: expected degree order C S", line)
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		m, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if n > maxDegree || n < 0 || m < 0 || m > n {
			continue
		}
		cv, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		sv, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if !normalized {
			nf := NormFactor(n, m)
			cv /= nf
			sv /= nf
		}
		coef.C[n][m], coef.S[n][m] = cv, sv
		if n > degree {
			degree = n
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	coef.C[0][0], coef.S[0][0] = 1, 0
	coef.C = coef.C[:degree+1]
	coef.S = coef.S[:degree+1]
	coef.Degree = degree
	return coef, nil
}

// harmonics holds the normalized V̄nm and W̄nm terms of the Cunningham
// recursion, flattened by row of size dim.
type harmonics struct {
	dim  int
	v, w []float64
}

func (h harmonics) V(n, m int) float64 { return h.v[n*h.dim+m] }
func (h harmonics) W(n, m int) float64 { return h.w[n*h.dim+m] }

func newHarmonics(s mathlib.Vector, nmax int) harmonics {
	dim := nmax + 1
	h := harmonics{dim: dim, v: make([]float64, dim*dim), w: make([]float64, dim*dim)}
	R := convert.REarth
	r2 := s.Norm2()
	x0, y0, z0 := R*s.X/r2, R*s.Y/r2, R*s.Z/r2
	ρ := R * R / r2
	h.v[0] = R / math.Sqrt(r2)
	for m := 0; m <= nmax; m++ {
		if m > 0 {
			f := math.Sqrt(float64(2*m+1) / float64(2*m))
			if m == 1 {
				f = math.Sqrt(3)
			}
			pv, pw := h.V(m-1, m-1), h.W(m-1, m-1)
			h.v[m*dim+m] = f * (x0*pv - y0*pw)
			h.w[m*dim+m] = f * (x0*pw + y0*pv)
		}
		if m+1 > nmax {
			break
		}
		k := math.Sqrt(float64(2*m + 3))
		h.v[(m+1)*dim+m] = k * z0 * h.V(m, m)
		h.w[(m+1)*dim+m] = k * z0 * h.W(m, m)
		for n := m + 2; n <= nmax; n++ {
			fn, fm := float64(n), float64(m)
			a := math.Sqrt((2*fn + 1) * (2*fn - 1) / ((fn - fm) * (fn + fm)))
			b := math.Sqrt((2*fn + 1) * (fn + fm - 1) * (fn - fm - 1) / ((2*fn - 3) * (fn + fm) * (fn - fm)))
			h.v[n*dim+m] = a*z0*h.V(n-1, m) - b*ρ*h.V(n-2, m)
			h.w[n*dim+m] = a*z0*h.W(n-1, m) - b*ρ*h.W(n-2, m)
		}
	}
	return h
}

// GravityAccel returns the acceleration of the harmonic field through degree
// at the Earth-fixed position s, in the Earth-fixed frame. Degree zero is the
// point mass. Positions at the center return zero.
func GravityAccel(coef *Coefficients, s mathlib.Vector, degree int) mathlib.Vector {
	if s.Norm() < 1 || s.IsNaN() {
		return mathlib.Zero()
	}
	if coef == nil || degree < 2 {
		degree = 0
	} else if degree > coef.Degree {
		degree = coef.Degree
	}
	h := newHarmonics(s, degree+1)
	var ax, ay, az float64
	for n := 0; n <= degree; n++ {
		if n == 1 {
			continue
		}
		fn := float64(n)
		for m := 0; m <= n; m++ {
			c, sn := 1., 0.
			if coef != nil {
				c, sn = coef.C[n][m], coef.S[n][m]
			}
			if c == 0 && sn == 0 {
				continue
			}
			fm := float64(m)
			if m == 0 {
				k1 := math.Sqrt(.5 * (2*fn + 1) * (fn + 1) * (fn + 2) / (2*fn + 3))
				ax -= c * k1 * h.V(n+1, 1)
				ay -= c * k1 * h.W(n+1, 1)
			} else {
				kp := math.Sqrt((2*fn + 1) * (fn + fm + 1) * (fn + fm + 2) / (2*fn + 3))
				two := 1.
				if m == 1 {
					two = 2
				}
				km := .5 * math.Sqrt((fn-fm+1)*(fn-fm+2)*two*(2*fn+1)/(2*fn+3))
				ax += .5*kp*(-c*h.V(n+1, m+1)-sn*h.W(n+1, m+1)) + km*(c*h.V(n+1, m-1)+sn*h.W(n+1, m-1))
				ay += .5*kp*(-c*h.W(n+1, m+1)+sn*h.V(n+1, m+1)) + km*(-c*h.W(n+1, m-1)+sn*h.V(n+1, m-1))
			}
			k0 := math.Sqrt((2*fn + 1) * (fn + fm + 1) * (fn - fm + 1) / (2*fn + 3))
			az += k0 * (-c*h.V(n+1, m) - sn*h.W(n+1, m))
		}
	}
	g := convert.GMEarth / (convert.REarth * convert.REarth)
	return mathlib.NewVector(g*ax, g*ay, g*az)
}

// NPlgndr returns the fully normalized associated Legendre function P̄nm(x),
// without the Condon-Shortley phase. It returns zero for m > n or |x| > 1.
func NPlgndr(n, m int, x float64) float64 {
	var l Legendre
	return l.P(n, m, x)
}

// Legendre memoises the normalized associated Legendre table of its last
// argument. It is not safe for concurrent use.
type Legendre struct {
	x    float64
	nmax int
	p    []float64
}

// P returns P̄nm(x), rebuilding the table when x or the degree changes.
func (l *Legendre) P(n, m int, x float64) float64 {
	if m < 0 || m > n || math.Abs(x) > 1 || math.IsNaN(x) {
		return 0
	}
	if l.p == nil || x != l.x || n > l.nmax {
		l.build(n, x)
	}
	return l.p[n*(l.nmax+1)+m]
}

func (l *Legendre) build(nmax int, x float64) {
	dim := nmax + 1
	l.x, l.nmax = x, nmax
	l.p = make([]float64, dim*dim)
	c := math.Sqrt(math.Max(0, 1-x*x))
	l.p[0] = 1
	for m := 0; m <= nmax; m++ {
		if m > 0 {
			f := math.Sqrt(float64(2*m+1) / float64(2*m))
			if m == 1 {
				f = math.Sqrt(3)
			}
			l.p[m*dim+m] = f * c * l.p[(m-1)*dim+m-1]
		}
		if m+1 > nmax {
			break
		}
		l.p[(m+1)*dim+m] = math.Sqrt(float64(2*m+3)) * x * l.p[m*dim+m]
		for n := m + 2; n <= nmax; n++ {
			fn, fm := float64(n), float64(m)
			a := math.Sqrt((2*fn + 1) * (2*fn - 1) / ((fn - fm) * (fn + fm)))
			b := math.Sqrt((2*fn + 1) * (fn + fm - 1) * (fn - fm - 1) / ((2*fn - 3) * (fn + fm) * (fn - fm)))
			l.p[n*dim+m] = a*x*l.p[(n-1)*dim+m] - b*l.p[(n-2)*dim+m]
		}
	}
}

// GravityPotential returns the potential (positive, m²/s²) of the harmonic
// field through degree at the Earth-fixed position s.
func GravityPotential(coef *Coefficients, s mathlib.Vector, degree int) float64 {
	var leg Legendre
	return gravityPotential(&leg, coef, s, degree)
}

func gravityPotential(leg *Legendre, coef *Coefficients, s mathlib.Vector, degree int) float64 {
	r := s.Norm()
	if r < 1 || s.IsNaN() {
		return 0
	}
	if coef == nil || degree < 2 {
		degree = 0
	} else if degree > coef.Degree {
		degree = coef.Degree
	}
	sinφ := s.Z / r
	λ := math.Atan2(s.Y, s.X)
	q := convert.REarth / r
	sum := 1.
	qn := q
	leg.P(degree, 0, sinφ)
	for n := 2; n <= degree; n++ {
		qn *= q
		inner := 0.
		for m := 0; m <= n; m++ {
			sm, cm := math.Sincos(float64(m) * λ)
			inner += leg.P(n, m, sinφ) * (coef.C[n][m]*cm + coef.S[n][m]*sm)
		}
		sum += qn * inner
	}
	return convert.GMEarth / r * sum
}

// GravityAccelPotential returns the acceleration as the central difference
// gradient of GravityPotential with step h meters.
func GravityAccelPotential(coef *Coefficients, s mathlib.Vector, degree int, h float64) mathlib.Vector {
	var (
		leg Legendre
		g   mathlib.Vector
	)
	for i := 0; i < 3; i++ {
		sp, sm := s, s
		sp.Set(i, s.At(i)+h)
		sm.Set(i, s.At(i)-h)
		g.Set(i, (gravityPotential(&leg, coef, sp, degree)-gravityPotential(&leg, coef, sm, degree))/(2*h))
	}
	return g
}
