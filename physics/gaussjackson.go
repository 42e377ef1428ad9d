package physics

import (
	"math"
	"sync/atomic"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
	"github.com/pkg/errors"
)

const (
	// ConvergeTolerance is the largest acceleration change, per axis, accepted
	// between two startup passes.
	ConvergeTolerance = 1e-14
	// ConvergeMaxPasses bounds the startup iteration.
	ConvergeMaxPasses = 10
	// MaxChunk bounds the number of steps of one Propagate call.
	MaxChunk = 100000
	// MinAltitude stops the propagation of decayed orbits.
	MinAltitude = 100.
)

// GJState is the life cycle of a GaussJackson.
type GJState uint8

const (
	GJUninitialized GJState = iota
	GJKernelBuilt
	GJBootstrapping
	GJConverged
	GJPropagating
)

func (s GJState) String() string {
	switch s {
	case GJKernelBuilt:
		return "kernel built"
	case GJBootstrapping:
		return "bootstrapping"
	case GJConverged:
		return "converged"
	case GJPropagating:
		return "propagating"
	}
	return "uninitialized"
}

// Step is one slot of the history ring: the location and the summed
// ordinates of the acceleration (S, SS) and angular acceleration (AS), and
// the weighted sums of the current pass (SA, SB).
type Step struct {
	Loc    convert.Location
	S, SS  mathlib.Vector
	SA, SB mathlib.Vector
	AS     mathlib.Vector
}

// GaussJackson integrates a position, and optionally an attitude, with the
// fixed step Gauss-Jackson method. The history holds Order+1 slots around the
// epoch plus one predicted slot; the epoch sits in the center slot.
type GaussJackson struct {
	// Accel sets the ECI acceleration, and the ICRF angular acceleration when
	// the attitude is integrated, of an up to date location.
	Accel func(*convert.Location) error
	// Orient, if set and the attitude is not integrated, sets the attitude of
	// each new slot before its acceleration is evaluated.
	Orient func(*convert.Location) error
	// IntegrateAttitude advances the ICRF attitude with the same tables.
	IntegrateAttitude bool

	Kepler KeplerSolver
	// Iterations is the number of passes of the last Converge.
	Iterations   int
	NonConverged atomic.Uint64

	kernel *Kernel
	order  int
	center int
	dt     float64
	dtj    float64
	steps  []Step
	state  GJState
}

// NewGaussJackson sets up an integrator of the given order starting at utc.
// The step is adjusted so that utc plus the step is exact in days, keeping
// every slot epoch an exact multiple of the step.
func NewGaussJackson(kernels *KernelCache, order int, utc, dt float64) (*GaussJackson, error) {
	if kernels == nil {
		kernels = DefaultKernels
	}
	test := utc + dt/convert.SecondsPerDay
	dtj := test - utc
	dt = convert.SecondsPerDay * dtj
	k, err := kernels.Get(order, dt)
	if err != nil {
		return nil, err
	}
	return &GaussJackson{
		kernel: k,
		order:  k.Order,
		center: k.Order / 2,
		dt:     dt,
		dtj:    dtj,
		steps:  make([]Step, k.Order+2),
		state:  GJKernelBuilt,
	}, nil
}

// DT returns the adjusted step in seconds.
func (g *GaussJackson) DT() float64 { return g.dt }

// Order returns the even order in use.
func (g *GaussJackson) Order() int { return g.order }

// State returns the life cycle state.
func (g *GaussJackson) State() GJState { return g.state }

// Steps returns the history ring. Callers must not modify it.
func (g *GaussJackson) Steps() []Step { return g.steps }

func (g *GaussJackson) evaluate(loc *convert.Location) error {
	if err := loc.Update(); err != nil {
		return err
	}
	if g.Orient != nil && !g.IntegrateAttitude {
		if err := g.Orient(loc); err != nil {
			return err
		}
	}
	if g.Accel == nil {
		return nil
	}
	return g.Accel(loc)
}

// Bootstrap seeds the history around center: seed(k) must return the ECI
// state k steps from the epoch. The attitude of the other slots is spun from
// the center attitude. The history is then converged.
func (g *GaussJackson) Bootstrap(center convert.Location, seed func(k int) (convert.CartPos, error)) error {
	if g.state == GJUninitialized || g.kernel == nil {
		return errors.Wrap(ErrKernelAlloc, "bootstrap before setup")
	}
	g.state = GJBootstrapping
	for j := 0; j <= g.order; j++ {
		k := j - g.center
		loc := center
		eci := center.Pos.ECI
		if k != 0 {
			var err error
			if eci, err = seed(k); err != nil {
				return errors.Wrapf(err, "seeding slot %d", j)
			}
		}
		eci.UTC = center.Pos.ECI.UTC + float64(k)*g.dtj
		eci.J = mathlib.Zero()
		loc.SetECI(eci)
		att := center.Att.ICRF
		if k != 0 {
			t := float64(k) * g.dt
			att.S = att.S.Spin(att.V.Scale(t))
			att.V = att.V.Add(att.A.Scale(t))
		}
		att.UTC = eci.UTC
		loc.SetAttICRF(att)
		g.steps[j] = Step{Loc: loc}
		if err := g.evaluate(&g.steps[j].Loc); err != nil {
			return errors.Wrapf(err, "evaluating slot %d", j)
		}
	}
	g.Converge()
	return nil
}

// InitECI bootstraps from the two-body orbit of the center location.
func (g *GaussJackson) InitECI(center convert.Location) error {
	return g.InitKep(center, convert.ECI2Kep(center.Pos.ECI))
}

// InitKep bootstraps from the given elements, which must describe the center
// location.
func (g *GaussJackson) InitKep(center convert.Location, kep convert.KepStruc) error {
	return g.Bootstrap(center, func(k int) (convert.CartPos, error) {
		return g.Kepler.ECI(kep, float64(k)*g.dt), nil
	})
}

// InitShape bootstraps from the circular orbit of the shape, which must be
// at the epoch of center.
func (g *GaussJackson) InitShape(center convert.Location, shape convert.Shape) error {
	kep, err := shape.Kep(center.Orientation)
	if err != nil {
		return err
	}
	return g.InitKep(center, kep)
}

// InitTLE bootstraps from SGP4 evaluated at each slot epoch.
func (g *GaussJackson) InitTLE(center convert.Location, tle *convert.TLE) error {
	if tle == nil {
		return errors.Wrap(ErrInvalidTLE, "no elements")
	}
	return g.Bootstrap(center, func(k int) (convert.CartPos, error) {
		return tle.ECI(center.Pos.ECI.UTC + float64(k)*g.dtj)
	})
}

// weighted returns Σk w(row, k)·f(slot k) over the history.
func (g *GaussJackson) weighted(row int, w func(j, s int) float64, f func(*Step) mathlib.Vector) mathlib.Vector {
	var sum mathlib.Vector
	for k := 0; k <= g.order; k++ {
		sum = sum.Add(f(&g.steps[k]).Scale(w(row, k)))
	}
	return sum
}

func accelOf(s *Step) mathlib.Vector { return s.Loc.Pos.ECI.A }
func alphaOf(s *Step) mathlib.Vector { return s.Loc.Att.ICRF.A }

// Converge iterates the startup corrector until the accelerations of the
// off-center slots settle, at most ConvergeMaxPasses times. It returns the
// number of passes and whether the tolerance was met; the last pass is kept
// either way.
func (g *GaussJackson) Converge() (int, bool) {
	st := g.steps
	c, n := g.center, g.order
	dt, dt2 := g.dt, g.dt*g.dt
	converged := false
	pass := 0
	for pass < ConvergeMaxPasses && !converged {
		pass++
		ctr := &st[c]
		ctr.S = ctr.Loc.Pos.ECI.V.Scale(1 / dt).Sub(g.weighted(c, g.kernel.b, accelOf))
		ctr.SS = ctr.Loc.Pos.ECI.S.Scale(1 / dt2).Sub(g.weighted(c, g.kernel.a, accelOf))
		ctr.AS = ctr.Loc.Att.ICRF.V.Scale(1 / dt).Sub(g.weighted(c, g.kernel.b, alphaOf))
		for m := 1; m <= c; m++ {
			f, p := &st[c+m], &st[c+m-1]
			f.S = p.S.Add(accelOf(f).Add(accelOf(p)).Scale(.5))
			f.AS = p.AS.Add(alphaOf(f).Add(alphaOf(p)).Scale(.5))
			b, q := &st[c-m], &st[c-m+1]
			b.S = q.S.Sub(accelOf(b).Add(accelOf(q)).Scale(.5))
			b.AS = q.AS.Sub(alphaOf(b).Add(alphaOf(q)).Scale(.5))
		}
		for m := 1; m <= c; m++ {
			f, p := &st[c+m], &st[c+m-1]
			f.SS = p.SS.Add(p.S).Add(accelOf(p).Scale(.5))
			b, q := &st[c-m], &st[c-m+1]
			b.SS = q.SS.Sub(q.S).Add(accelOf(q).Scale(.5))
		}
		ωs := make([]mathlib.Vector, n+1)
		for j := 0; j <= n; j++ {
			if j == c {
				continue
			}
			st[j].SB = g.weighted(j, g.kernel.b, accelOf)
			st[j].SA = g.weighted(j, g.kernel.a, accelOf)
			ωs[j] = st[j].AS.Add(g.weighted(j, g.kernel.b, alphaOf)).Scale(dt)
		}
		δ := 0.
		for j := 0; j <= n; j++ {
			if j == c {
				continue
			}
			s := &st[j]
			old := accelOf(s)
			eci := s.Loc.Pos.ECI
			eci.V = s.S.Add(s.SB).Scale(dt)
			eci.S = s.SS.Add(s.SA).Scale(dt2)
			s.Loc.SetECI(eci)
			if g.IntegrateAttitude {
				att := s.Loc.Att.ICRF
				att.V = ωs[j]
				s.Loc.SetAttICRF(att)
			}
			if err := g.evaluate(&s.Loc); err != nil {
				// A slot that cannot be evaluated keeps its last acceleration.
				continue
			}
			δ = math.Max(δ, accelOf(s).Sub(old).MaxAbs())
		}
		converged = δ <= ConvergeTolerance
	}
	g.Iterations = pass
	if !converged {
		g.NonConverged.Add(1)
		gjNonConverged.Inc()
	}
	g.state = GJConverged
	return pass, converged
}

// spin integrates the attitude quaternion over dt with the angular rate
// varying linearly from ω0 to ω1, in sub-steps of at most 0.01 rad.
func spin(q mathlib.Quaternion, ω0, ω1 mathlib.Vector, dt float64) mathlib.Quaternion {
	if q.Norm() < .5 {
		return q
	}
	astep := 1 + int(math.Max(ω0.Norm(), ω1.Norm())*math.Abs(dt)/.01)
	if astep > 1000 {
		astep = 1000
	}
	h := dt / float64(astep)
	for i := 0; i < astep; i++ {
		f := (float64(i) + .5) / float64(astep)
		ω := ω0.Add(ω1.Sub(ω0).Scale(f))
		q = q.Spin(ω.Scale(h))
	}
	return q
}

// step advances the history by one slot: predict, evaluate, shift, correct
// and evaluate again.
func (g *GaussJackson) step() error {
	st := g.steps
	n := g.order
	dt, dt2 := g.dt, g.dt*g.dt
	last, next := &st[n], &st[n+1]

	next.Loc = last.Loc
	next.SS = last.SS.Add(last.S).Add(accelOf(last).Scale(.5))
	next.SB = g.weighted(n+1, g.kernel.b, accelOf)
	next.SA = g.weighted(n+1, g.kernel.a, accelOf)
	eci := last.Loc.Pos.ECI
	eci.UTC = last.Loc.Pos.ECI.UTC + g.dtj
	eci.V = last.S.Add(accelOf(last).Scale(.5)).Add(next.SB).Scale(dt)
	eci.S = next.SS.Add(next.SA).Scale(dt2)
	next.Loc.SetECI(eci)

	att := last.Loc.Att.ICRF
	att.UTC = eci.UTC
	if g.IntegrateAttitude {
		ω0 := att.V
		att.V = last.AS.Add(alphaOf(last).Scale(.5)).Add(g.weighted(n+1, g.kernel.b, alphaOf)).Scale(dt)
		att.S = spin(att.S, ω0, att.V, dt)
	}
	next.Loc.SetAttICRF(att)
	if err := g.evaluate(&next.Loc); err != nil {
		return err
	}
	next.S = last.S.Add(accelOf(last).Add(accelOf(next)).Scale(.5))
	next.AS = last.AS.Add(alphaOf(last).Add(alphaOf(next)).Scale(.5))

	// Shift, reusing the dropped slot as the next prediction.
	first := st[0]
	copy(st, st[1:])
	st[n+1] = first

	// Correct the new slot with the interpolating row.
	cur, prev := &st[n], &st[n-1]
	cur.SB = g.weighted(n, g.kernel.b, accelOf)
	cur.SA = g.weighted(n, g.kernel.a, accelOf)
	eci = cur.Loc.Pos.ECI
	eci.V = cur.S.Add(cur.SB).Scale(dt)
	eci.S = cur.SS.Add(cur.SA).Scale(dt2)
	cur.Loc.SetECI(eci)
	if g.IntegrateAttitude {
		att := cur.Loc.Att.ICRF
		att.V = cur.AS.Add(g.weighted(n, g.kernel.b, alphaOf)).Scale(dt)
		att.S = spin(prev.Loc.Att.ICRF.S, prev.Loc.Att.ICRF.V, att.V, dt)
		cur.Loc.SetAttICRF(att)
	}
	if err := g.evaluate(&cur.Loc); err != nil {
		return err
	}
	cur.S = prev.S.Add(accelOf(prev).Add(accelOf(cur)).Scale(.5))
	cur.AS = prev.AS.Add(alphaOf(prev).Add(alphaOf(cur)).Scale(.5))
	return nil
}

// Propagate advances the history until it covers utc and returns the number
// of steps taken. Requests against the direction of the step return zero.
func (g *GaussJackson) Propagate(utc float64) (int, error) {
	if g.state < GJConverged {
		return 0, errors.Wrap(ErrNoInitialState, "gauss-jackson not converged")
	}
	g.state = GJPropagating
	dir := math.Copysign(1, g.dtj)
	steps := 0
	for (utc-g.steps[g.order].Loc.Pos.ECI.UTC)*dir > math.Abs(g.dtj)/2 {
		if steps >= MaxChunk {
			break
		}
		if g.steps[g.order].Loc.Pos.Geod.S.H < MinAltitude {
			return steps, errors.Wrapf(ErrTooLow, "at %f", g.steps[g.order].Loc.UTC)
		}
		if err := g.step(); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}

// Loc returns the history slot nearest to utc.
func (g *GaussJackson) Loc(utc float64) convert.Location {
	last := g.steps[g.order].Loc.Pos.ECI.UTC
	back := int(math.Round((last - utc) / g.dtj))
	j := g.order - back
	if j < 0 {
		j = 0
	}
	if j > g.order {
		j = g.order
	}
	return g.steps[j].Loc
}

// Last returns the newest slot of the history.
func (g *GaussJackson) Last() convert.Location {
	return g.steps[g.order].Loc
}

// End releases the history.
func (g *GaussJackson) End() {
	g.steps = nil
	g.state = GJUninitialized
}
