package physics

import (
	"math"
	"sync/atomic"

	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// KeplerSolver steps Keplerian elements in time and counts the solves which
// did not converge. The best iterate is used in that case.
type KeplerSolver struct {
	Solves       atomic.Uint64
	NonConverged atomic.Uint64
}

// Solve returns the eccentric anomaly of mean anomaly M.
func (k *KeplerSolver) Solve(M, e float64) float64 {
	E, _, ok := convert.SolveKepler(M, e)
	k.Solves.Add(1)
	if !ok {
		k.NonConverged.Add(1)
		keplerNonConverged.Inc()
	}
	return E
}

// Advance returns the elements dt seconds after kep along the unperturbed
// orbit. The epoch moves by exactly convert.Days(dt).
func (k *KeplerSolver) Advance(kep convert.KepStruc, dt float64) convert.KepStruc {
	if kep.MM == 0 {
		kep.MM = math.Sqrt(convert.GMEarth / (kep.A * kep.A * kep.A))
		kep.Period = 2 * math.Pi / kep.MM
	}
	kep.MA = mathlib.Ranrm(kep.MA + kep.MM*dt)
	kep.EA = k.Solve(kep.MA, kep.E)
	kep.TA = mathlib.Ranrm(convert.EA2TA(kep.EA, kep.E))
	kep.UTC += convert.Days(dt)
	return kep
}

// ECI returns the inertial state dt seconds after kep.
func (k *KeplerSolver) ECI(kep convert.KepStruc, dt float64) convert.CartPos {
	next := k.Advance(kep, dt)
	c := convert.Kep2ECI(next)
	c.UTC = kep.UTC + convert.Days(dt)
	return c
}
