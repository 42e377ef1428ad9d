package convert

import (
	"math"

	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// MinOrbitRadius is the smallest radius for which an orbital frame is built.
const MinOrbitRadius = 1e6

// unitRates returns the unit vector of w and its first two time derivatives.
func unitRates(w, wd, wdd mathlib.Vector) (u, ud, udd mathlib.Vector) {
	n := w.Norm()
	if n == 0 {
		return
	}
	u = w.Scale(1 / n)
	nd := u.Dot(wd)
	ud = wd.Sub(u.Scale(nd)).Scale(1 / n)
	ndd := ud.Dot(wd) + u.Dot(wdd)
	udd = wdd.Sub(ud.Scale(2 * nd)).Sub(u.Scale(ndd)).Scale(1 / n)
	return
}

// LVLHBasis returns the matrix whose rows are the LVLH axes of the orbit of
// c, expressed in the frame of c, along with its first and second time
// derivatives. z points to the center, y opposite the orbit normal and x
// completes the right-handed set (along-track for circular orbits).
func LVLHBasis(c CartPos) (p2l, dp2l, ddp2l mathlib.Matrix, err error) {
	if c.S.Norm() < MinOrbitRadius || c.S.IsNaN() || c.V.IsNaN() {
		return mathlib.Eye(), mathlib.Matrix{}, mathlib.Matrix{}, ErrRadiusTooSmall
	}
	z, zd, zdd := unitRates(c.S.Neg(), c.V.Neg(), c.A.Neg())
	h := c.S.Cross(c.V)
	if h.Norm() == 0 {
		return mathlib.Eye(), mathlib.Matrix{}, mathlib.Matrix{}, ErrRadiusTooSmall
	}
	hd := c.S.Cross(c.A)
	hdd := c.V.Cross(c.A).Add(c.S.Cross(c.J))
	y, yd, ydd := unitRates(h.Neg(), hd.Neg(), hdd.Neg())
	x := y.Cross(z)
	xd := yd.Cross(z).Add(y.Cross(zd))
	xdd := ydd.Cross(z).Add(yd.Cross(zd).Scale(2)).Add(y.Cross(zdd))
	p2l = mathlib.FromRows(x, y, z)
	dp2l = mathlib.FromRows(xd, yd, zd)
	ddp2l = mathlib.FromRows(xdd, ydd, zdd)
	return
}

// ECI2LVLH returns the state of sat relative to origin, expressed in the LVLH
// frame of origin, including the rotation of that frame.
func ECI2LVLH(origin, sat CartPos) (CartPos, error) {
	p, dp, ddp, err := LVLHBasis(origin)
	if err != nil {
		return CartPos{UTC: sat.UTC, Pass: sat.Pass}, err
	}
	d := sat.S.Sub(origin.S)
	dv := sat.V.Sub(origin.V)
	da := sat.A.Sub(origin.A)
	dj := sat.J.Sub(origin.J)
	l := CartPos{UTC: sat.UTC, Pass: sat.Pass}
	l.S = p.MulVec(d)
	l.V = p.MulVec(dv).Add(dp.MulVec(d))
	l.A = p.MulVec(da).Add(dp.MulVec(dv).Scale(2)).Add(ddp.MulVec(d))
	l.J = p.MulVec(dj).Add(dp.MulVec(da).Scale(3)).Add(ddp.MulVec(dv).Scale(3))
	return l, nil
}

// LVLH2ECI is the inverse of ECI2LVLH.
func LVLH2ECI(origin, lvlh CartPos) (CartPos, error) {
	p, dp, ddp, err := LVLHBasis(origin)
	if err != nil {
		return CartPos{UTC: lvlh.UTC, Pass: lvlh.Pass}, err
	}
	pt := p.Transpose()
	d := pt.MulVec(lvlh.S)
	dv := pt.MulVec(lvlh.V.Sub(dp.MulVec(d)))
	da := pt.MulVec(lvlh.A.Sub(dp.MulVec(dv).Scale(2)).Sub(ddp.MulVec(d)))
	dj := pt.MulVec(lvlh.J.Sub(dp.MulVec(da).Scale(3)).Sub(ddp.MulVec(dv).Scale(3)))
	c := CartPos{UTC: lvlh.UTC, Pass: lvlh.Pass}
	c.S = origin.S.Add(d)
	c.V = origin.V.Add(dv)
	c.A = origin.A.Add(da)
	c.J = origin.J.Add(dj)
	return c, nil
}

// PosLVLHBasis refreshes the orbital frame of the location itself. On failure
// the previous basis is kept.
func (l *Location) PosLVLHBasis() error {
	p, dp, ddp, err := LVLHBasis(l.Pos.ECI)
	if err != nil {
		return err
	}
	x := &l.Pos.Extra
	x.P2L, x.DP2L, x.DDP2L = p, dp, ddp
	x.E2L = mathlib.FromDCM(p)
	return nil
}

// PosECI2LVLH refreshes the LVLH state relative to the origin.
func (l *Location) PosECI2LVLH() error {
	if l.Origin == nil {
		return ErrNoOrigin
	}
	lv, err := ECI2LVLH(*l.Origin, l.Pos.ECI)
	if err != nil {
		return err
	}
	l.Pos.LVLH = lv
	return nil
}

// PosLVLH2ECI refreshes the ECI state from the LVLH state and the origin.
func (l *Location) PosLVLH2ECI() error {
	if l.Origin == nil {
		return ErrNoOrigin
	}
	if l.Pos.LVLH.UTC == 0 {
		l.Pos.LVLH.UTC = l.Origin.UTC
	}
	c, err := LVLH2ECI(*l.Origin, l.Pos.LVLH)
	if err != nil {
		return err
	}
	l.Pos.ECI = c
	return nil
}

// RIC2LVLH maps radial, in-track, cross-track offsets onto LVLH axes.
func RIC2LVLH(ric CartPos) CartPos {
	f := func(v mathlib.Vector) mathlib.Vector { return mathlib.NewVector(v.Y, -v.Z, -v.X) }
	return CartPos{UTC: ric.UTC, S: f(ric.S), V: f(ric.V), A: f(ric.A), J: f(ric.J), Pass: ric.Pass}
}

// LVLH2RIC is the inverse of RIC2LVLH.
func LVLH2RIC(lvlh CartPos) CartPos {
	f := func(v mathlib.Vector) mathlib.Vector { return mathlib.NewVector(-v.Z, v.X, -v.Y) }
	return CartPos{UTC: lvlh.UTC, S: f(lvlh.S), V: f(lvlh.V), A: f(lvlh.A), J: f(lvlh.J), Pass: lvlh.Pass}
}

// RIC2ECI places a satellite at curvilinear radial, in-track and cross-track
// offsets from origin: the in-track and cross-track offsets are arc lengths
// on the sphere of the origin radius, and the resulting velocity is scaled to
// the circular speed of the new radius.
func RIC2ECI(origin CartPos, ric mathlib.Vector) (CartPos, error) {
	rad := origin.S.Norm()
	if rad < MinOrbitRadius {
		return CartPos{UTC: origin.UTC}, ErrRadiusTooSmall
	}
	n := origin.S.Cross(origin.V).Unit()
	along := n.Cross(origin.S).Unit()
	vmag := math.Sqrt(GMEarth / rad)

	qi := mathlib.FromAxisAngle(n, ric.Y/rad)
	pos := qi.Rotate(origin.S)
	vel := qi.Rotate(origin.V)
	caxis := qi.Rotate(along.Neg())
	qc := mathlib.FromAxisAngle(caxis, ric.Z/rad)
	pos = qc.Rotate(pos)
	vel = qc.Rotate(vel)

	pos = pos.Scale((ric.X + rad) / rad)
	vel = vel.Scale(math.Sqrt(GMEarth/pos.Norm()) / vmag)
	return CartPos{UTC: origin.UTC, S: pos, V: vel}, nil
}
