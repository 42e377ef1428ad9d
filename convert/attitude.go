package convert

import (
	"github.com/ChristopherRabotin/cosmos/mathlib"
)

// frameRate returns the angular velocity of the frame defined by m (which
// maps reference vectors into the frame) with respect to the reference, and
// its time derivative, both expressed in the frame.
func frameRate(m, dm, ddm mathlib.Matrix) (w, wd mathlib.Vector) {
	wm := dm.Mul(m.Transpose()).Scale(-1)
	wdm := ddm.Mul(m.Transpose()).Add(dm.Mul(dm.Transpose())).Scale(-1)
	w = mathlib.NewVector(wm[2][1], wm[0][2], wm[1][0])
	wd = mathlib.NewVector(wdm[2][1], wdm[0][2], wdm[1][0])
	return
}

// attIntoFrame expresses an attitude relative to the reference in a frame
// that is itself moving with respect to that reference.
func attIntoFrame(a QAtt, m, dm, ddm mathlib.Matrix) QAtt {
	w, wd := frameRate(m, dm, ddm)
	o := QAtt{UTC: a.UTC, Pass: a.Pass}
	o.S = a.S.Mul(mathlib.FromDCM(m).Conj())
	o.S.Normalize()
	o.V = m.MulVec(a.V).Sub(w)
	o.A = m.MulVec(a.A).Add(dm.MulVec(a.V)).Sub(wd)
	return o
}

// attFromFrame is the inverse of attIntoFrame.
func attFromFrame(a QAtt, m, dm, ddm mathlib.Matrix) QAtt {
	w, wd := frameRate(m, dm, ddm)
	mt := m.Transpose()
	o := QAtt{UTC: a.UTC, Pass: a.Pass}
	o.S = a.S.Mul(mathlib.FromDCM(m))
	o.S.Normalize()
	o.V = mt.MulVec(a.V.Add(w))
	o.A = mt.MulVec(a.A.Sub(dm.MulVec(o.V)).Add(wd))
	return o
}

func (l *Location) attUTC(a QAtt) float64 {
	if a.UTC != 0 {
		return a.UTC
	}
	return l.UTC
}

// AttICRF2Geoc refreshes the Earth-fixed attitude from the inertial one.
func (l *Location) AttICRF2Geoc() error {
	utc := l.attUTC(l.Att.ICRF)
	if err := l.PosExtra(utc); err != nil {
		return err
	}
	a := l.Att.ICRF
	a.UTC = utc
	x := l.Pos.Extra
	l.Att.Geoc = attIntoFrame(a, x.J2E, x.DJ2E, x.DDJ2E)
	return nil
}

// AttGeoc2ICRF refreshes the inertial attitude from the Earth-fixed one.
func (l *Location) AttGeoc2ICRF() error {
	utc := l.attUTC(l.Att.Geoc)
	if err := l.PosExtra(utc); err != nil {
		return err
	}
	a := l.Att.Geoc
	a.UTC = utc
	x := l.Pos.Extra
	l.Att.ICRF = attFromFrame(a, x.J2E, x.DJ2E, x.DDJ2E)
	return nil
}

// AttICRF2LVLH refreshes the attitude relative to the orbital frame of the
// location from the inertial attitude.
func (l *Location) AttICRF2LVLH() error {
	utc := l.attUTC(l.Att.ICRF)
	if utc == 0 {
		return ErrNoTime
	}
	if err := l.PosLVLHBasis(); err != nil {
		return err
	}
	a := l.Att.ICRF
	a.UTC = utc
	x := l.Pos.Extra
	l.Att.LVLH = attIntoFrame(a, x.P2L, x.DP2L, x.DDP2L)
	return nil
}

// AttLVLH2ICRF refreshes the inertial attitude from the LVLH attitude.
func (l *Location) AttLVLH2ICRF() error {
	utc := l.attUTC(l.Att.LVLH)
	if utc == 0 {
		return ErrNoTime
	}
	if err := l.PosLVLHBasis(); err != nil {
		return err
	}
	a := l.Att.LVLH
	a.UTC = utc
	x := l.Pos.Extra
	l.Att.ICRF = attFromFrame(a, x.P2L, x.DP2L, x.DDP2L)
	return nil
}

// topoRate is the rate of the local east-north-up frame about the Earth
// center as seen in the Earth-fixed frame.
func (l *Location) topoRate() mathlib.Vector {
	s, v := l.Pos.Geoc.S, l.Pos.Geoc.V
	r2 := s.Norm2()
	if r2 == 0 {
		return mathlib.Vector{}
	}
	return s.Cross(v).Scale(1 / r2)
}

// AttGeoc2Topo refreshes the topocentric attitude from the Earth-fixed one.
// The topocentric frame is east, north, up at the sub-satellite point.
func (l *Location) AttGeoc2Topo() error {
	a := l.Att.Geoc
	if l.attUTC(a) == 0 {
		return ErrNoTime
	}
	t := l.Pos.Extra.T2G
	o := QAtt{UTC: l.attUTC(a), Pass: a.Pass}
	o.S = a.S.Mul(mathlib.FromDCM(t).Conj())
	o.S.Normalize()
	o.V = t.MulVec(a.V.Sub(l.topoRate()))
	o.A = t.MulVec(a.A)
	l.Att.Topo = o
	return nil
}

// AttTopo2Geoc refreshes the Earth-fixed attitude from the topocentric one.
func (l *Location) AttTopo2Geoc() error {
	a := l.Att.Topo
	if l.attUTC(a) == 0 {
		return ErrNoTime
	}
	t := l.Pos.Extra.T2G
	tt := t.Transpose()
	o := QAtt{UTC: l.attUTC(a), Pass: a.Pass}
	o.S = a.S.Mul(mathlib.FromDCM(t))
	o.S.Normalize()
	o.V = tt.MulVec(a.V).Add(l.topoRate())
	o.A = tt.MulVec(a.A)
	l.Att.Geoc = o
	return nil
}

// updateAtt derives the stale attitude frames from the freshest one. The
// position frames must already be current.
func (l *Location) updateAtt() error {
	at := &l.Att
	if l.maxAttPass() == 0 {
		return nil
	}
	var err error
	switch {
	case at.Geoc.Pass > at.ICRF.Pass && at.Geoc.Pass >= at.Topo.Pass && at.Geoc.Pass >= at.LVLH.Pass:
		err = l.AttGeoc2ICRF()
	case at.Topo.Pass > at.ICRF.Pass && at.Topo.Pass >= at.LVLH.Pass:
		if err = l.AttTopo2Geoc(); err == nil {
			err = l.AttGeoc2ICRF()
		}
	case at.LVLH.Pass > at.ICRF.Pass:
		err = l.AttLVLH2ICRF()
	}
	if err != nil {
		return err
	}
	return l.AttICRF2All()
}

// AttICRF2All refreshes every attitude frame derived from the inertial one.
func (l *Location) AttICRF2All() error {
	pass := l.Att.ICRF.Pass
	if l.Att.ICRF.UTC == 0 {
		l.Att.ICRF.UTC = l.UTC
	}
	l.Att.UTC = l.Att.ICRF.UTC
	if l.Att.Geoc.Pass < pass {
		if err := l.AttICRF2Geoc(); err != nil {
			return err
		}
	}
	if l.Att.Topo.Pass < pass {
		if err := l.AttGeoc2Topo(); err != nil {
			return err
		}
	}
	if l.Att.LVLH.Pass < pass {
		// Below the minimum orbit radius the LVLH attitude keeps its last value.
		if err := l.AttICRF2LVLH(); err != nil && err != ErrRadiusTooSmall {
			return err
		}
	}
	return nil
}
