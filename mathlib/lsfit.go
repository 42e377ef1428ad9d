package mathlib

import "math"

type fitElement struct {
	x float64
	y [4]float64
}

// LsFit is a windowed least-squares polynomial fitter over a time series of
// scalars, vectors or quaternions. Each Update pushes one sample into a FIFO
// of at most Count samples and refits every axis.
type LsFit struct {
	count      int
	order      int
	resolution float64
	depth      int
	basex      float64
	samples    []fitElement
	parms      [][]float64
	meanx      float64
	stdevx     float64
}

// NewLsFit returns a fitter keeping count samples and fitting polynomials of
// the given order. Samples closer than resolution to the last one replace it.
func NewLsFit(count, order int, resolution float64) *LsFit {
	if order < 1 {
		order = 1
	}
	if count <= order {
		count = order + 1
	}
	return &LsFit{count: count, order: order, resolution: resolution}
}

// Update adds a scalar sample.
func (f *LsFit) Update(x, y float64) {
	f.update(fitElement{x: x, y: [4]float64{y}}, 1)
}

// UpdateVector adds a vector sample.
func (f *LsFit) UpdateVector(x float64, y Vector) {
	f.update(fitElement{x: x, y: [4]float64{y.X, y.Y, y.Z}}, 3)
}

// UpdateQuaternion adds a quaternion sample. If the new sample is closer to
// the negation of the previous one than to the previous one itself, the whole
// history is negated first so the fit never crosses the double cover.
func (f *LsFit) UpdateQuaternion(x float64, q Quaternion) {
	if n := len(f.samples); n > 0 && f.depth == 4 {
		last := f.samples[n-1].quaternion()
		if q.Sub(last).Norm() > q.Neg().Sub(last).Norm() {
			for i := range f.samples {
				for j := range f.samples[i].y {
					f.samples[i].y[j] = -f.samples[i].y[j]
				}
			}
		}
	}
	f.update(fitElement{x: x, y: [4]float64{q.D.X, q.D.Y, q.D.Z, q.W}}, 4)
}

func (e fitElement) quaternion() Quaternion {
	return NewQuaternion(e.y[0], e.y[1], e.y[2], e.y[3])
}

func (f *LsFit) update(e fitElement, depth int) {
	if n := len(f.samples); n > 0 {
		if e.x == f.samples[n-1].x {
			return
		}
		if math.Abs(e.x-f.samples[n-1].x) < f.resolution {
			f.samples = f.samples[:n-1]
		}
	}
	f.depth = depth
	f.samples = append(f.samples, e)
	if len(f.samples) > f.count {
		f.samples = f.samples[len(f.samples)-f.count:]
	}
	if len(f.samples) > f.order {
		f.fit()
	}
}

func (f *LsFit) fit() {
	f.basex = f.samples[0].x
	n := float64(len(f.samples))
	xs := make([]float64, len(f.samples))
	var sum, sum2 float64
	for i, s := range f.samples {
		xs[i] = s.x
		cx := s.x - f.basex
		sum += cx
		sum2 += cx * cx
	}
	f.meanx = sum / n
	f.stdevx = math.Sqrt(math.Max(sum2-sum*sum/n, 0)) / (n - 1)

	f.parms = f.parms[:0]
	ys := make([]float64, len(f.samples))
	for axis := 0; axis < f.depth; axis++ {
		for i, s := range f.samples {
			ys[i] = s.y[axis]
		}
		a, err := LeastSquares(xs, ys, f.order, f.basex)
		if err != nil {
			a = make([]float64, f.order+1)
			a[0] = ys[len(ys)-1]
		}
		f.parms = append(f.parms, a)
	}
}

// Ready returns whether enough samples were collected to produce a fit.
func (f *LsFit) Ready() bool {
	return len(f.samples) > f.order && len(f.parms) > 0
}

// LastX returns the independent value of the most recent sample.
func (f *LsFit) LastX() float64 {
	if len(f.samples) == 0 {
		return 0
	}
	return f.samples[len(f.samples)-1].x
}

// FirstX returns the independent value of the oldest sample.
func (f *LsFit) FirstX() float64 {
	if len(f.samples) == 0 {
		return 0
	}
	return f.samples[0].x
}

// MeanX returns the mean offset of the fitted independent values.
func (f *LsFit) MeanX() float64 {
	return f.meanx
}

func (f *LsFit) axis(i int) []float64 {
	if !f.Ready() || i >= len(f.parms) {
		return nil
	}
	return f.parms[i]
}

// Eval returns the fitted scalar at x.
func (f *LsFit) Eval(x float64) float64 {
	return EvalPoly(x-f.basex, f.axis(0))
}

// Slope returns the fitted scalar slope at x.
func (f *LsFit) Slope(x float64) float64 {
	return EvalPolySlope(x-f.basex, f.axis(0))
}

// EvalVector returns the fitted vector at x.
func (f *LsFit) EvalVector(x float64) Vector {
	return EvalPolyVector(x-f.basex, [3][]float64{f.axis(0), f.axis(1), f.axis(2)})
}

// SlopeVector returns the fitted vector slope at x.
func (f *LsFit) SlopeVector(x float64) Vector {
	return EvalPolyVectorSlope(x-f.basex, [3][]float64{f.axis(0), f.axis(1), f.axis(2)})
}

// EvalQuaternion returns the fitted, normalized quaternion at x.
func (f *LsFit) EvalQuaternion(x float64) Quaternion {
	q := EvalPolyQuaternion(x-f.basex, [4][]float64{f.axis(0), f.axis(1), f.axis(2), f.axis(3)})
	q.Normalize()
	return q
}

// SlopeQuaternion returns the fitted quaternion rate at x.
func (f *LsFit) SlopeQuaternion(x float64) Quaternion {
	return EvalPolyQuaternionSlope(x-f.basex, [4][]float64{f.axis(0), f.axis(1), f.axis(2), f.axis(3)})
}

// Parms returns a copy of the fitted coefficients, one slice per axis, along
// with the independent offset they apply to.
func (f *LsFit) Parms() (basex float64, parms [][]float64) {
	parms = make([][]float64, len(f.parms))
	for i, p := range f.parms {
		parms[i] = append([]float64(nil), p...)
	}
	return f.basex, parms
}
