package cosmos

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Detector is an imaging instrument. Angles are in radians, the spectral
// range in meters.
type Detector struct {
	Name    string
	FOV     float64
	IFOV    float64
	SpecMin float64
	SpecMax float64
	State   uint16

	noise *distmv.Normal
}

// NewDetector returns a noiseless detector.
func NewDetector(name string, fov, ifov, specmin, specmax float64) *Detector {
	return &Detector{Name: name, FOV: fov, IFOV: ifov, SpecMin: specmin, SpecMax: specmax}
}

// SetNoise adds zero mean Gaussian noise of standard deviations σρ (meters)
// and σθ (radians) to the range, azimuth and elevation it measures.
func (d *Detector) SetNoise(σρ, σθ float64, seed uint64) error {
	if σρ < 0 || σθ < 0 {
		return errors.Errorf("detector %s: negative noise", d.Name)
	}
	if σρ == 0 && σθ == 0 {
		d.noise = nil
		return nil
	}
	// A zero variance makes the covariance singular.
	v := []float64{math.Max(σρ*σρ, 1e-30), math.Max(σθ*σθ, 1e-30), math.Max(σθ*σθ, 1e-30)}
	cov := mat.NewSymDense(3, []float64{v[0], 0, 0, 0, v[1], 0, 0, 0, v[2]})
	noise, ok := distmv.NewNormal([]float64{0, 0, 0}, cov, rand.NewSource(seed))
	if !ok {
		return errors.Errorf("detector %s: covariance not positive definite", d.Name)
	}
	d.noise = noise
	return nil
}

// Noisy reports whether the detector perturbs its measurements.
func (d *Detector) Noisy() bool {
	return d.noise != nil
}

func (d *Detector) measure(m *Metric) {
	if d.noise == nil {
		return
	}
	n := d.noise.Rand(nil)
	m.MeasuredRange = m.Range + n[0]
	m.MeasuredAzimuth = m.Azimuth + n[1]
	m.MeasuredElevation = m.Elevation + n[2]
}

func (d *Detector) String() string {
	return fmt.Sprintf("%s fov=%.3f° ifov=%.3g rad", d.Name, d.FOV*r2d, d.IFOV)
}
