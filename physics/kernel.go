package physics

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

const (
	// MinOrder and MaxOrder bound the Gauss-Jackson order.
	MinOrder = 2
	MaxOrder = 16
)

// Kernel holds the Gauss-Jackson coefficient tables of one order. It is
// immutable once built and shared by every integrator of that order and step.
//
// Row j of A and B gives the weights, per history slot k, of the second and
// first sum corrections at slot j. Rows 0 through Order interpolate inside
// the history and row Order+1 extrapolates one step ahead.
type Kernel struct {
	Order int
	DT    float64

	Binom []float64 // (Order+2)², [m*(Order+2)+i]
	C     []float64 // Order+3
	Gam   []float64 // Order+2
	Q     []float64 // Order+3
	Lam   []float64 // Order+3
	Alpha []float64 // (Order+2)×(Order+1)
	Beta  []float64 // (Order+2)×(Order+1)
	A     []float64 // (Order+2)×(Order+1)
	B     []float64 // (Order+2)×(Order+1)
}

// NewKernel builds the tables of the given order. Odd orders are rounded
// down to the even order below.
func NewKernel(order int, dt float64) (*Kernel, error) {
	order = order / 2 * 2
	if order < MinOrder || order > MaxOrder {
		return nil, errors.Wrapf(ErrKernelAlloc, "order %d outside [%d, %d]", order, MinOrder, MaxOrder)
	}
	if dt == 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, errors.Wrapf(ErrKernelAlloc, "step %f", dt)
	}
	n := order
	k := &Kernel{
		Order: n,
		DT:    dt,
		Binom: make([]float64, (n+2)*(n+2)),
		C:     make([]float64, n+3),
		Gam:   make([]float64, n+2),
		Q:     make([]float64, n+3),
		Lam:   make([]float64, n+3),
		Alpha: make([]float64, (n+2)*(n+1)),
		Beta:  make([]float64, (n+2)*(n+1)),
		A:     make([]float64, (n+2)*(n+1)),
		B:     make([]float64, (n+2)*(n+1)),
	}
	w := n + 2
	for m := 0; m < w; m++ {
		for i := 0; i < w; i++ {
			switch {
			case m > i:
			case m == i || m == 0:
				k.Binom[m*w+i] = 1
			default:
				k.Binom[m*w+i] = k.Binom[(m-1)*w+i-1] + k.Binom[m*w+i-1]
			}
		}
	}

	k.C[0] = 1
	for j := 1; j < n+3; j++ {
		for i := 0; i < j; i++ {
			k.C[j] -= k.C[i] / float64(j+1-i)
		}
	}
	k.Gam[0] = k.C[0]
	for i := 1; i < n+2; i++ {
		k.Gam[i] = k.Gam[i-1] + k.C[i]
	}
	k.Q[0] = 1
	for i := 1; i < n+3; i++ {
		for j := 0; j <= i; j++ {
			k.Q[i] += k.C[j] * k.C[i-j]
		}
	}
	k.Lam[0] = k.Q[0]
	for i := 1; i < n+3; i++ {
		k.Lam[i] = k.Lam[i-1] + k.Q[i]
	}

	c := n + 1
	for i := 0; i <= n; i++ {
		k.Beta[(n+1)*c+i] = k.Gam[i+1]
		k.Beta[n*c+i] = k.C[i+1]
		k.Alpha[(n+1)*c+i] = k.Lam[i+2]
		k.Alpha[n*c+i] = k.Q[i+2]
		for j := n - 1; j >= 0; j-- {
			if i == 0 {
				k.Beta[j*c+i] = k.Beta[(j+1)*c+i]
				k.Alpha[j*c+i] = k.Alpha[(j+1)*c+i]
			} else {
				k.Beta[j*c+i] = k.Beta[(j+1)*c+i] - k.Beta[(j+1)*c+i-1]
				k.Alpha[j*c+i] = k.Alpha[(j+1)*c+i] - k.Alpha[(j+1)*c+i-1]
			}
		}
	}

	for j := 0; j < n+2; j++ {
		for m := 0; m <= n; m++ {
			var a, b float64
			for i := m; i <= n; i++ {
				a += k.Alpha[j*c+i] * k.Binom[m*w+i]
				b += k.Beta[j*c+i] * k.Binom[m*w+i]
			}
			if m%2 == 1 {
				a, b = -a, -b
			}
			if n-m == j {
				b += .5
			}
			k.A[j*c+n-m] = a
			k.B[j*c+n-m] = b
		}
	}
	return k, nil
}

// a returns the second sum weight of slot s in row j.
func (k *Kernel) a(j, s int) float64 { return k.A[j*(k.Order+1)+s] }

// b returns the first sum weight of slot s in row j.
func (k *Kernel) b(j, s int) float64 { return k.B[j*(k.Order+1)+s] }

type kernelKey struct {
	order int
	dt    float64
}

// KernelCache shares kernels between integrators.
type KernelCache struct {
	sync.Mutex
	kernels map[kernelKey]*Kernel
}

// DefaultKernels serves integrators that are not given a cache.
var DefaultKernels = &KernelCache{}

// Get returns the kernel of (order, dt), building it on first use.
func (c *KernelCache) Get(order int, dt float64) (*Kernel, error) {
	key := kernelKey{order / 2 * 2, dt}
	c.Lock()
	defer c.Unlock()
	if k, ok := c.kernels[key]; ok {
		return k, nil
	}
	k, err := NewKernel(order, dt)
	if err != nil {
		return nil, err
	}
	if c.kernels == nil {
		c.kernels = make(map[kernelKey]*Kernel)
	}
	c.kernels[key] = k
	return k, nil
}

// Len returns the number of cached kernels.
func (c *KernelCache) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.kernels)
}

// Shutdown drops every cached kernel.
func (c *KernelCache) Shutdown() {
	c.Lock()
	c.kernels = nil
	c.Unlock()
}
