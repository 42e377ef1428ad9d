package physics

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestKernelSeries(t *testing.T) {
	k, err := NewKernel(8, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, -.5, -1. / 12, -1. / 24}
	for i, w := range want {
		if !scalar.EqualWithinAbs(k.C[i], w, 1e-15) {
			t.Fatalf("c[%d] = %g, want %g", i, k.C[i], w)
		}
	}
	if len(k.A) != 10*9 || len(k.B) != 10*9 {
		t.Fatalf("tables sized %d and %d", len(k.A), len(k.B))
	}
	// Every row is finite.
	for j := 0; j <= k.Order+1; j++ {
		var sum float64
		for s := 0; s <= k.Order; s++ {
			sum += k.b(j, s)
		}
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			t.Fatalf("row %d: %g", j, sum)
		}
	}
}

func TestKernelOrders(t *testing.T) {
	k, err := NewKernel(9, 5)
	if err != nil {
		t.Fatal(err)
	}
	if k.Order != 8 {
		t.Fatalf("odd order rounded to %d", k.Order)
	}
	for _, order := range []int{0, 1, 18, -2} {
		if _, err := NewKernel(order, 10); errors.Cause(err) != ErrKernelAlloc {
			t.Fatalf("order %d: expected ErrKernelAlloc, got %v", order, err)
		}
	}
	for _, dt := range []float64{0, math.NaN(), math.Inf(1)} {
		if _, err := NewKernel(8, dt); errors.Cause(err) != ErrKernelAlloc {
			t.Fatalf("dt %f: expected ErrKernelAlloc, got %v", dt, err)
		}
	}
}

func TestKernelCache(t *testing.T) {
	var c KernelCache
	a, err := c.Get(8, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Get(9, 10)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || c.Len() != 1 {
		t.Fatalf("kernels not shared: %d cached", c.Len())
	}
	if _, err := c.Get(6, 10); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("%d cached", c.Len())
	}
	if _, err := c.Get(20, 10); err == nil {
		t.Fatal("invalid order was cached")
	}
	c.Shutdown()
	if c.Len() != 0 {
		t.Fatal("shutdown kept kernels")
	}
}
