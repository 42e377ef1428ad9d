package physics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	keplerNonConverged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cosmos_kepler_nonconverged_total",
			Help: "Kepler equation solves that stopped on the iteration limit.",
		},
	)

	gjNonConverged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cosmos_gj_nonconverged_total",
			Help: "Gauss-Jackson startups that stopped on the iteration limit.",
		},
	)

	propagationSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cosmos_propagation_steps_total",
			Help: "Node propagation steps by position type.",
		},
		[]string{"type"},
	)
)

// Collectors returns the diagnostic counters of the package so the caller
// can register them.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{keplerNonConverged, gjNonConverged, propagationSteps}
}

// RegisterMetrics registers the diagnostic counters with r.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := r.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
