package cosmos

import (
	"github.com/ChristopherRabotin/cosmos/dem"
	"github.com/ChristopherRabotin/cosmos/physics"
	"github.com/prometheus/client_golang/prometheus"
)

var simulatorSteps = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "cosmos_simulator_steps_total",
	Help: "Simulator propagation calls.",
})

var simulatorFailedSteps = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "cosmos_simulator_failed_steps_total",
	Help: "Simulator steps in which at least one node failed to propagate.",
})

// RegisterMetrics registers the counters of the simulator, the propagators
// and the DEM cache with r. Collectors already registered are skipped.
func RegisterMetrics(r prometheus.Registerer) error {
	cs := append([]prometheus.Collector{simulatorSteps, simulatorFailedSteps}, physics.Collectors()...)
	for _, c := range append(cs, dem.Collectors()...) {
		if err := r.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
