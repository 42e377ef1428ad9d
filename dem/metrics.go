package dem

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tileLoads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cosmos_dem_tile_loads_total",
		Help: "DEM tiles read from disk.",
	})
	tileEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cosmos_dem_evictions_total",
		Help: "DEM tiles dropped to make room for another.",
	})
	budgetShrinks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cosmos_dem_budget_shrinks_total",
		Help: "Tile loads that did not fit and shrank the memory budget.",
	})
)

// Collectors returns the DEM counters for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{tileLoads, tileEvictions, budgetShrinks}
}
