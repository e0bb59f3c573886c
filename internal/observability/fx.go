package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/jobledger/internal/observability/metrics"
	"go.uber.org/fx"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	return reg
}

func asRegisterer(reg *prometheus.Registry) prometheus.Registerer { return reg }

func asGatherer(reg *prometheus.Registry) prometheus.Gatherer { return reg }

// Module wires the prometheus registry and application instruments.
var Module = fx.Module("observability",
	fx.Provide(
		newRegistry,
		asRegisterer,
		asGatherer,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
)
