package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const MetricsPath = "/internal/metrics"

type MetricsEndpoints struct {
	GetMetrics http.Handler
}

// NewMetricsEndpoints exposes the portal registry, which carries the
// verification operation counters and the database pool stats.
func NewMetricsEndpoints(gatherer prometheus.Gatherer) *MetricsEndpoints {
	return &MetricsEndpoints{
		GetMetrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		}),
	}
}

func NewMetricsRoutes(endpoints *MetricsEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Method(http.MethodGet, MetricsPath, endpoints.GetMetrics)
	}
}
