// Package httptransport assembles the public HTTP surface: app endpoints,
// health, and metrics. Business logic lives in the feature services.
package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certo/internal/platform/metrics"
	"certo/pkg/platform/middleware/requestid"
	"certo/pkg/platform/middleware/requesttime"
)

// Registrar mounts a feature's endpoints on the router.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires middlewares, the health and metrics endpoints, and every
// feature handler.
func NewRouter(health *HealthHandler, m *metrics.Metrics, features ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	if m != nil {
		r.Use(instrument(m))
	}

	r.Get("/health", health.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, f := range features {
		f.Register(r)
	}
	return r
}

// instrument records request counts and latency per route pattern, so path
// parameters do not explode the label space.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(ww.Status()/100) + "xx"
			m.RequestsTotal.WithLabelValues(route, status).Inc()
			m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
