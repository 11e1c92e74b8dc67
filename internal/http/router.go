// Package httpapi assembles the portal's HTTP surface: the shared middleware
// stack, the return wizards, health and metrics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/metrics"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/middleware"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/httputil"
)

// Registrar mounts a group of routes, such as one tax's wizard.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing service answers.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries what the router needs. Gatherer and Health are optional.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Session  middleware.SessionConfig
	Timeout  time.Duration
	Health   HealthChecker
	Returns  []Registrar
}

type healthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}

// NewRouter wires the middleware stack and every registered return module.
// Health and metrics sit outside the session middleware so probes do not
// mint sessions.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.LatencyMiddleware(d.Metrics))

	r.Get("/health", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(d.Session, d.Logger))
		if d.Timeout > 0 {
			r.Use(middleware.Timeout(d.Timeout))
		}
		for _, ret := range d.Returns {
			ret.Register(r)
		}
	})
	return r
}

func healthHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Cache: "memory"})
			return
		}
		if err := check.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Cache: "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Cache: "redis"})
	}
}
