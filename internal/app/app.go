// Package app assembles the portal from its parts: both return modules on a
// shared wizard cache, their collaborators and the HTTP router.
package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/address"
	httpapi "github.com/RevenueScotland/sets-online-portal-sub000/internal/http"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/config"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/metrics"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/middleware"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/lbtt"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/slft"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/circuit"
)

const requestTimeout = 30 * time.Second

// Deps are the long-lived resources the portal runs on. Audit and Health are
// optional.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    cache.Store
	Registry *prometheus.Registry
	Audit    audit.Publisher
	Health   httpapi.HealthChecker
}

// NewHandler builds both return modules and mounts them on the router.
func NewHandler(d Deps) (http.Handler, error) {
	m := metrics.NewWith(d.Registry)
	opts := []engine.Option{engine.WithLogger(d.Logger), engine.WithMetrics(m)}
	if d.Audit != nil {
		opts = append(opts, engine.WithAudit(d.Audit))
	}
	cfg := d.Config

	lbttModule, err := lbtt.New(lbtt.Config{
		Store:      d.Store,
		TTL:        cfg.Wizard.CacheTTL,
		ChildTTL:   cfg.Wizard.ChildCacheTTL,
		Calculator: lbtt.NewGuardedCalculator(lbtt.BandCalculator{}, circuit.New("lbtt_calculator")),
		Submitter:  lbtt.NewGuardedSubmitter(lbtt.NewLoggingSubmitter(d.Logger), circuit.New("lbtt_submitter")),
		Lookup:     address.DevelopmentLookup(),
	}, opts...)
	if err != nil {
		return nil, err
	}

	sites := make([]slft.SiteInfo, 0, len(cfg.SLfT.Sites))
	for _, s := range cfg.SLfT.Sites {
		sites = append(sites, slft.SiteInfo{ID: s.ID, Name: s.Name})
	}
	slftModule, err := slft.New(slft.Config{
		Store:     d.Store,
		TTL:       cfg.Wizard.CacheTTL,
		ChildTTL:  cfg.Wizard.ChildCacheTTL,
		Sites:     sites,
		Submitter: slft.NewGuardedSubmitter(slft.NewLoggingSubmitter(d.Logger), circuit.New("slft_submitter")),
	}, opts...)
	if err != nil {
		return nil, err
	}

	return httpapi.NewRouter(httpapi.Deps{
		Logger:   d.Logger,
		Metrics:  m,
		Gatherer: d.Registry,
		Session: middleware.SessionConfig{
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.CookieSecure,
		},
		Timeout: requestTimeout,
		Health:  d.Health,
		Returns: []httpapi.Registrar{
			lbtt.NewHandler(lbttModule, d.Logger),
			slft.NewHandler(slftModule, d.Logger),
		},
	}), nil
}
