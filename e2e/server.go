package e2e

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/app"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/config"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
)

// StartPortal returns the portal to test against: PORTAL_URL when set,
// otherwise an in-process portal on the memory cache with two SLfT sites.
func StartPortal() (baseURL string, stop func(), err error) {
	if u := os.Getenv("PORTAL_URL"); u != "" {
		return u, func() {}, nil
	}
	cfg := config.FromEnv()
	cfg.SLfT.Sites = []config.SLfTSite{{ID: "100", Name: "North Quarry"}, {ID: "200", Name: "South Cell"}}
	handler, err := app.NewHandler(app.Deps{
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    cache.NewMemoryStore(),
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		return "", nil, err
	}
	srv := httptest.NewServer(handler)
	return srv.URL, srv.Close, nil
}
