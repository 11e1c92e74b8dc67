package app

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/config"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/testutil"
)

func TestNewHandlerServesBothTaxes(t *testing.T) {
	t.Setenv("SLFT_SITES", "100=North Quarry")
	handler, err := NewHandler(Deps{
		Config:   config.FromEnv(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    cache.NewMemoryStore(),
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	for _, path := range []string{"/lbtt/return_type", "/slft/period", "/health"} {
		rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatus(t, rr, http.StatusOK)
	}
}

func TestNewHandlerNeedsASite(t *testing.T) {
	cfg := config.FromEnv()
	cfg.SLfT.Sites = nil
	_, err := NewHandler(Deps{
		Config:   cfg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    cache.NewMemoryStore(),
		Registry: prometheus.NewRegistry(),
	})
	require.Error(t, err)
}
