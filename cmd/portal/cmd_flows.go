package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/app"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/config"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/lbtt"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/slft"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Inspect the embedded wizard flow definitions",
}

var flowsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load every flow definition and wire it to its step handlers",
	Args:  cobra.NoArgs,
	RunE:  runFlowsCheck,
}

func init() {
	flowsCmd.AddCommand(flowsCheckCmd)
}

func runFlowsCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	ret, party, property, err := lbtt.LoadDefinitions()
	if err != nil {
		return fmt.Errorf("lbtt flows: %w", err)
	}
	describe(out, ret)
	describe(out, party)
	describe(out, property)

	sret, waste, err := slft.LoadDefinitions()
	if err != nil {
		return fmt.Errorf("slft flows: %w", err)
	}
	describe(out, sret)
	describe(out, waste)

	// building the portal wires every definition to its registered steps
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := app.NewHandler(app.Deps{
		Config:   cfg,
		Logger:   slog.New(slog.DiscardHandler),
		Store:    cache.NewMemoryStore(),
		Registry: prometheus.NewRegistry(),
	}); err != nil {
		return fmt.Errorf("wire step handlers: %w", err)
	}
	fmt.Fprintln(out, "every step has a handler")
	return nil
}

func describe[T any](out io.Writer, d *flow.Definition[T]) {
	fmt.Fprintf(out, "%s: start %s, %d lists, %d steps\n", d.Flow, d.Start, len(d.Lists), len(d.Steps()))
}
