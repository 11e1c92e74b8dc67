package slft

import (
	"context"
	"log/slog"
	"time"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/circuit"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

// Submitter files a completed landfill tax return with the back office.
type Submitter interface {
	Submit(ctx context.Context, r *Return) (Receipt, error)
}

// Receipt acknowledges a filed return.
type Receipt struct {
	Reference   string    `json:"reference"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LoggingSubmitter accepts every return and logs it.
type LoggingSubmitter struct {
	logger *slog.Logger
}

func NewLoggingSubmitter(logger *slog.Logger) *LoggingSubmitter {
	return &LoggingSubmitter{logger: logger}
}

func (s *LoggingSubmitter) Submit(ctx context.Context, r *Return) (Receipt, error) {
	s.logger.InfoContext(ctx, "slft return submitted",
		"reference", r.Reference,
		"period", r.Year+" "+r.Quarter,
		"waste_lines", r.WasteCount(),
		"total_tax", r.Totals.TotalTax.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return Receipt{Reference: r.Reference, SubmittedAt: requestcontext.Now(ctx)}, nil
}

// GuardedSubmitter stops filing with a failing back office for a cooldown.
type GuardedSubmitter struct {
	next    Submitter
	breaker *circuit.Breaker
}

func NewGuardedSubmitter(next Submitter, breaker *circuit.Breaker) *GuardedSubmitter {
	return &GuardedSubmitter{next: next, breaker: breaker}
}

func (g *GuardedSubmitter) Submit(ctx context.Context, r *Return) (Receipt, error) {
	return circuit.Call(g.breaker, func() (Receipt, error) { return g.next.Submit(ctx, r) })
}
