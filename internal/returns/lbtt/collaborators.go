package lbtt

import (
	"context"
	"log/slog"
	"time"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/circuit"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

// Calculator works out the tax position of a return. The back office owns
// the real calculation; failures surface on the step that asked for it.
type Calculator interface {
	Calculate(ctx context.Context, r *Return) (Calculation, error)
}

// Submitter files a completed return with the back office.
type Submitter interface {
	Submit(ctx context.Context, r *Return) (Receipt, error)
}

// Receipt acknowledges a filed return.
type Receipt struct {
	Reference   string    `json:"reference"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LoggingSubmitter accepts every return and logs it. It stands in for the
// back office outside production.
type LoggingSubmitter struct {
	logger *slog.Logger
}

func NewLoggingSubmitter(logger *slog.Logger) *LoggingSubmitter {
	return &LoggingSubmitter{logger: logger}
}

func (s *LoggingSubmitter) Submit(ctx context.Context, r *Return) (Receipt, error) {
	receipt := Receipt{Reference: r.Reference, SubmittedAt: requestcontext.Now(ctx)}
	s.logger.InfoContext(ctx, "lbtt return submitted",
		"reference", r.Reference,
		"return_type", r.Type(),
		"total_due", r.Calculation.TotalDue.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return receipt, nil
}

// GuardedCalculator stops asking a failing calculator for a cooldown. The
// step that needed the figures re-renders with the usual retry message.
type GuardedCalculator struct {
	next    Calculator
	breaker *circuit.Breaker
}

func NewGuardedCalculator(next Calculator, breaker *circuit.Breaker) *GuardedCalculator {
	return &GuardedCalculator{next: next, breaker: breaker}
}

func (g *GuardedCalculator) Calculate(ctx context.Context, r *Return) (Calculation, error) {
	return circuit.Call(g.breaker, func() (Calculation, error) { return g.next.Calculate(ctx, r) })
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
