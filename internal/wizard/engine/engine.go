// Package engine is the wizard step executor. For one request addressed to a
// step it loads the in-progress object from the scoped cache, binds and
// validates the submitted fields under the step's validation context, merges
// the fragment, asks the navigator for the next step and persists the object
// before redirecting. A failed validation re-caches the object with its
// errors and re-renders the same step.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/metrics"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/bind"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit"
)

var tracer = otel.Tracer("portal/wizard/engine")

// OutcomeKind tells the transport what to do with an Outcome.
type OutcomeKind int

const (
	Render OutcomeKind = iota
	Redirect
)

// Outcome is the result of executing a step: render the step with the object
// and any errors, or redirect to the next location.
type Outcome[M any] struct {
	Kind     OutcomeKind
	Step     string
	Location string
	Data     *M
	Errors   validation.Errors
}

// Config describes a flow.
type Config[M any] struct {
	// Name is the flow identity used in cache keys, metrics and logs.
	Name string
	// Start is where an expired or missing session is sent.
	Start string
	// PathFor builds the URL of a step.
	PathFor func(step string) string
	Cache   *cache.Scoped[M]
	// Key overrides the cache key for a session. Child flows use the key
	// their bridge derives from the parent's.
	Key func(session string) cache.Key
	// New creates the object on first entry.
	New      func() *M
	Validate validation.Func[M]
	// OnExit runs when navigation leaves the flow through a terminal path.
	// It may replace the destination, for example with a confirmation page.
	OnExit func(ctx context.Context, in *Input, m *M, dest flow.Destination) (flow.Destination, error)
}

// Flow executes the steps of one wizard.
type Flow[M any] struct {
	cfg     Config[M]
	steps   map[string]*Step[M]
	order   []string
	nav     *flow.Navigator[M]
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

// Option configures a Flow, or anything else that shares its ambient
// dependencies.
type Option func(*Resolved)

// Resolved is the option set after defaults are applied.
type Resolved struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Audit   audit.Publisher
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Resolved) { o.Logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Resolved) { o.Metrics = m }
}

func WithAudit(p audit.Publisher) Option {
	return func(o *Resolved) { o.Audit = p }
}

// Options applies opts over the defaults: the default logger, no metrics and
// a discarding audit publisher.
func Options(opts ...Option) Resolved {
	o := Resolved{Logger: slog.Default(), Audit: audit.Discard{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Audit == nil {
		o.Audit = audit.Discard{}
	}
	return o
}

// New builds a flow and registers its steps.
func New[M any](cfg Config[M], steps []Step[M], opts ...Option) (*Flow[M], error) {
	if cfg.Name == "" || cfg.Start == "" || cfg.Cache == nil || cfg.PathFor == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "flow requires name, start, cache and path builder")
	}
	o := Options(opts...)
	f := &Flow[M]{
		cfg:     cfg,
		steps:   make(map[string]*Step[M], len(steps)),
		logger:  o.Logger,
		metrics: o.Metrics,
		audit:   o.Audit,
	}
	for i := range steps {
		s := steps[i]
		if s.Name == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("flow %q: step %d has no name", cfg.Name, i))
		}
		if _, dup := f.steps[s.Name]; dup {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("flow %q: duplicate step %q", cfg.Name, s.Name))
		}
		if s.Next.IsZero() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("flow %q: step %q has no next-step rule", cfg.Name, s.Name))
		}
		f.steps[s.Name] = &s
		f.order = append(f.order, s.Name)
	}
	f.nav = flow.NewNavigator[M](f.order...)
	return f, nil
}

// Name returns the flow identity.
func (f *Flow[M]) Name() string {
	return f.cfg.Name
}

// Start returns the redirect target for an expired session.
func (f *Flow[M]) Start() string {
	return f.cfg.Start
}

// Steps returns the registered step names in registration order.
func (f *Flow[M]) Steps() []string {
	return append([]string(nil), f.order...)
}

// Has reports whether step is registered.
func (f *Flow[M]) Has(step string) bool {
	_, ok := f.steps[step]
	return ok
}

// Key returns the cache key of this flow for session.
func (f *Flow[M]) Key(session string) cache.Key {
	if f.cfg.Key != nil {
		return f.cfg.Key(session)
	}
	return cache.NewKey(f.cfg.Name, session)
}

// Current returns the cached object for session without touching it.
func (f *Flow[M]) Current(ctx context.Context, session string) (*M, bool, error) {
	if session == "" {
		return nil, false, nil
	}
	return f.cfg.Cache.Get(ctx, f.Key(session))
}

// Discard deletes the in-progress object for session.
func (f *Flow[M]) Discard(ctx context.Context, session string) error {
	if session == "" {
		return nil
	}
	if err := f.cfg.Cache.Delete(ctx, f.Key(session)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "discard in-progress record")
	}
	f.emit(ctx, audit.EventFlowDiscarded, session, "", "")
	return nil
}

// ExpiredSession is the error returned when the object a step assumes exists
// is no longer cached.
func ExpiredSession(flowName string) error {
	return dErrors.New(dErrors.CodeSessionExpired, fmt.Sprintf("%s: no record in progress", flowName))
}

// Execute runs one request against a step.
func (f *Flow[M]) Execute(ctx context.Context, in *Input) (out Outcome[M], err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "wizard.step")
	span.SetAttributes(
		attribute.String("wizard.flow", f.cfg.Name),
		attribute.String("wizard.step", in.Step),
		attribute.String("http.method", in.Method),
	)
	result := "error"
	defer func() {
		if err != nil {
			result = outcomeLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("wizard.outcome", result))
		span.End()
		if f.metrics != nil {
			f.metrics.ObserveStep(f.cfg.Name, in.Step, result, time.Since(start))
		}
		f.logger.DebugContext(ctx, "wizard step executed",
			"flow", f.cfg.Name,
			"step", in.Step,
			"method", in.Method,
			"outcome", result,
		)
	}()

	step, ok := f.steps[in.Step]
	if !ok {
		return out, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s: unknown step %q", f.cfg.Name, in.Step))
	}
	if in.Session == "" {
		return out, ExpiredSession(f.cfg.Name)
	}
	key := f.Key(in.Session)

	m, attached, err := f.load(ctx, step, in, key)
	if err != nil {
		return out, err
	}

	if !in.Submitted() {
		result = "rendered"
		return Outcome[M]{Kind: Render, Step: step.Name, Data: m, Errors: attached}, nil
	}

	target := any(m)
	if step.Target != nil {
		target = step.Target(m)
	}
	if err := bind.Bind(target, in.Values, step.Fields); err != nil {
		return out, err
	}

	if step.Intercept != nil {
		handled, errs, err := step.Intercept(ctx, in, m)
		if err != nil {
			return out, err
		}
		if handled {
			if err := f.save(ctx, key, step, m, errs); err != nil {
				return out, err
			}
			result = "intercepted"
			return Outcome[M]{Kind: Render, Step: step.Name, Data: m, Errors: errs}, nil
		}
	}

	validate := f.cfg.Validate
	if step.Validate != nil {
		validate = step.Validate
	}
	if !step.SkipValidation && validate != nil {
		if errs := validate(m, step.Context); errs.Any() {
			if err := f.save(ctx, key, step, m, errs); err != nil {
				return out, err
			}
			result = "rejected"
			f.logger.InfoContext(ctx, "wizard step rejected",
				"flow", f.cfg.Name,
				"step", step.Name,
				"errors", len(errs),
			)
			f.emit(ctx, audit.EventStepRejected, in.Session, step.Name, errs.Error())
			return Outcome[M]{Kind: Render, Step: step.Name, Data: m, Errors: errs}, nil
		}
	}

	if step.Merge != nil {
		if err := step.Merge(ctx, in, m); err != nil {
			return f.collaboratorOrFail(ctx, key, step, m, err, &result)
		}
	}
	if step.AfterMerge != nil {
		if err := step.AfterMerge(ctx, in, m); err != nil {
			return f.collaboratorOrFail(ctx, key, step, m, err, &result)
		}
	}

	dest, err := f.nav.Next(step.Name, step.Next, m)
	if err != nil {
		// keep what the user entered even though the flow cannot continue
		_ = f.save(ctx, key, step, m, nil)
		f.logger.ErrorContext(ctx, "wizard navigation failed",
			"flow", f.cfg.Name,
			"step", step.Name,
			"error", err,
		)
		return out, err
	}

	if err := f.save(ctx, key, step, m, nil); err != nil {
		return out, err
	}

	if dest.Terminal() && f.cfg.OnExit != nil {
		dest, err = f.cfg.OnExit(ctx, in, m, dest)
		if err != nil {
			return f.collaboratorOrFail(ctx, key, step, m, err, &result)
		}
	}

	f.emit(ctx, audit.EventStepCompleted, in.Session, step.Name, dest.String())
	result = "advanced"
	location := dest.Path
	if !dest.Terminal() {
		location = f.cfg.PathFor(dest.Step)
	}
	return Outcome[M]{Kind: Redirect, Step: step.Name, Location: location, Data: m}, nil
}

// load resolves the object for step. attached carries the errors of a
// previous failed submit of the same step.
func (f *Flow[M]) load(ctx context.Context, step *Step[M], in *Input, key cache.Key) (*M, validation.Errors, error) {
	if step.Setup != nil {
		m, err := step.Setup(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		if in.Submitted() || in.RecordID != "" {
			return m, nil, nil
		}
		// a re-entry GET shows the errors of the last failed submit
		entry, found, err := f.cfg.Cache.Load(ctx, key)
		if err == nil && found && entry.Step == step.Name {
			return m, entry.Errors, nil
		}
		return m, nil, nil
	}

	entry, found, err := f.cfg.Cache.Load(ctx, key)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load in-progress record")
	}
	if found {
		var attached validation.Errors
		if !in.Submitted() && entry.Step == step.Name {
			attached = entry.Errors
		}
		return entry.Data, attached, nil
	}
	if step.Entry && f.cfg.New != nil {
		return f.cfg.New(), nil, nil
	}
	if f.metrics != nil {
		f.metrics.IncCacheMiss(f.cfg.Name)
	}
	return nil, nil, ExpiredSession(f.cfg.Name)
}

func (f *Flow[M]) save(ctx context.Context, key cache.Key, step *Step[M], m *M, errs validation.Errors) error {
	entry := cache.Entry[M]{Data: m, Errors: errs}
	if errs.Any() {
		entry.Step = step.Name
	}
	if err := f.cfg.Cache.Save(ctx, key, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save in-progress record")
	}
	return nil
}

// collaboratorOrFail turns a collaborator failure into a re-render of the
// current step with the in-progress object preserved; anything else fails
// the request.
func (f *Flow[M]) collaboratorOrFail(ctx context.Context, key cache.Key, step *Step[M], m *M, err error, result *string) (Outcome[M], error) {
	if !dErrors.HasCode(err, dErrors.CodeCollaboratorFailure) {
		return Outcome[M]{}, err
	}
	var errs validation.Errors
	errs.Add(validation.Base, "%s", dErrors.MessageOf(err))
	if saveErr := f.save(ctx, key, step, m, errs); saveErr != nil {
		return Outcome[M]{}, saveErr
	}
	if f.metrics != nil {
		f.metrics.IncCollaboratorFailure(f.cfg.Name, step.Name)
	}
	f.logger.WarnContext(ctx, "wizard collaborator failed",
		"flow", f.cfg.Name,
		"step", step.Name,
		"error", err,
	)
	*result = "collaborator_failure"
	return Outcome[M]{Kind: Render, Step: step.Name, Data: m, Errors: errs}, nil
}

func (f *Flow[M]) emit(ctx context.Context, event audit.EventType, session, step, detail string) {
	if err := f.audit.Emit(ctx, audit.Event{
		Type:    event,
		Flow:    f.cfg.Name,
		Step:    step,
		Session: session,
		Detail:  detail,
	}); err != nil {
		f.logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}

func outcomeLabel(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeSessionExpired):
		return "expired"
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return "not_found"
	case dErrors.HasCode(err, dErrors.CodeUnmappedBranch):
		return "unmapped_branch"
	default:
		return "error"
	}
}
