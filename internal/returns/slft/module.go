package slft

import (
	"context"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/platform/metrics"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/listing"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/subwizard"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit"
)

const (
	FlowName         = "slft"
	BasePath         = "/slft"
	StartPath        = BasePath + "/period"
	SummaryPath      = BasePath + "/summary"
	ConfirmationPath = BasePath + "/confirmation"
	WastesPath       = BasePath + "/wastes"
)

//go:embed flows/*.yaml
var definitions embed.FS

// Config holds the sites, collaborators and cache settings of the module.
type Config struct {
	Store     cache.Store
	TTL       time.Duration
	ChildTTL  time.Duration
	Sites     []SiteInfo
	Submitter Submitter
}

// Module owns the SLfT return flow, the waste sub-flow and waste imports.
type Module struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	returns *cache.Scoped[Return]
	Return  *engine.Flow[Return]
	Waste   *engine.Flow[Waste]
	wastes  *subwizard.Bridge[Return, Waste]
}

// LoadDefinitions parses the embedded flow documents.
func LoadDefinitions() (*flow.Definition[Return], *flow.Definition[Waste], error) {
	ret, err := loadDefinition[Return]("flows/return.yaml")
	if err != nil {
		return nil, nil, err
	}
	waste, err := loadDefinition[Waste]("flows/waste.yaml")
	if err != nil {
		return nil, nil, err
	}
	return ret, waste, nil
}

func loadDefinition[T any](name string) (*flow.Definition[T], error) {
	data, err := definitions.ReadFile(name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "read "+name)
	}
	return flow.Load[T](data)
}

func New(cfg Config, opts ...engine.Option) (*Module, error) {
	if cfg.Store == nil || cfg.Submitter == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "slft requires a store and a submitter")
	}
	if len(cfg.Sites) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "slft requires at least one registered site")
	}
	if cfg.ChildTTL <= 0 || cfg.ChildTTL > cfg.TTL {
		// a half-built child never outlives its parent
		cfg.ChildTTL = cfg.TTL / 3
	}
	o := engine.Options(opts...)
	m := &Module{
		cfg:     cfg,
		logger:  o.Logger,
		metrics: o.Metrics,
		audit:   o.Audit,
		returns: cache.NewScoped[Return](cfg.Store, cfg.TTL),
	}

	retDef, wasteDef, err := LoadDefinitions()
	if err != nil {
		return nil, err
	}

	wasteCache := cache.NewScoped[Waste](cfg.Store, cfg.ChildTTL)
	m.wastes = subwizard.New(subwizard.Config[Return, Waste]{
		Name:       "waste",
		ParentFlow: FlowName,
		Parent:     m.returns,
		Child:      wasteCache,
		New: func(r *Return, in *engine.Input) (*Waste, error) {
			site := in.Param("site")
			if _, ok := r.Site(site); !ok {
				return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("site %q is not on this return", site))
			}
			return &Waste{ID: domain.NewRecordID(), SiteID: site}, nil
		},
		ID:     wasteID,
		Lookup: findWaste,
		Collection: func(r *Return, w *Waste) (*[]Waste, error) {
			site, ok := r.Site(w.SiteID)
			if !ok {
				return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("site %q is not on this return", w.SiteID))
			}
			return &site.Wastes, nil
		},
		AfterFold: func(_ context.Context, r *Return) error {
			r.Recalculate()
			return nil
		},
	}, opts...)

	retSteps, err := engine.Wire(retDef, m.returnSteps())
	if err != nil {
		return nil, err
	}
	m.Return, err = engine.New(engine.Config[Return]{
		Name:     FlowName,
		Start:    StartPath,
		PathFor:  func(step string) string { return BasePath + "/" + step },
		Cache:    m.returns,
		New:      func() *Return { return NewReturn(cfg.Sites) },
		Validate: func(r *Return, vc validation.Context) validation.Errors { return r.Validate(vc) },
		OnExit:   m.submit,
	}, retSteps, opts...)
	if err != nil {
		return nil, err
	}

	wasteSteps, err := engine.Wire(wasteDef, m.wasteSteps())
	if err != nil {
		return nil, err
	}
	m.Waste, err = engine.New(engine.Config[Waste]{
		Name:     wasteDef.Flow,
		Start:    SummaryPath,
		PathFor:  func(step string) string { return WastesPath + "/" + step },
		Cache:    wasteCache,
		Key:      m.wastes.Key,
		Validate: func(w *Waste, vc validation.Context) validation.Errors { return w.Validate(vc) },
		OnExit:   m.wastes.OnExit,
	}, wasteSteps, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func wasteID(w *Waste) domain.RecordID { return w.ID }

func findWaste(r *Return, id domain.RecordID) (Waste, bool) {
	for _, s := range r.Sites {
		if i, ok := listing.Find(s.Wastes, id, wasteID); ok {
			return s.Wastes[i], true
		}
	}
	return Waste{}, false
}

func (m *Module) returnSteps() []engine.Step[Return] {
	return []engine.Step[Return]{
		{
			Name:    "period",
			Entry:   true,
			Fields:  []string{"year", "quarter"},
			Context: ContextPeriod,
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				r.Recalculate()
				return nil
			},
		},
		{
			Name:    "credit_claimed",
			Fields:  []string{"credit_claimed"},
			Context: ContextCreditClaimed,
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				if r.CreditClaimed == domain.No {
					r.CreditAmount = domain.Amount{}
				}
				return nil
			},
		},
		{Name: "credit_amount", Fields: []string{"credit_amount"}, Context: ContextCreditAmount},
		{Name: "declaration", Fields: []string{"declaration"}, Context: ContextDeclaration},
	}
}

func (m *Module) wasteSteps() []engine.Step[Waste] {
	return []engine.Step[Waste]{
		{
			Name:    "waste_description",
			Fields:  []string{"ewc_code", "description"},
			Context: ContextWasteDescription,
			Setup:   m.wastes.Setup,
		},
		{
			Name:    "waste_tonnage",
			Fields:  []string{"standard_tonnage", "lower_tonnage", "exempt_tonnage"},
			Context: ContextWasteTonnage,
			Setup:   m.wastes.Setup,
			Merge: func(_ context.Context, _ *engine.Input, w *Waste) error {
				if !w.HasExemptTonnage() {
					w.ExemptionReason = ""
				}
				return nil
			},
		},
		{
			Name:    "waste_exemption",
			Fields:  []string{"exemption_reason"},
			Context: ContextWasteExemption,
			Setup:   m.wastes.Setup,
		},
	}
}

func (m *Module) submit(ctx context.Context, in *engine.Input, r *Return, dest flow.Destination) (flow.Destination, error) {
	if dest.Path != ConfirmationPath {
		return dest, nil
	}
	receipt, err := m.cfg.Submitter.Submit(ctx, r)
	if err != nil {
		return dest, dErrors.Wrap(err, dErrors.CodeCollaboratorFailure, "the return could not be submitted, please try again")
	}
	if err := m.discard(ctx, in.Session); err != nil {
		m.logger.ErrorContext(ctx, "failed to clear submitted slft return",
			"reference", receipt.Reference,
			"error", err,
		)
	}
	if m.metrics != nil {
		m.metrics.IncReturnSubmitted(FlowName)
	}
	m.emit(ctx, audit.EventReturnSubmitted, in.Session, receipt.Reference)
	return flow.Destination{Path: ConfirmationPath + "?reference=" + url.QueryEscape(receipt.Reference)}, nil
}

func (m *Module) discard(ctx context.Context, session string) error {
	if err := m.Return.Discard(ctx, session); err != nil {
		return err
	}
	return m.wastes.End(ctx, session)
}

// DeleteWaste removes one waste line by id.
func (m *Module) DeleteWaste(ctx context.Context, session, id string) error {
	return m.wastes.Delete(ctx, session, id)
}

// StageImport parses a CSV upload for a site and keeps it on the site as a
// pending import, replacing any earlier one. The return is otherwise
// unchanged until the import is confirmed.
func (m *Module) StageImport(ctx context.Context, session, siteID, source string, body io.Reader) (*listing.Pending[Waste], error) {
	r, site, err := m.site(ctx, session, siteID)
	if err != nil {
		return nil, err
	}
	rows, parseErrs, err := ParseWastes(body, siteID)
	if err != nil {
		return nil, err
	}
	site.Pending = listing.Stage(source, rows, parseErrs, wastePolicy, ContextImport)
	if err := m.returns.Put(ctx, m.Return.Key(session), r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save staged import")
	}
	m.emit(ctx, audit.EventImportStaged, session, fmt.Sprintf("site=%s rows=%d problems=%d", siteID, len(site.Pending.Rows), len(site.Pending.Errors)))
	m.logger.InfoContext(ctx, "waste import staged",
		"site", siteID,
		"rows", len(site.Pending.Rows),
		"problems", len(site.Pending.Errors),
	)
	return site.Pending, nil
}

// ConfirmImport replaces the site's waste lines with its pending import.
func (m *Module) ConfirmImport(ctx context.Context, session, siteID string) error {
	r, site, err := m.site(ctx, session, siteID)
	if err != nil {
		return err
	}
	if err := site.Pending.Confirm(&site.Wastes); err != nil {
		return err
	}
	rows := len(site.Wastes)
	site.Pending = nil
	r.Recalculate()
	if err := m.returns.Put(ctx, m.Return.Key(session), r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save confirmed import")
	}
	m.emit(ctx, audit.EventImportConfirmed, session, fmt.Sprintf("site=%s rows=%d", siteID, rows))
	return nil
}

// DiscardImport drops the site's pending import.
func (m *Module) DiscardImport(ctx context.Context, session, siteID string) error {
	r, site, err := m.site(ctx, session, siteID)
	if err != nil {
		return err
	}
	site.Pending = nil
	if err := m.returns.Put(ctx, m.Return.Key(session), r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save return")
	}
	return nil
}

func (m *Module) site(ctx context.Context, session, siteID string) (*Return, *Site, error) {
	r, found, err := m.Return.Current(ctx, session)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load return")
	}
	if !found {
		return nil, nil, engine.ExpiredSession(FlowName)
	}
	site, ok := r.Site(siteID)
	if !ok {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("site %q is not on this return", siteID))
	}
	return r, site, nil
}

func (m *Module) emit(ctx context.Context, event audit.EventType, session, detail string) {
	if err := m.audit.Emit(ctx, audit.Event{
		Type:    event,
		Flow:    FlowName,
		Session: session,
		Detail:  detail,
	}); err != nil {
		m.logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}
