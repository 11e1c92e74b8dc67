package lbtt

import (
	"context"
	"embed"
	"log/slog"
	"net/url"
	"time"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/address"
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
	FlowName         = "lbtt"
	BasePath         = "/lbtt"
	StartPath        = BasePath + "/return_type"
	SummaryPath      = BasePath + "/summary"
	ConfirmationPath = BasePath + "/confirmation"
	PartiesPath      = BasePath + "/parties"
	PropertiesPath   = BasePath + "/properties"

	maxRentYears = 99
)

//go:embed flows/*.yaml
var definitions embed.FS

// Config holds the collaborators and cache settings of the LBTT module.
type Config struct {
	Store      cache.Store
	TTL        time.Duration
	ChildTTL   time.Duration
	Calculator Calculator
	Submitter  Submitter
	Lookup     address.Lookup
}

// Module owns the LBTT return flow and its party and property sub-flows.
type Module struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	audit      audit.Publisher
	returns    *cache.Scoped[Return]
	Return     *engine.Flow[Return]
	Party      *engine.Flow[Party]
	Property   *engine.Flow[Property]
	parties    *subwizard.Bridge[Return, Party]
	properties *subwizard.Bridge[Return, Property]
}

// LoadDefinitions parses the embedded flow documents.
func LoadDefinitions() (*flow.Definition[Return], *flow.Definition[Party], *flow.Definition[Property], error) {
	ret, err := loadDefinition[Return]("flows/return.yaml")
	if err != nil {
		return nil, nil, nil, err
	}
	party, err := loadDefinition[Party]("flows/party.yaml")
	if err != nil {
		return nil, nil, nil, err
	}
	property, err := loadDefinition[Property]("flows/property.yaml")
	if err != nil {
		return nil, nil, nil, err
	}
	return ret, party, property, nil
}

func loadDefinition[T any](name string) (*flow.Definition[T], error) {
	data, err := definitions.ReadFile(name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "read "+name)
	}
	return flow.Load[T](data)
}

// New builds the module. Every flow definition is checked against the
// registered step handlers before the module is returned.
func New(cfg Config, opts ...engine.Option) (*Module, error) {
	if cfg.Store == nil || cfg.Calculator == nil || cfg.Submitter == nil || cfg.Lookup == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lbtt requires a store, calculator, submitter and address lookup")
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

	retDef, partyDef, propertyDef, err := LoadDefinitions()
	if err != nil {
		return nil, err
	}

	partyCache := cache.NewScoped[Party](cfg.Store, cfg.ChildTTL)
	propertyCache := cache.NewScoped[Property](cfg.Store, cfg.ChildTTL)

	m.parties = subwizard.New(subwizard.Config[Return, Party]{
		Name:       "party",
		ParentFlow: FlowName,
		Parent:     m.returns,
		Child:      partyCache,
		New: func(*Return, *engine.Input) (*Party, error) {
			return &Party{ID: domain.NewRecordID()}, nil
		},
		ID: partyID,
		Lookup: func(r *Return, id domain.RecordID) (Party, bool) {
			i, ok := listing.Find(r.Parties, id, partyID)
			if !ok {
				return Party{}, false
			}
			return r.Parties[i], true
		},
		Collection: func(r *Return, _ *Party) (*[]Party, error) { return &r.Parties, nil },
	}, opts...)

	m.properties = subwizard.New(subwizard.Config[Return, Property]{
		Name:       "property",
		ParentFlow: FlowName,
		Parent:     m.returns,
		Child:      propertyCache,
		New: func(r *Return, _ *engine.Input) (*Property, error) {
			if r.ConfirmedReturnType == "" {
				return nil, dErrors.New(dErrors.CodeBadRequest, "choose a return type before adding properties")
			}
			return &Property{ID: domain.NewRecordID(), ReturnType: r.ConfirmedReturnType}, nil
		},
		ID: propertyID,
		Lookup: func(r *Return, id domain.RecordID) (Property, bool) {
			i, ok := listing.Find(r.Properties, id, propertyID)
			if !ok {
				return Property{}, false
			}
			return r.Properties[i], true
		},
		Collection: func(r *Return, _ *Property) (*[]Property, error) { return &r.Properties, nil },
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
		New:      NewReturn,
		Validate: func(r *Return, vc validation.Context) validation.Errors { return r.Validate(vc) },
		OnExit:   m.submit,
	}, retSteps, opts...)
	if err != nil {
		return nil, err
	}

	partySteps, err := engine.Wire(partyDef, m.partySteps())
	if err != nil {
		return nil, err
	}
	m.Party, err = engine.New(engine.Config[Party]{
		Name:     partyDef.Flow,
		Start:    SummaryPath,
		PathFor:  func(step string) string { return PartiesPath + "/" + step },
		Cache:    partyCache,
		Key:      m.parties.Key,
		Validate: func(p *Party, vc validation.Context) validation.Errors { return p.Validate(vc) },
		OnExit:   m.parties.OnExit,
	}, partySteps, opts...)
	if err != nil {
		return nil, err
	}

	propertySteps, err := engine.Wire(propertyDef, m.propertySteps())
	if err != nil {
		return nil, err
	}
	m.Property, err = engine.New(engine.Config[Property]{
		Name:     propertyDef.Flow,
		Start:    SummaryPath,
		PathFor:  func(step string) string { return PropertiesPath + "/" + step },
		Cache:    propertyCache,
		Key:      m.properties.Key,
		Validate: func(p *Property, vc validation.Context) validation.Errors { return p.Validate(vc) },
		OnExit:   m.properties.OnExit,
	}, propertySteps, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func partyID(p *Party) domain.RecordID       { return p.ID }
func propertyID(p *Property) domain.RecordID { return p.ID }

func (m *Module) returnSteps() []engine.Step[Return] {
	linked := func(r *Return) *[]LinkedTransaction { return &r.LinkedTransactions }
	rents := func(r *Return) *[]YearlyRent { return &r.YearlyRents }
	reliefs := func(r *Return) *[]ReliefClaim { return &r.ReliefClaims }

	return []engine.Step[Return]{
		{
			Name:    "return_type",
			Entry:   true,
			Fields:  []string{"return_type"},
			Context: ContextReturnType,
			Merge:   m.changeReturnType,
		},
		{
			Name:    "effective_date",
			Fields:  []string{"effective_date", "contract_date"},
			Context: ContextEffectiveDate,
		},
		{
			Name:       "consideration",
			Fields:     []string{"consideration"},
			Context:    ContextConsideration,
			AfterMerge: m.recalculate,
		},
		{
			Name:      "linked_transactions",
			Fields:    []string{"linked_ind", "linked_transactions"},
			Context:   ContextLinked,
			Intercept: listing.RowActions(linked, func() LinkedTransaction { return LinkedTransaction{} }),
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				if r.LinkedIndicator == domain.No {
					r.LinkedTransactions = nil
					return nil
				}
				r.LinkedTransactions = linkedPolicy.Compact(r.LinkedTransactions)
				return nil
			},
			AfterMerge: m.recalculate,
		},
		{
			Name:    "lease_dates",
			Fields:  []string{"lease_start_date", "lease_end_date"},
			Context: ContextLeaseDates,
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				r.YearlyRents = sizeRents(r.YearlyRents, min(LeaseYears(r.LeaseStart, r.LeaseEnd), maxRentYears))
				return nil
			},
		},
		{
			Name:      "yearly_rents",
			Fields:    []string{"yearly_rents"},
			Context:   ContextRents,
			Intercept: listing.RowActions(rents, func() YearlyRent { return YearlyRent{} }),
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				r.YearlyRents = rentPolicy.Compact(r.YearlyRents)
				return nil
			},
			AfterMerge: m.recalculate,
		},
		{
			Name:       "premium",
			Fields:     []string{"premium"},
			Context:    ContextPremium,
			AfterMerge: m.recalculate,
		},
		{
			Name:    "relief_claimed",
			Fields:  []string{"relief_claimed"},
			Context: ContextReliefClaimed,
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				if r.ReliefClaimed == domain.No {
					r.ReliefClaims = nil
				}
				return nil
			},
			AfterMerge: m.recalculate,
		},
		{
			Name:      "relief_claims",
			Fields:    []string{"relief_claims"},
			Context:   ContextRelief,
			Intercept: listing.RowActions(reliefs, func() ReliefClaim { return ReliefClaim{} }),
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				r.ReliefClaims = reliefPolicy.Compact(r.ReliefClaims)
				return nil
			},
			AfterMerge: m.recalculate,
		},
		{
			Name:       "relief_override",
			Fields:     []string{"relief_claims"},
			Context:    ContextReliefOverride,
			AfterMerge: m.recalculate,
		},
		{
			Name:    "repayment_claim",
			Fields:  []string{"repayment_claimed"},
			Context: ContextRepayment,
			Merge: func(_ context.Context, _ *engine.Input, r *Return) error {
				if r.RepaymentClaimed == domain.No {
					r.clearRepayment()
				}
				return nil
			},
		},
		{Name: "repayment_amount", Fields: []string{"repayment_amount"}, Context: ContextRepayAmount},
		{Name: "repayment_account_holder", Fields: []string{"account_holder"}, Context: ContextAccountHolder},
		{Name: "repayment_bank_details", Fields: []string{"bank_name", "sort_code", "account_number"}, Context: ContextBankDetails},
		{Name: "repayment_authority", Fields: []string{"repayment_authority"}, Context: ContextAuthority},
		{Name: "declaration", Fields: []string{"declaration"}, Context: ContextDeclaration},
	}
}

func (r *Return) clearRepayment() {
	r.RepaymentAmount = domain.Amount{}
	r.AccountHolder = ""
	r.BankName = ""
	r.SortCode = ""
	r.AccountNumber = ""
	r.RepaymentAuthority = ""
}

func sizeRents(rows []YearlyRent, years int) []YearlyRent {
	if years <= 0 {
		return rows
	}
	if len(rows) > years {
		return rows[:years]
	}
	for len(rows) < years {
		rows = listing.AddRow(rows, YearlyRent{})
	}
	return rows
}

func (m *Module) partySteps() []engine.Step[Party] {
	return []engine.Step[Party]{
		{
			Name:    "party_type",
			Fields:  []string{"party_type", "category"},
			Context: ContextPartyType,
			Setup:   m.parties.Setup,
			Merge: func(_ context.Context, _ *engine.Input, p *Party) error {
				if p.Category == CategoryOrganisation {
					p.Forename, p.Surname = "", ""
				} else {
					p.OrganisationName = ""
				}
				if !p.IsAcquirer() {
					p.Email, p.Phone = "", ""
				}
				return nil
			},
		},
		{
			Name:    "party_name",
			Fields:  []string{"forename", "surname", "organisation_name"},
			Context: ContextPartyName,
			Setup:   m.parties.Setup,
		},
		withSetup(address.Step("party_address", func(p *Party) *address.Form { return &p.Address }, m.cfg.Lookup, flow.Rule[Party]{}), m.parties.Setup),
		{
			Name:    "party_contact",
			Fields:  []string{"email", "phone"},
			Context: ContextPartyContact,
			Setup:   m.parties.Setup,
		},
	}
}

func (m *Module) propertySteps() []engine.Step[Property] {
	return []engine.Step[Property]{
		withSetup(address.Step("property_address", func(p *Property) *address.Form { return &p.Address }, m.cfg.Lookup, flow.Rule[Property]{}), m.properties.Setup),
		{
			Name:    "property_details",
			Fields:  []string{"local_authority", "title_number"},
			Context: ContextPropertyDetails,
			Setup:   m.properties.Setup,
		},
		{
			Name:    "property_ads",
			Fields:  []string{"ads_due", "ads_amount"},
			Context: ContextPropertyADS,
			Setup:   m.properties.Setup,
			Merge: func(_ context.Context, _ *engine.Input, p *Property) error {
				if p.ADSDue == domain.No {
					p.ADSAmount = domain.Amount{}
				}
				return nil
			},
		},
	}
}

func withSetup[M any](s engine.Step[M], setup func(context.Context, *engine.Input) (*M, error)) engine.Step[M] {
	s.Setup = setup
	return s
}

// changeReturnType starts the return over when the type changes after
// answers were given under another type. The reference survives; parties,
// properties and any half-built child records do not.
func (m *Module) changeReturnType(ctx context.Context, in *engine.Input, r *Return) error {
	if r.ConfirmedReturnType != "" && r.ConfirmedReturnType != r.ReturnType {
		previous := r.ConfirmedReturnType
		*r = Return{Reference: r.Reference, ReturnType: r.ReturnType}
		if err := m.parties.End(ctx, in.Session); err != nil {
			return err
		}
		if err := m.properties.End(ctx, in.Session); err != nil {
			return err
		}
		m.logger.InfoContext(ctx, "lbtt return type changed, answers reset",
			"reference", r.Reference,
			"from", previous,
			"to", r.ReturnType,
		)
	}
	r.ConfirmedReturnType = r.ReturnType
	return nil
}

func (m *Module) recalculate(ctx context.Context, _ *engine.Input, r *Return) error {
	calc, err := m.cfg.Calculator.Calculate(ctx, r)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeCollaboratorFailure, "the tax calculation is not available at the moment, please try again")
	}
	r.Calculation = calc
	return nil
}

// submit files the return when the flow leaves through the confirmation
// path. Any other exit (back to the summary) passes through untouched.
func (m *Module) submit(ctx context.Context, in *engine.Input, r *Return, dest flow.Destination) (flow.Destination, error) {
	if dest.Path != ConfirmationPath {
		return dest, nil
	}
	receipt, err := m.cfg.Submitter.Submit(ctx, r)
	if err != nil {
		return dest, dErrors.Wrap(err, dErrors.CodeCollaboratorFailure, "the return could not be submitted, please try again")
	}

	if err := m.discard(ctx, in.Session); err != nil {
		// the return is filed; a stale cache entry only expires later
		m.logger.ErrorContext(ctx, "failed to clear submitted lbtt return",
			"reference", receipt.Reference,
			"error", err,
		)
	}
	if m.metrics != nil {
		m.metrics.IncReturnSubmitted(FlowName)
	}
	if err := m.audit.Emit(ctx, audit.Event{
		Type:    audit.EventReturnSubmitted,
		Flow:    FlowName,
		Step:    in.Step,
		Session: in.Session,
		Detail:  receipt.Reference,
	}); err != nil {
		m.logger.WarnContext(ctx, "failed to emit audit event", "event", audit.EventReturnSubmitted, "error", err)
	}
	return flow.Destination{Path: ConfirmationPath + "?reference=" + url.QueryEscape(receipt.Reference)}, nil
}

// discard drops the in-progress return and both child scopes.
func (m *Module) discard(ctx context.Context, session string) error {
	if err := m.Return.Discard(ctx, session); err != nil {
		return err
	}
	if err := m.parties.End(ctx, session); err != nil {
		return err
	}
	return m.properties.End(ctx, session)
}
