package engine

import (
	"context"
	"net/http"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/bind"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
)

// NewRecord is the identifier parameter value that asks for a fresh sub-record.
const NewRecord = "new"

// Input is one inbound request addressed to a step.
type Input struct {
	Step    string
	Session string
	Method  string
	Values  bind.Values
	// RecordID selects the sub-record a child step edits: NewRecord, a
	// concrete identifier, or "" to re-enter whatever the child cache holds.
	RecordID string
	// Continue marks a return from an external round trip; setup must not
	// repeat that round trip or reload from the parent.
	Continue bool
	// Action names a strategy action such as "find" or "add_row".
	Action string
	// Params carries route parameters such as a site identifier.
	Params map[string]string
}

// Submitted reports whether the request is a POST.
func (in *Input) Submitted() bool {
	return in.Method == http.MethodPost
}

// Param returns a route parameter.
func (in *Input) Param(name string) string {
	return in.Params[name]
}

// Step is the declarative description of one page of a flow.
type Step[M any] struct {
	Name string
	// Fields is the allow-list of json field names bound from a submit.
	Fields []string
	// Context selects the validation rules for this step.
	Context validation.Context
	// SkipValidation marks a step that only decides branching.
	SkipValidation bool
	// Validate replaces the flow's validation for this step. Strategies that
	// own a fragment, such as the address step, carry their own rules.
	Validate validation.Func[M]
	// Entry steps may create a fresh object when nothing is cached yet.
	Entry bool

	// Setup loads the object. The default loads the flow's cache entry.
	Setup func(ctx context.Context, in *Input) (*M, error)
	// Target picks the part of the object that submitted fields bind onto.
	// The default is the object itself.
	Target func(m *M) any
	// Intercept runs after binding. When it reports handled, the object is
	// re-cached with the returned errors and the step re-renders without
	// validating or advancing.
	Intercept func(ctx context.Context, in *Input, m *M) (handled bool, errs validation.Errors, err error)
	// Merge folds the bound fragment into the object it belongs to.
	Merge func(ctx context.Context, in *Input, m *M) error
	// AfterMerge runs derived-value work such as tax recalculation. A
	// collaborator failure re-renders the step with the error attached.
	AfterMerge func(ctx context.Context, in *Input, m *M) error
	// Next decides where the flow goes after a successful submit.
	Next flow.Rule[M]
}
