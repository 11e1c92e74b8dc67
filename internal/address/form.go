package address

import (
	"context"
	"strconv"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
)

const (
	ActionFind   = "find"
	ActionSelect = "select"
)

// Form is the fragment an address step edits: the address itself plus the
// state of a postcode search.
type Form struct {
	Address        Address   `json:"address"`
	SearchPostcode string    `json:"search_postcode,omitempty"`
	Candidates     []Address `json:"candidates,omitempty"`
}

// Validate applies the rules of vc to the form.
func (f *Form) Validate(vc validation.Context) validation.Errors {
	var errs validation.Errors
	switch vc {
	case ContextSearch:
		if errs.Required("search_postcode", f.SearchPostcode) {
			if _, ok := NormalisePostcode(f.SearchPostcode); !ok {
				errs.Add("search_postcode", "is not a valid postcode")
			}
		}
	default:
		errs.Merge("address", f.Address.Validate())
	}
	return errs
}

// Step builds an address step over the form that form(m) returns. A submit
// with action=find searches by postcode and re-renders with candidates;
// action=select copies the chosen candidate into the address and re-renders;
// a plain submit validates the address and advances under next.
func Step[M any](name string, form func(*M) *Form, lookup Lookup, next flow.Rule[M]) engine.Step[M] {
	return engine.Step[M]{
		Name:    name,
		Fields:  []string{"address", "search_postcode"},
		Context: ContextAddress,
		Target:  func(m *M) any { return form(m) },
		Intercept: func(ctx context.Context, in *engine.Input, m *M) (bool, validation.Errors, error) {
			return intercept(ctx, in, form(m), lookup)
		},
		Validate: func(m *M, vc validation.Context) validation.Errors {
			return form(m).Validate(vc)
		},
		Merge: func(_ context.Context, _ *engine.Input, m *M) error {
			f := form(m)
			f.Address.Postcode, _ = NormalisePostcode(f.Address.Postcode)
			f.Candidates = nil
			return nil
		},
		Next: next,
	}
}

func intercept(ctx context.Context, in *engine.Input, f *Form, lookup Lookup) (bool, validation.Errors, error) {
	switch in.Action {
	case ActionFind:
		f.Candidates = nil
		if errs := f.Validate(ContextSearch); errs.Any() {
			return true, errs, nil
		}
		f.SearchPostcode, _ = NormalisePostcode(f.SearchPostcode)
		found, err := lookup.Search(ctx, f.SearchPostcode)
		var errs validation.Errors
		switch {
		case err != nil:
			errs.Add(validation.Base, "address search is not available, enter the address manually")
		case len(found) == 0:
			errs.Add("search_postcode", "no addresses found for %s", f.SearchPostcode)
		default:
			f.Candidates = found
		}
		return true, errs, nil

	case ActionSelect:
		var errs validation.Errors
		i, err := strconv.Atoi(in.Values.String("selected"))
		if err != nil || i < 0 || i >= len(f.Candidates) {
			errs.Add("selected", "choose an address from the list")
			return true, errs, nil
		}
		f.Address = f.Candidates[i]
		f.Candidates = nil
		return true, nil, nil
	}
	return false, nil, nil
}
