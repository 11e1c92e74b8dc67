package slft

import (
	"regexp"
	"strconv"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/listing"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

const (
	ContextPeriod        validation.Context = "period"
	ContextCreditClaimed validation.Context = "credit_claimed"
	ContextCreditAmount  validation.Context = "credit_amount"
	ContextDeclaration   validation.Context = "declaration"

	ContextWasteDescription validation.Context = "waste_description"
	ContextWasteTonnage     validation.Context = "waste_tonnage"
	ContextWasteExemption   validation.Context = "waste_exemption"
	// ContextImport applies every waste rule at once to an uploaded row.
	ContextImport validation.Context = "import"
)

const (
	firstYear = 2015
	lastYear  = 2099
)

var ewcPattern = regexp.MustCompile(`^\d{2} ?\d{2} ?\d{2}\*?$`)

// wastePolicy classifies uploaded waste rows.
var wastePolicy = listing.Policy[Waste]{
	Attribute: "wastes",
	Values: func(w *Waste) []string {
		return []string{w.EWCCode, w.Description, w.StandardTonnage.Raw, w.LowerTonnage.Raw, w.ExemptTonnage.Raw, w.ExemptionReason}
	},
	Required: func(w *Waste) []string { return []string{w.EWCCode, w.Description} },
	Validate: func(w *Waste, vc validation.Context) validation.Errors { return w.Validate(vc) },
}

// Validate applies the rules of vc to the return.
func (r *Return) Validate(vc validation.Context) validation.Errors {
	var errs validation.Errors
	switch vc {
	case ContextPeriod:
		if errs.Required("year", r.Year) {
			if y, err := strconv.Atoi(r.Year); err != nil || y < firstYear || y > lastYear {
				errs.Add("year", "must be a year between %d and %d", firstYear, lastYear)
			}
		}
		if errs.Required("quarter", r.Quarter) {
			errs.OneOf("quarter", r.Quarter, Quarters...)
		}
	case ContextCreditClaimed:
		if errs.Required("credit_claimed", r.CreditClaimed) {
			errs.OneOf("credit_claimed", r.CreditClaimed, domain.Yes, domain.No)
		}
	case ContextCreditAmount:
		if errs.RequiredAmount("credit_amount", r.CreditAmount) {
			errs.Amount("credit_amount", r.CreditAmount, 1, true)
		}
	case ContextDeclaration:
		if r.Declaration != domain.Yes {
			errs.Add("declaration", "must be accepted")
		}
		if r.WasteCount() == 0 {
			errs.Add("sites", "at least one waste line is required")
		}
		for _, s := range r.Sites {
			if s.Pending != nil {
				errs.Add("sites", "the import for site %s must be confirmed or discarded", s.ID)
			}
		}
	}
	return errs
}

// Validate applies the rules of vc to a waste line.
func (w *Waste) Validate(vc validation.Context) validation.Errors {
	var errs validation.Errors
	if vc == ContextWasteDescription || vc == ContextImport {
		if errs.Required("ewc_code", w.EWCCode) && !ewcPattern.MatchString(w.EWCCode) {
			errs.Add("ewc_code", "is not a valid European Waste Catalogue code")
		}
		if errs.Required("description", w.Description) {
			errs.MaxLength("description", w.Description, 255)
		}
	}
	if vc == ContextWasteTonnage || vc == ContextImport {
		ok := errs.Amount("standard_tonnage", w.StandardTonnage, 0, true)
		ok = errs.Amount("lower_tonnage", w.LowerTonnage, 0, true) && ok
		ok = errs.Amount("exempt_tonnage", w.ExemptTonnage, 0, true) && ok
		if ok && hundredths(w.StandardTonnage)+hundredths(w.LowerTonnage)+hundredths(w.ExemptTonnage) == 0 {
			errs.Add("standard_tonnage", "enter the tonnage for at least one band")
		}
	}
	if vc == ContextWasteExemption || (vc == ContextImport && w.HasExemptTonnage()) {
		if errs.Required("exemption_reason", w.ExemptionReason) {
			errs.OneOf("exemption_reason", w.ExemptionReason, ExemptionReasons...)
		}
	}
	return errs
}
