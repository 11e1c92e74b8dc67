package lbtt

import (
	"regexp"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/listing"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

// Validation contexts, one per step (or group of steps) of the return.
const (
	ContextReturnType     validation.Context = "return_type"
	ContextEffectiveDate  validation.Context = "effective_date"
	ContextConsideration  validation.Context = "consideration"
	ContextLinked         validation.Context = "linked"
	ContextLeaseDates     validation.Context = "lease_dates"
	ContextRents          validation.Context = "rents"
	ContextPremium        validation.Context = "premium"
	ContextReliefClaimed  validation.Context = "relief_claimed"
	ContextRelief         validation.Context = "relief"
	ContextReliefOverride validation.Context = "relief_override"
	ContextRepayment      validation.Context = "repayment_claim"
	ContextRepayAmount    validation.Context = "repayment_amount"
	ContextAccountHolder  validation.Context = "account_holder"
	ContextBankDetails    validation.Context = "bank_details"
	ContextAuthority      validation.Context = "repayment_authority"
	ContextDeclaration    validation.Context = "declaration"

	ContextPartyType    validation.Context = "party_type"
	ContextPartyName    validation.Context = "party_name"
	ContextPartyContact validation.Context = "party_contact"

	ContextPropertyDetails validation.Context = "property_details"
	ContextPropertyADS     validation.Context = "property_ads"
)

var (
	sortCodePattern      = regexp.MustCompile(`^\d{2}-?\d{2}-?\d{2}$`)
	accountNumberPattern = regexp.MustCompile(`^\d{8}$`)
	emailPattern         = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern         = regexp.MustCompile(`^\+?[0-9 ]{10,15}$`)
)

var linkedPolicy = listing.Policy[LinkedTransaction]{
	Attribute: "linked_transactions",
	Values: func(l *LinkedTransaction) []string {
		return []string{l.ReturnReference, l.EffectiveDate.Raw, l.Consideration.Raw}
	},
	Required: func(l *LinkedTransaction) []string {
		return []string{l.EffectiveDate.Raw, l.Consideration.Raw}
	},
	Validate: func(l *LinkedTransaction, _ validation.Context) validation.Errors {
		var errs validation.Errors
		errs.Date("effective_date", l.EffectiveDate)
		errs.Amount("consideration", l.Consideration, 0, true)
		errs.MaxLength("return_reference", l.ReturnReference, 30)
		return errs
	},
}

var rentPolicy = listing.Policy[YearlyRent]{
	Attribute: "yearly_rents",
	Values:    func(y *YearlyRent) []string { return []string{y.Rent.Raw} },
	Required:  func(y *YearlyRent) []string { return []string{y.Rent.Raw} },
	Validate: func(y *YearlyRent, _ validation.Context) validation.Errors {
		var errs validation.Errors
		errs.Amount("rent", y.Rent, 0, true)
		return errs
	},
}

var reliefPolicy = listing.Policy[ReliefClaim]{
	Attribute: "relief_claims",
	Values: func(c *ReliefClaim) []string {
		return []string{c.Type, c.Amount.Raw, c.OverrideAmount.Raw}
	},
	Required: func(c *ReliefClaim) []string { return []string{c.Type} },
	Validate: func(c *ReliefClaim, vc validation.Context) validation.Errors {
		var errs validation.Errors
		errs.OneOf("relief_type", c.Type, ReliefTypes...)
		errs.Amount("amount", c.Amount, 0, true)
		if vc == ContextReliefOverride {
			if errs.RequiredAmount("override_amount", c.OverrideAmount) {
				errs.Amount("override_amount", c.OverrideAmount, 0, true)
			}
		}
		return errs
	},
}

// Validate applies the rules of vc to the return.
func (r *Return) Validate(vc validation.Context) validation.Errors {
	var errs validation.Errors
	switch vc {
	case ContextReturnType:
		if errs.Required("return_type", r.ReturnType) {
			errs.OneOf("return_type", r.ReturnType, ReturnTypes...)
		}
	case ContextEffectiveDate:
		errs.RequiredDate("effective_date", r.EffectiveDate)
		errs.Date("contract_date", r.ContractDate)
		if eff, ok := r.EffectiveDate.Time(); ok {
			if con, ok := r.ContractDate.Time(); ok && con.After(eff) {
				errs.Add("contract_date", "must be on or before the effective date")
			}
		}
	case ContextConsideration:
		if errs.RequiredAmount("consideration", r.Consideration) {
			errs.Amount("consideration", r.Consideration, 0, true)
		}
	case ContextLinked:
		if errs.Required("linked_ind", r.LinkedIndicator) &&
			errs.OneOf("linked_ind", r.LinkedIndicator, domain.Yes, domain.No) &&
			r.LinkedIndicator == domain.Yes {
			errs = append(errs, linkedPolicy.Check(r.LinkedTransactions, vc)...)
		}
	case ContextLeaseDates:
		errs.RequiredDate("lease_start_date", r.LeaseStart)
		errs.RequiredDate("lease_end_date", r.LeaseEnd)
		if start, ok := r.LeaseStart.Time(); ok {
			if end, ok := r.LeaseEnd.Time(); ok && !end.After(start) {
				errs.Add("lease_end_date", "must be after the lease start date")
			}
		}
	case ContextRents:
		errs = append(errs, rentPolicy.Check(r.YearlyRents, vc)...)
	case ContextPremium:
		errs.Amount("premium", r.Premium, 0, true)
	case ContextReliefClaimed:
		if errs.Required("relief_claimed", r.ReliefClaimed) {
			errs.OneOf("relief_claimed", r.ReliefClaimed, domain.Yes, domain.No)
		}
	case ContextRelief, ContextReliefOverride:
		errs = append(errs, reliefPolicy.Check(r.ReliefClaims, vc)...)
	case ContextRepayment:
		if errs.Required("repayment_claimed", r.RepaymentClaimed) {
			errs.OneOf("repayment_claimed", r.RepaymentClaimed, domain.Yes, domain.No)
		}
	case ContextRepayAmount:
		if errs.RequiredAmount("repayment_amount", r.RepaymentAmount) {
			errs.Amount("repayment_amount", r.RepaymentAmount, 1, true)
		}
	case ContextAccountHolder:
		if errs.Required("account_holder", r.AccountHolder) {
			errs.MaxLength("account_holder", r.AccountHolder, 100)
		}
	case ContextBankDetails:
		errs.Required("bank_name", r.BankName)
		if errs.Required("sort_code", r.SortCode) && !sortCodePattern.MatchString(r.SortCode) {
			errs.Add("sort_code", "must be 6 digits")
		}
		if errs.Required("account_number", r.AccountNumber) && !accountNumberPattern.MatchString(r.AccountNumber) {
			errs.Add("account_number", "must be 8 digits")
		}
	case ContextAuthority:
		if r.RepaymentAuthority != domain.Yes {
			errs.Add("repayment_authority", "must be accepted")
		}
	case ContextDeclaration:
		if r.Declaration != domain.Yes {
			errs.Add("declaration", "must be accepted")
		}
		if len(r.PartiesOfType(r.Acquirer())) == 0 {
			errs.Add("parties", "at least one %s is required", lower(r.Acquirer()))
		}
		if r.Type() == TypeConveyance && len(r.PartiesOfType(r.Disposer())) == 0 {
			errs.Add("parties", "at least one %s is required", lower(r.Disposer()))
		}
		if len(r.Properties) == 0 {
			errs.Add("properties", "at least one property is required")
		}
	}
	return errs
}

func lower(partyType string) string {
	switch partyType {
	case PartyBuyer:
		return "buyer"
	case PartySeller:
		return "seller"
	case PartyTenant:
		return "tenant"
	default:
		return "landlord"
	}
}

// Validate applies the rules of vc to the party.
func (p *Party) Validate(vc validation.Context) validation.Errors {
	var errs validation.Errors
	switch vc {
	case ContextPartyType:
		if errs.Required("party_type", p.PartyType) {
			errs.OneOf("party_type", p.PartyType, PartyBuyer, PartySeller, PartyTenant, PartyLandlord)
		}
		if errs.Required("category", p.Category) {
			errs.OneOf("category", p.Category, CategoryPrivate, CategoryOrganisation)
		}
	case ContextPartyName:
		if p.Category == CategoryOrganisation {
			if errs.Required("organisation_name", p.OrganisationName) {
				errs.MaxLength("organisation_name", p.OrganisationName, 200)
			}
			break
		}
		if errs.Required("forename", p.Forename) {
			errs.MaxLength("forename", p.Forename, 50)
		}
		if errs.Required("surname", p.Surname) {
			errs.MaxLength("surname", p.Surname, 100)
		}
	case ContextPartyContact:
		if errs.Required("email", p.Email) && !emailPattern.MatchString(p.Email) {
			errs.Add("email", "is not a valid email address")
		}
		if p.Phone != "" && !phonePattern.MatchString(p.Phone) {
			errs.Add("phone", "is not a valid phone number")
		}
	}
	return errs
}

// Validate applies the rules of vc to the property.
func (p *Property) Validate(vc validation.Context) validation.Errors {
	var errs validation.Errors
	switch vc {
	case ContextPropertyDetails:
		errs.Required("local_authority", p.LocalAuthority)
		errs.MaxLength("title_number", p.TitleNumber, 20)
	case ContextPropertyADS:
		if errs.Required("ads_due", p.ADSDue) && errs.OneOf("ads_due", p.ADSDue, domain.Yes, domain.No) &&
			p.ADSDue == domain.Yes {
			if errs.RequiredAmount("ads_amount", p.ADSAmount) {
				errs.Amount("ads_amount", p.ADSAmount, 0, true)
			}
		}
	}
	return errs
}
