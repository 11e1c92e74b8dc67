// Package lbtt is the land and buildings transaction tax return: the main
// return wizard, the party and property sub-wizards, and the collaborators
// that calculate and submit the return.
package lbtt

import (
	"strings"

	"github.com/google/uuid"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/address"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

// Return types. They are plain strings so branch conditions can compare
// them directly.
const (
	TypeConveyance  = "CONVEY"
	TypeLease       = "LEASERET"
	TypeLeaseReview = "LEASEREV"
	TypeAssignation = "ASSIGN"
	TypeTermination = "TERMINATE"
)

// ReturnTypes lists every return type the portal accepts.
var ReturnTypes = []string{TypeConveyance, TypeLease, TypeLeaseReview, TypeAssignation, TypeTermination}

// Party types.
const (
	PartyBuyer    = "BUYER"
	PartySeller   = "SELLER"
	PartyTenant   = "TENANT"
	PartyLandlord = "LANDLORD"
)

// Party categories.
const (
	CategoryPrivate      = "PRIVATE"
	CategoryOrganisation = "ORG"
)

// Relief types a claim may name.
var ReliefTypes = []string{"FTB", "MDR", "CHARITY", "GROUP", "PFI"}

// Return is the aggregate one LBTT wizard builds.
type Return struct {
	Reference  string `json:"reference"`
	ReturnType string `json:"return_type"`
	// ConfirmedReturnType is the type the rest of the answers were given
	// under. A different ReturnType on the return_type step starts over.
	ConfirmedReturnType string `json:"confirmed_return_type,omitempty"`

	EffectiveDate domain.Date `json:"effective_date"`
	ContractDate  domain.Date `json:"contract_date"`

	Consideration      domain.Amount       `json:"consideration"`
	LinkedIndicator    string              `json:"linked_ind"`
	LinkedTransactions []LinkedTransaction `json:"linked_transactions"`

	LeaseStart  domain.Date   `json:"lease_start_date"`
	LeaseEnd    domain.Date   `json:"lease_end_date"`
	YearlyRents []YearlyRent  `json:"yearly_rents"`
	Premium     domain.Amount `json:"premium"`

	ReliefClaimed string        `json:"relief_claimed"`
	ReliefClaims  []ReliefClaim `json:"relief_claims"`

	RepaymentClaimed   string        `json:"repayment_claimed"`
	RepaymentAmount    domain.Amount `json:"repayment_amount"`
	AccountHolder      string        `json:"account_holder"`
	BankName           string        `json:"bank_name"`
	SortCode           string        `json:"sort_code"`
	AccountNumber      string        `json:"account_number"`
	RepaymentAuthority string        `json:"repayment_authority"`

	Declaration string `json:"declaration"`

	Parties    []Party    `json:"parties"`
	Properties []Property `json:"properties"`

	Calculation Calculation `json:"calculation"`
}

// NewReturn starts an empty return with a fresh reference.
func NewReturn() *Return {
	return &Return{Reference: newReference()}
}

func newReference() string {
	return "RS" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Type is the return type the answers were given under. A rejected entry on
// the return_type step never replaces it.
func (r Return) Type() string {
	if r.ConfirmedReturnType != "" {
		return r.ConfirmedReturnType
	}
	return r.ReturnType
}

// IsLease reports whether the return is any of the lease types.
func (r Return) IsLease() bool {
	t := r.Type()
	return t != "" && t != TypeConveyance
}

// Acquirer and Disposer are the party types on each side of the return.
func (r Return) Acquirer() string {
	if r.IsLease() {
		return PartyTenant
	}
	return PartyBuyer
}

func (r Return) Disposer() string {
	if r.IsLease() {
		return PartyLandlord
	}
	return PartySeller
}

// PartiesOfType returns the parties of type t.
func (r Return) PartiesOfType(t string) []Party {
	var out []Party
	for _, p := range r.Parties {
		if p.PartyType == t {
			out = append(out, p)
		}
	}
	return out
}

// LinkedTransaction is one row of the linked transactions list.
type LinkedTransaction struct {
	ReturnReference string        `json:"return_reference"`
	EffectiveDate   domain.Date   `json:"effective_date"`
	Consideration   domain.Amount `json:"consideration"`
}

// YearlyRent is the rent for one year of a lease, in lease-year order.
type YearlyRent struct {
	Rent domain.Amount `json:"rent"`
}

// ReliefClaim is one row of the relief claims list. OverrideAmount is only
// entered on the override path.
type ReliefClaim struct {
	Type           string        `json:"relief_type"`
	Amount         domain.Amount `json:"amount"`
	OverrideAmount domain.Amount `json:"override_amount"`
}

// Calculation is the derived tax position of the return.
type Calculation struct {
	LinkedConsideration domain.Amount `json:"linked_consideration"`
	TaxDue              domain.Amount `json:"tax_due"`
	NPV                 domain.Amount `json:"npv"`
	NPVTax              domain.Amount `json:"npv_tax"`
	PremiumTax          domain.Amount `json:"premium_tax"`
	ReliefAmount        domain.Amount `json:"relief_amount"`
	TotalDue            domain.Amount `json:"total_due"`
}

// Party is a buyer, seller, tenant or landlord, built by the party
// sub-wizard and kept on the return by id.
type Party struct {
	ID               domain.RecordID `json:"id"`
	PartyType        string          `json:"party_type"`
	Category         string          `json:"category"`
	Forename         string          `json:"forename"`
	Surname          string          `json:"surname"`
	OrganisationName string          `json:"organisation_name"`
	Address          address.Form    `json:"address_form"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
}

func (p Party) IsAcquirer() bool {
	return p.PartyType == PartyBuyer || p.PartyType == PartyTenant
}

// DisplayName is the name shown on the summary.
func (p Party) DisplayName() string {
	if p.Category == CategoryOrganisation {
		return p.OrganisationName
	}
	return strings.TrimSpace(p.Forename + " " + p.Surname)
}

// Property is one property in the transaction. ReturnType is copied from
// the return when the property is started so the property flow can branch
// on it.
type Property struct {
	ID             domain.RecordID `json:"id"`
	ReturnType     string          `json:"return_type"`
	Address        address.Form    `json:"address_form"`
	LocalAuthority string          `json:"local_authority"`
	TitleNumber    string          `json:"title_number"`
	ADSDue         string          `json:"ads_due"`
	ADSAmount      domain.Amount   `json:"ads_amount"`
}
