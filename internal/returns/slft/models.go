// Package slft is the Scottish landfill tax return: the quarterly return
// wizard, the per-site waste sub-wizard and the bulk waste import.
package slft

import (
	"strings"

	"github.com/google/uuid"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/listing"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

// Quarters of the landfill tax year.
var Quarters = []string{"Q1", "Q2", "Q3", "Q4"}

// Exemption reasons for exempt tonnage.
var ExemptionReasons = []string{"DREDGING", "QUARRY", "PET", "RESTORATION", "OTHER"}

// SiteInfo is a landfill site the operator is registered for.
type SiteInfo struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Return is the aggregate one SLfT wizard builds.
type Return struct {
	Reference     string        `json:"reference"`
	Year          string        `json:"year"`
	Quarter       string        `json:"quarter"`
	Sites         []Site        `json:"sites"`
	CreditClaimed string        `json:"credit_claimed"`
	CreditAmount  domain.Amount `json:"credit_amount"`
	Declaration   string        `json:"declaration"`
	Totals        Totals        `json:"totals"`
}

// NewReturn starts a return with one empty waste list per registered site.
func NewReturn(sites []SiteInfo) *Return {
	r := &Return{Reference: "SL" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])}
	for _, s := range sites {
		r.Sites = append(r.Sites, Site{ID: s.ID, Name: s.Name})
	}
	return r
}

// Site returns the site with id.
func (r *Return) Site(id string) (*Site, bool) {
	for i := range r.Sites {
		if r.Sites[i].ID == id {
			return &r.Sites[i], true
		}
	}
	return nil, false
}

// WasteCount is the number of waste lines across every site.
func (r *Return) WasteCount() int {
	n := 0
	for _, s := range r.Sites {
		n += len(s.Wastes)
	}
	return n
}

// Site is one landfill site on the return with its waste lines and any
// import waiting for confirmation.
type Site struct {
	ID      string                  `json:"id"`
	Name    string                  `json:"name"`
	Wastes  []Waste                 `json:"wastes"`
	Pending *listing.Pending[Waste] `json:"pending,omitempty"`
	Totals  Totals                  `json:"totals"`
}

// Waste is one line of waste landfilled at a site in the quarter. Tonnages
// are kept as entered, to two decimal places.
type Waste struct {
	ID              domain.RecordID `json:"id"`
	SiteID          string          `json:"site_id"`
	EWCCode         string          `json:"ewc_code"`
	Description     string          `json:"description"`
	StandardTonnage domain.Amount   `json:"standard_tonnage"`
	LowerTonnage    domain.Amount   `json:"lower_tonnage"`
	ExemptTonnage   domain.Amount   `json:"exempt_tonnage"`
	ExemptionReason string          `json:"exemption_reason"`
}

// HasExemptTonnage reports whether any of the waste is exempt.
func (w Waste) HasExemptTonnage() bool {
	p, ok := w.ExemptTonnage.Pence()
	return ok && p > 0
}

// Totals are tonnages and tax due per band.
type Totals struct {
	StandardTonnage domain.Amount `json:"standard_tonnage"`
	LowerTonnage    domain.Amount `json:"lower_tonnage"`
	ExemptTonnage   domain.Amount `json:"exempt_tonnage"`
	StandardTax     domain.Amount `json:"standard_tax"`
	LowerTax        domain.Amount `json:"lower_tax"`
	TotalTax        domain.Amount `json:"total_tax"`
}
