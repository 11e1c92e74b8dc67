// Package address holds the postal address shared by parties, properties and
// landfill sites, the lookup collaborator that finds addresses by postcode,
// and the address-step strategy that drives a search, select or manual entry
// page in any flow.
package address

import (
	"context"
	"regexp"
	"strings"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
)

// Address is a UK postal address.
type Address struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	Town     string `json:"town"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode"`
	Country  string `json:"country,omitempty"`
}

// Lookup finds the addresses registered at a postcode.
type Lookup interface {
	Search(ctx context.Context, postcode string) ([]Address, error)
}

const (
	ContextSearch  validation.Context = "postcode_search"
	ContextAddress validation.Context = "address"
)

var postcodePattern = regexp.MustCompile(`^([A-Z]{1,2}[0-9][A-Z0-9]?)([0-9][A-Z]{2})$`)

// NormalisePostcode upper-cases a postcode and puts the single space before
// the inward code. It reports false for anything that is not a UK postcode.
func NormalisePostcode(raw string) (string, bool) {
	compact := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	m := postcodePattern.FindStringSubmatch(compact)
	if m == nil {
		return "", false
	}
	return m[1] + " " + m[2], true
}

// Blank reports whether nothing has been entered.
func (a Address) Blank() bool {
	return strings.TrimSpace(a.Line1+a.Line2+a.Town+a.County+a.Postcode) == ""
}

func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.Town, a.County, a.Postcode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Validate checks a manually entered or selected address.
func (a Address) Validate() validation.Errors {
	var errs validation.Errors
	errs.Required("line1", a.Line1)
	errs.MaxLength("line1", a.Line1, 100)
	errs.MaxLength("line2", a.Line2, 100)
	errs.Required("town", a.Town)
	errs.MaxLength("town", a.Town, 50)
	if errs.Required("postcode", a.Postcode) {
		if _, ok := NormalisePostcode(a.Postcode); !ok {
			errs.Add("postcode", "is not a valid postcode")
		}
	}
	return errs
}
