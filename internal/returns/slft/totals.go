package slft

import (
	"sort"
	"strconv"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

// rates are pence per tonne by the calendar year the tax year starts in.
type rates struct {
	standard int64
	lower    int64
}

var ratesByYear = map[int]rates{
	2023: {standard: 102_10, lower: 3_25},
	2024: {standard: 103_70, lower: 3_30},
	2025: {standard: 126_15, lower: 4_05},
}

// ratesFor returns the rates of year, or of the nearest earlier year that
// has published rates. Years before the table use its first entry.
func ratesFor(year string) rates {
	years := make([]int, 0, len(ratesByYear))
	for y := range ratesByYear {
		years = append(years, y)
	}
	sort.Ints(years)
	chosen := years[0]
	if y, err := strconv.Atoi(year); err == nil {
		for _, candidate := range years {
			if candidate <= y {
				chosen = candidate
			}
		}
	}
	return ratesByYear[chosen]
}

// Recalculate refreshes the totals of every site and of the return.
func (r *Return) Recalculate() {
	rt := ratesFor(r.Year)
	var all tally
	for i := range r.Sites {
		var site tally
		for _, w := range r.Sites[i].Wastes {
			site.add(w)
		}
		r.Sites[i].Totals = site.totals(rt)
		all.merge(site)
	}
	r.Totals = all.totals(rt)
}

// tally sums tonnages in hundredths of a tonne.
type tally struct {
	standard, lower, exempt int64
}

func (t *tally) add(w Waste) {
	t.standard += hundredths(w.StandardTonnage)
	t.lower += hundredths(w.LowerTonnage)
	t.exempt += hundredths(w.ExemptTonnage)
}

func (t *tally) merge(o tally) {
	t.standard += o.standard
	t.lower += o.lower
	t.exempt += o.exempt
}

func (t tally) totals(rt rates) Totals {
	standardTax := t.standard * rt.standard / 100
	lowerTax := t.lower * rt.lower / 100
	return Totals{
		StandardTonnage: domain.AmountFromPence(t.standard),
		LowerTonnage:    domain.AmountFromPence(t.lower),
		ExemptTonnage:   domain.AmountFromPence(t.exempt),
		StandardTax:     domain.AmountFromPence(standardTax),
		LowerTax:        domain.AmountFromPence(lowerTax),
		TotalTax:        domain.AmountFromPence(standardTax + lowerTax),
	}
}

func hundredths(a domain.Amount) int64 {
	p, _ := a.Pence()
	return p
}
