package lbtt

import (
	"context"
	"math"
	"math/big"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

// band is a slice of a progressive tax: rate applies to the part of the
// amount above from (in pence), in basis points.
type band struct {
	from int64
	rate int64
}

var (
	// residential rates for conveyances and lease premiums
	residentialBands = []band{
		{from: 0, rate: 0},
		{from: 145_000_00, rate: 200},
		{from: 250_000_00, rate: 500},
		{from: 325_000_00, rate: 1000},
		{from: 750_000_00, rate: 1200},
	}
	// rates on the net present value of lease rents
	leaseBands = []band{
		{from: 0, rate: 0},
		{from: 150_000_00, rate: 100},
		{from: 2_000_000_00, rate: 200},
	}
)

const leaseDiscountRate = 0.035

// BandCalculator calculates LBTT from the published residential bands. It
// is the development stand-in for the back-office calculation.
type BandCalculator struct{}

func (BandCalculator) Calculate(_ context.Context, r *Return) (Calculation, error) {
	var calc Calculation

	linked := sumLinked(r.LinkedTransactions)
	calc.LinkedConsideration = domain.AmountFromPence(linked)

	var due int64
	if r.IsLease() {
		npv := netPresentValue(r.YearlyRents)
		npvTax := progressive(npv, leaseBands)
		premiumTax := progressive(pence(r.Premium), residentialBands)
		calc.NPV = domain.AmountFromPence(npv)
		calc.NPVTax = domain.AmountFromPence(npvTax)
		calc.PremiumTax = domain.AmountFromPence(premiumTax)
		due = npvTax + premiumTax
	} else {
		own := pence(r.Consideration)
		total := own + linked
		due = progressive(total, residentialBands)
		if total > 0 && linked > 0 {
			// linked transactions share the tax in proportion to consideration
			due = mulDiv(due, own, total)
		}
	}
	calc.TaxDue = domain.AmountFromPence(due)

	relief := sumRelief(r.ReliefClaims)
	calc.ReliefAmount = domain.AmountFromPence(relief)
	calc.TotalDue = domain.AmountFromPence(max(due-relief, 0))
	return calc, nil
}

func progressive(amount int64, bands []band) int64 {
	var tax int64
	for i, b := range bands {
		if amount <= b.from {
			break
		}
		upper := amount
		if i+1 < len(bands) && bands[i+1].from < upper {
			upper = bands[i+1].from
		}
		tax += mulDiv(upper-b.from, b.rate, 10_000)
	}
	// LBTT is charged in whole pounds, rounded down
	return tax / 100 * 100
}

// mulDiv returns a*b/c truncated, without overflowing on the product.
func mulDiv(a, b, c int64) int64 {
	var r big.Int
	r.Mul(big.NewInt(a), big.NewInt(b))
	r.Quo(&r, big.NewInt(c))
	return r.Int64()
}

func netPresentValue(rents []YearlyRent) int64 {
	var npv float64
	for i, y := range rents {
		npv += float64(pence(y.Rent)) / math.Pow(1+leaseDiscountRate, float64(i+1))
	}
	return int64(math.Floor(npv))
}

func sumLinked(rows []LinkedTransaction) int64 {
	var total int64
	for _, l := range rows {
		total += pence(l.Consideration)
	}
	return total
}

// sumRelief prefers an override amount where one was entered.
func sumRelief(claims []ReliefClaim) int64 {
	var total int64
	for _, c := range claims {
		if p, ok := c.OverrideAmount.Pence(); ok {
			total += p
			continue
		}
		total += pence(c.Amount)
	}
	return total
}

func pence(a domain.Amount) int64 {
	p, _ := a.Pence()
	return p
}

// LeaseYears is the number of whole or part years between the lease dates.
func LeaseYears(start, end domain.Date) int {
	s, ok1 := start.Time()
	e, ok2 := end.Time()
	if !ok1 || !ok2 || !e.After(s) {
		return 0
	}
	years := 0
	for t := s; t.Before(e); t = t.AddDate(1, 0, 0) {
		years++
	}
	return years
}
