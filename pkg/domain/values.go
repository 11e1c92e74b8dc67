package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Yes/No answers are kept as the single-letter codes the back office expects.
const (
	Yes = "Y"
	No  = "N"
)

// MaxWholePounds is the largest whole part an Amount may carry so that its
// value in pence fits an int64.
const MaxWholePounds = (math.MaxInt64 - 99) / 100

// Amount is a sterling amount as entered by the user. The raw text is kept so
// that an invalid entry can be shown back next to its error; Pence parses it.
type Amount struct {
	Raw string
}

// ParseAmount wraps user input without validating it.
func ParseAmount(s string) Amount {
	return Amount{Raw: strings.TrimSpace(s)}
}

// AmountFromPence formats a whole number of pence.
func AmountFromPence(p int64) Amount {
	sign := ""
	if p < 0 {
		sign = "-"
		p = -p
	}
	return Amount{Raw: fmt.Sprintf("%s%d.%02d", sign, p/100, p%100)}
}

// Blank reports whether nothing was entered.
func (a Amount) Blank() bool {
	return a.Raw == ""
}

// Pence parses the amount. ok is false for blank or malformed input and for
// amounts too large to hold in pence.
func (a Amount) Pence() (int64, bool) {
	s := strings.ReplaceAll(strings.TrimPrefix(a.Raw, "£"), ",", "")
	if s == "" {
		return 0, false
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (len(frac) == 0 || len(frac) > 2)) {
		return 0, false
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 || w > MaxWholePounds {
		return 0, false
	}
	var f int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
	}
	p := w*100 + f
	if neg {
		p = -p
	}
	return p, true
}

// Valid reports whether the amount is blank or parses.
func (a Amount) Valid() bool {
	if a.Blank() {
		return true
	}
	_, ok := a.Pence()
	return ok
}

func (a Amount) String() string {
	return a.Raw
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.Raw), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	*a = ParseAmount(string(b))
	return nil
}

// Date is a calendar date as entered by the user.
type Date struct {
	Raw string
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006"}

// ParseDate wraps user input without validating it.
func ParseDate(s string) Date {
	return Date{Raw: strings.TrimSpace(s)}
}

// DateOf formats t as an ISO date.
func DateOf(t time.Time) Date {
	return Date{Raw: t.Format("2006-01-02")}
}

func (d Date) Blank() bool {
	return d.Raw == ""
}

// Time parses the date. ok is false for blank or malformed input.
func (d Date) Time() (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, d.Raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (d Date) Valid() bool {
	if d.Blank() {
		return true
	}
	_, ok := d.Time()
	return ok
}

func (d Date) String() string {
	return d.Raw
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.Raw), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	*d = ParseDate(string(b))
	return nil
}
