// Package validation holds the field and collection errors produced when a
// step's submitted fragment is checked, and the named contexts that select
// which rules apply to a given step.
package validation

import (
	"fmt"
	"strings"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
)

// Context names a rule-set. A field can be mandatory under one context and
// irrelevant under another; Default selects only the always-on rules.
type Context string

const Default Context = ""

// Base is the pseudo-field for errors that belong to the whole object, such as
// a failed tax calculation.
const Base = "base"

// Error is one failed constraint attached to a field path, for example
// "relief_claims[2].amount" or "relief_claims".
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the ordered set of failures for one bind/validate call.
type Errors []Error

// Add appends an error for field.
func (e *Errors) Add(field, format string, args ...any) {
	*e = append(*e, Error{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge appends other, prefixing each field with prefix when it is non-empty.
func (e *Errors) Merge(prefix string, other Errors) {
	for _, err := range other {
		field := err.Field
		if prefix != "" {
			if field == "" || field == Base {
				field = prefix
			} else {
				field = prefix + "." + field
			}
		}
		*e = append(*e, Error{Field: field, Message: err.Message})
	}
}

// Any reports whether there is at least one error.
func (e Errors) Any() bool {
	return len(e) > 0
}

// On returns the messages attached exactly to field.
func (e Errors) On(field string) []string {
	var out []string
	for _, err := range e {
		if err.Field == field {
			out = append(out, err.Message)
		}
	}
	return out
}

// Under returns the errors whose field is field or nested below it.
func (e Errors) Under(field string) Errors {
	var out Errors
	for _, err := range e {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			out = append(out, err)
		}
	}
	return out
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, err := range e {
		parts = append(parts, err.Field+": "+err.Message)
	}
	return strings.Join(parts, "; ")
}

// Func validates an object under a context.
type Func[M any] func(m *M, vc Context) Errors

// Required adds "can't be blank" when value is empty after trimming.
func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "can't be blank")
		return false
	}
	return true
}

// OneOf adds an error when a non-blank value is outside allowed.
func (e *Errors) OneOf(field, value string, allowed ...string) bool {
	if value == "" {
		return true
	}
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	e.Add(field, "is not included in the list")
	return false
}

// MaxLength adds an error when value is longer than n characters.
func (e *Errors) MaxLength(field, value string, n int) bool {
	if len([]rune(value)) > n {
		e.Add(field, "is too long (maximum is %d characters)", n)
		return false
	}
	return true
}

// RequiredAmount requires a parsable amount.
func (e *Errors) RequiredAmount(field string, a domain.Amount) bool {
	if a.Blank() {
		e.Add(field, "can't be blank")
		return false
	}
	return e.Amount(field, a, 0, false)
}

// Amount checks a non-blank amount parses and, when nonNegative, is >= min.
func (e *Errors) Amount(field string, a domain.Amount, min int64, nonNegative bool) bool {
	if a.Blank() {
		return true
	}
	p, ok := a.Pence()
	if !ok {
		e.Add(field, "must be a valid amount")
		return false
	}
	if nonNegative && p < min {
		e.Add(field, "must be greater than or equal to %s", domain.AmountFromPence(min))
		return false
	}
	return true
}

// RequiredDate requires a parsable date.
func (e *Errors) RequiredDate(field string, d domain.Date) bool {
	if d.Blank() {
		e.Add(field, "can't be blank")
		return false
	}
	return e.Date(field, d)
}

// Date checks a non-blank date parses.
func (e *Errors) Date(field string, d domain.Date) bool {
	if !d.Valid() {
		e.Add(field, "is not a valid date")
		return false
	}
	return true
}
