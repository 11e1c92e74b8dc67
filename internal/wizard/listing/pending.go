package listing

import (
	"fmt"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// Pending holds rows parsed from an upload until the user confirms or
// discards them. Nothing reaches the live list until Confirm succeeds.
type Pending[R any] struct {
	Source string            `json:"source,omitempty"`
	Rows   []R               `json:"rows"`
	Errors validation.Errors `json:"errors,omitempty"`
}

// Stage classifies the parsed rows under p and wraps them for review. Parse
// errors found while reading the upload are carried alongside.
func Stage[R any](source string, rows []R, parseErrs validation.Errors, p Policy[R], vc validation.Context) *Pending[R] {
	pending := &Pending[R]{Source: source, Rows: p.Compact(rows)}
	pending.Errors = append(pending.Errors, parseErrs...)
	pending.Errors = append(pending.Errors, p.Check(rows, vc)...)
	return pending
}

// Valid reports whether the staged rows can be confirmed.
func (pi *Pending[R]) Valid() bool {
	return pi != nil && !pi.Errors.Any()
}

// Confirm replaces *dst with the staged rows in one step.
func (pi *Pending[R]) Confirm(dst *[]R) error {
	if pi == nil {
		return dErrors.New(dErrors.CodeNotFound, "no import is waiting for confirmation")
	}
	if pi.Errors.Any() {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("import %q has %d problem(s) and cannot be confirmed", pi.Source, len(pi.Errors)))
	}
	*dst = append([]R(nil), pi.Rows...)
	return nil
}
