// Package listing implements the repeating-row steps of a wizard: growing and
// shrinking a positional list, replacing it wholesale on submit after
// classifying every row, and staging a bulk import for confirmation.
package listing

import (
	"fmt"
	"strings"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// Policy describes how the rows of one list attribute are classified.
type Policy[R any] struct {
	// Attribute is the list's field name, used as the error prefix.
	Attribute string
	// Values returns the raw text of every user-editable field of a row. A
	// row whose values are all blank is empty and ignored.
	Values func(r *R) []string
	// Required returns the raw text of the fields a row needs to be complete.
	Required func(r *R) []string
	// Validate checks a complete row. Optional.
	Validate validation.Func[R]
	// Optional lists may be submitted with no filled rows.
	Optional bool
}

// Check classifies every row. Empty rows are skipped. A partially filled row
// is reported as incomplete by its 1-based position; a complete row that
// fails validation is reported as invalid with its field errors attached
// under "attribute[i]". A list with no filled rows fails unless Optional.
func (p Policy[R]) Check(rows []R, vc validation.Context) validation.Errors {
	var errs validation.Errors
	filled := 0
	for i := range rows {
		row := &rows[i]
		if allBlank(p.Values(row)) {
			continue
		}
		filled++
		if p.Required != nil && anyBlank(p.Required(row)) {
			errs.Add(p.Attribute, "row %d is incomplete", i+1)
			continue
		}
		if p.Validate == nil {
			continue
		}
		if rowErrs := p.Validate(row, vc); rowErrs.Any() {
			errs.Add(p.Attribute, "row %d is invalid", i+1)
			errs.Merge(fmt.Sprintf("%s[%d]", p.Attribute, i), rowErrs)
		}
	}
	if filled == 0 && !p.Optional {
		errs.Add(p.Attribute, "at least one entry is required")
	}
	return errs
}

// Compact drops the empty rows.
func (p Policy[R]) Compact(rows []R) []R {
	out := make([]R, 0, len(rows))
	for i := range rows {
		if !allBlank(p.Values(&rows[i])) {
			out = append(out, rows[i])
		}
	}
	return out
}

// Merge replaces *dst with the non-empty submitted rows when every row
// passes Check. On failure *dst is left untouched and the errors are
// returned.
func Merge[R any](dst *[]R, submitted []R, p Policy[R], vc validation.Context) validation.Errors {
	if errs := p.Check(submitted, vc); errs.Any() {
		return errs
	}
	*dst = p.Compact(submitted)
	return nil
}

// AddRow appends a fresh row.
func AddRow[R any](rows []R, fresh R) []R {
	return append(rows, fresh)
}

// DeleteRow removes the row at the 0-based index.
func DeleteRow[R any](rows []R, index int) ([]R, error) {
	if index < 0 || index >= len(rows) {
		return rows, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("row %d does not exist", index))
	}
	out := make([]R, 0, len(rows)-1)
	out = append(out, rows[:index]...)
	return append(out, rows[index+1:]...), nil
}

// Find returns the position of the row with id.
func Find[R any](rows []R, id domain.RecordID, idOf func(*R) domain.RecordID) (int, bool) {
	for i := range rows {
		if idOf(&rows[i]) == id {
			return i, true
		}
	}
	return -1, false
}

// Upsert overwrites the row with the same identifier as row, or appends it.
func Upsert[R any](rows []R, row R, idOf func(*R) domain.RecordID) []R {
	if i, ok := Find(rows, idOf(&row), idOf); ok {
		out := append([]R(nil), rows...)
		out[i] = row
		return out
	}
	return append(rows, row)
}

// DeleteByID removes the row with id. An unknown id is not found.
func DeleteByID[R any](rows []R, id domain.RecordID, idOf func(*R) domain.RecordID) ([]R, error) {
	i, ok := Find(rows, id, idOf)
	if !ok {
		return rows, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no entry with id %s", id))
	}
	return DeleteRow(rows, i)
}

func allBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func anyBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
