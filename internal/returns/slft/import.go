package slft

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

const maxImportRows = 1000

// importColumns are the recognised header names. ewc_code and description
// are mandatory; the rest may be left out.
var importColumns = []string{"ewc_code", "description", "standard_tonnage", "lower_tonnage", "exempt_tonnage", "exemption_reason"}

// ParseWastes reads a CSV upload with a header row into waste lines for
// siteID. Problems with individual lines are returned as errors on "file"
// alongside the lines that could be read; a file that cannot be read at all
// is a bad request.
func ParseWastes(r io.Reader, siteID string) ([]Waste, validation.Errors, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "the file is empty")
	}
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "the file is not valid CSV")
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, required := range importColumns[:2] {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("the file is missing the column(s) %s", strings.Join(missing, ", ")))
	}

	var (
		rows []Waste
		errs validation.Errors
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				errs.Add("file", "line %d: %s", pe.Line, pe.Err)
				break
			}
			return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "the file could not be read")
		}
		if len(rows) == maxImportRows {
			errs.Add("file", "a file may hold at most %d lines", maxImportRows)
			break
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, Waste{
			ID:              domain.NewRecordID(),
			SiteID:          siteID,
			EWCCode:         field("ewc_code"),
			Description:     field("description"),
			StandardTonnage: domain.ParseAmount(field("standard_tonnage")),
			LowerTonnage:    domain.ParseAmount(field("lower_tonnage")),
			ExemptTonnage:   domain.ParseAmount(field("exempt_tonnage")),
			ExemptionReason: strings.ToUpper(field("exemption_reason")),
		})
	}
	return rows, errs, nil
}
