package listing

import (
	"context"
	"strconv"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

const (
	ActionAddRow    = "add_row"
	ActionDeleteRow = "delete_row"
)

// RowActions returns a step intercept that handles add_row and delete_row on
// the positional list rows(m). The rows the user typed have already been
// bound, so an add or delete keeps their edits. The index of the row to
// delete comes from the submitted "row" value. Any other action falls
// through to normal validation.
func RowActions[M, R any](rows func(*M) *[]R, fresh func() R) func(context.Context, *engine.Input, *M) (bool, validation.Errors, error) {
	return func(_ context.Context, in *engine.Input, m *M) (bool, validation.Errors, error) {
		list := rows(m)
		switch in.Action {
		case ActionAddRow:
			*list = AddRow(*list, fresh())
			return true, nil, nil
		case ActionDeleteRow:
			index, err := strconv.Atoi(in.Values.String("row"))
			if err != nil {
				return false, nil, dErrors.New(dErrors.CodeBadRequest, "row must be a number")
			}
			updated, err := DeleteRow(*list, index)
			if err != nil {
				return false, nil, err
			}
			*list = updated
			return true, nil, nil
		default:
			return false, nil, nil
		}
	}
}
