package engine

import (
	"errors"
	"fmt"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// Wire fills each step's next-step rule from def and checks that def and
// steps name the same set of steps. A step that already carries a rule keeps
// it.
func Wire[M any](def *flow.Definition[M], steps []Step[M]) ([]Step[M], error) {
	out := make([]Step[M], len(steps))
	registered := make(map[string]struct{}, len(steps))
	var problems []error
	for i, s := range steps {
		registered[s.Name] = struct{}{}
		if s.Next.IsZero() {
			rule, err := def.Rule(s.Name)
			if err != nil {
				problems = append(problems, err)
			}
			s.Next = rule
		}
		out[i] = s
	}
	for _, name := range def.Steps() {
		if _, ok := registered[name]; !ok {
			problems = append(problems, fmt.Errorf("flow %q defines step %q with no handler", def.Flow, name))
		}
	}
	if len(problems) > 0 {
		return nil, dErrors.Wrap(errors.Join(problems...), dErrors.CodeInvariantViolation, "wire flow definition")
	}
	return out, nil
}
