package flow

import (
	"fmt"

	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// Navigator resolves next steps and refuses to route to a step the flow does
// not define.
type Navigator[T any] struct {
	known map[string]struct{}
}

// NewNavigator returns a navigator that accepts the given step names.
func NewNavigator[T any](steps ...string) *Navigator[T] {
	n := &Navigator[T]{known: make(map[string]struct{}, len(steps))}
	for _, s := range steps {
		n.known[s] = struct{}{}
	}
	return n
}

// Next returns the destination after current under rule, given agg.
func (n *Navigator[T]) Next(current string, rule Rule[T], agg *T) (Destination, error) {
	route, err := rule.route(agg)
	if err != nil {
		return Destination{}, err
	}

	var dest Destination
	switch {
	case route.Path != "":
		dest = Destination{Path: route.Path}
	case route.Step != "":
		dest = Destination{Step: route.Step}
	case route.List != nil:
		if err := route.List.Validate(); err != nil {
			return Destination{}, err
		}
		dest = route.List.After(current)
	default:
		return Destination{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("step %q resolved to an empty route", current))
	}

	if !dest.Terminal() {
		if _, ok := n.known[dest.Step]; !ok {
			return Destination{}, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("step %q routes to unknown step %q", current, dest.Step))
		}
	}
	return dest, nil
}

// Switch maps a closed-set discriminator to routes. A value with no entry is
// an unmapped branch: the enumerations are closed, so an unknown value means
// upstream corruption and must not fall back to a guessed default.
func Switch[T any, K comparable](field func(*T) K, branches map[K]Route) Resolver[T] {
	return func(agg *T) (Route, error) {
		value := field(agg)
		route, ok := branches[value]
		if !ok {
			return Route{}, dErrors.New(dErrors.CodeUnmappedBranch,
				fmt.Sprintf("no route for discriminator value %v", value))
		}
		return route, nil
	}
}
