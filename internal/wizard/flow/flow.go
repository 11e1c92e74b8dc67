// Package flow decides which step follows the current one. A step's rule is
// either a static ordered list with a terminal path, or a resolver that looks
// at the aggregate and returns a list to branch onto, a single step, or a
// terminal path that leaves the flow.
package flow

import (
	"fmt"
	"slices"

	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// List is an ordered sequence of step names with the destination that
// follows its last member. The terminal is a path outside the list's own
// vocabulary, such as a summary page or another flow's first step.
type List struct {
	Name     string
	Steps    []string
	Terminal string
}

// NewList builds a list ending at terminal.
func NewList(terminal string, steps ...string) List {
	return List{Steps: steps, Terminal: terminal}
}

// Index returns the position of step in the list, or -1.
func (l List) Index(step string) int {
	return slices.Index(l.Steps, step)
}

// Without returns a copy of the list with steps removed. The receiver is
// never modified.
func (l List) Without(steps ...string) List {
	out := List{Name: l.Name, Terminal: l.Terminal, Steps: make([]string, 0, len(l.Steps))}
	for _, s := range l.Steps {
		if !slices.Contains(steps, s) {
			out.Steps = append(out.Steps, s)
		}
	}
	return out
}

// After returns the destination following current. When current is not in
// the list, navigation enters the list at its first step.
func (l List) After(current string) Destination {
	idx := l.Index(current)
	switch {
	case idx < 0 && len(l.Steps) > 0:
		return Destination{Step: l.Steps[0]}
	case idx < 0 || idx == len(l.Steps)-1:
		return Destination{Path: l.Terminal}
	default:
		return Destination{Step: l.Steps[idx+1]}
	}
}

// Validate checks the list invariants: non-empty with a terminal.
func (l List) Validate() error {
	if len(l.Steps) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("step list %q is empty", l.Name))
	}
	if l.Terminal == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("step list %q has no terminal path", l.Name))
	}
	return nil
}

// Destination is where navigation goes next: a step of this flow, or a
// terminal path outside it. Exactly one field is set.
type Destination struct {
	Step string
	Path string
}

// Terminal reports whether the destination leaves the flow.
func (d Destination) Terminal() bool {
	return d.Path != ""
}

func (d Destination) String() string {
	if d.Terminal() {
		return "path:" + d.Path
	}
	return "step:" + d.Step
}

// Route is a resolver's answer: branch onto a list, jump to a step, or exit.
type Route struct {
	List *List
	Step string
	Path string
}

// Branch routes onto l.
func Branch(l List) Route {
	return Route{List: &l}
}

// Goto routes to a single step.
func Goto(step string) Route {
	return Route{Step: step}
}

// Exit leaves the flow for path, skipping any remaining steps.
func Exit(path string) Route {
	return Route{Path: path}
}

// Resolver computes a route from the current aggregate.
type Resolver[T any] func(agg *T) (Route, error)

// Rule is the closed union of a static list and a resolver.
type Rule[T any] struct {
	list    *List
	resolve Resolver[T]
}

// Static returns a rule that always walks l.
func Static[T any](l List) Rule[T] {
	return Rule[T]{list: &l}
}

// Dynamic returns a rule that asks r.
func Dynamic[T any](r Resolver[T]) Rule[T] {
	return Rule[T]{resolve: r}
}

// IsZero reports an unset rule.
func (r Rule[T]) IsZero() bool {
	return r.list == nil && r.resolve == nil
}

func (r Rule[T]) route(agg *T) (Route, error) {
	if r.list != nil {
		return Route{List: r.list}, nil
	}
	if r.resolve == nil {
		return Route{}, dErrors.New(dErrors.CodeInvariantViolation, "step has no next-step rule")
	}
	return r.resolve(agg)
}
