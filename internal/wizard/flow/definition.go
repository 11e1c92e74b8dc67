package flow

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

// Definition is a flow's step graph loaded from YAML: its named lists, and a
// next-step rule for every step. Branch conditions are expr-lang boolean
// expressions evaluated against the aggregate.
//
//	flow: lbtt
//	start: /lbtt/return_type
//	lists:
//	  conveyance:
//	    terminal: /lbtt/summary
//	    steps: [return_type, effective_date, consideration]
//	rules:
//	  by_type:
//	    switch:
//	      - when: ReturnType == "CONVEY"
//	        list: conveyance
//	steps:
//	  return_type: {rule: by_type}
//	  effective_date: {list: conveyance}
type Definition[T any] struct {
	Flow  string
	Start string
	Lists map[string]List
	rules map[string]Rule[T]
	gotos []string
}

type document struct {
	Flow  string             `yaml:"flow"`
	Start string             `yaml:"start"`
	Lists map[string]listDoc `yaml:"lists"`
	Rules map[string]ruleDoc `yaml:"rules"`
	Steps map[string]ruleDoc `yaml:"steps"`
}

type listDoc struct {
	Terminal string   `yaml:"terminal"`
	Steps    []string `yaml:"steps"`
}

type ruleDoc struct {
	List   string    `yaml:"list"`
	Rule   string    `yaml:"rule"`
	Path   string    `yaml:"path"`
	Step   string    `yaml:"step"`
	Switch []caseDoc `yaml:"switch"`
}

type caseDoc struct {
	When    string   `yaml:"when"`
	List    string   `yaml:"list"`
	Step    string   `yaml:"step"`
	Path    string   `yaml:"path"`
	Without []string `yaml:"without"`
}

type compiledCase struct {
	program *vm.Program
	route   Route
}

// Load parses and compiles a definition, checking every list, step and rule
// reference. All problems are reported together.
func Load[T any](data []byte) (*Definition[T], error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "parse flow definition")
	}

	def := &Definition[T]{
		Flow:  doc.Flow,
		Start: doc.Start,
		Lists: make(map[string]List, len(doc.Lists)),
		rules: make(map[string]Rule[T], len(doc.Steps)),
	}

	var problems []error
	if doc.Flow == "" {
		problems = append(problems, errors.New("flow name is required"))
	}
	if doc.Start == "" {
		problems = append(problems, errors.New("start path is required"))
	}
	for name, l := range doc.Lists {
		list := List{Name: name, Steps: l.Steps, Terminal: l.Terminal}
		if err := list.Validate(); err != nil {
			problems = append(problems, err)
		}
		def.Lists[name] = list
	}

	named := make(map[string]Rule[T], len(doc.Rules))
	for name, rd := range doc.Rules {
		if rd.Rule != "" {
			problems = append(problems, fmt.Errorf("rule %q: rules may not reference other rules", name))
			continue
		}
		rule, err := def.compile(name, rd, nil)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		named[name] = rule
	}

	for step, rd := range doc.Steps {
		rule, err := def.compile(step, rd, named)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		def.rules[step] = rule
	}

	problems = append(problems, def.checkCoverage()...)
	if len(problems) > 0 {
		return nil, dErrors.Wrap(errors.Join(problems...), dErrors.CodeInvariantViolation,
			fmt.Sprintf("flow %q definition is invalid", doc.Flow))
	}
	return def, nil
}

func (d *Definition[T]) compile(name string, rd ruleDoc, named map[string]Rule[T]) (Rule[T], error) {
	set := 0
	for _, s := range []string{rd.List, rd.Rule, rd.Path, rd.Step} {
		if s != "" {
			set++
		}
	}
	if len(rd.Switch) > 0 {
		set++
	}
	if set != 1 {
		return Rule[T]{}, fmt.Errorf("%q: exactly one of list, rule, path, step or switch is required", name)
	}

	switch {
	case rd.List != "":
		l, ok := d.Lists[rd.List]
		if !ok {
			return Rule[T]{}, fmt.Errorf("%q: unknown list %q", name, rd.List)
		}
		return Static[T](l), nil
	case rd.Rule != "":
		r, ok := named[rd.Rule]
		if !ok {
			return Rule[T]{}, fmt.Errorf("%q: unknown rule %q", name, rd.Rule)
		}
		return r, nil
	case rd.Path != "":
		route := Exit(rd.Path)
		return Dynamic[T](func(*T) (Route, error) { return route, nil }), nil
	case rd.Step != "":
		d.gotos = append(d.gotos, rd.Step)
		route := Goto(rd.Step)
		return Dynamic[T](func(*T) (Route, error) { return route, nil }), nil
	}

	var zero T
	cases := make([]compiledCase, 0, len(rd.Switch))
	for i, c := range rd.Switch {
		route, err := d.caseRoute(c)
		if err != nil {
			return Rule[T]{}, fmt.Errorf("%q case %d: %w", name, i, err)
		}
		when := c.When
		if when == "" {
			when = "true"
		}
		program, err := expr.Compile(when, expr.Env(zero), expr.AsBool())
		if err != nil {
			return Rule[T]{}, fmt.Errorf("%q case %d: compile %q: %w", name, i, c.When, err)
		}
		cases = append(cases, compiledCase{program: program, route: route})
	}

	return Dynamic[T](func(agg *T) (Route, error) {
		for _, c := range cases {
			out, err := expr.Run(c.program, *agg)
			if err != nil {
				return Route{}, dErrors.Wrap(err, dErrors.CodeInternal,
					fmt.Sprintf("evaluate branch condition for %q", name))
			}
			if matched, ok := out.(bool); ok && matched {
				return c.route, nil
			}
		}
		return Route{}, dErrors.New(dErrors.CodeUnmappedBranch,
			fmt.Sprintf("%q: no branch matches the current answers", name))
	}), nil
}

func (d *Definition[T]) caseRoute(c caseDoc) (Route, error) {
	set := 0
	for _, s := range []string{c.List, c.Step, c.Path} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return Route{}, errors.New("exactly one of list, step or path is required")
	}
	switch {
	case c.List != "":
		l, ok := d.Lists[c.List]
		if !ok {
			return Route{}, fmt.Errorf("unknown list %q", c.List)
		}
		if len(c.Without) > 0 {
			for _, s := range c.Without {
				if l.Index(s) < 0 {
					return Route{}, fmt.Errorf("list %q has no step %q to remove", c.List, s)
				}
			}
			l = l.Without(c.Without...)
		}
		return Branch(l), nil
	case c.Step != "":
		d.gotos = append(d.gotos, c.Step)
		return Goto(c.Step), nil
	default:
		if len(c.Without) > 0 {
			return Route{}, errors.New("without only applies to list routes")
		}
		return Exit(c.Path), nil
	}
}

// checkCoverage verifies that every listed step has a rule and every rule
// belongs to a listed step.
func (d *Definition[T]) checkCoverage() []error {
	var problems []error
	listed := d.Steps()
	for _, s := range listed {
		if _, ok := d.rules[s]; !ok {
			problems = append(problems, fmt.Errorf("step %q has no next-step rule", s))
		}
	}
	for s := range d.rules {
		if !slices.Contains(listed, s) {
			problems = append(problems, fmt.Errorf("step %q is configured but not in any list", s))
		}
	}
	for _, s := range d.gotos {
		if !slices.Contains(listed, s) {
			problems = append(problems, fmt.Errorf("route to unknown step %q", s))
		}
	}
	return problems
}

// Steps returns every step named by any list, sorted.
func (d *Definition[T]) Steps() []string {
	seen := map[string]struct{}{}
	for _, l := range d.Lists {
		for _, s := range l.Steps {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Rule returns the next-step rule configured for step.
func (d *Definition[T]) Rule(step string) (Rule[T], error) {
	r, ok := d.rules[step]
	if !ok {
		return Rule[T]{}, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("flow %q has no rule for step %q", d.Flow, step))
	}
	return r, nil
}

// List returns the named list.
func (d *Definition[T]) List(name string) (List, bool) {
	l, ok := d.Lists[name]
	return l, ok
}
