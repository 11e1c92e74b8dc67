package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
)

type answers struct {
	Kind     string
	Repay    string
	Relief   string
	Tonnage  int
	Optional string
}

func (a answers) HasTonnage() bool {
	return a.Tonnage > 0
}

func TestStaticList(t *testing.T) {
	nav := NewNavigator[answers]("A", "B", "C")
	rule := Static[answers](NewList("done", "A", "B", "C"))

	dest, err := nav.Next("A", rule, &answers{})
	require.NoError(t, err)
	assert.Equal(t, Destination{Step: "B"}, dest)

	dest, err = nav.Next("B", rule, &answers{})
	require.NoError(t, err)
	assert.Equal(t, Destination{Step: "C"}, dest)

	dest, err = nav.Next("C", rule, &answers{})
	require.NoError(t, err)
	assert.True(t, dest.Terminal())
	assert.Equal(t, "done", dest.Path)
}

func TestResolverBranching(t *testing.T) {
	nav := NewNavigator[answers]("A", "B", "D", "E", "F")
	byKind := Dynamic(Switch(func(a *answers) string { return a.Kind }, map[string]Route{
		"X": Branch(NewList("done", "B", "D")),
		"Y": Branch(NewList("done", "B", "E", "F")),
	}))

	t.Run("kind X routes B then D", func(t *testing.T) {
		agg := &answers{Kind: "X"}
		dest, err := nav.Next("A", byKind, agg)
		require.NoError(t, err)
		assert.Equal(t, "B", dest.Step)

		dest, err = nav.Next("B", byKind, agg)
		require.NoError(t, err)
		assert.Equal(t, "D", dest.Step)
	})

	t.Run("kind Y routes B then E", func(t *testing.T) {
		agg := &answers{Kind: "Y"}
		dest, err := nav.Next("B", byKind, agg)
		require.NoError(t, err)
		assert.Equal(t, "E", dest.Step)
	})

	t.Run("unmapped discriminator fails loudly", func(t *testing.T) {
		_, err := nav.Next("A", byKind, &answers{Kind: "Q"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnmappedBranch))
	})

	t.Run("every enumerated discriminator has a route", func(t *testing.T) {
		for _, kind := range []string{"X", "Y"} {
			_, err := nav.Next("A", byKind, &answers{Kind: kind})
			assert.NoError(t, err, kind)
		}
	})
}

func TestNavigatorRejectsUnknownStep(t *testing.T) {
	nav := NewNavigator[answers]("A")
	rule := Dynamic[answers](func(*answers) (Route, error) { return Goto("Z"), nil })

	_, err := nav.Next("A", rule, &answers{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestEmptyListIsRejected(t *testing.T) {
	nav := NewNavigator[answers]("A")
	_, err := nav.Next("A", Static[answers](NewList("done")), &answers{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestWithoutReturnsFilteredCopy(t *testing.T) {
	canonical := NewList("done", "A", "B", "C")
	filtered := canonical.Without("B")

	assert.Equal(t, []string{"A", "C"}, filtered.Steps)
	assert.Equal(t, []string{"A", "B", "C"}, canonical.Steps)
	assert.Equal(t, Destination{Step: "C"}, filtered.After("A"))
}

const definitionYAML = `
flow: sample
start: /sample/start
lists:
  main:
    terminal: /sample/summary
    steps: [kind, relief, relief_rows, repay, repay_bank, repay_name, declaration]
  other:
    terminal: /sample/summary
    steps: [kind, tonnage, exemption]
rules:
  by_kind:
    switch:
      - when: Kind == "X"
        list: main
      - when: Kind == "Y"
        list: other
steps:
  kind: {rule: by_kind}
  relief:
    switch:
      - when: Relief == "N"
        list: main
        without: [relief_rows]
      - list: main
  relief_rows: {list: main}
  repay:
    switch:
      - when: Repay == "Y"
        list: main
      - when: Repay == "N"
        step: declaration
  repay_bank: {list: main}
  repay_name: {list: main}
  declaration: {path: /sample/submitted}
  tonnage:
    switch:
      - when: HasTonnage()
        step: exemption
      - path: /sample/summary
  exemption: {list: other}
`

func TestDefinition(t *testing.T) {
	def, err := Load[answers]([]byte(definitionYAML))
	require.NoError(t, err)
	assert.Equal(t, "sample", def.Flow)
	assert.Equal(t, "/sample/start", def.Start)

	nav := NewNavigator[answers](def.Steps()...)
	next := func(step string, agg *answers) Destination {
		t.Helper()
		rule, err := def.Rule(step)
		require.NoError(t, err)
		dest, err := nav.Next(step, rule, agg)
		require.NoError(t, err)
		return dest
	}

	t.Run("shared rule branches on kind", func(t *testing.T) {
		assert.Equal(t, "relief", next("kind", &answers{Kind: "X"}).Step)
		assert.Equal(t, "tonnage", next("kind", &answers{Kind: "Y"}).Step)
	})

	t.Run("a filtered list skips the removed step", func(t *testing.T) {
		assert.Equal(t, "repay", next("relief", &answers{Relief: "N"}).Step)
		assert.Equal(t, "relief_rows", next("relief", &answers{Relief: "Y"}).Step)
	})

	t.Run("no repayment skips the repayment detail steps", func(t *testing.T) {
		assert.Equal(t, "declaration", next("repay", &answers{Repay: "N"}).Step)
		assert.Equal(t, "repay_bank", next("repay", &answers{Repay: "Y"}).Step)
	})

	t.Run("terminal path and method conditions", func(t *testing.T) {
		assert.Equal(t, Destination{Path: "/sample/submitted"}, next("declaration", &answers{}))
		assert.Equal(t, "exemption", next("tonnage", &answers{Tonnage: 3}).Step)
		assert.Equal(t, Destination{Path: "/sample/summary"}, next("tonnage", &answers{}))
		assert.Equal(t, Destination{Path: "/sample/summary"}, next("exemption", &answers{}))
	})

	t.Run("no matching case is an unmapped branch", func(t *testing.T) {
		rule, err := def.Rule("repay")
		require.NoError(t, err)
		_, err = nav.Next("repay", rule, &answers{Repay: ""})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnmappedBranch))
	})

	t.Run("unknown step has no rule", func(t *testing.T) {
		_, err := def.Rule("missing")
		require.Error(t, err)
	})
}

func TestDefinitionRejectsBrokenGraphs(t *testing.T) {
	cases := map[string]string{
		"empty list": `
flow: f
start: /f
lists:
  main: {terminal: /f/done, steps: []}
steps: {}
`,
		"missing terminal": `
flow: f
start: /f
lists:
  main: {steps: [a]}
steps:
  a: {list: main}
`,
		"unknown list": `
flow: f
start: /f
lists:
  main: {terminal: /done, steps: [a]}
steps:
  a: {list: nope}
`,
		"step without rule": `
flow: f
start: /f
lists:
  main: {terminal: /done, steps: [a, b]}
steps:
  a: {list: main}
`,
		"route to unknown step": `
flow: f
start: /f
lists:
  main: {terminal: /done, steps: [a]}
steps:
  a: {step: ghost}
`,
		"bad expression": `
flow: f
start: /f
lists:
  main: {terminal: /done, steps: [a]}
steps:
  a:
    switch:
      - when: NoSuchField == 1
        list: main
`,
		"two targets in a case": `
flow: f
start: /f
lists:
  main: {terminal: /done, steps: [a]}
steps:
  a:
    switch:
      - list: main
        path: /x
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load[answers]([]byte(doc))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}
