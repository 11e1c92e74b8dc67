package common

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Reset()
	GET(path string) error
	POSTForm(path string, form url.Values) error
	Status() int
	Location() string
	ExpectRedirect(location string) error
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers generic navigation and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^a fresh portal session$`, steps.freshSession)
	ctx.Step(`^I open "([^"]*)"$`, steps.open)
	ctx.Step(`^I submit "([^"]*)" with:$`, steps.submitWith)
	ctx.Step(`^I submit "([^"]*)"$`, steps.submit)

	ctx.Step(`^I am sent to "([^"]*)"$`, steps.sentTo)
	ctx.Step(`^I am sent to a page starting with "([^"]*)"$`, steps.sentToPrefix)
	ctx.Step(`^the response status is (\d+)$`, steps.statusIs)
	ctx.Step(`^the response field "([^"]*)" is "([^"]*)"$`, steps.fieldIs)
	ctx.Step(`^the response field "([^"]*)" has (\d+) items?$`, steps.fieldHasItems)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) freshSession(ctx context.Context) error {
	s.tc.Reset()
	return nil
}

func (s *commonSteps) open(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) submitWith(ctx context.Context, path string, table *godog.Table) error {
	form, err := FormFromTable(table)
	if err != nil {
		return err
	}
	return s.tc.POSTForm(path, form)
}

func (s *commonSteps) submit(ctx context.Context, path string) error {
	return s.tc.POSTForm(path, url.Values{})
}

func (s *commonSteps) sentTo(ctx context.Context, path string) error {
	return s.tc.ExpectRedirect(path)
}

func (s *commonSteps) sentToPrefix(ctx context.Context, prefix string) error {
	if s.tc.Status() != 303 || !strings.HasPrefix(s.tc.Location(), prefix) {
		return fmt.Errorf("expected redirect under %s, got %d %q", prefix, s.tc.Status(), s.tc.Location())
	}
	return nil
}

func (s *commonSteps) statusIs(ctx context.Context, status int) error {
	if s.tc.Status() != status {
		return fmt.Errorf("expected status %d, got %d", status, s.tc.Status())
	}
	return nil
}

func (s *commonSteps) fieldIs(ctx context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s: expected %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) fieldHasItems(ctx context.Context, field string, n int) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		if v == nil && n == 0 {
			return nil
		}
		return fmt.Errorf("field %s is not a list", field)
	}
	if len(items) != n {
		return fmt.Errorf("field %s: expected %d items, got %d", field, n, len(items))
	}
	return nil
}

// FormFromTable turns a two-column "field | value" table into form values.
func FormFromTable(table *godog.Table) (url.Values, error) {
	form := url.Values{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return nil, fmt.Errorf("expected field and value columns, got %d", len(row.Cells))
		}
		form.Add(row.Cells[0].Value, row.Cells[1].Value)
	}
	return form, nil
}
