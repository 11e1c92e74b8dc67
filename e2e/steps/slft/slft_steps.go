package slft

import (
	"context"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTForm(path string, form url.Values) error
	POSTBody(path, contentType, body string) error
	ExpectRedirect(location string) error
}

// RegisterSteps registers SLfT return steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &slftSteps{tc: tc}

	ctx.Step(`^I file for quarter "([^"]*)" of "([^"]*)"$`, steps.period)
	ctx.Step(`^I upload wastes for site "([^"]*)":$`, steps.upload)
	ctx.Step(`^I add (\S+) tonnes of "([^"]*)" waste to site "([^"]*)"$`, steps.addWaste)
}

type slftSteps struct {
	tc TestContext
}

func (s *slftSteps) period(ctx context.Context, quarter, year string) error {
	if err := s.tc.POSTForm("/slft/period", url.Values{"year": {year}, "quarter": {quarter}}); err != nil {
		return err
	}
	return s.tc.ExpectRedirect("/slft/summary")
}

func (s *slftSteps) upload(ctx context.Context, site string, csv *godog.DocString) error {
	return s.tc.POSTBody("/slft/sites/"+url.PathEscape(site)+"/import", "text/csv", csv.Content)
}

func (s *slftSteps) addWaste(ctx context.Context, tonnes, description, site string) error {
	q := url.Values{"id": {"new"}, "site": {site}}
	form := url.Values{"ewc_code": {"17 05 04"}, "description": {description}}
	if err := s.tc.POSTForm("/slft/wastes/waste_description?"+q.Encode(), form); err != nil {
		return err
	}
	if err := s.tc.ExpectRedirect("/slft/wastes/waste_tonnage"); err != nil {
		return err
	}
	if err := s.tc.POSTForm("/slft/wastes/waste_tonnage", url.Values{"standard_tonnage": {tonnes}}); err != nil {
		return err
	}
	return s.tc.ExpectRedirect("/slft/summary")
}
