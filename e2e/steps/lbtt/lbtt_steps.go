package lbtt

import (
	"context"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTForm(path string, form url.Values) error
	ExpectRedirect(location string) error
}

// RegisterSteps registers LBTT return steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &lbttSteps{tc: tc}

	ctx.Step(`^I start a conveyance of "([^"]*)" effective "([^"]*)"$`, steps.startConveyance)
	ctx.Step(`^I add a (buyer|seller) named "([^"]*)" "([^"]*)"$`, steps.addParty)
	ctx.Step(`^I add a property in "([^"]*)"$`, steps.addProperty)
}

type lbttSteps struct {
	tc TestContext
}

// submit posts form to path and expects to be sent on to next.
func (s *lbttSteps) submit(path string, form url.Values, next string) error {
	if err := s.tc.POSTForm(path, form); err != nil {
		return err
	}
	return s.tc.ExpectRedirect(next)
}

func (s *lbttSteps) startConveyance(ctx context.Context, consideration, effective string) error {
	pages := []struct {
		path string
		form url.Values
		next string
	}{
		{"/lbtt/return_type", url.Values{"return_type": {"CONVEY"}}, "/lbtt/effective_date"},
		{"/lbtt/effective_date", url.Values{"effective_date": {effective}}, "/lbtt/consideration"},
		{"/lbtt/consideration", url.Values{"consideration": {consideration}}, "/lbtt/linked_transactions"},
		{"/lbtt/linked_transactions", url.Values{"linked_ind": {"N"}}, "/lbtt/relief_claimed"},
	}
	for _, p := range pages {
		if err := s.submit(p.path, p.form, p.next); err != nil {
			return err
		}
	}
	return nil
}

func (s *lbttSteps) addParty(ctx context.Context, role, forename, surname string) error {
	partyType := "SELLER"
	if role == "buyer" {
		partyType = "BUYER"
	}
	if err := s.submit("/lbtt/parties/party_type?id=new",
		url.Values{"party_type": {partyType}, "category": {"PRIVATE"}}, "/lbtt/parties/party_name"); err != nil {
		return err
	}
	if err := s.submit("/lbtt/parties/party_name",
		url.Values{"forename": {forename}, "surname": {surname}}, "/lbtt/parties/party_address"); err != nil {
		return err
	}
	address := url.Values{
		"address[line1]":    {"2 Princes Street"},
		"address[town]":     {"Edinburgh"},
		"address[postcode]": {"EH1 1AA"},
	}
	if partyType == "SELLER" {
		return s.submit("/lbtt/parties/party_address", address, "/lbtt/summary")
	}
	if err := s.submit("/lbtt/parties/party_address", address, "/lbtt/parties/party_contact"); err != nil {
		return err
	}
	return s.submit("/lbtt/parties/party_contact", url.Values{"email": {"buyer@example.com"}}, "/lbtt/summary")
}

func (s *lbttSteps) addProperty(ctx context.Context, postcode string) error {
	address := url.Values{
		"address[line1]":    {"1 High Street"},
		"address[town]":     {"Edinburgh"},
		"address[postcode]": {postcode},
	}
	if err := s.submit("/lbtt/properties/property_address?id=new", address, "/lbtt/properties/property_details"); err != nil {
		return err
	}
	if err := s.submit("/lbtt/properties/property_details",
		url.Values{"local_authority": {"City of Edinburgh"}}, "/lbtt/properties/property_ads"); err != nil {
		return err
	}
	return s.submit("/lbtt/properties/property_ads", url.Values{"ads_due": {"N"}}, "/lbtt/summary")
}
