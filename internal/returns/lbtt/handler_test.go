package lbtt_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/address"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/lbtt"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/web"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	module, err := lbtt.New(lbtt.Config{
		Store:      cache.NewMemoryStore(),
		TTL:        time.Hour,
		Calculator: lbtt.BandCalculator{},
		Submitter:  lbtt.NewLoggingSubmitter(logger),
		Lookup:     address.DevelopmentLookup(),
	}, engine.WithLogger(logger))
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	lbtt.NewHandler(module, logger).Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithSession(req, "4b1f0a4e-5d36-4c55-a0c5-0d1e2f3a4b5c"))
}

func (s *HandlerSuite) form(path string, values url.Values) *httptest.ResponseRecorder {
	return s.do(testutil.NewFormRequest(s.T(), path, values))
}

func (s *HandlerSuite) summary() *lbtt.Summary {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, lbtt.SummaryPath))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	return testutil.UnmarshalResponse[lbtt.Summary](s.T(), rr)
}

func (s *HandlerSuite) TestSummaryWithoutReturnGoesToStart() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, lbtt.SummaryPath))
	testutil.AssertRedirect(s.T(), rr, lbtt.StartPath)
}

func (s *HandlerSuite) TestPartiesFromTheSummary() {
	t := s.T()
	testutil.AssertRedirect(t, s.form("/lbtt/return_type", url.Values{"return_type": {lbtt.TypeConveyance}}), "/lbtt/effective_date")

	sum := s.summary()
	s.NotEmpty(sum.Reference)
	s.Equal("/lbtt/parties/party_type?id=new", sum.Links["add_party"])
	s.Empty(sum.Parties)

	testutil.AssertRedirect(t, s.form("/lbtt/parties/party_type?id=new", url.Values{
		"party_type": {lbtt.PartySeller},
		"category":   {lbtt.CategoryPrivate},
	}), "/lbtt/parties/party_name")
	testutil.AssertRedirect(t, s.form("/lbtt/parties/party_name", url.Values{
		"forename": {"Mary"},
		"surname":  {"Somerville"},
	}), "/lbtt/parties/party_address")
	testutil.AssertRedirect(t, s.form("/lbtt/parties/party_address", url.Values{
		"address[line1]":    {"2 Princes Street"},
		"address[town]":     {"Edinburgh"},
		"address[postcode]": {"EH1 1AA"},
	}), lbtt.SummaryPath)

	sum = s.summary()
	s.Require().Len(sum.Parties, 1)
	s.Equal("Mary Somerville", sum.Parties[0].Name)

	s.Run("deleting an unknown party is not found", func() {
		rr := s.do(testutil.NewRequest(t, http.MethodPost, "/lbtt/parties/"+domain.NewRecordID().String()+"/delete"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	s.Run("a malformed id is rejected", func() {
		rr := s.do(testutil.NewRequest(t, http.MethodPost, "/lbtt/parties/not-a-uuid/delete"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("deleting by id leaves the summary empty", func() {
		rr := s.do(testutil.NewRequest(t, http.MethodPost, "/lbtt/parties/"+sum.Parties[0].ID.String()+"/delete"))
		testutil.AssertRedirect(t, rr, lbtt.SummaryPath)
		s.Empty(s.summary().Parties)
	})
}

func (s *HandlerSuite) TestPropertyAddressSearch() {
	t := s.T()
	s.form("/lbtt/return_type", url.Values{"return_type": {lbtt.TypeLease}})

	rr := s.form("/lbtt/properties/property_address?id=new", url.Values{
		"action":          {address.ActionFind},
		"search_postcode": {"eh66qq"},
	})
	testutil.AssertStatus(t, rr, http.StatusOK)
	body := testutil.UnmarshalResponse[web.StepResponse[lbtt.Property]](t, rr)
	s.Len(body.Data.Address.Candidates, 2)

	rr = s.form("/lbtt/properties/property_address", url.Values{"action": {address.ActionSelect}, "selected": {"1"}})
	testutil.AssertStatus(t, rr, http.StatusOK)
	body = testutil.UnmarshalResponse[web.StepResponse[lbtt.Property]](t, rr)
	s.Equal("EH6 6QQ", body.Data.Address.Address.Postcode)

	testutil.AssertRedirect(t, s.form("/lbtt/properties/property_address", url.Values{}), "/lbtt/properties/property_details")
	testutil.AssertRedirect(t, s.form("/lbtt/properties/property_details", url.Values{
		"local_authority": {"City of Edinburgh"},
	}), lbtt.SummaryPath)

	sum := s.summary()
	s.Require().Len(sum.Properties, 1)
	s.Contains(sum.Properties[0].Address, "EH6 6QQ")
}

func (s *HandlerSuite) TestStartingOverDiscardsTheReturn() {
	t := s.T()
	s.form("/lbtt/return_type", url.Values{"return_type": {lbtt.TypeConveyance}})

	rr := s.do(testutil.NewRequest(t, http.MethodPost, "/lbtt/new"))
	testutil.AssertRedirect(t, rr, lbtt.StartPath)

	rr = s.do(testutil.NewRequest(t, http.MethodGet, "/lbtt/effective_date"))
	testutil.AssertRedirect(t, rr, lbtt.StartPath)
}

func (s *HandlerSuite) TestChildStepWithoutReturnGoesToStart() {
	rr := s.form("/lbtt/parties/party_type?id=new", url.Values{"party_type": {lbtt.PartyBuyer}})
	testutil.AssertRedirect(s.T(), rr, lbtt.SummaryPath)
}
