package lbtt_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/address"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/lbtt"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/lbtt/mocks"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/bind"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit"
	auditpublisher "github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit/publisher"
	auditmemory "github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit/store/memory"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/mocks.go -package=mocks Calculator,Submitter

const session = "lbtt-session"

type ReturnFlowSuite struct {
	suite.Suite
	ctx        context.Context
	ctrl       *gomock.Controller
	calculator *mocks.MockCalculator
	submitter  *mocks.MockSubmitter
	audit      *auditpublisher.Publisher
	module     *lbtt.Module
}

func TestReturnFlowSuite(t *testing.T) {
	suite.Run(t, new(ReturnFlowSuite))
}

func (s *ReturnFlowSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.calculator = mocks.NewMockCalculator(s.ctrl)
	s.submitter = mocks.NewMockSubmitter(s.ctrl)
	s.audit = auditpublisher.NewPublisher(auditmemory.NewInMemoryStore())

	module, err := lbtt.New(lbtt.Config{
		Store:      cache.NewMemoryStore(),
		TTL:        time.Hour,
		Calculator: s.calculator,
		Submitter:  s.submitter,
		Lookup:     address.DevelopmentLookup(),
	}, engine.WithAudit(s.audit))
	s.Require().NoError(err)
	s.module = module
}

func (s *ReturnFlowSuite) calculates() {
	s.calculator.EXPECT().Calculate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, r *lbtt.Return) (lbtt.Calculation, error) {
			return lbtt.BandCalculator{}.Calculate(ctx, r)
		}).AnyTimes()
}

func post(step, recordID string, values bind.Values) *engine.Input {
	return &engine.Input{
		Step:     step,
		Session:  session,
		Method:   "POST",
		RecordID: recordID,
		Action:   values.String("action"),
		Values:   values,
	}
}

func (s *ReturnFlowSuite) submitReturn(step string, values bind.Values) engine.Outcome[lbtt.Return] {
	out, err := s.module.Return.Execute(s.ctx, post(step, "", values))
	s.Require().NoError(err)
	return out
}

func (s *ReturnFlowSuite) submitParty(step, recordID string, values bind.Values) engine.Outcome[lbtt.Party] {
	out, err := s.module.Party.Execute(s.ctx, post(step, recordID, values))
	s.Require().NoError(err)
	return out
}

func (s *ReturnFlowSuite) submitProperty(step, recordID string, values bind.Values) engine.Outcome[lbtt.Property] {
	out, err := s.module.Property.Execute(s.ctx, post(step, recordID, values))
	s.Require().NoError(err)
	return out
}

func (s *ReturnFlowSuite) current() *lbtt.Return {
	r, found, err := s.module.Return.Current(s.ctx, session)
	s.Require().NoError(err)
	s.Require().True(found)
	return r
}

func edinburgh() bind.Values {
	return bind.Values{"address": map[string]any{
		"line1":    "1 High Street",
		"town":     "Edinburgh",
		"postcode": "eh1 1aa",
	}}
}

// conveyance answers the transaction questions of a conveyance without
// reliefs or linked transactions.
func (s *ReturnFlowSuite) conveyance() {
	s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeConveyance})
	s.submitReturn("effective_date", bind.Values{"effective_date": "2025-06-01"})
	s.submitReturn("consideration", bind.Values{"consideration": "200000"})
	s.submitReturn("linked_transactions", bind.Values{"linked_ind": "N"})
	s.submitReturn("relief_claimed", bind.Values{"relief_claimed": "N"})
}

func (s *ReturnFlowSuite) addParty(partyType string, contact bool) {
	out := s.submitParty("party_type", engine.NewRecord, bind.Values{"party_type": partyType, "category": lbtt.CategoryPrivate})
	s.Require().Equal("/lbtt/parties/party_name", out.Location)
	s.submitParty("party_name", "", bind.Values{"forename": "Ada", "surname": "Lovelace"})
	out = s.submitParty("party_address", "", edinburgh())
	if contact {
		s.Require().Equal("/lbtt/parties/party_contact", out.Location)
		out = s.submitParty("party_contact", "", bind.Values{"email": "ada@example.com"})
	}
	s.Require().Equal(lbtt.SummaryPath, out.Location)
}

func (s *ReturnFlowSuite) addProperty() {
	s.submitProperty("property_address", engine.NewRecord, edinburgh())
	out := s.submitProperty("property_details", "", bind.Values{"local_authority": "City of Edinburgh"})
	if out.Location == "/lbtt/properties/property_ads" {
		out = s.submitProperty("property_ads", "", bind.Values{"ads_due": "N"})
	}
	s.Require().Equal(lbtt.SummaryPath, out.Location)
}

func (s *ReturnFlowSuite) TestEveryReturnTypeHasARoute() {
	for _, returnType := range lbtt.ReturnTypes {
		s.Run(returnType, func() {
			s.Require().NoError(s.module.Return.Discard(s.ctx, session))
			out := s.submitReturn("return_type", bind.Values{"return_type": returnType})
			s.Equal(engine.Redirect, out.Kind)
			s.Equal("/lbtt/effective_date", out.Location)
		})
	}
}

func (s *ReturnFlowSuite) TestConveyanceReachesSummary() {
	s.calculates()
	s.Run("the transaction questions are asked in order", func() {
		s.Equal("/lbtt/effective_date", s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeConveyance}).Location)
		s.Equal("/lbtt/consideration", s.submitReturn("effective_date", bind.Values{"effective_date": "2025-06-01"}).Location)
		s.Equal("/lbtt/linked_transactions", s.submitReturn("consideration", bind.Values{"consideration": "200000"}).Location)
		s.Equal("/lbtt/relief_claimed", s.submitReturn("linked_transactions", bind.Values{"linked_ind": "N"}).Location)
	})

	s.Run("declining relief skips the claims step", func() {
		out := s.submitReturn("relief_claimed", bind.Values{"relief_claimed": "N"})
		s.Equal(lbtt.SummaryPath, out.Location)
	})

	s.Run("the calculation is kept on the return", func() {
		s.Equal("1100.00", s.current().Calculation.TotalDue.String())
	})

	s.Run("claiming relief adds the claims step", func() {
		out := s.submitReturn("relief_claimed", bind.Values{"relief_claimed": "Y"})
		s.Equal("/lbtt/relief_claims", out.Location)

		out = s.submitReturn("relief_claims", bind.Values{"relief_claims": []any{
			map[string]any{"relief_type": "FTB", "amount": "600"},
			map[string]any{"relief_type": "", "amount": ""},
		}})
		s.Equal(lbtt.SummaryPath, out.Location)
		r := s.current()
		s.Len(r.ReliefClaims, 1)
		s.Equal("500.00", r.Calculation.TotalDue.String())
	})
}

func (s *ReturnFlowSuite) TestRowActionsKeepTypedRows() {
	s.calculates()
	s.conveyance()

	out := s.submitReturn("linked_transactions", bind.Values{
		"linked_ind": "Y",
		"action":     "add_row",
		"linked_transactions": []any{
			map[string]any{"effective_date": "2025-01-01", "consideration": "5000"},
		},
	})
	s.Equal(engine.Render, out.Kind)
	s.Require().Len(out.Data.LinkedTransactions, 2)
	s.Equal("5000", out.Data.LinkedTransactions[0].Consideration.String())

	out = s.submitReturn("linked_transactions", bind.Values{
		"linked_ind": "Y",
		"linked_transactions": []any{
			map[string]any{"effective_date": "2025-01-01", "consideration": "5000"},
			map[string]any{"return_reference": "RS1"},
		},
	})
	s.Equal(engine.Render, out.Kind)
	s.Equal([]string{"row 2 is incomplete"}, out.Errors.On("linked_transactions"))
}

func (s *ReturnFlowSuite) TestLeaseDatesSizeTheRentRows() {
	s.calculates()
	s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeLease})
	s.submitReturn("effective_date", bind.Values{"effective_date": "2025-01-01"})
	out := s.submitReturn("lease_dates", bind.Values{"lease_start_date": "2025-01-01", "lease_end_date": "2027-06-01"})
	s.Equal("/lbtt/yearly_rents", out.Location)
	s.Len(s.current().YearlyRents, 3)

	out = s.submitReturn("yearly_rents", bind.Values{"yearly_rents": []any{
		map[string]any{"rent": "100000"},
		map[string]any{"rent": "100000"},
		map[string]any{"rent": "100000"},
	}})
	s.Equal("/lbtt/premium", out.Location)
	s.Equal("1301.00", s.current().Calculation.NPVTax.String())

	s.Equal("/lbtt/relief_claimed", s.submitReturn("premium", bind.Values{"premium": ""}).Location)
}

func (s *ReturnFlowSuite) TestLeaseReviewHasNoReliefQuestions() {
	s.calculates()
	s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeAssignation})
	s.submitReturn("effective_date", bind.Values{"effective_date": "2025-01-01"})
	s.submitReturn("lease_dates", bind.Values{"lease_start_date": "2025-01-01", "lease_end_date": "2026-01-01"})
	s.submitReturn("yearly_rents", bind.Values{"yearly_rents": []any{map[string]any{"rent": "1000"}}})
	s.Equal(lbtt.SummaryPath, s.submitReturn("premium", bind.Values{"premium": "0"}).Location)
}

func (s *ReturnFlowSuite) TestCalculatorFailureKeepsTheAnswer() {
	s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeConveyance})
	s.submitReturn("effective_date", bind.Values{"effective_date": "2025-06-01"})
	s.calculator.EXPECT().Calculate(gomock.Any(), gomock.Any()).Return(lbtt.Calculation{}, errors.New("connection refused"))

	out := s.submitReturn("consideration", bind.Values{"consideration": "250000"})

	s.Equal(engine.Render, out.Kind)
	s.Equal("consideration", out.Step)
	s.Equal([]string{"the tax calculation is not available at the moment, please try again"}, out.Errors.On(validation.Base))
	s.Equal("250000", s.current().Consideration.String())
}

func (s *ReturnFlowSuite) TestChangingTheReturnTypeStartsOver() {
	s.calculates()
	s.conveyance()
	s.addParty(lbtt.PartySeller, false)
	reference := s.current().Reference

	// a half-built party must not survive the change either
	s.submitParty("party_type", engine.NewRecord, bind.Values{"party_type": lbtt.PartyBuyer, "category": lbtt.CategoryPrivate})

	out := s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeLease})
	s.Equal("/lbtt/effective_date", out.Location)

	r := s.current()
	s.Equal(reference, r.Reference)
	s.Equal(lbtt.TypeLease, r.ReturnType)
	s.Empty(r.Parties)
	s.True(r.Consideration.Blank())
	s.True(r.EffectiveDate.Blank())

	_, err := s.module.Party.Execute(s.ctx, post("party_name", "", bind.Values{"forename": "Ada", "surname": "Lovelace"}))
	s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))

	s.Run("resubmitting the same type keeps the answers", func() {
		s.submitReturn("effective_date", bind.Values{"effective_date": "2025-01-01"})
		s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeLease})
		s.Equal("2025-01-01", s.current().EffectiveDate.String())
	})
}

func (s *ReturnFlowSuite) TestPartySubWizard() {
	s.calculates()
	s.conveyance()

	s.Run("a seller skips the contact step", func() {
		s.addParty(lbtt.PartySeller, false)
	})
	s.Run("a buyer is asked for contact details", func() {
		s.addParty(lbtt.PartyBuyer, true)
	})

	r := s.current()
	s.Require().Len(r.Parties, 2)
	s.Equal("EH1 1AA", r.Parties[0].Address.Address.Postcode)
	s.Equal("ada@example.com", r.Parties[1].Email)

	s.Run("editing a party replaces it in place", func() {
		id := r.Parties[0].ID.String()
		s.submitParty("party_type", id, bind.Values{"party_type": lbtt.PartySeller, "category": lbtt.CategoryOrganisation})
		s.submitParty("party_name", "", bind.Values{"organisation_name": "Acme Ltd"})
		s.submitParty("party_address", "", edinburgh())

		updated := s.current()
		s.Require().Len(updated.Parties, 2)
		s.Equal("Acme Ltd", updated.Parties[0].DisplayName())
		s.Empty(updated.Parties[0].Forename)
	})

	s.Run("an unknown party is not found", func() {
		_, err := s.module.Party.Execute(s.ctx, &engine.Input{
			Step: "party_type", Session: session, Method: "GET", RecordID: domain.NewRecordID().String(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReturnFlowSuite) TestPropertyFlowBranchesOnReturnType() {
	s.calculates()
	s.conveyance()
	s.submitProperty("property_address", engine.NewRecord, edinburgh())
	out := s.submitProperty("property_details", "", bind.Values{"local_authority": "City of Edinburgh"})
	s.Equal("/lbtt/properties/property_ads", out.Location)

	out = s.submitProperty("property_ads", "", bind.Values{"ads_due": "Y"})
	s.Equal(engine.Render, out.Kind)
	s.Equal([]string{"can't be blank"}, out.Errors.On("ads_amount"))

	out = s.submitProperty("property_ads", "", bind.Values{"ads_due": "Y", "ads_amount": "8000"})
	s.Equal(lbtt.SummaryPath, out.Location)
	s.Len(s.current().Properties, 1)

	s.submitReturn("return_type", bind.Values{"return_type": lbtt.TypeLease})
	s.submitProperty("property_address", engine.NewRecord, edinburgh())
	out = s.submitProperty("property_details", "", bind.Values{"local_authority": "City of Edinburgh"})
	s.Equal(lbtt.SummaryPath, out.Location)
}

func (s *ReturnFlowSuite) TestRepaymentBranch() {
	s.calculates()
	s.conveyance()

	s.Equal("/lbtt/repayment_amount", s.submitReturn("repayment_claim", bind.Values{"repayment_claimed": "Y"}).Location)
	s.Equal("/lbtt/repayment_account_holder", s.submitReturn("repayment_amount", bind.Values{"repayment_amount": "100"}).Location)

	out := s.submitReturn("repayment_claim", bind.Values{"repayment_claimed": "N"})
	s.Equal("/lbtt/declaration", out.Location)
	s.True(s.current().RepaymentAmount.Blank())
}

func (s *ReturnFlowSuite) TestDeclarationSubmitsTheReturn() {
	s.calculates()
	s.conveyance()
	s.submitReturn("repayment_claim", bind.Values{"repayment_claimed": "N"})

	s.Run("parties and properties are required", func() {
		out := s.submitReturn("declaration", bind.Values{"declaration": "Y"})
		s.Equal(engine.Render, out.Kind)
		s.Len(out.Errors.On("parties"), 2)
		s.Len(out.Errors.On("properties"), 1)
	})

	s.addParty(lbtt.PartyBuyer, true)
	s.addParty(lbtt.PartySeller, false)
	s.addProperty()
	reference := s.current().Reference

	s.Run("a failed submission keeps the return", func() {
		s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(lbtt.Receipt{}, errors.New("back office down"))
		out := s.submitReturn("declaration", bind.Values{"declaration": "Y"})
		s.Equal(engine.Render, out.Kind)
		s.Equal([]string{"the return could not be submitted, please try again"}, out.Errors.On(validation.Base))
		s.Equal(reference, s.current().Reference)
	})

	s.Run("a successful submission clears the return", func() {
		s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r *lbtt.Return) (lbtt.Receipt, error) {
				s.Len(r.Parties, 2)
				return lbtt.Receipt{Reference: r.Reference}, nil
			})
		out := s.submitReturn("declaration", bind.Values{"declaration": "Y"})
		s.Equal(engine.Redirect, out.Kind)
		s.Equal(lbtt.ConfirmationPath+"?reference="+reference, out.Location)

		_, found, err := s.module.Return.Current(s.ctx, session)
		s.NoError(err)
		s.False(found)

		events, err := s.audit.List(s.ctx, session)
		s.Require().NoError(err)
		var submitted bool
		for _, e := range events {
			if e.Type == audit.EventReturnSubmitted {
				submitted = strings.HasPrefix(e.Detail, "RS")
			}
		}
		s.True(submitted)
	})
}

func (s *ReturnFlowSuite) TestRejectedReturnTypeKeepsTheBranch() {
	s.calculates()
	s.conveyance()

	out := s.submitReturn("return_type", bind.Values{"return_type": "BOGUS"})
	s.Equal(engine.Render, out.Kind)
	s.Equal([]string{"is not included in the list"}, out.Errors.On("return_type"))
	s.Equal("BOGUS", out.Data.ReturnType, "the entry is shown back")

	out = s.submitReturn("effective_date", bind.Values{"effective_date": "2025-06-02"})
	s.Equal(engine.Redirect, out.Kind)
	s.Equal("/lbtt/consideration", out.Location)
	s.Equal(lbtt.TypeConveyance, s.current().Type())
	s.Equal("200000", s.current().Consideration.String())

	s.Run("without an accepted type the flow asks for one", func() {
		s.Require().NoError(s.module.Return.Discard(s.ctx, session))
		s.submitReturn("return_type", bind.Values{"return_type": "BOGUS"})

		out := s.submitReturn("effective_date", bind.Values{"effective_date": "2025-06-02"})
		s.Equal(engine.Redirect, out.Kind)
		s.Equal(lbtt.StartPath, out.Location)
	})
}

func (s *ReturnFlowSuite) TestReliefOverrideRequiresAnAmountPerClaim() {
	s.calculates()
	s.conveyance()
	s.submitReturn("relief_claimed", bind.Values{"relief_claimed": "Y"})
	s.submitReturn("relief_claims", bind.Values{"relief_claims": []any{
		map[string]any{"relief_type": "FTB", "amount": "600"},
	}})
	s.Equal("500.00", s.current().Calculation.TotalDue.String())

	s.Run("the claim step never asks for an override", func() {
		s.True(s.current().ReliefClaims[0].OverrideAmount.Blank())
	})

	out := s.submitReturn("relief_override", bind.Values{"relief_claims": []any{
		map[string]any{"relief_type": "FTB", "amount": "600"},
	}})
	s.Equal(engine.Render, out.Kind)
	s.Equal([]string{"row 1 is invalid"}, out.Errors.On("relief_claims"))
	s.NotEmpty(out.Errors.On("relief_claims[0].override_amount"))

	out = s.submitReturn("relief_override", bind.Values{"relief_claims": []any{
		map[string]any{"relief_type": "FTB", "amount": "600", "override_amount": "800"},
	}})
	s.Equal(engine.Redirect, out.Kind)
	s.Equal(lbtt.SummaryPath, out.Location)

	r := s.current()
	s.Equal("800", r.ReliefClaims[0].OverrideAmount.String())
	s.Equal("800.00", r.Calculation.ReliefAmount.String())
	s.Equal("300.00", r.Calculation.TotalDue.String())
}
