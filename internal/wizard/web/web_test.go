package web

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

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/cache"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/flow"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/testutil"
)

type survey struct {
	Colour string   `json:"colour"`
	Pets   []string `json:"pets"`
	Rows   []struct {
		Name string `json:"name"`
	} `json:"rows"`
}

type SurveyHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestSurveyHandlerSuite(t *testing.T) {
	suite.Run(t, new(SurveyHandlerSuite))
}

func (s *SurveyHandlerSuite) SetupTest() {
	list := flow.NewList("/survey/done", "colour", "pets")
	byColour := flow.Dynamic[survey](flow.Switch(func(m *survey) string { return m.Colour }, map[string]flow.Route{
		"red":  flow.Branch(list),
		"blue": flow.Branch(list),
	}))
	f, err := engine.New(engine.Config[survey]{
		Name:    "survey",
		Start:   "/survey/colour",
		PathFor: func(step string) string { return "/survey/" + step },
		Cache:   cache.NewScoped[survey](cache.NewMemoryStore(), time.Hour),
		New:     func() *survey { return &survey{} },
		Validate: func(m *survey, vc validation.Context) validation.Errors {
			var errs validation.Errors
			if vc == "colour" {
				errs.Required("colour", m.Colour)
			}
			return errs
		},
	}, []engine.Step[survey]{
		{Name: "colour", Entry: true, Fields: []string{"colour"}, Context: "colour", Next: byColour},
		{Name: "pets", Fields: []string{"pets", "rows"}, Next: flow.Static[survey](list)},
	})
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	s.router.Route("/survey", New(f, slog.New(slog.NewTextHandler(io.Discard, nil))).Register)
}

func (s *SurveyHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithSession(req, "s1"))
}

func (s *SurveyHandlerSuite) TestRenderAndRedirect() {
	t := s.T()

	s.Run("GET of the entry step renders an empty record", func() {
		rr := s.do(testutil.NewRequest(t, http.MethodGet, "/survey/colour"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[StepResponse[survey]](t, rr)
		s.Equal("survey", body.Flow)
		s.Equal("colour", body.Step)
		s.Empty(body.Errors)
	})

	s.Run("invalid form post is 422 with field errors", func() {
		rr := s.do(testutil.NewFormRequest(t, "/survey/colour", url.Values{"colour": {""}}))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
		body := testutil.UnmarshalResponse[StepResponse[survey]](t, rr)
		s.Equal([]string{"can't be blank"}, body.Errors.On("colour"))
	})

	s.Run("valid form post redirects to the next step", func() {
		rr := s.do(testutil.NewFormRequest(t, "/survey/colour", url.Values{"colour": {"red"}}))
		testutil.AssertRedirect(t, rr, "/survey/pets")
	})

	s.Run("json post with rows binds and exits", func() {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/survey/pets", map[string]any{
			"pets": []string{"cat", "dog"},
			"rows": []map[string]string{{"name": "Tibbles"}},
		})
		rr := s.do(req)
		testutil.AssertRedirect(t, rr, "/survey/done")

		rr = s.do(testutil.NewRequest(t, http.MethodGet, "/survey/pets"))
		body := testutil.UnmarshalResponse[StepResponse[survey]](t, rr)
		s.Equal([]string{"cat", "dog"}, body.Data.Pets)
		s.Require().Len(body.Data.Rows, 1)
		s.Equal("Tibbles", body.Data.Rows[0].Name)
	})
}

func (s *SurveyHandlerSuite) TestFailures() {
	t := s.T()

	s.Run("expired session redirects to the start", func() {
		rr := s.do(testutil.NewRequest(t, http.MethodGet, "/survey/pets"))
		testutil.AssertRedirect(t, rr, "/survey/colour")
	})

	s.Run("unmapped discriminator is an internal error", func() {
		rr := s.do(testutil.NewFormRequest(t, "/survey/colour", url.Values{"colour": {"green"}}))
		testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
	})

	s.Run("malformed json is a bad request", func() {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/survey/colour", "application/json", "{")
		rr := s.do(req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}
