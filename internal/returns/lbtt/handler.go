package lbtt

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/web"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/httputil"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

// Summary is the hub page of a return in progress.
type Summary struct {
	Reference   string            `json:"reference"`
	ReturnType  string            `json:"return_type"`
	Parties     []PartyLine       `json:"parties"`
	Properties  []PropertyLine    `json:"properties"`
	Calculation Calculation       `json:"calculation"`
	Links       map[string]string `json:"links"`
}

type PartyLine struct {
	ID   domain.RecordID `json:"id"`
	Type string          `json:"party_type"`
	Name string          `json:"name"`
	Edit string          `json:"edit"`
}

type PropertyLine struct {
	ID      domain.RecordID `json:"id"`
	Address string          `json:"address"`
	Edit    string          `json:"edit"`
}

// Handler serves the LBTT flows and the summary around them.
type Handler struct {
	m        *Module
	logger   *slog.Logger
	ret      *web.Handler[Return]
	party    *web.Handler[Party]
	property *web.Handler[Property]
}

func NewHandler(m *Module, logger *slog.Logger) *Handler {
	return &Handler{
		m:        m,
		logger:   logger,
		ret:      web.New(m.Return, logger),
		party:    web.New(m.Party, logger),
		property: web.New(m.Property, logger),
	}
}

// Register mounts every LBTT route under /lbtt.
func (h *Handler) Register(r chi.Router) {
	r.Route(BasePath, func(r chi.Router) {
		h.ret.Register(r)
		r.Get("/summary", h.handleSummary)
		r.Get("/confirmation", h.handleConfirmation)
		r.Post("/new", h.handleStartOver)
		r.Route("/parties", func(r chi.Router) {
			h.party.Register(r)
			r.Post("/{id}/delete", h.handleDeleteParty)
		})
		r.Route("/properties", func(r chi.Router) {
			h.property.Register(r)
			r.Post("/{id}/delete", h.handleDeleteProperty)
		})
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ret, found, err := h.m.Return.Current(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	if !found {
		httputil.Redirect(w, r, StartPath)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summarise(ret))
}

func summarise(r *Return) Summary {
	s := Summary{
		Reference:   r.Reference,
		ReturnType:  r.Type(),
		Parties:     make([]PartyLine, 0, len(r.Parties)),
		Properties:  make([]PropertyLine, 0, len(r.Properties)),
		Calculation: r.Calculation,
		Links: map[string]string{
			"about_the_transaction": BasePath + "/effective_date",
			"add_party":             PartiesPath + "/party_type?id=" + engine.NewRecord,
			"add_property":          PropertiesPath + "/property_address?id=" + engine.NewRecord,
			"submit":                BasePath + "/repayment_claim",
			"start_again":           BasePath + "/new",
		},
	}
	if r.ReliefClaimed == domain.Yes {
		s.Links["override_relief"] = BasePath + "/relief_override"
	}
	for _, p := range r.Parties {
		s.Parties = append(s.Parties, PartyLine{
			ID:   p.ID,
			Type: p.PartyType,
			Name: p.DisplayName(),
			Edit: PartiesPath + "/party_type?id=" + p.ID.String(),
		})
	}
	for _, p := range r.Properties {
		s.Properties = append(s.Properties, PropertyLine{
			ID:      p.ID,
			Address: p.Address.Address.String(),
			Edit:    PropertiesPath + "/property_address?id=" + p.ID.String(),
		})
	}
	return s
}

func (h *Handler) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"reference": r.URL.Query().Get("reference"),
	})
}

func (h *Handler) handleStartOver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.m.discard(ctx, requestcontext.SessionID(ctx)); err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "lbtt return discarded",
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.Redirect(w, r, StartPath)
}

func (h *Handler) handleDeleteParty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.m.parties.Delete(ctx, requestcontext.SessionID(ctx), chi.URLParam(r, "id")); err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	httputil.Redirect(w, r, SummaryPath)
}

func (h *Handler) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.m.properties.Delete(ctx, requestcontext.SessionID(ctx), chi.URLParam(r, "id")); err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	httputil.Redirect(w, r, SummaryPath)
}
