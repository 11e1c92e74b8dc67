package slft

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/listing"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/web"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/httputil"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

const maxUploadBytes = 2 << 20

// Summary is the hub page of a return in progress.
type Summary struct {
	Return *Return           `json:"return"`
	Sites  []SiteLinks       `json:"sites"`
	Links  map[string]string `json:"links"`
}

type SiteLinks struct {
	ID       string `json:"id"`
	AddWaste string `json:"add_waste"`
	Import   string `json:"import"`
}

// ImportResponse is the body answered to a staged upload.
type ImportResponse struct {
	Site    string                  `json:"site"`
	Pending *listing.Pending[Waste] `json:"pending"`
}

type Handler struct {
	m      *Module
	logger *slog.Logger
	ret    *web.Handler[Return]
	waste  *web.Handler[Waste]
}

func NewHandler(m *Module, logger *slog.Logger) *Handler {
	return &Handler{
		m:      m,
		logger: logger,
		ret:    web.New(m.Return, logger),
		waste:  web.New(m.Waste, logger),
	}
}

// Register mounts every SLfT route under /slft.
func (h *Handler) Register(r chi.Router) {
	r.Route(BasePath, func(r chi.Router) {
		h.ret.Register(r)
		r.Get("/summary", h.handleSummary)
		r.Get("/confirmation", h.handleConfirmation)
		r.Post("/new", h.handleStartOver)
		r.Route("/wastes", func(r chi.Router) {
			h.waste.Register(r)
			r.Post("/{id}/delete", h.handleDeleteWaste)
		})
		r.Post("/sites/{site}/import", h.handleStageImport)
		r.Post("/sites/{site}/import/confirm", h.handleConfirmImport)
		r.Post("/sites/{site}/import/discard", h.handleDiscardImport)
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
	sum := Summary{
		Return: ret,
		Sites:  make([]SiteLinks, 0, len(ret.Sites)),
		Links: map[string]string{
			"period":      BasePath + "/period",
			"submit":      BasePath + "/credit_claimed",
			"start_again": BasePath + "/new",
		},
	}
	for _, s := range ret.Sites {
		sum.Sites = append(sum.Sites, SiteLinks{
			ID:       s.ID,
			AddWaste: WastesPath + "/waste_description?id=" + engine.NewRecord + "&site=" + s.ID,
			Import:   BasePath + "/sites/" + s.ID + "/import",
		})
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
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
	httputil.Redirect(w, r, StartPath)
}

func (h *Handler) handleDeleteWaste(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.m.DeleteWaste(ctx, requestcontext.SessionID(ctx), chi.URLParam(r, "id")); err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	httputil.Redirect(w, r, SummaryPath)
}

func (h *Handler) handleStageImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site := chi.URLParam(r, "site")

	body, source, err := readUpload(w, r)
	if err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	defer body.Close()

	pending, err := h.m.StageImport(ctx, requestcontext.SessionID(ctx), site, source, body)
	if err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	status := http.StatusOK
	if !pending.Valid() {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, ImportResponse{Site: site, Pending: pending})
}

func (h *Handler) handleConfirmImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.m.ConfirmImport(ctx, requestcontext.SessionID(ctx), chi.URLParam(r, "site")); err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	httputil.Redirect(w, r, SummaryPath)
}

func (h *Handler) handleDiscardImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.m.DiscardImport(ctx, requestcontext.SessionID(ctx), chi.URLParam(r, "site")); err != nil {
		h.ret.WriteFailure(w, r, err)
		return
	}
	httputil.Redirect(w, r, SummaryPath)
}

// readUpload accepts either a multipart form with a "file" part or a raw
// text/csv body.
func readUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeBadRequest, "attach a CSV file")
		}
		return file, header.Filename, nil
	case mediaType == "text/csv" || mediaType == "text/plain":
		return r.Body, "upload.csv", nil
	default:
		return nil, "", dErrors.New(dErrors.CodeBadRequest, "upload a CSV file")
	}
}
