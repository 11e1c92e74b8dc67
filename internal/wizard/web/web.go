// Package web exposes a wizard flow over HTTP. GET renders a step as JSON,
// POST submits it; a successful submit answers 303 See Other so the browser
// follows with a GET of the next step.
package web

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/bind"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/engine"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/wizard/validation"
	dErrors "github.com/RevenueScotland/sets-online-portal-sub000/pkg/domain-errors"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/httputil"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

const maxFormBytes = 1 << 20

// StepResponse is the JSON body of a rendered step.
type StepResponse[M any] struct {
	Flow   string            `json:"flow"`
	Step   string            `json:"step"`
	Data   *M                `json:"data"`
	Errors validation.Errors `json:"errors"`
}

// Handler serves the steps of one flow.
type Handler[M any] struct {
	flow   *engine.Flow[M]
	logger *slog.Logger
}

func New[M any](f *engine.Flow[M], logger *slog.Logger) *Handler[M] {
	return &Handler[M]{flow: f, logger: logger}
}

// Register mounts GET and POST for every step of the flow under r.
func (h *Handler[M]) Register(r chi.Router) {
	for _, step := range h.flow.Steps() {
		r.Get("/"+step, h.serve(step))
		r.Post("/"+step, h.serve(step))
	}
}

func (h *Handler[M]) serve(step string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		in, err := ReadInput(r, step)
		if err != nil {
			h.logger.WarnContext(ctx, "unreadable step submission",
				"flow", h.flow.Name(),
				"step", step,
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}

		out, err := h.flow.Execute(ctx, in)
		if err != nil {
			h.WriteFailure(w, r, err)
			return
		}
		WriteOutcome(w, r, h.flow.Name(), in, out)
	}
}

// WriteFailure maps an execution error to its response. An expired session
// goes back to the flow's start; everything else is a JSON error.
func (h *Handler[M]) WriteFailure(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeSessionExpired:
		h.logger.InfoContext(ctx, "no record in progress, redirecting to start",
			"flow", h.flow.Name(),
			"request_id", requestID,
		)
		httputil.Redirect(w, r, h.flow.Start())
		return
	case dErrors.CodeNotFound, dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		h.logger.WarnContext(ctx, "step request rejected",
			"flow", h.flow.Name(),
			"request_id", requestID,
			"error", err,
		)
	default:
		h.logger.ErrorContext(ctx, "step execution failed",
			"flow", h.flow.Name(),
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

// WriteOutcome writes a render as JSON or a redirect as 303.
func WriteOutcome[M any](w http.ResponseWriter, r *http.Request, flowName string, in *engine.Input, out engine.Outcome[M]) {
	if out.Kind == engine.Redirect {
		httputil.Redirect(w, r, out.Location)
		return
	}
	status := http.StatusOK
	if in.Submitted() && out.Errors.Any() {
		status = http.StatusUnprocessableEntity
	}
	errs := out.Errors
	if errs == nil {
		errs = validation.Errors{}
	}
	httputil.WriteJSON(w, status, StepResponse[M]{Flow: flowName, Step: out.Step, Data: out.Data, Errors: errs})
}

// ReadInput builds the engine input for step from the request. Form posts
// and JSON bodies are both accepted.
func ReadInput(r *http.Request, step string) (*engine.Input, error) {
	query := r.URL.Query()
	in := &engine.Input{
		Step:     step,
		Session:  requestcontext.SessionID(r.Context()),
		Method:   r.Method,
		RecordID: query.Get("id"),
		Continue: query.Get("continue") == "true",
		Action:   query.Get("action"),
		Params:   params(r),
		Values:   bind.Values{},
	}
	if r.Method != http.MethodPost {
		return in, nil
	}

	values, err := readBody(r)
	if err != nil {
		return nil, err
	}
	in.Values = values
	if action := values.String("action"); action != "" {
		in.Action = action
	}
	return in, nil
}

func readBody(r *http.Request) (bind.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return bind.FromJSON(http.MaxBytesReader(nil, r.Body, maxFormBytes))
	}
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "submitted form could not be read")
		}
		return bind.FromForm(r.MultipartForm.Value), nil
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "submitted form could not be read")
	}
	return bind.FromForm(r.PostForm), nil
}

// reservedQuery are the query keys ReadInput consumes itself.
var reservedQuery = map[string]bool{"id": true, "continue": true, "action": true}

// params collects the chi route parameters, then any other query value a
// route parameter has not already claimed, such as the site a new waste
// line is started for.
func params(r *http.Request) map[string]string {
	out := map[string]string{}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			out[key] = rctx.URLParams.Values[i]
		}
	}
	for key, vals := range r.URL.Query() {
		if reservedQuery[key] || len(vals) == 0 {
			continue
		}
		if _, taken := out[key]; !taken {
			out[key] = vals[0]
		}
	}
	return out
}
