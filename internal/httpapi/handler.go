package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/orgball2608/storycam/internal/capture"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/internal/media"
	"github.com/orgball2608/storycam/internal/publish"
	"github.com/orgball2608/storycam/internal/story"
	"github.com/orgball2608/storycam/internal/viewer"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Stories *story.Store
	Viewer  *viewer.Session
	Capture   *capture.Controller `optional:"true"`
	Publisher *publish.Publisher  `optional:"true"`
	Media     media.Store
	Logger    logger.Logger
}

// Handler exposes the read side of the story store, the viewer session and
// the shutter controls to a display layer.
type Handler struct {
	stories *story.Store
	viewer  *viewer.Session
	capture   *capture.Controller
	publisher *publish.Publisher
	media     media.Store
	logger    logger.Logger
}

func New(opts Opts) *Handler {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Handler{
		stories:   opts.Stories,
		viewer:    opts.Viewer,
		capture:   opts.Capture,
		publisher: opts.Publisher,
		media:     opts.Media,
		logger:    opts.Logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/stories", func(r chi.Router) {
		r.Get("/", h.listStories)
		r.Get("/{owner}", h.getCollection)
		r.Get("/{owner}/active", h.hasActive)
		r.Post("/{owner}/items/{item}/viewed", h.markViewed)
		r.Delete("/{owner}/items/{item}", h.removeItem)
	})

	r.Route("/viewer", func(r chi.Router) {
		r.Get("/", h.viewerState)
		r.Post("/{owner}", h.openViewer)
		r.Delete("/", h.closeViewer)
	})

	if _, ok := h.media.(localMedia); ok {
		r.Get("/media/{name}", h.serveMedia)
	}

	if h.capture != nil {
		r.Route("/capture", func(r chi.Router) {
			r.Get("/", h.captureState)
			r.Post("/open", h.captureOpen)
			r.Post("/close", h.captureClose)
			r.Post("/retry", h.captureRetry)
			r.Post("/facing", h.captureFacing)
			r.Post("/flash", h.captureFlash)
			r.Post("/press", h.capturePress)
			r.Post("/release", h.captureRelease)

			if h.publisher != nil {
				r.Get("/drafts", h.listDrafts)
				r.Post("/drafts/{draft}/publish", h.publishDraft)
				r.Delete("/drafts/{draft}", h.discardDraft)
			}
		})
	}

	return r
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := ""
	switch {
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errors.IsConflict(err):
		status = http.StatusConflict
	case errors.IsRateLimited(err):
		status = http.StatusTooManyRequests
	case errors.IsPermissionDenied(err):
		status, code = http.StatusForbidden, errors.CodePermissionDenied
	case errors.IsDeviceUnavailable(err):
		status, code = http.StatusServiceUnavailable, errors.CodeDeviceUnavailable
	}
	h.respondJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func sessionResponse(s domain.CaptureSession, progress float64) map[string]any {
	return map[string]any{
		"facing":     s.Facing,
		"flash":      s.Flash,
		"zoom":       s.Zoom,
		"status":     s.Status,
		"error_kind": s.ErrorKind,
		"torch":      s.Capabilities.HasTorch,
		"zoomable":   s.Capabilities.Zoom != nil,
		"progress":   progress,
	}
}
