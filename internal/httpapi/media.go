package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/orgball2608/storycam/pkg/errors"
)

// localMedia is implemented by media stores that keep bytes in process and
// resolve to URLs served by this handler.
type localMedia interface {
	Lookup(name string) ([]byte, string, bool)
}

func (h *Handler) serveMedia(w http.ResponseWriter, r *http.Request) {
	local, ok := h.media.(localMedia)
	if !ok {
		h.respondError(w, errors.ErrNotFound)
		return
	}

	data, mimeType, ok := local.Lookup(chi.URLParam(r, "name"))
	if !ok {
		h.respondError(w, errors.Wrap(errors.ErrNotFound, "media not found"))
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write media", "error", err)
	}
}
