package httpapi

import "net/http"

func (h *Handler) captureState(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse(h.capture.Session(), h.capture.Progress())
	if h.publisher != nil {
		resp["drafts"] = len(h.publisher.Drafts())
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) captureOpen(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.Open(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	h.captureState(w, r)
}

func (h *Handler) captureClose(w http.ResponseWriter, r *http.Request) {
	h.capture.Close()
	h.captureState(w, r)
}

func (h *Handler) captureRetry(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.Retry(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	h.captureState(w, r)
}

func (h *Handler) captureFacing(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.ToggleFacing(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	h.captureState(w, r)
}

func (h *Handler) captureFlash(w http.ResponseWriter, r *http.Request) {
	h.capture.ToggleFlash()
	h.captureState(w, r)
}

func (h *Handler) capturePress(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.Press(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	h.captureState(w, r)
}

func (h *Handler) captureRelease(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.Release(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	h.captureState(w, r)
}
