package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/formatter"
)

type itemResponse struct {
	domain.StoryItem
	URL       string `json:"url,omitempty"`
	ExpiresIn string `json:"expires_in"`
	Viewed    bool   `json:"viewed"`
	Viewers   int    `json:"viewers"`
}

type collectionResponse struct {
	domain.Owner
	Active bool           `json:"active"`
	Items  []itemResponse `json:"items"`
}

func (h *Handler) collection(c domain.UserStoryCollection, viewerID string) collectionResponse {
	resp := collectionResponse{
		Owner:  c.Owner,
		Active: h.stories.HasActive(c.ID),
		Items:  make([]itemResponse, 0, len(c.Items)),
	}
	now := h.stories.Now()
	for _, item := range c.Items {
		url, err := h.media.Resolve(item.MediaLocation)
		if err != nil {
			h.logger.Warn("Failed to resolve story media", "item", item.ID, "error", err)
		}
		resp.Items = append(resp.Items, itemResponse{
			StoryItem: item,
			URL:       url,
			ExpiresIn: formatter.FormatRemaining(item.ExpiresAt.Sub(now)),
			Viewed:    viewerID != "" && item.ViewedByViewer(viewerID),
			Viewers:   len(item.ViewedBy),
		})
	}
	return resp
}

func (h *Handler) listStories(w http.ResponseWriter, r *http.Request) {
	viewerID := r.URL.Query().Get("viewer")
	collections := h.stories.Collections()

	out := make([]collectionResponse, 0, len(collections))
	for _, c := range collections {
		out = append(out, h.collection(c, viewerID))
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner")
	c, ok := h.stories.Collection(ownerID)
	if !ok {
		h.respondError(w, errors.Wrap(errors.ErrNotFound, "no stories for "+ownerID))
		return
	}
	h.respondJSON(w, http.StatusOK, h.collection(c, r.URL.Query().Get("viewer")))
}

func (h *Handler) hasActive(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "owner")
	h.respondJSON(w, http.StatusOK, map[string]bool{"active": h.stories.HasActive(ownerID)})
}

// markViewed is a no-op for items that have already expired.
func (h *Handler) markViewed(w http.ResponseWriter, r *http.Request) {
	viewerID := r.URL.Query().Get("viewer")
	if viewerID == "" {
		h.respondError(w, errors.Wrap(errors.ErrInvalidInput, "viewer is required"))
		return
	}
	changed := h.stories.MarkViewed(chi.URLParam(r, "owner"), chi.URLParam(r, "item"), viewerID)
	h.respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	if !h.stories.Remove(chi.URLParam(r, "owner"), chi.URLParam(r, "item")) {
		h.respondError(w, errors.Wrap(errors.ErrNotFound, "story item not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) viewerState(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.viewer.State())
}

func (h *Handler) openViewer(w http.ResponseWriter, r *http.Request) {
	opened := h.viewer.Open(chi.URLParam(r, "owner"), r.URL.Query().Get("viewer"))
	h.respondJSON(w, http.StatusOK, map[string]any{
		"opened":  opened,
		"session": h.viewer.State(),
	})
}

func (h *Handler) closeViewer(w http.ResponseWriter, r *http.Request) {
	h.viewer.Close()
	h.respondJSON(w, http.StatusOK, h.viewer.State())
}
