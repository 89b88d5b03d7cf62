package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/formatter"
)

type draftResponse struct {
	ID        string           `json:"id"`
	Kind      domain.MediaKind `json:"kind"`
	MIMEType  string           `json:"mime_type"`
	Size      string           `json:"size"`
	CreatedAt time.Time        `json:"created_at"`
}

// publishRequest is optional; an empty body publishes with the default tier.
type publishRequest struct {
	Tier domain.RetentionTier `json:"tier"`
	Trim *domain.TrimSegment  `json:"trim"`
}

func (h *Handler) listDrafts(w http.ResponseWriter, r *http.Request) {
	drafts := h.publisher.Drafts()
	out := make([]draftResponse, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, draftResponse{
			ID:        d.ID,
			Kind:      d.File.Kind,
			MIMEType:  d.File.MIMEType,
			Size:      formatter.FormatBytes(d.File.Size()),
			CreatedAt: d.File.CreatedAt,
		})
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) publishDraft(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, errors.Wrap(errors.ErrInvalidInput, "malformed publish request"))
		return
	}

	item, err := h.publisher.PublishDraft(r.Context(), chi.URLParam(r, "draft"), req.Tier, req.Trim)
	if err != nil {
		h.respondError(w, err)
		return
	}

	url, err := h.media.Resolve(item.MediaLocation)
	if err != nil {
		h.logger.Warn("Failed to resolve story media", "item", item.ID, "error", err)
	}
	h.respondJSON(w, http.StatusCreated, itemResponse{
		StoryItem: item,
		URL:       url,
		ExpiresIn: formatter.FormatRemaining(item.ExpiresAt.Sub(h.stories.Now())),
	})
}

func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if !h.publisher.DiscardDraft(chi.URLParam(r, "draft")) {
		h.respondError(w, errors.Wrap(errors.ErrNotFound, "draft not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
