package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// GallerySource provides the current gallery snapshot.
type GallerySource interface {
	Gallery() *gallery.Gallery
}

// GalleryRefresher reloads the gallery from its source.
type GalleryRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// GalleryHandler handles gallery endpoints.
type GalleryHandler struct {
	source    GallerySource
	refresher GalleryRefresher
	logger    *slog.Logger
}

// NewGalleryHandler creates a new gallery handler. The refresher may be nil.
func NewGalleryHandler(source GallerySource, refresher GalleryRefresher, logger *slog.Logger) *GalleryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GalleryHandler{source: source, refresher: refresher, logger: logger}
}

// GalleryResponse describes the current gallery snapshot.
type GalleryResponse struct {
	Size       int      `json:"size"`
	Dim        int      `json:"dim"`
	Metric     string   `json:"metric"`
	Identities []string `json:"identities"`
}

// Get returns the identities of the current gallery in match order.
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	g := h.source.Gallery()
	ids := g.Identities()
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, GalleryResponse{
		Size:       g.Len(),
		Dim:        g.Dim(),
		Metric:     string(g.Metric()),
		Identities: ids,
	})
}

// Refresh reloads the gallery. The previous snapshot stays active when reload fails.
func (h *GalleryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		respondError(w, http.StatusNotImplemented, "gallery refresh is not configured")
		return
	}

	size, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "gallery refresh failed", "error", err)
		respondError(w, http.StatusBadGateway, "gallery refresh failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"size":   size,
	})
}
