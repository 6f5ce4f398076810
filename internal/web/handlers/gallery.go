package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// GalleryLoader rebuilds the gallery from enrollment storage.
type GalleryLoader func(ctx context.Context) (*gallery.Gallery, gallery.LoadReport, error)

// GalleryHandler lists, reloads and extends the enrolled gallery.
type GalleryHandler struct {
	config   *config.Config
	gallery  *gallery.Holder
	store    gallery.Store
	provider provider.Provider
	load     GalleryLoader
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(cfg *config.Config, holder *gallery.Holder, store gallery.Store, p provider.Provider, load GalleryLoader) *GalleryHandler {
	return &GalleryHandler{
		config:   cfg,
		gallery:  holder,
		store:    store,
		provider: p,
		load:     load,
	}
}

// GalleryResponse describes the loaded gallery.
type GalleryResponse struct {
	Identities []gallery.Identity `json:"identities"`
	Entries    int                `json:"entries"`
	Dim        int                `json:"dim"`
	LoadedAt   *time.Time         `json:"loaded_at,omitempty"`
	Report     gallery.LoadReport `json:"report"`
}

// List returns the enrolled identities.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	g := h.gallery.Get()
	report, loadedAt := h.gallery.LastReport()

	resp := GalleryResponse{
		Identities: g.Identities(),
		Entries:    g.Len(),
		Dim:        g.Dim(),
		Report:     report,
	}
	if resp.Identities == nil {
		resp.Identities = []gallery.Identity{}
	}
	if !loadedAt.IsZero() {
		resp.LoadedAt = &loadedAt
	}
	respondJSON(w, http.StatusOK, resp)
}

// Reload re-reads enrollment images. Running live sessions keep their gallery.
func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	report, err := h.gallery.Reload(r.Context(), h.load)
	if err != nil {
		log.Printf("Gallery reload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "gallery reload failed: "+err.Error())
		return
	}
	log.Printf("Gallery reloaded: %d embeddings (%d cached, %d skipped)", report.Loaded, report.Cached, len(report.Skipped))
	respondJSON(w, http.StatusOK, report)
}

// EnrollResponse is the outcome of an enrollment upload.
type EnrollResponse struct {
	gallery.EnrollResult
	Report *gallery.LoadReport `json:"report,omitempty"`
}

// Enroll stores an uploaded photo for {name} and reloads the gallery.
func (h *GalleryHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := gallery.ValidateName(name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, _, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	frame, err := imaging.Decode(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unsupported image")
		return
	}

	res, err := gallery.Enroll(r.Context(), h.store, h.provider, h.gallery.Get(), name, frame, "upload", h.config.Recognition.Tolerance)
	switch {
	case errors.Is(err, provider.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, "no face detected in the photo")
		return
	case err != nil:
		log.Printf("Enrollment of %s failed: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "enrollment failed: "+err.Error())
		return
	}

	resp := EnrollResponse{EnrollResult: res}
	if report, err := h.gallery.Reload(r.Context(), h.load); err != nil {
		log.Printf("Gallery reload after enrolling %s failed: %v", sanitizeForLog(name), err)
	} else {
		resp.Report = &report
	}
	respondJSON(w, http.StatusCreated, resp)
}
