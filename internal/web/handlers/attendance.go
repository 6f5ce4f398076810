package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// AttendanceHandler marks attendance from uploaded photos and videos and
// lists recorded attendance.
type AttendanceHandler struct {
	config   *config.Config
	gallery  *gallery.Holder
	provider provider.Provider
	store    attendance.Store
	now      func() time.Time
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(cfg *config.Config, holder *gallery.Holder, p provider.Provider, store attendance.Store) *AttendanceHandler {
	return &AttendanceHandler{
		config:   cfg,
		gallery:  holder,
		provider: p,
		store:    store,
		now:      time.Now,
	}
}

// AttendanceResponse is the outcome of one photo or video.
type AttendanceResponse struct {
	pipeline.Result
	GalleryEmpty bool `json:"gallery_empty"`
}

func (h *AttendanceHandler) pipeline() *pipeline.Pipeline {
	return pipeline.New(h.gallery.Get(), h.provider, h.store, pipelineOptions(h.config)...)
}

// Photo marks attendance for the faces in an uploaded photo.
// With ?format=jpeg the annotated photo is returned instead of JSON.
func (h *AttendanceHandler) Photo(w http.ResponseWriter, r *http.Request) {
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

	p := h.pipeline()
	result, err := p.ProcessImage(r.Context(), frame)
	if err != nil {
		log.Printf("Photo attendance failed: %v", err)
		respondError(w, http.StatusBadGateway, "face recognition failed: "+err.Error())
		return
	}

	if r.URL.Query().Get("format") == "jpeg" {
		imaging.Annotate(frame, result.Annotations)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Session-Id", result.SessionID)
		if err := imaging.EncodeJPEG(w, frame, 90); err != nil {
			log.Printf("Failed to write annotated photo: %v", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, AttendanceResponse{Result: result, GalleryEmpty: p.Gallery().Len() == 0})
}

// Video marks attendance for the faces in an uploaded video.
func (h *AttendanceHandler) Video(w http.ResponseWriter, r *http.Request) {
	path, dir, err := saveUploadToTemp(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.RemoveAll(dir)

	src, err := capture.OpenVideoFile(r.Context(), h.config.Recognition.VideoBackend, path)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot open video: "+err.Error())
		return
	}

	p := h.pipeline()
	result, err := p.ProcessVideo(r.Context(), src)
	if err != nil {
		log.Printf("Video attendance failed after %d frames: %v", result.FramesRead, err)
		respondError(w, http.StatusUnprocessableEntity, "video processing failed: "+err.Error())
		return
	}
	result.Annotations = nil

	respondJSON(w, http.StatusOK, AttendanceResponse{Result: result, GalleryEmpty: p.Gallery().Len() == 0})
}

// AttendanceListResponse lists one day of attendance.
type AttendanceListResponse struct {
	Date    string              `json:"date"`
	Count   int                 `json:"count"`
	Records []attendance.Record `json:"records"`
}

// List returns the attendance of ?date=YYYY-MM-DD (default today).
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(r, h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.store.List(r.Context(), day)
	if err != nil {
		log.Printf("Failed to list attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}

	respondJSON(w, http.StatusOK, AttendanceListResponse{
		Date:    day.Format(attendance.DateLayout),
		Count:   len(records),
		Records: records,
	})
}

// Days returns per-day attendance counts, newest first.
func (h *AttendanceHandler) Days(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.store.(attendance.DayLister)
	if !ok {
		respondError(w, http.StatusNotImplemented, "recorder backend does not support day summaries")
		return
	}

	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	days, err := lister.Days(r.Context(), limit)
	if err != nil {
		log.Printf("Failed to summarize attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to summarize attendance")
		return
	}
	if days == nil {
		days = []attendance.DaySummary{}
	}
	respondJSON(w, http.StatusOK, days)
}
