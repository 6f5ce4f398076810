package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Provider        string   `json:"provider"`
	Providers       []string `json:"providers"`
	DetectionModel  string   `json:"detection_model"`
	Tolerance       float64  `json:"tolerance"`
	DownscaleFactor float64  `json:"downscale_factor"`
	VideoStride     int      `json:"video_stride"`
	VideoBackend    string   `json:"video_backend"`
	VideoBackends   []string `json:"video_backends"`
	Recorder        string   `json:"recorder"`
	EmbeddingCache  bool     `json:"embedding_cache"`
	CameraDevice    string   `json:"camera_device"`
}

// Get returns the effective recognition configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, cacheErr := database.GetEnrollmentCache(r.Context())

	respondJSON(w, http.StatusOK, ConfigResponse{
		Provider:        h.config.Embedding.Provider,
		Providers:       provider.Available(),
		DetectionModel:  h.config.Recognition.DetectionModel,
		Tolerance:       h.config.Recognition.Tolerance,
		DownscaleFactor: h.config.Recognition.DownscaleFactor,
		VideoStride:     h.config.Recognition.VideoStride,
		VideoBackend:    h.config.Recognition.VideoBackend,
		VideoBackends:   capture.VideoBackends(),
		Recorder:        h.config.Recorder.Backend,
		EmbeddingCache:  h.config.Database.CacheEmbeddings && cacheErr == nil,
		CameraDevice:    h.config.Camera.Device,
	})
}
