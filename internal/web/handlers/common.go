package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// pipelineOptions maps the recognition config onto pipeline options.
func pipelineOptions(cfg *config.Config) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithTolerance(cfg.Recognition.Tolerance),
		pipeline.WithDownscaleFactor(cfg.Recognition.DownscaleFactor),
		pipeline.WithVideoStride(cfg.Recognition.VideoStride),
		pipeline.WithFrameDelay(cfg.Recognition.FrameDelay()),
	}
}

// parseDay reads the ?date=YYYY-MM-DD query parameter, defaulting to today.
func parseDay(r *http.Request, now time.Time) (time.Time, error) {
	s := r.URL.Query().Get("date")
	if s == "" {
		return now, nil
	}
	day, err := time.ParseInLocation(attendance.DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return day, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
