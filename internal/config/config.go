package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
	Camera      CameraConfig      `yaml:"camera"`
	Recorder    RecorderConfig    `yaml:"recorder"`
	Database    DatabaseConfig    `yaml:"database"`
	MariaDB     MariaDBConfig     `yaml:"mariadb"`
	Web         WebConfig         `yaml:"web"`
}

type RecognitionConfig struct {
	Tolerance       float64 `yaml:"tolerance"`        // max Euclidean distance for a match (default 0.55)
	DownscaleFactor float64 `yaml:"downscale_factor"` // frame scale before detection (default 0.25)
	DetectionModel  string  `yaml:"detection_model"`  // passed through to the provider (hog, cnn)
	VideoStride     int     `yaml:"video_stride"`     // process every n-th video frame (default 1)
	FrameDelayMs    int     `yaml:"frame_delay_ms"`   // pause between live frames (default 30)
	VideoBackend    string  `yaml:"video_backend"`    // ffmpeg (default) or gocv
}

// FrameDelay returns the live loop pacing as a duration.
func (c *RecognitionConfig) FrameDelay() time.Duration {
	return time.Duration(c.FrameDelayMs) * time.Millisecond
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`   // "http" (default) or "dlib"
	URL       string `yaml:"url"`        // defaults to http://localhost:8000
	ModelsDir string `yaml:"models_dir"` // dlib model directory for the dlib provider
}

type EnrollmentConfig struct {
	Dir string `yaml:"dir"` // root of <dir>/<name>/<image> tree (default "enrolled")
}

type CameraConfig struct {
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type RecorderConfig struct {
	Backend string `yaml:"backend"`  // csv (default), postgres, mariadb
	CSVPath string `yaml:"csv_path"` // defaults to Attendance.csv
}

type DatabaseConfig struct {
	URL             string `yaml:"url"`              // PostgreSQL connection URL
	MaxOpenConns    int    `yaml:"max_open_conns"`   // Maximum open connections (default 25)
	MaxIdleConns    int    `yaml:"max_idle_conns"`   // Maximum idle connections (default 5)
	CacheEmbeddings bool   `yaml:"cache_embeddings"` // Cache enrollment embeddings in PostgreSQL
}

type MariaDBConfig struct {
	DSN string `yaml:"dsn"` // e.g. attendance:attendance@tcp(mariadb:3306)/attendance?parseTime=true
}

type WebConfig struct {
	APIToken       string   `yaml:"api_token"`       // bearer token required by the API (empty = no auth)
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS origins in addition to localhost
}

// Defaults returns the configuration used when neither a file nor env vars set a value.
func Defaults() *Config {
	return &Config{
		Recognition: RecognitionConfig{
			Tolerance:       constants.DefaultTolerance,
			DownscaleFactor: constants.DefaultDownscaleFactor,
			DetectionModel:  constants.DefaultDetectionModel,
			VideoStride:     constants.DefaultVideoStride,
			FrameDelayMs:    int(constants.DefaultFrameDelay / time.Millisecond),
			VideoBackend:    "ffmpeg",
		},
		Embedding: EmbeddingConfig{
			Provider: "http",
		},
		Enrollment: EnrollmentConfig{
			Dir: "enrolled",
		},
		Camera: CameraConfig{
			Device: constants.DefaultCameraDevice,
			Width:  constants.DefaultCameraWidth,
			Height: constants.DefaultCameraHeight,
		},
		Recorder: RecorderConfig{
			Backend: "csv",
			CSVPath: "Attendance.csv",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString returns the env var value, or defaultVal when it is unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

// envList splits a comma-separated env var, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the configuration from defaults, the optional ATTENDANCE_CONFIG file
// and environment variables, in increasing priority.
func Load() *Config {
	base := Defaults()
	if path := os.Getenv("ATTENDANCE_CONFIG"); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			// A broken config file should not prevent env-only setups from running
			fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		} else {
			base = fileCfg
		}
	}

	cfg := &Config{
		Recognition: RecognitionConfig{
			Tolerance:       envFloat("ATTENDANCE_TOLERANCE", base.Recognition.Tolerance),
			DownscaleFactor: envFloat("ATTENDANCE_DOWNSCALE_FACTOR", base.Recognition.DownscaleFactor),
			DetectionModel:  envString("ATTENDANCE_DETECTION_MODEL", base.Recognition.DetectionModel),
			VideoStride:     envInt("ATTENDANCE_VIDEO_STRIDE", base.Recognition.VideoStride),
			FrameDelayMs:    envInt("ATTENDANCE_FRAME_DELAY_MS", base.Recognition.FrameDelayMs),
			VideoBackend:    envString("ATTENDANCE_VIDEO_BACKEND", base.Recognition.VideoBackend),
		},
		Embedding: EmbeddingConfig{
			Provider:  envString("EMBEDDING_PROVIDER", base.Embedding.Provider),
			URL:       envString("EMBEDDING_URL", base.Embedding.URL),
			ModelsDir: envString("DLIB_MODELS_DIR", base.Embedding.ModelsDir),
		},
		Enrollment: EnrollmentConfig{
			Dir: envString("ENROLLMENT_DIR", base.Enrollment.Dir),
		},
		Camera: CameraConfig{
			Device: envString("CAMERA_DEVICE", base.Camera.Device),
			Width:  envInt("CAMERA_WIDTH", base.Camera.Width),
			Height: envInt("CAMERA_HEIGHT", base.Camera.Height),
		},
		Recorder: RecorderConfig{
			Backend: envString("RECORDER_BACKEND", base.Recorder.Backend),
			CSVPath: envString("ATTENDANCE_CSV", base.Recorder.CSVPath),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", base.Database.URL),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", base.Database.MaxOpenConns),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", base.Database.MaxIdleConns),
			CacheEmbeddings: envBool("DATABASE_CACHE_EMBEDDINGS", base.Database.CacheEmbeddings),
		},
		MariaDB: MariaDBConfig{
			DSN: envString("MARIADB_DSN", base.MariaDB.DSN),
		},
		Web: WebConfig{
			APIToken:       envString("WEB_API_TOKEN", base.Web.APIToken),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", base.Web.AllowedOrigins),
		},
	}

	// Factors above 1 would upscale frames, which the pipeline does not support.
	if cfg.Recognition.DownscaleFactor > 1 {
		cfg.Recognition.DownscaleFactor = constants.DefaultDownscaleFactor
	}

	return cfg
}
