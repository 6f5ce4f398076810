// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultTolerance is the maximum Euclidean distance between a query embedding
	// and a gallery embedding for the pair to count as the same person.
	// Lower values = stricter matching
	DefaultTolerance = 0.55

	// DefaultDownscaleFactor is applied to every frame before face detection.
	// Boxes are scaled back by 1/factor for annotation.
	DefaultDownscaleFactor = 0.25

	// DefaultDetectionModel is passed through to the embedding provider ("hog" or "cnn")
	DefaultDetectionModel = "hog"

	// UnknownLabel is the annotation label for faces without an accepted match
	UnknownLabel = "Unknown"
)

// Processing constants
const (
	// DefaultVideoStride processes every n-th decoded video frame (1 = every frame)
	DefaultVideoStride = 1

	// DefaultFrameDelay paces the live camera loop between frames
	DefaultFrameDelay = 30 * time.Millisecond

	// EnrollmentCaptureCount is the number of camera frames captured per enrollment
	EnrollmentCaptureCount = 1

	// MaxUploadSize is the maximum accepted size for uploaded photos and videos
	MaxUploadSize = 512 << 20
)

// Enrollment conflict constants
const (
	// DefaultConflictNeighbors is the number of nearest gallery entries checked on enroll
	DefaultConflictNeighbors = 3

	// DuplicateHashThreshold is the dHash bit distance under which two enrollment
	// photos of one person count as the same picture
	DuplicateHashThreshold = 6
)

// Camera constants
const (
	// DefaultCameraDevice is the V4L2 device used for live attendance
	DefaultCameraDevice = "/dev/video0"

	// DefaultCameraWidth and DefaultCameraHeight request the capture resolution
	DefaultCameraWidth  = 640
	DefaultCameraHeight = 480
)

// Web constants
const (
	// EventChannelBuffer is the buffer size for live session event channels
	EventChannelBuffer = 100

	// FrameChannelBuffer is the buffer size for annotated frame subscribers
	FrameChannelBuffer = 2

	// SSEKeepAlive is how often an idle event stream gets a comment line so
	// proxies do not close it
	SSEKeepAlive = 15 * time.Second
)
