//go:build !linux

package capture

import (
	"context"
	"errors"

	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// Webcam is only available on linux (V4L2).
type Webcam struct{}

func OpenWebcam(device string, width, height int) (*Webcam, error) {
	return nil, errors.New("V4L2 webcam capture is only supported on linux")
}

func (c *Webcam) Read(ctx context.Context) (*imaging.Frame, error) {
	return nil, errors.New("webcam not supported")
}

func (c *Webcam) Close() error { return nil }
