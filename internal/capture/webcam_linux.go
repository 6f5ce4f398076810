//go:build linux

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log"

	"github.com/blackjack/webcam"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

const (
	fourccMJPEG webcam.PixelFormat = 0x47504A4D // 'MJPG'
	fourccYUYV  webcam.PixelFormat = 0x56595559 // 'YUYV'

	frameWaitTimeout = 1 // seconds
)

// Webcam reads frames from a V4L2 device.
type Webcam struct {
	cam    *webcam.Webcam
	format webcam.PixelFormat
	width  int
	height int
}

// OpenWebcam opens device and starts streaming, preferring MJPEG over YUYV.
func OpenWebcam(device string, width, height int) (*Webcam, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, fmt.Errorf("can not open device %s: %w", device, err)
	}

	formats := cam.GetSupportedFormats()
	var format webcam.PixelFormat
	switch {
	case formats[fourccMJPEG] != "":
		format = fourccMJPEG
	case formats[fourccYUYV] != "":
		format = fourccYUYV
	default:
		cam.Close()
		return nil, fmt.Errorf("device %s supports neither MJPEG nor YUYV", device)
	}

	f, w, h, err := cam.SetImageFormat(format, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("can not set image format: %w", err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("can not start streaming: %w", err)
	}

	return &Webcam{cam: cam, format: f, width: int(w), height: int(h)}, nil
}

// Read blocks until the next frame is available. Frames are BGR.
func (c *Webcam) Read(ctx context.Context) (*imaging.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := c.cam.WaitForFrame(frameWaitTimeout)
		var timeout *webcam.Timeout
		switch {
		case err == nil:
		case errors.As(err, &timeout):
			log.Printf("Camera: %v", err)
			continue
		default:
			return nil, fmt.Errorf("frame wait failed: %w", err)
		}

		data, err := c.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("read frame failed: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		return c.decode(data)
	}
}

func (c *Webcam) decode(data []byte) (*imaging.Frame, error) {
	if c.format == fourccMJPEG {
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode mjpeg frame: %w", err)
		}
		return imaging.FromImage(img, imaging.BGR), nil
	}
	return yuyvToBGR(data, c.width, c.height), nil
}

func (c *Webcam) Close() error {
	if err := c.cam.StopStreaming(); err != nil {
		c.cam.Close()
		return fmt.Errorf("stop streaming: %w", err)
	}
	return c.cam.Close()
}

// yuyvToBGR converts packed YUYV 4:2:2 to a BGR frame.
func yuyvToBGR(data []byte, width, height int) *imaging.Frame {
	f := imaging.NewFrame(width, height, imaging.BGR)
	n := min(len(data)/2, width*height)
	for i := 0; i+1 < n; i += 2 {
		y0 := float64(data[i*2])
		u := float64(data[i*2+1]) - 128
		y1 := float64(data[i*2+2])
		v := float64(data[i*2+3]) - 128
		setBGR(f.Pix[i*3:], y0, u, v)
		setBGR(f.Pix[(i+1)*3:], y1, u, v)
	}
	return f
}

func setBGR(px []byte, y, u, v float64) {
	px[0] = clamp(y + 1.772*u)
	px[1] = clamp(y - 0.344136*u - 0.714136*v)
	px[2] = clamp(y + 1.402*v)
}

func clamp(x float64) byte {
	switch {
	case x < 0:
		return 0
	case x > 255:
		return 255
	default:
		return byte(x)
	}
}
