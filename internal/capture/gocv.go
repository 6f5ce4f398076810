//go:build gocv

package capture

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/imaging"
	"gocv.io/x/gocv"
)

func init() {
	RegisterVideoBackend("gocv", func(ctx context.Context, path string) (Source, error) {
		return OpenGoCVFile(path)
	})
	indexOpener = func(id int) (Source, error) {
		return OpenGoCVDevice(id)
	}
}

// GoCVSource reads frames through OpenCV's VideoCapture, from a file or a camera index.
type GoCVSource struct {
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	live   bool
	frames int

	closeOnce sync.Once
}

// OpenGoCVFile opens a video file.
func OpenGoCVFile(path string) (*GoCVSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	return &GoCVSource{
		vc:     vc,
		mat:    gocv.NewMat(),
		frames: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// OpenGoCVDevice opens a camera by index.
func OpenGoCVDevice(id int) (*GoCVSource, error) {
	vc, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", id, err)
	}
	return &GoCVSource{vc: vc, mat: gocv.NewMat(), live: true}, nil
}

func (s *GoCVSource) FrameCount() int { return s.frames }

// Read returns the next BGR frame. Files end with io.EOF, cameras with an error.
func (s *GoCVSource) Read(ctx context.Context) (*imaging.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		if s.live {
			return nil, fmt.Errorf("camera read failed")
		}
		return nil, io.EOF
	}

	pix := s.mat.ToBytes()
	return &imaging.Frame{
		Pix:    pix,
		Width:  s.mat.Cols(),
		Height: s.mat.Rows(),
		Order:  imaging.BGR,
	}, nil
}

func (s *GoCVSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mat.Close()
		err = s.vc.Close()
	})
	return err
}
