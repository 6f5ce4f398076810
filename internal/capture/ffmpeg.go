package capture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// FFmpegSource decodes a video file through an ffmpeg pipe as raw bgr24 frames.
type FFmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr bytes.Buffer

	width  int
	height int
	frames int

	waitOnce sync.Once
	waitErr  error

	closeOnce sync.Once
}

type ffprobeOutput struct {
	Streams []struct {
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		NbFrames  string `json:"nb_frames"`
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// StreamInfo returns the width, height and frame count (0 if unknown) of the first video stream.
func StreamInfo(ctx context.Context, path string) (width, height, frames int, err error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,nb_frames,codec_type",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, 0, 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range res.Streams {
		if s.Width > 0 && s.Height > 0 {
			n, _ := strconv.Atoi(s.NbFrames)
			return s.Width, s.Height, n, nil
		}
	}
	return 0, 0, 0, fmt.Errorf("no video stream in %s", path)
}

// OpenVideo starts decoding path. The returned source must be closed.
func OpenVideo(ctx context.Context, path string) (*FFmpegSource, error) {
	width, height, frames, err := StreamInfo(ctx, path)
	if err != nil {
		return nil, err
	}

	s := &FFmpegSource{width: width, height: height, frames: frames}
	s.cmd = exec.CommandContext(ctx, "ffmpeg",
		"-nostdin",
		"-loglevel", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-",
	)
	s.cmd.Stderr = &s.stderr

	s.stdout, err = s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	s.reader = bufio.NewReaderSize(s.stdout, width*height*3)
	return s, nil
}

func (s *FFmpegSource) FrameCount() int { return s.frames }

// Read returns the next BGR frame or io.EOF after the last one. When ffmpeg
// exits non-zero the error carries its stderr instead of io.EOF.
func (s *FFmpegSource) Read(ctx context.Context) (*imaging.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := imaging.NewFrame(s.width, s.height, imaging.BGR)
	_, err := io.ReadFull(s.reader, frame.Pix)
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// A truncated last frame from a clean exit is dropped.
		if werr := s.wait(); werr != nil {
			return nil, fmt.Errorf("ffmpeg: %w: %s", werr, strings.TrimSpace(s.stderr.String()))
		}
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("read frame: %w", err)
	}
}

// wait reaps ffmpeg once. stderr is complete only after it returns.
func (s *FFmpegSource) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.stdout.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		// Wait reports the kill, which is expected here.
		_ = s.wait()
	})
	return nil
}
