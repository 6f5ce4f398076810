package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// ProcessImage marks attendance for every known face in a single photo.
// Provider failures are returned; recorder failures only leave the name unmarked.
func (p *Pipeline) ProcessImage(ctx context.Context, frame *imaging.Frame) (Result, error) {
	s := attendance.NewSession(attendance.KindPhoto)
	result := newResult(s)
	result.FramesRead = 1

	fr, err := p.processFrame(ctx, s, frame, 0)
	if err != nil {
		return result, err
	}
	result.FramesProcessed = 1
	result.Annotations = fr.Annotations
	result.finish(s)
	return result, nil
}

// ProcessVideo reads src to the end, processing every VideoStride-th frame
// starting with the first. A frame the provider fails on is logged and skipped.
// src is closed on return.
func (p *Pipeline) ProcessVideo(ctx context.Context, src capture.Source) (result Result, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Printf("Warning: closing video source: %v", cerr)
		}
	}()

	s := attendance.NewSession(attendance.KindVideo)
	result = newResult(s)

	for index := 0; ; index++ {
		frame, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.finish(s)
			return result, fmt.Errorf("read frame %d: %w", index, err)
		}
		result.FramesRead++
		if p.opts.Progress != nil {
			p.opts.Progress(result.FramesRead)
		}

		if index%p.opts.VideoStride != 0 {
			continue
		}

		fr, err := p.processFrame(ctx, s, frame, index)
		if err != nil {
			if ctx.Err() != nil {
				result.finish(s)
				return result, ctx.Err()
			}
			log.Printf("Warning: skipping frame %d: %v", index, err)
			result.FrameErrors++
			continue
		}
		result.FramesProcessed++
		result.Annotations = fr.Annotations
	}

	result.finish(s)
	return result, nil
}

// FrameSink receives every processed live frame, annotated in place.
type FrameSink func(frame *imaging.Frame, fr FrameResult)

// ProcessLive runs until ctx is cancelled or the source fails. Cancellation is a
// normal stop and returns a nil error; a read failure returns an error wrapping
// capture.ErrStreamEnded. src is closed on every exit path.
func (p *Pipeline) ProcessLive(ctx context.Context, src capture.Source, sink FrameSink) (result Result, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Printf("Warning: closing live source: %v", cerr)
		}
	}()

	s := attendance.NewSession(attendance.KindLive)
	result = newResult(s)

	for index := 0; ; index++ {
		if ctx.Err() != nil {
			result.finish(s)
			return result, nil
		}

		frame, err := src.Read(ctx)
		if err != nil {
			result.finish(s)
			if ctx.Err() != nil {
				return result, nil
			}
			return result, fmt.Errorf("%w: %w", capture.ErrStreamEnded, err)
		}
		result.FramesRead++

		fr, err := p.processFrame(ctx, s, frame, index)
		if err != nil {
			if ctx.Err() != nil {
				result.finish(s)
				return result, nil
			}
			log.Printf("Warning: skipping live frame %d: %v", index, err)
			result.FrameErrors++
		} else {
			result.FramesProcessed++
			result.Annotations = fr.Annotations
		}

		if sink != nil {
			imaging.Annotate(frame, fr.Annotations)
			sink(frame, fr)
		}

		if p.opts.FrameDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.FrameDelay):
			}
		}
	}
}
