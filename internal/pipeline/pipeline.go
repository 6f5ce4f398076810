// Package pipeline turns frames into attendance: detect, embed, match, record
// once per session, annotate.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

// Options tune frame processing.
type Options struct {
	DownscaleFactor float64
	Tolerance       float64
	VideoStride     int
	FrameDelay      time.Duration
	Now             func() time.Time
	// Progress is called after every video frame read with the number of frames read so far.
	Progress func(read int)
	// OnMarked is called when a name is credited for the first time in a session.
	OnMarked func(rec attendance.Record)
}

type Option func(*Options)

func WithDownscaleFactor(f float64) Option { return func(o *Options) { o.DownscaleFactor = f } }

func WithTolerance(t float64) Option { return func(o *Options) { o.Tolerance = t } }

// WithVideoStride processes every n-th video frame. Values below 1 mean every frame.
func WithVideoStride(n int) Option { return func(o *Options) { o.VideoStride = n } }

func WithFrameDelay(d time.Duration) Option { return func(o *Options) { o.FrameDelay = d } }

func WithClock(now func() time.Time) Option { return func(o *Options) { o.Now = now } }

func WithProgress(fn func(read int)) Option { return func(o *Options) { o.Progress = fn } }

func WithOnMarked(fn func(rec attendance.Record)) Option { return func(o *Options) { o.OnMarked = fn } }

// Pipeline processes frames against one gallery. It holds no per-session state
// and can be shared; each Process call runs its own session.
type Pipeline struct {
	gallery  *gallery.Gallery
	provider provider.Provider
	recorder attendance.Recorder
	opts     Options
}

// New creates a pipeline. A nil gallery is treated as empty.
func New(g *gallery.Gallery, p provider.Provider, r attendance.Recorder, opts ...Option) *Pipeline {
	o := Options{
		DownscaleFactor: constants.DefaultDownscaleFactor,
		Tolerance:       constants.DefaultTolerance,
		VideoStride:     constants.DefaultVideoStride,
		FrameDelay:      constants.DefaultFrameDelay,
		Now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.DownscaleFactor <= 0 || o.DownscaleFactor > 1 {
		o.DownscaleFactor = constants.DefaultDownscaleFactor
	}
	if o.VideoStride < 1 {
		o.VideoStride = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if g == nil {
		g = gallery.Empty()
	}
	return &Pipeline{gallery: g, provider: p, recorder: r, opts: o}
}

// Gallery returns the gallery the pipeline matches against.
func (p *Pipeline) Gallery() *gallery.Gallery { return p.gallery }

// Face is one detection in a processed frame. Box is in full frame coordinates.
type Face struct {
	Box         image.Rectangle       `json:"box"`
	Match       facematch.MatchResult `json:"match"`
	NewlyMarked bool                  `json:"newly_marked"`
}

// Label is the identity for a matched face, otherwise "Unknown".
func (f Face) Label() string {
	if f.Match.Matched {
		return f.Match.Name
	}
	return constants.UnknownLabel
}

// FrameResult is the outcome of one frame.
type FrameResult struct {
	Index       int                  `json:"index"`
	Faces       []Face               `json:"faces"`
	Annotations []imaging.Annotation `json:"annotations"`
	Marked      []string             `json:"marked"` // names newly credited on this frame
}

// Result summarizes a session.
type Result struct {
	SessionID       string               `json:"session_id"`
	Kind            attendance.Kind      `json:"kind"`
	Marked          []string             `json:"marked"`
	FramesRead      int                  `json:"frames_read"`
	FramesProcessed int                  `json:"frames_processed"`
	FrameErrors     int                  `json:"frame_errors"`
	Annotations     []imaging.Annotation `json:"annotations,omitempty"` // last processed frame
}

func newResult(s *attendance.Session) Result {
	return Result{SessionID: s.ID, Kind: s.Kind}
}

func (r *Result) finish(s *attendance.Session) {
	r.Marked = s.Marked()
}

// processFrame runs one frame through the pipeline for session s.
func (p *Pipeline) processFrame(ctx context.Context, s *attendance.Session, frame *imaging.Frame, index int) (FrameResult, error) {
	result := FrameResult{Index: index}

	small := frame.Downscale(p.opts.DownscaleFactor).Convert(p.provider.ChannelOrder())

	boxes, err := p.provider.DetectFaces(ctx, small)
	if err != nil {
		return result, fmt.Errorf("detect faces: %w", err)
	}
	if len(boxes) == 0 {
		return result, nil
	}

	embeddings, err := p.provider.ComputeEmbeddings(ctx, small, boxes)
	if err != nil {
		return result, fmt.Errorf("compute embeddings: %w", err)
	}
	if len(embeddings) != len(boxes) {
		return result, fmt.Errorf("provider returned %d embeddings for %d faces", len(embeddings), len(boxes))
	}

	scale := 1 / p.opts.DownscaleFactor
	for i, box := range boxes {
		face := Face{
			Box:   facematch.ScaleRect(box, scale),
			Match: p.gallery.Match(embeddings[i], p.opts.Tolerance),
		}

		if face.Match.Matched {
			rec := attendance.Record{
				Name:     face.Match.Name,
				Time:     p.opts.Now(),
				Distance: face.Match.Distance,
			}
			marked, err := s.RecordOnce(ctx, p.recorder, rec)
			if err != nil {
				log.Printf("Warning: recording attendance for %s failed: %v", rec.Name, err)
			}
			if marked {
				face.NewlyMarked = true
				result.Marked = append(result.Marked, rec.Name)
				if p.opts.OnMarked != nil {
					rec.SessionID = s.ID
					rec.Source = string(s.Kind)
					p.opts.OnMarked(rec)
				}
			}
		}

		result.Faces = append(result.Faces, face)
		result.Annotations = append(result.Annotations, imaging.Annotation{
			Box:   face.Box,
			Label: face.Label(),
			Known: face.Match.Matched,
		})
	}
	return result, nil
}
