package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Mark attendance from a photo, a video or the camera",
	Long: `Recognize enrolled people and record their attendance.
Every person is recorded at most once per day, however often they appear.`,
}

var attendPhotoCmd = &cobra.Command{
	Use:   "photo <file>",
	Short: "Mark attendance for the faces in a photo",
	Long: `Mark attendance for the faces in a photo.

Examples:
  face-attendance attend photo class.jpg
  face-attendance attend photo class.jpg --output class-annotated.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendPhoto,
}

var attendVideoCmd = &cobra.Command{
	Use:   "video <file>",
	Short: "Mark attendance for the faces in a video",
	Long: `Mark attendance for the faces in a video file.

Examples:
  face-attendance attend video lecture.mp4
  face-attendance attend video lecture.mp4 --stride 5`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendVideo,
}

var attendLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Mark attendance from the camera until interrupted",
	RunE:  runAttendLive,
}

func init() {
	rootCmd.AddCommand(attendCmd)
	attendCmd.AddCommand(attendPhotoCmd)
	attendCmd.AddCommand(attendVideoCmd)
	attendCmd.AddCommand(attendLiveCmd)

	attendCmd.PersistentFlags().Float64("tolerance", 0, "Maximum face distance for a match (defaults to ATTENDANCE_TOLERANCE)")
	attendCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	attendPhotoCmd.Flags().String("output", "", "Write the annotated photo to this JPEG file")
	attendVideoCmd.Flags().Int("stride", 0, "Process every n-th frame (defaults to ATTENDANCE_VIDEO_STRIDE)")
	attendLiveCmd.Flags().String("device", "", "Camera device (defaults to CAMERA_DEVICE)")
}

// attendRun is the shared state of the attend subcommands.
type attendRun struct {
	cfg        *config.Config
	b          *backends
	jsonOutput bool
}

func startAttend(cmd *cobra.Command) (*attendRun, error) {
	cfg := config.Load()
	if t := mustGetFloat64(cmd, "tolerance"); t > 0 {
		cfg.Recognition.Tolerance = t
	}

	b, err := openBackends(cfg, true)
	if err != nil {
		return nil, err
	}
	return &attendRun{cfg: cfg, b: b, jsonOutput: mustGetBool(cmd, "json")}, nil
}

// pipeline loads the gallery and builds a pipeline over it.
func (a *attendRun) pipeline(ctx context.Context, extra ...pipeline.Option) (*pipeline.Pipeline, error) {
	g, report, err := a.b.loadGallery(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load gallery: %w", err)
	}
	if !a.jsonOutput {
		printLoadReport(g, report)
		if g.Len() == 0 {
			fmt.Println("No enrolled faces found")
		}
	}

	opts := []pipeline.Option{
		pipeline.WithTolerance(a.cfg.Recognition.Tolerance),
		pipeline.WithDownscaleFactor(a.cfg.Recognition.DownscaleFactor),
		pipeline.WithVideoStride(a.cfg.Recognition.VideoStride),
		pipeline.WithFrameDelay(a.cfg.Recognition.FrameDelay()),
	}
	return pipeline.New(g, a.b.provider, a.b.recorder, append(opts, extra...)...), nil
}

func (a *attendRun) report(result pipeline.Result) error {
	if a.jsonOutput {
		return outputJSON(result)
	}
	if result.Kind != attendance.KindPhoto {
		fmt.Printf("Frames: %d read, %d processed", result.FramesRead, result.FramesProcessed)
		if result.FrameErrors > 0 {
			fmt.Printf(", %d failed", result.FrameErrors)
		}
		fmt.Println()
	}
	if len(result.Marked) == 0 {
		fmt.Println("No known faces detected")
		return nil
	}
	fmt.Printf("Attendance marked for: %s\n", strings.Join(result.Marked, ", "))
	return nil
}

func runAttendPhoto(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")
	ctx := context.Background()

	a, err := startAttend(cmd)
	if err != nil {
		return err
	}
	defer a.b.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	frame, err := imaging.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	result, err := p.ProcessImage(ctx, frame)
	if err != nil {
		return fmt.Errorf("face recognition failed: %w", err)
	}

	if output != "" {
		if err := writeAnnotated(output, frame, result.Annotations); err != nil {
			return err
		}
		if !a.jsonOutput {
			fmt.Printf("Annotated photo saved to %s\n", output)
		}
	}
	return a.report(result)
}

func writeAnnotated(path string, frame *imaging.Frame, annotations []imaging.Annotation) error {
	imaging.Annotate(frame, annotations)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := imaging.EncodeJPEG(f, frame, 90); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func runAttendVideo(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := startAttend(cmd)
	if err != nil {
		return err
	}
	defer a.b.Close()
	if stride := mustGetInt(cmd, "stride"); stride > 0 {
		a.cfg.Recognition.VideoStride = stride
	}

	src, err := capture.OpenVideoFile(ctx, a.cfg.Recognition.VideoBackend, args[0])
	if err != nil {
		return fmt.Errorf("failed to open video: %w", err)
	}

	var extra []pipeline.Option
	if !a.jsonOutput {
		bar := newVideoProgressBar(src)
		defer bar.Finish()
		extra = append(extra, pipeline.WithProgress(func(read int) { _ = bar.Set(read) }))
	}

	p, err := a.pipeline(ctx, extra...)
	if err != nil {
		src.Close()
		return err
	}
	result, err := p.ProcessVideo(ctx, src)
	if err != nil {
		return fmt.Errorf("video processing failed after %d frames: %w", result.FramesRead, err)
	}
	result.Annotations = nil
	if !a.jsonOutput {
		fmt.Println()
	}
	return a.report(result)
}

// newVideoProgressBar shows a bounded bar when the frame count is known, a spinner otherwise.
func newVideoProgressBar(src capture.Source) *progressbar.ProgressBar {
	total := -1
	if c, ok := src.(capture.Counter); ok && c.FrameCount() > 0 {
		total = c.FrameCount()
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Processing video"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runAttendLive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := startAttend(cmd)
	if err != nil {
		return err
	}
	defer a.b.Close()

	device := mustGetString(cmd, "device")
	if device == "" {
		device = a.cfg.Camera.Device
	}

	p, err := a.pipeline(ctx, pipeline.WithOnMarked(func(rec attendance.Record) {
		if !a.jsonOutput {
			fmt.Printf("%s  %s\n", rec.Time.Format(time.TimeOnly), rec.Name)
		}
	}))
	if err != nil {
		return err
	}

	cam, err := capture.OpenCamera(device, a.cfg.Camera.Width, a.cfg.Camera.Height)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	if !a.jsonOutput {
		fmt.Printf("Watching camera %s, press Ctrl+C to stop\n", device)
	}

	result, err := p.ProcessLive(ctx, cam, nil)
	if err != nil {
		_ = a.report(result)
		return err
	}
	if !a.jsonOutput {
		fmt.Println()
	}
	return a.report(result)
}
