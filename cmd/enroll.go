package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/provider"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a person from a photo or the camera",
	Long: `Save a reference photo of a person into the enrollment directory.

The photo must contain a face. If the face is already close to someone else
in the gallery a warning is printed, but the photo is still saved.

Examples:
  # Enroll from a photo
  face-attendance enroll --name "Jana Nováková" --image jana.jpg

  # Capture a frame from the default camera
  face-attendance enroll --name "Jana Nováková" --camera`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Person name (required)")
	enrollCmd.Flags().String("image", "", "Photo to enroll")
	enrollCmd.Flags().Bool("camera", false, "Capture the photo from the camera")
	enrollCmd.Flags().String("device", "", "Camera device (defaults to CAMERA_DEVICE)")
	enrollCmd.Flags().Bool("skip-conflict-check", false, "Do not load the gallery to look for similar faces")
	_ = enrollCmd.MarkFlagRequired("name")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	imagePath := mustGetString(cmd, "image")
	useCamera := mustGetBool(cmd, "camera")
	skipConflicts := mustGetBool(cmd, "skip-conflict-check")

	if (imagePath == "") == !useCamera {
		return errors.New("exactly one of --image or --camera is required")
	}
	if err := gallery.ValidateName(name); err != nil {
		return err
	}

	ctx := context.Background()
	cfg := config.Load()

	b, err := openBackends(cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()

	var current *gallery.Gallery
	if !skipConflicts {
		g, _, err := b.loadGallery(ctx)
		if err != nil {
			return fmt.Errorf("failed to load gallery: %w", err)
		}
		current = g
	}

	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", imagePath, err)
		}
		frame, err := imaging.Decode(data)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", imagePath, err)
		}
		return enrollFrame(ctx, b, current, name, frame, "upload")
	}

	device := mustGetString(cmd, "device")
	if device == "" {
		device = cfg.Camera.Device
	}
	fmt.Printf("Opening camera %s...\n", device)
	cam, err := capture.OpenCamera(device, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer cam.Close()

	for range constants.EnrollmentCaptureCount {
		frame, err := cam.Read(ctx)
		if err != nil {
			return fmt.Errorf("failed to capture frame: %w", err)
		}
		if err := enrollFrame(ctx, b, current, name, frame, "camera"); err != nil {
			return err
		}
	}
	return nil
}

func enrollFrame(ctx context.Context, b *backends, current *gallery.Gallery, name string, frame *imaging.Frame, suffix string) error {
	res, err := gallery.Enroll(ctx, b.store, b.provider, current, name, frame, suffix, b.cfg.Recognition.Tolerance)
	if errors.Is(err, provider.ErrNoFace) {
		return fmt.Errorf("no face detected, nothing saved for %s", name)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Enrolled %s: %s\n", name, res.Image.Path)
	for _, c := range res.Conflicts {
		fmt.Printf("  Warning: face is close to %s (distance %.3f, %s)\n", c.Entry.Name, c.Distance, c.Entry.Source)
	}
	for _, d := range res.Duplicates {
		fmt.Printf("  Note: looks like the same photo as %s\n", d)
	}
	return nil
}
