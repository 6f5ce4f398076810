package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance HTTP API.
The API accepts photo and video uploads, enrollments and live camera sessions,
and serves attendance reports.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	b, err := openBackends(cfg, true)
	if err != nil {
		return err
	}
	defer b.Close()
	fmt.Printf("Using %s recorder and %s embedding provider\n", cfg.Recorder.Backend, b.provider.Name())

	fmt.Printf("Loading gallery from %s...\n", cfg.Enrollment.Dir)
	holder := gallery.NewHolder(nil)
	report, err := holder.Reload(context.Background(), b.loadGallery)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	g := holder.Get()
	printLoadReport(g, report)
	if g.Len() == 0 {
		fmt.Println("No enrolled faces found")
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, web.Dependencies{
		Gallery:  holder,
		Store:    b.store,
		Load:     b.loadGallery,
		Provider: b.provider,
		Recorder: b.recorder,
		OpenCamera: func(device string) (capture.Source, error) {
			return capture.OpenCamera(device, cfg.Camera.Width, cfg.Camera.Height)
		},
	})

	ln, err := server.Listen()
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	if cfg.Web.APIToken == "" {
		fmt.Println("Warning: WEB_API_TOKEN is not set, the API is unauthenticated")
	}
	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	// Tell systemd (Type=notify) that the socket is bound.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := server.Serve(ln); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
