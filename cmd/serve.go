package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.
The server exposes the subject, attendance and report API and a kiosk page.
With --watch and a configured camera it also marks attendance continuously.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("watch", false, "Poll the configured camera and mark attendance continuously")
}

// resolveServeHostPort applies flag overrides to the configured address.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)
	watch := mustGetBool(cmd, "watch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, cfg, detectors{registration: true, attendance: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.coord.Ledger().Preload(ctx, a.coord.Today()); err != nil {
		logger.Warn("presence preload failed", zap.Error(err))
	}

	// A nil *Exclusive must not reach the server as a non-nil capture.Source.
	var camera capture.Source
	exclusive, err := capture.FromConfig(&cfg.Camera)
	switch {
	case err == nil:
		camera = exclusive
		defer exclusive.Close()
	case errors.Is(err, capture.ErrNotConfigured):
		if watch {
			return errors.New("--watch requires CAMERA_URL or CAMERA_DIR")
		}
	default:
		return err
	}

	// The poller owns the camera while watching; the capture endpoint would steal its stream.
	serverCamera := camera
	if watch {
		serverCamera = nil
	}
	server := web.NewServer(cfg, a.coord, serverCamera)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	if watch {
		poller := attendance.NewPoller(a.coord, camera, cfg.Camera.PollInterval)
		go func() {
			if err := poller.Run(ctx); err != nil {
				logger.Error("camera polling stopped", zap.Error(err))
			}
		}()
	}

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
