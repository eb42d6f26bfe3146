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
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously mark attendance from the configured camera",
	Long: `Polls the configured camera (CAMERA_URL or CAMERA_DIR) and runs face attendance
on the newest frame. Frames that arrive while a match is running replace each other,
so only the latest one is matched. Stops on Ctrl+C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 0, "Polling interval (default CAMERA_POLL_INTERVAL_MS)")
	watchCmd.Flags().Bool("verbose", false, "Print rejected attempts too")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	verbose := mustGetBool(cmd, "verbose")
	interval := cfg.Camera.PollInterval
	if d := mustGetDuration(cmd, "interval"); d > 0 {
		interval = d
	}

	camera, err := capture.FromConfig(&cfg.Camera)
	if err != nil {
		if errors.Is(err, capture.ErrNotConfigured) {
			return errors.New("CAMERA_URL or CAMERA_DIR environment variable is required")
		}
		return err
	}
	defer camera.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, detectors{attendance: true})
	if err != nil {
		return err
	}
	defer a.Close()

	poller := attendance.NewPoller(a.coord, camera, interval)
	poller.OnOutcome = func(o attendance.Outcome) {
		switch {
		case o.Recorded():
			fmt.Printf("[%s] %s (%s): %s\n", o.At.Format(time.TimeOnly), o.SubjectName, o.SubjectID, o.Message)
		case verbose:
			fmt.Printf("[%s] %s\n", o.At.Format(time.TimeOnly), o.Message)
		}
	}

	fmt.Printf("Watching camera every %s, press Ctrl+C to stop\n", interval)
	if err := poller.Run(ctx); err != nil {
		return fmt.Errorf("camera polling stopped: %w", err)
	}
	fmt.Println("\nStopped.")
	return nil
}
