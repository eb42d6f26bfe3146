package cmd

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/spf13/cobra"
)

var attendCmd = &cobra.Command{
	Use:   "attend [image]",
	Short: "Mark attendance by matching a face",
	Long: `Runs face attendance on an image file, or on one frame from the configured
camera when no image is given. The frame must contain exactly one face.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttend,
}

var markCmd = &cobra.Command{
	Use:   "mark <id>",
	Short: "Mark a subject present without face matching",
	Args:  cobra.ExactArgs(1),
	RunE:  runMark,
}

func init() {
	rootCmd.AddCommand(attendCmd, markCmd)

	attendCmd.Flags().String("date", "", "Attendance date YYYY-MM-DD (default today)")
	attendCmd.Flags().Bool("json", false, "Output as JSON")
	markCmd.Flags().String("date", "", "Attendance date YYYY-MM-DD (default today)")
	markCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAttend(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	a, err := openApp(ctx, cfg, detectors{attendance: true})
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := parseDateFlag(mustGetString(cmd, "date"), a.coord.Today())
	if err != nil {
		return err
	}

	var o attendance.Outcome
	if len(args) == 1 {
		img, err := loadImage(args[0])
		if err != nil {
			return err
		}
		o = a.coord.AttemptFaceAttendance(ctx, img, date)
	} else {
		o, err = attendFromCamera(ctx, &cfg.Camera, a.coord, date)
		if err != nil {
			return err
		}
	}
	return printOutcome(cmd, o)
}

func attendFromCamera(ctx context.Context, cfg *config.CameraConfig, coord *attendance.Coordinator, date civil.Date) (attendance.Outcome, error) {
	camera, err := capture.FromConfig(cfg)
	if err != nil {
		if errors.Is(err, capture.ErrNotConfigured) {
			return attendance.Outcome{}, errors.New("no image given and no camera configured (CAMERA_URL or CAMERA_DIR)")
		}
		return attendance.Outcome{}, err
	}
	defer camera.Close()

	ctx, cancel := context.WithTimeout(ctx, constants.CaptureTimeout)
	defer cancel()

	stream, err := camera.Open(ctx)
	if err != nil {
		return attendance.Outcome{}, fmt.Errorf("failed to open camera: %w", err)
	}
	defer stream.Close()

	return coord.AttemptFromStream(ctx, stream, date), nil
}

func runMark(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, config.Load(), detectors{})
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := parseDateFlag(mustGetString(cmd, "date"), a.coord.Today())
	if err != nil {
		return err
	}
	return printOutcome(cmd, a.coord.MarkManual(ctx, args[0], date))
}

// printOutcome reports an attempt. Store failures fail the command, rejections do not.
func printOutcome(cmd *cobra.Command, o attendance.Outcome) error {
	if mustGetBool(cmd, "json") {
		if err := outputJSON(o); err != nil {
			return err
		}
	} else {
		switch {
		case o.Kind == attendance.OutcomeMarked:
			fmt.Printf("%s (%s): %s on %s at %s\n", o.SubjectName, o.SubjectID, o.Message, o.Date, o.TimeIn)
		case o.Recorded():
			fmt.Printf("%s (%s): %s on %s\n", o.SubjectName, o.SubjectID, o.Message, o.Date)
		case o.SubjectID != "":
			fmt.Printf("%s: %s\n", o.SubjectID, o.Message)
		default:
			fmt.Println(o.Message)
		}
		if o.Source == attendance.SourceFace && o.Kind == attendance.OutcomeMarked {
			fmt.Printf("  Distance: %d\n", o.Distance)
		}
	}

	switch o.Kind {
	case attendance.OutcomeStoreFailure, attendance.OutcomeCaptureFailed, attendance.OutcomeDetectorUnavailable:
		return fmt.Errorf("%s: %w", o.Message, o.Err)
	}
	return nil
}
