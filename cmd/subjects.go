package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Subject management commands",
	Long:  `Commands for registering, listing, updating and deleting gallery subjects.`,
}

var subjectsListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List registered subjects",
	Long:  `Lists all subjects, or those whose name or ID contains the query (case and diacritics are ignored).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSubjectsList,
}

var subjectsAddCmd = &cobra.Command{
	Use:   "add <id> <name> <image>",
	Short: "Register a subject from an image with exactly one face",
	Args:  cobra.ExactArgs(3),
	RunE:  runSubjectsAdd,
}

var subjectsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change name, class or face image of a subject",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubjectsUpdate,
}

var subjectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a subject and its attendance records",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubjectsDelete,
}

var subjectsImportCmd = &cobra.Command{
	Use:   "import <manifest.csv>",
	Short: "Register subjects listed in a CSV manifest",
	Long: `Registers every subject listed in a CSV manifest with the columns id, name,
image and optionally class. Image paths are relative to the manifest.
Failed rows are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubjectsImport,
}

func init() {
	rootCmd.AddCommand(subjectsCmd)
	subjectsCmd.AddCommand(subjectsListCmd, subjectsAddCmd, subjectsUpdateCmd, subjectsDeleteCmd, subjectsImportCmd)

	subjectsListCmd.Flags().Bool("json", false, "Output as JSON")
	subjectsAddCmd.Flags().String("class", "", "Class label")
	subjectsUpdateCmd.Flags().String("name", "", "New name")
	subjectsUpdateCmd.Flags().String("class", "", "New class label")
	subjectsUpdateCmd.Flags().String("image", "", "Re-register from this image")
	subjectsImportCmd.Flags().Bool("json", false, "Output as JSON")
}

func runSubjectsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, config.Load(), detectors{})
	if err != nil {
		return err
	}
	defer a.Close()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	subjects := a.registry.Current().Search(query)

	if mustGetBool(cmd, "json") {
		return outputJSON(subjects)
	}
	if len(subjects) == 0 {
		fmt.Println("No subjects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLASS\tSIGNATURE\tREGISTERED")
	fmt.Fprintln(w, "--\t----\t-----\t---------\t----------")
	for _, s := range subjects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Class, s.Signature, s.CreatedAt.Format(time.DateOnly))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d subjects\n", len(subjects))
	return nil
}

func runSubjectsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, config.Load(), detectors{registration: true})
	if err != nil {
		return err
	}
	defer a.Close()

	img, err := loadImage(args[2])
	if err != nil {
		return err
	}

	reg, err := a.registry.Register(ctx, database.Subject{
		ID:    args[0],
		Name:  args[1],
		Class: mustGetString(cmd, "class"),
	}, img)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", args[0], err)
	}

	fmt.Printf("Registered %s (%s)\n", reg.Subject.ID, reg.Subject.Name)
	fmt.Printf("  Signature: %s\n", reg.Subject.Signature)
	fmt.Printf("  Face:      %dx%d at (%d,%d)\n", reg.Region.Width, reg.Region.Height, reg.Region.X, reg.Region.Y)
	for _, l := range reg.Lookalikes {
		fmt.Printf("  Warning: looks like %s (%s), distance %d\n", l.SubjectID, l.Name, l.Distance)
	}
	return nil
}

func runSubjectsUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	imagePath := mustGetString(cmd, "image")

	a, err := openApp(ctx, config.Load(), detectors{registration: imagePath != ""})
	if err != nil {
		return err
	}
	defer a.Close()

	current, ok := a.registry.Current().Get(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", database.ErrNotFound, args[0])
	}

	name, class := current.Name, current.Class
	if cmd.Flags().Changed("name") {
		name = mustGetString(cmd, "name")
	}
	if cmd.Flags().Changed("class") {
		class = mustGetString(cmd, "class")
	}

	updated, err := updateSubject(ctx, a.registry, args[0], name, class, imagePath)
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s (%s, class %q)\n", updated.ID, updated.Name, updated.Class)
	return nil
}

func updateSubject(ctx context.Context, registry *gallery.Registry, id, name, class, imagePath string) (*database.Subject, error) {
	if imagePath == "" {
		return registry.Update(ctx, id, name, class, nil)
	}
	img, err := loadImage(imagePath)
	if err != nil {
		return nil, err
	}
	return registry.Update(ctx, id, name, class, img)
}

func runSubjectsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, config.Load(), detectors{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.coord.DeleteSubject(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete %s: %w", args[0], err)
	}
	fmt.Printf("Deleted %s and its attendance records\n", args[0])
	return nil
}

// ImportResult summarizes a manifest import.
type ImportResult struct {
	Total      int            `json:"total"`
	Registered int            `json:"registered"`
	Failed     []ImportFailed `json:"failed"`
	DurationMs int64          `json:"duration_ms"`
}

// ImportFailed is a manifest row that could not be registered.
type ImportFailed struct {
	Line  int    `json:"line"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

func runSubjectsImport(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	startTime := time.Now()
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	entries, err := gallery.ReadManifest(f, filepath.Dir(args[0]))
	f.Close()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, config.Load(), detectors{registration: true})
	if err != nil {
		return err
	}
	defer a.Close()

	// Create progress bar (only for non-JSON output)
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		fmt.Printf("Found %d subjects to import\n\n", len(entries))
		bar = progressbar.NewOptions(len(entries),
			progressbar.OptionSetDescription("Registering"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("subjects"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	result := ImportResult{Total: len(entries), Failed: []ImportFailed{}}
	for _, entry := range entries {
		if err := importEntry(ctx, a.registry, entry); err != nil {
			result.Failed = append(result.Failed, ImportFailed{Line: entry.Line, ID: entry.ID, Error: err.Error()})
		} else {
			result.Registered++
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	duration := time.Since(startTime)
	result.DurationMs = duration.Milliseconds()

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\n\nImport complete!")
	fmt.Printf("  Registered: %d/%d\n", result.Registered, result.Total)
	for _, failed := range result.Failed {
		fmt.Printf("  Line %d (%s): %s\n", failed.Line, failed.ID, failed.Error)
	}
	fmt.Printf("  Duration:   %s\n", formatDuration(duration))
	return nil
}

func importEntry(ctx context.Context, registry *gallery.Registry, entry gallery.ManifestEntry) error {
	if entry.Name == "" {
		return errors.New("name is required")
	}
	img, err := loadImage(entry.ImagePath)
	if err != nil {
		return err
	}
	_, err = registry.Register(ctx, database.Subject{ID: entry.ID, Name: entry.Name, Class: entry.Class}, img)
	return err
}
