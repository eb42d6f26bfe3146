package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List attendance records for a date range",
	Long: `Lists attendance records in [start, end], ordered by date and time in.
Both dates default to today. Use --csv to export with the header Name,ID,Date,Time In.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("start", "", "First day YYYY-MM-DD (default today)")
	reportCmd.Flags().String("end", "", "Last day YYYY-MM-DD (default start)")
	reportCmd.Flags().String("csv", "", "Write a CSV export to this file ('-' for stdout)")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, config.Load(), detectors{})
	if err != nil {
		return err
	}
	defer a.Close()

	start, err := parseDateFlag(mustGetString(cmd, "start"), a.coord.Today())
	if err != nil {
		return err
	}
	end, err := parseDateFlag(mustGetString(cmd, "end"), start)
	if err != nil {
		return err
	}

	records, err := a.coord.Report(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to query attendance: %w", err)
	}

	switch csvPath := mustGetString(cmd, "csv"); {
	case csvPath == "-":
		return report.WriteCSV(os.Stdout, records)
	case csvPath != "":
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", csvPath, err)
		}
		if err := report.WriteCSV(f, records); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", csvPath, err)
		}
		fmt.Printf("Exported %d records to %s\n", len(records), csvPath)
		return nil
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(records)
	}
	if len(records) == 0 {
		fmt.Printf("No attendance between %s and %s.\n", start, end)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME IN\tID\tNAME")
	fmt.Fprintln(w, "----\t-------\t--\t----")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Date, rec.TimeIn, rec.SubjectID, rec.SubjectName)
	}
	w.Flush()

	fmt.Println()
	for _, day := range report.Summarize(records) {
		fmt.Printf("%s: %d present\n", day.Date, day.Present)
	}
	return nil
}
