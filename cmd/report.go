package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recorded attendance",
	Long: `Show who attended on a day, or how many people attended per day.

Examples:
  # Today
  face-attendance report

  # A given day, only names containing "novak" (case and accent insensitive)
  face-attendance report --date 2024-03-04 --name novak

  # Attendance counts for the last 14 days with records
  face-attendance report --days 14`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("date", "", "Day to report, YYYY-MM-DD (defaults to today)")
	reportCmd.Flags().String("name", "", "Only show names containing this text")
	reportCmd.Flags().Int("days", 0, "Show per-day counts for this many days instead")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
}

// ReportOutput is the JSON form of a one-day report.
type ReportOutput struct {
	Date    string              `json:"date"`
	Count   int                 `json:"count"`
	Records []attendance.Record `json:"records"`
}

func runReport(cmd *cobra.Command, args []string) error {
	dateStr := mustGetString(cmd, "date")
	nameFilter := mustGetString(cmd, "name")
	days := mustGetInt(cmd, "days")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()

	b := &backends{cfg: cfg}
	defer b.Close()
	if err := b.openRecorder(); err != nil {
		return err
	}

	if days > 0 {
		return reportDays(ctx, b.recorder, days, jsonOutput)
	}

	day := time.Now()
	if dateStr != "" {
		var err error
		day, err = time.ParseInLocation(attendance.DateLayout, dateStr, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", dateStr)
		}
	}

	records, err := b.recorder.List(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}
	records = filterRecords(records, nameFilter)

	out := ReportOutput{Date: day.Format(attendance.DateLayout), Count: len(records), Records: records}
	if out.Records == nil {
		out.Records = []attendance.Record{}
	}
	if jsonOutput {
		return outputJSON(out)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance recorded on %s\n", out.Date)
		return nil
	}
	fmt.Printf("Attendance on %s: %d\n\n", out.Date, out.Count)
	w := newTable()
	fmt.Fprintln(w, "TIME\tNAME\tSOURCE")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", rec.Time.Format(time.TimeOnly), rec.Name, rec.Source)
	}
	return w.Flush()
}

// filterRecords keeps records whose name contains filter, ignoring case and diacritics.
func filterRecords(records []attendance.Record, filter string) []attendance.Record {
	if filter == "" {
		return records
	}
	var out []attendance.Record
	for _, rec := range records {
		if facematch.NameContains(rec.Name, filter) {
			out = append(out, rec)
		}
	}
	return out
}

func reportDays(ctx context.Context, store attendance.Store, limit int, jsonOutput bool) error {
	lister, ok := store.(attendance.DayLister)
	if !ok {
		return errors.New("the configured recorder cannot summarize days")
	}
	days, err := lister.Days(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to summarize attendance: %w", err)
	}
	if jsonOutput {
		if days == nil {
			days = []attendance.DaySummary{}
		}
		return outputJSON(days)
	}
	if len(days) == 0 {
		fmt.Println("No attendance recorded")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "DAY\tPEOPLE")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%d\n", d.Day, d.Count)
	}
	return w.Flush()
}
