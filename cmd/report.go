package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/config"
	"github.com/classtrack/attendance/internal/store"
	"github.com/classtrack/attendance/internal/store/postgres"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a daily attendance rollup for a class",
	Long: `Print the roster of a class for one day with each student's status.
Students without a record for the day are reported as absent; the
absence is derived at query time, never written back.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().Int64("class", 0, "Class to report on (required)")
	reportCmd.Flags().String("date", "", "Day to report, YYYY-MM-DD (defaults to today)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	classID := mustGetInt64(cmd, "class")
	if classID <= 0 {
		return errors.New("--class is required")
	}

	date := store.Today()
	if raw := mustGetString(cmd, "date"); raw != "" {
		var err error
		date, err = store.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool, cfg.Matching.EmbeddingDim)
	reporter := attendance.NewReporter(st.Students, st.Records)

	rollup, err := reporter.Daily(context.Background(), classID, date)
	if err != nil {
		return fmt.Errorf("building rollup: %w", err)
	}

	fmt.Printf("Class %d on %s: %d present, %d absent\n\n", rollup.ClassID, rollup.Date, rollup.Present, rollup.Absent)
	for _, entry := range rollup.Entries {
		detail := string(entry.Status)
		switch {
		case entry.Derived:
			detail += " (no record)"
		case entry.Method == store.MethodFace:
			detail += fmt.Sprintf(" (face, %.2f)", entry.Confidence)
		default:
			detail += fmt.Sprintf(" (%s)", entry.Method)
		}
		if entry.Verified {
			detail += " [verified]"
		}
		fmt.Printf("  %3d  %-30s %s\n", entry.Student.RollNumber, entry.Student.FullName, detail)
	}
	return nil
}
