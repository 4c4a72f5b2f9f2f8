package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/config"
	"github.com/classtrack/attendance/internal/store"
	"github.com/classtrack/attendance/internal/store/legacy"
	"github.com/classtrack/attendance/internal/store/postgres"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the legacy MySQL attendance history",
	Long: `One-shot import of the retired MySQL deployment.
Students are copied first, then every historical mark replays through
the ledger with its original method, so the precedence rules decide
conflicts exactly as they would have live.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("skip-students", false, "Only import marks, assume the roster already exists")
}

func importStudents(ctx context.Context, src *legacy.Pool, st *store.Store) (int, error) {
	students, err := src.Students(ctx)
	if err != nil {
		return 0, err
	}

	var imported int
	for _, s := range students {
		err := st.Students.Create(ctx, &store.Student{
			ID:         s.ID,
			FullName:   s.FullName,
			ClassID:    s.ClassID,
			RollNumber: s.RollNumber,
			Active:     s.Active,
		})
		if err != nil {
			fmt.Printf("student %s: %v\n", s.ID, err)
			continue
		}
		imported++
	}
	return imported, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Legacy.MySQLDSN == "" {
		return errors.New("LEGACY_MYSQL_DSN environment variable is required")
	}

	src, err := legacy.NewPool(cfg.Legacy.MySQLDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to legacy MySQL: %w", err)
	}
	defer src.Close()

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	st := postgres.NewStore(pool, cfg.Matching.EmbeddingDim)
	ledger := attendance.NewLedger(st.Records)

	if !mustGetBool(cmd, "skip-students") {
		imported, err := importStudents(ctx, src, st)
		if err != nil {
			return fmt.Errorf("importing students: %w", err)
		}
		fmt.Printf("Imported %d students\n", imported)
	}

	total, err := src.CountMarks(ctx)
	if err != nil {
		return fmt.Errorf("counting legacy marks: %w", err)
	}

	bar := progressbar.NewOptions(int(total),
		progressbar.OptionSetDescription("Importing marks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("marks"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var imported, rejected int64
	skipped, err := src.Marks(ctx, func(m legacy.Mark) error {
		outcome, err := ledger.Mark(ctx, attendance.MarkRequest{
			StudentID:  m.StudentID,
			Date:       m.Date,
			Status:     m.Status,
			Method:     m.Method,
			Confidence: m.Confidence,
			Notes:      m.Notes,
		})
		bar.Add(1)
		if err != nil {
			if attendance.IsValidation(err) {
				rejected++
				return nil
			}
			return err
		}
		if outcome.Result == attendance.MarkRejected {
			rejected++
			return nil
		}
		imported++
		return nil
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("importing marks: %w", err)
	}

	fmt.Printf("\nImported %d marks, %d rejected by precedence, %d skipped\n", imported, rejected, skipped)
	return nil
}
