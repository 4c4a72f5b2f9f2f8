package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/config"
	"github.com/classtrack/attendance/internal/store/postgres"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [photo-dir]",
	Short: "Enroll face templates from a directory of portraits",
	Long: `Enroll face templates in bulk from a directory of portrait photos.
Each file must be named <student_id>.jpg (or .jpeg/.png) and contain
exactly one face. Photos that fail enrollment are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func portraitFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading photo directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	files, err := portraitFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no portrait photos found in %s", args[0])
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	st := postgres.NewStore(pool, cfg.Matching.EmbeddingDim)

	index, err := loadTemplateIndex(ctx, st)
	if err != nil {
		return err
	}
	service := buildService(cfg, st, index)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, failed int
	for _, path := range files {
		studentID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		photo, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("\n%s: %v\n", path, err)
			failed++
			bar.Add(1)
			continue
		}

		if _, err := service.EnrollFace(ctx, studentID, photo); err != nil {
			if attendance.IsValidation(err) {
				fmt.Printf("\n%s: %v\n", studentID, err)
			} else {
				fmt.Printf("\n%s: enrollment failed: %v\n", studentID, err)
			}
			failed++
			bar.Add(1)
			continue
		}

		enrolled++
		bar.Add(1)
	}
	bar.Finish()

	fmt.Printf("\nEnrolled %d templates, %d failed\n", enrolled, failed)
	return nil
}
