package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/config"
	"github.com/classtrack/attendance/internal/detector"
	"github.com/classtrack/attendance/internal/matcher"
	"github.com/classtrack/attendance/internal/store"
	"github.com/classtrack/attendance/internal/store/postgres"
	"github.com/classtrack/attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the attendance HTTP API.
The server accepts group photos, QR scans and manual marks, and serves
roster management, daily rollups and the session audit trail.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("migrate", false, "Run schema migrations before starting")
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

// buildService wires the stores, matcher and detector into the reconciliation
// service shared by serve and the one-shot commands.
func buildService(cfg *config.Config, st *store.Store, index *store.TemplateIndex) *attendance.Service {
	ledger := attendance.NewLedger(st.Records)
	processor := attendance.NewProcessor(st.Templates, st.Sessions, ledger, matcher.Config{
		Tolerance:       cfg.Matching.Tolerance,
		AmbiguityMargin: cfg.Matching.AmbiguityMargin,
	})
	client := detector.NewClient(cfg.Detector.URL, cfg.Detector.MaxImageSize)
	return attendance.NewService(st, processor, ledger, client, index,
		cfg.Matching.EmbeddingDim, cfg.Matching.DuplicateThreshold)
}

// loadTemplateIndex builds the in-memory template index from the store.
func loadTemplateIndex(ctx context.Context, st *store.Store) (*store.TemplateIndex, error) {
	templates, err := st.Templates.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	index := store.NewTemplateIndex()
	index.Build(templates)
	return index, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if mustGetBool(cmd, "migrate") {
		fmt.Printf("Running schema migrations...\n")
		if err := postgres.Migrate(ctx, pool, cfg.Matching.EmbeddingDim); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	st := postgres.NewStore(pool, cfg.Matching.EmbeddingDim)

	fmt.Printf("Building in-memory template index...\n")
	index, err := loadTemplateIndex(ctx, st)
	if err != nil {
		return err
	}
	fmt.Printf("Template index ready with %d templates\n", index.Count())

	service := buildService(cfg, st, index)
	reporter := attendance.NewReporter(st.Students, st.Records)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(port, host, st, service, reporter)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
