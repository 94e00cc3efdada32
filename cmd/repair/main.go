package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"stashdocs/internal/audit"
	"stashdocs/internal/config"
	"stashdocs/internal/database"
	"stashdocs/internal/storage"
)

// The repair tool runs offline, against a database no API instance is
// writing to. It scans file_versions for duplicate or non-contiguous
// sequences and renumbers each corrupted file by creation time.
func main() {
	var dryRun bool

	root := &cobra.Command{
		Use:           "repair",
		Short:         "Audit and repair file version sequences",
		Long:          "Scans the file_versions table for duplicate or non-contiguous sequence numbers and renumbers corrupted files by creation time. Run it only while the API is stopped.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), dryRun)
		},
	}
	root.Flags().BoolVar(&dryRun, "dry-run", false, "report corruptions and planned renumbering without modifying anything")

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("repair failed: %v", err)
	}
}

func run(ctx context.Context, dryRun bool) error {
	cfg := config.Load()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Object storage is optional: when configured, the tool uploads a
	// JSON dump of the version table before touching any row.
	var store storage.Storage
	if cfg.MinIO.Endpoint != "" {
		store, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("initialize object storage: %w", err)
		}
	}

	report, err := audit.New(db, store).Repair(ctx, dryRun)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if len(report.FileErrors) > 0 {
		return fmt.Errorf("%d file(s) could not be repaired", len(report.FileErrors))
	}
	return nil
}
