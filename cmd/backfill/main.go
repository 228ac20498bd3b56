// Command backfill runs one-off data repair jobs against the production
// database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shaka/internal/backfill"
	"shaka/internal/config"
	"shaka/internal/database"
	"shaka/internal/logging"
	"shaka/internal/repository"
)

var (
	dryRun    bool
	reportKey string
)

var rootCmd = &cobra.Command{
	Use:           "backfill",
	Short:         "Data repair jobs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Recompute follower/following counts from follows",
	Long: `Scans every user in ID order and compares the stored follower and
following counters with the rows in follows. Mismatches are corrected one
transaction per batch unless --dry-run is set.`,
	Args: cobra.NoArgs,
	RunE: runCounts,
}

func init() {
	countsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report mismatches without writing")
	countsCmd.Flags().StringVar(&reportKey, "report-key", "", "archive the JSON summary to R2 under this key")
	rootCmd.AddCommand(countsCmd)
}

func runCounts(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	var archiver *backfill.Archiver
	if reportKey != "" {
		if !cfg.R2Enabled() {
			return fmt.Errorf("--report-key requires R2 configuration")
		}
		if archiver, err = backfill.NewR2Archiver(ctx, cfg); err != nil {
			return err
		}
	}

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := backfill.DefaultOptions()
	opts.DryRun = dryRun
	runner := backfill.NewRunner(repository.NewCountsRepository(db), opts, logger)

	summary, err := runner.Run(ctx)
	if err != nil {
		logger.Error("Backfill FAILED",
			zap.Int("scanned", summary.Scanned),
			zap.Int("written", summary.Written),
			zap.Error(err),
		)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}

	if archiver != nil {
		if err := archiver.Archive(ctx, reportKey, summary); err != nil {
			return err
		}
		logger.Info("Summary archived", zap.String("key", reportKey))
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
