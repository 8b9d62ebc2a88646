package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/core"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
	"github.com/joseph-ayodele/invoice-extract/internal/ingest"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	repo "github.com/joseph-ayodele/invoice-extract/internal/repository"
)

var batchCMD = &cobra.Command{
	Use:   "batch <dir>",
	Short: "OCR every invoice image under a directory and extract records",
	Long: "Walks the directory, OCRs each image, queues its text as an extraction job " +
		"and waits for the queue to drain. Prints per-file results; --xlsx writes the job table.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup(cmd)
		ctx := cmd.Context()
		started := time.Now()

		db, err := repo.Open(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("opening DB: %w", err)
		}
		defer db.Close(logger)
		if err := db.Migrate(ctx, logger); err != nil {
			return fmt.Errorf("migrating DB: %w", err)
		}

		engines, err := ocr.NewRegistryFromConfig(cfg.OCR, logger)
		if err != nil {
			return err
		}
		extractor, err := llm.NewExtractor(core.NewGenerator(cfg.LLM, logger), cfg.LLM.Instruction, logger)
		if err != nil {
			return err
		}

		jobsRepo := repo.NewExtractJobRepository(db, logger)
		processor := core.NewProcessor(logger, extractor, engines, jobsRepo)
		queue := async.NewWorkerPool(processor, logger,
			async.WithWorkers(cfg.Queue.Workers),
			async.WithQueueSize(cfg.Queue.Size),
			async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		)

		engine, _ := cmd.Flags().GetString("engine")
		if engine == "" {
			engine = cfg.Ingest.Engine
		}
		skipHidden, _ := cmd.Flags().GetBool("skip-hidden")

		ingestor := ingest.NewIngestor(engines, processor, queue, engine, logger)
		results, stats, walkErr := ingestor.IngestDirectory(ctx, args[0], skipHidden)

		// drain whatever was queued even if the walk was cut short
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		queue.Shutdown(drainCtx)
		processed, failed, _ := queue.Stats()

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			from := started.Add(-time.Second)
			data, err := export.NewService(jobsRepo, logger).JobsXLSX(ctx, repo.JobFilter{From: &from, Limit: len(results) + 1})
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
		}

		if err := writeJSON(cmd.OutOrStdout(), map[string]any{
			"results":   results,
			"stats":     stats,
			"processed": processed,
			"failed":    failed,
		}); err != nil {
			return err
		}
		return walkErr
	},
}

func init() {
	batchCMD.Flags().String("engine", "", "OCR engine (default INGEST_ENGINE)")
	batchCMD.Flags().Bool("skip-hidden", true, "skip dot files and directories")
	batchCMD.Flags().String("xlsx", "", "also write the resulting jobs to this workbook")
}
