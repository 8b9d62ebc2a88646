package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extract/constants"
	repo "github.com/joseph-ayodele/invoice-extract/internal/repository"
)

var dbhealthCMD = &cobra.Command{
	Use:   "dbhealth",
	Short: "Check the job store and optionally apply migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup(cmd)
		ctx := cmd.Context()

		db, err := repo.Open(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("opening DB: %w", err)
		}
		defer db.Close(logger)

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := db.Migrate(ctx, logger); err != nil {
				return fmt.Errorf("migrating DB: %w", err)
			}
		}
		if err := db.HealthCheck(ctx, time.Second); err != nil {
			return fmt.Errorf("DB health: FAIL (%w)", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s)\n", db.Dialect)

		jobs, err := repo.NewExtractJobRepository(db, logger).List(ctx, repo.JobFilter{Limit: 1000})
		if err != nil {
			// fresh database without --migrate
			logger.Warn("dbhealth.jobs.unavailable", "error", err)
			return nil
		}
		counts := map[constants.JobStatus]int{}
		for _, j := range jobs {
			counts[j.Status]++
		}
		for _, st := range []constants.JobStatus{
			constants.JobStatusQueued, constants.JobStatusRunning, constants.JobStatusOK, constants.JobStatusFailed,
		} {
			fmt.Fprintf(cmd.OutOrStdout(), "- %-8s %d\n", st, counts[st])
		}
		return nil
	},
}

func init() {
	dbhealthCMD.Flags().Bool("migrate", false, "apply pending migrations first")
}
