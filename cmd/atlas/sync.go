package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/schoolatlas/schoolatlas/internal/config"
	"github.com/schoolatlas/schoolatlas/internal/di"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/pipeline"
	"github.com/schoolatlas/schoolatlas/internal/scraper"
)

var flagAbortOnFetchFailure bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch all school lists and reconcile them with the database",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&flagAbortOnFetchFailure, "abort-on-fetch-failure", false,
		"abort the run when any organization's list cannot be fetched")
}

func runSync(cmd *cobra.Command, _ []string) error {
	injector := di.NewContainer(configOptions())
	defer injector.Shutdown()

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return err
	}
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		return err
	}
	log = log.WithField("run_id", uuid.NewString())

	orchestrator, err := do.Invoke[*pipeline.Orchestrator](injector)
	if err != nil {
		return err
	}

	orgs, err := scraper.LoadOrganizations(cfg.Data.OrganizationsPath)
	if err != nil {
		return err
	}
	log.Info("starting sync", "organizations", len(orgs))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagAbortOnFetchFailure {
		orchestrator.SetFailurePolicy(func(failed []scraper.Result) bool {
			for _, r := range failed {
				log.WithError(r.Err).Error("organization fetch failed", "org", r.Org.Abbreviation)
			}
			return false
		})
	}

	stats, err := orchestrator.Run(ctx, orgs)
	if err != nil {
		if errors.Is(err, errors.ErrAborted) {
			log.Info("sync aborted, nothing was saved")
			return nil
		}
		return err
	}

	log.Info("sync finished",
		"candidates", stats.Candidates,
		"duplicates", stats.Duplicates,
		"new_districts", stats.NewDistricts,
		"added", stats.Added,
		"appended", stats.Appended,
		"overwritten", stats.Overwritten,
		"omitted", stats.Omitted)
	return nil
}
