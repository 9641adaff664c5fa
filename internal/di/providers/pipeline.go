package providers

import (
	"github.com/samber/do/v2"

	"github.com/schoolatlas/schoolatlas/internal/config"
	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/matching"
	"github.com/schoolatlas/schoolatlas/internal/pipeline"
	"github.com/schoolatlas/schoolatlas/internal/resolution"
	"github.com/schoolatlas/schoolatlas/internal/scraper"
	"github.com/schoolatlas/schoolatlas/internal/tui"
)

// ProvideComparator provides the attribute comparator.
func ProvideComparator(i do.Injector) (*matching.Comparator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return matching.NewComparator(cfg.Matching.MissingNameSubstitution), nil
}

// ProvideLinker provides the record linker.
func ProvideLinker(i do.Injector) (*matching.Linker, error) {
	cmp := do.MustInvoke[*matching.Comparator](i)
	log := do.MustInvoke[*logger.Logger](i)
	return matching.NewLinker(cmp, log), nil
}

// ProvideFetcher provides the rate-limited page fetcher.
func ProvideFetcher(i do.Injector) (*scraper.Fetcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return scraper.NewFetcher(scraper.FetcherConfig{
		RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
		Burst:             cfg.Scraper.Burst,
		UserAgent:         cfg.Scraper.UserAgent,
		PagesDir:          cfg.PagesPath(),
		CachePages:        cfg.Data.CachePages,
	}, log), nil
}

// ProvideScraper provides the school-list scraper pool.
func ProvideScraper(i do.Injector) (*scraper.Scraper, error) {
	cfg := do.MustInvoke[*config.Config](i)
	fetcher := do.MustInvoke[*scraper.Fetcher](i)
	log := do.MustInvoke[*logger.Logger](i)
	return scraper.New(fetcher, cfg.Scraper.Workers, log), nil
}

// ProvideReviewer provides the interactive terminal reviewer.
func ProvideReviewer(i do.Injector) (resolution.Reviewer, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return tui.NewReviewer(log), nil
}

// ProvideCoordinator provides the resolution coordinator.
func ProvideCoordinator(i do.Injector) (*resolution.Coordinator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	linker := do.MustInvoke[*matching.Linker](i)
	correctionStore := do.MustInvoke[*corrections.Store](i)
	reviewer := do.MustInvoke[resolution.Reviewer](i)
	log := do.MustInvoke[*logger.Logger](i)

	return resolution.NewCoordinator(linker, correctionStore, reviewer, log, cfg.Matching.MaxComparisonRows), nil
}

// ProvideOrchestrator provides the sync pipeline.
func ProvideOrchestrator(i do.Injector) (*pipeline.Orchestrator, error) {
	handle := do.MustInvoke[*StoreHandle](i)
	fetcher := do.MustInvoke[*scraper.Scraper](i)
	correctionStore := do.MustInvoke[*corrections.Store](i)
	coordinator := do.MustInvoke[*resolution.Coordinator](i)
	cmp := do.MustInvoke[*matching.Comparator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return pipeline.New(handle.Store, fetcher, correctionStore, coordinator, cmp, nil, log), nil
}
