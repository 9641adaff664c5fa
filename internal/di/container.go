// Package di provides dependency injection configuration for the atlas CLI.
package di

import (
	"github.com/samber/do/v2"

	"github.com/schoolatlas/schoolatlas/internal/config"
	"github.com/schoolatlas/schoolatlas/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
// opts carries the command-line flag values into config loading.
func NewContainer(opts config.Options) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, opts)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCorrectionStore)

	// Matching
	do.Provide(injector, providers.ProvideComparator)
	do.Provide(injector, providers.ProvideLinker)

	// Scraping
	do.Provide(injector, providers.ProvideFetcher)
	do.Provide(injector, providers.ProvideScraper)

	// Resolution
	do.Provide(injector, providers.ProvideReviewer)
	do.Provide(injector, providers.ProvideCoordinator)

	// Pipeline
	do.Provide(injector, providers.ProvideOrchestrator)

	return injector
}
