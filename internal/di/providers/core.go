// Package providers contains dependency injection providers for the atlas CLI.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/schoolatlas/schoolatlas/internal/config"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	opts := do.MustInvoke[config.Options](i)
	return config.Load(opts)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Format:      cfg.Logger.Format,
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
	})

	log.Debug("configuration loaded",
		"environment", cfg.App.Environment,
		"database", cfg.Database.Path,
		"data_path", cfg.Data.BasePath,
	)
	return log, nil
}
