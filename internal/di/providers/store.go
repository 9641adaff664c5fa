package providers

import (
	"github.com/samber/do/v2"

	"github.com/schoolatlas/schoolatlas/internal/config"
	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/store"
)

// StoreHandle wraps the store so the container closes the database on
// shutdown.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	s, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	log.Info("opened database", "path", cfg.Database.Path)
	return &StoreHandle{Store: s}, nil
}

// ProvideCorrectionStore provides the correction store backed by SQLite.
func ProvideCorrectionStore(i do.Injector) (*corrections.Store, error) {
	handle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return corrections.NewStore(handle.Store, log), nil
}
