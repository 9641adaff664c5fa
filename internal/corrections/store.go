package corrections

import (
	"context"

	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/validation"
)

// Row is the persisted shape of a correction.
type Row struct {
	ID                  int64
	Type                string
	Data                []byte
	DeserializationData []byte
	Notes               string `validate:"max=300"`
}

// Repo is the persistence the store needs.
type Repo interface {
	ListCorrections(ctx context.Context) ([]Row, error)
	InsertCorrection(ctx context.Context, row *Row) (int64, error)
}

// Store loads corrections once per run and groups them by type tag.
type Store struct {
	repo     Repo
	log      *logger.Logger
	validate *validation.Validator

	loaded bool
	byTag  map[string][]Correction
}

// NewStore creates a correction store.
func NewStore(repo Repo, log *logger.Logger) *Store {
	return &Store{
		repo:     repo,
		log:      log,
		validate: validation.New(),
		byTag:    make(map[string][]Correction),
	}
}

// Load reads every persisted correction. It is idempotent; once any
// corrections are cached, repeated calls are no-ops. A row with an unknown
// tag or malformed payload is logged and skipped, never fatal.
func (s *Store) Load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	rows, err := s.repo.ListCorrections(ctx)
	if err != nil {
		return errors.Wrap(err, "loading corrections")
	}

	var skipped int
	for _, row := range rows {
		c, err := decode(row.Type, row.Data, row.DeserializationData, row.Notes)
		if err != nil {
			s.log.WithError(err).Warn("skipping unreadable correction", "id", row.ID, "type", row.Type)
			skipped++
			continue
		}
		s.byTag[c.Tag()] = append(s.byTag[c.Tag()], c)
	}

	s.loaded = true
	s.log.Info("loaded corrections", "count", len(rows)-skipped, "skipped", skipped)
	return nil
}

// ByTag returns the loaded corrections with the given type tag.
func (s *Store) ByTag(tag string) []Correction {
	return s.byTag[tag]
}

// Add validates, persists, and caches a new correction.
func (s *Store) Add(ctx context.Context, c Correction) error {
	data, hints, err := encode(c)
	if err != nil {
		return err
	}

	row := &Row{
		Type:                c.Tag(),
		Data:                data,
		DeserializationData: hints,
		Notes:               c.GetNotes(),
	}
	if err := s.validate.Validate(row); err != nil {
		return err
	}

	id, err := s.repo.InsertCorrection(ctx, row)
	if err != nil {
		return errors.Wrap(err, "persisting correction")
	}
	row.ID = id

	s.byTag[c.Tag()] = append(s.byTag[c.Tag()], c)
	return nil
}
