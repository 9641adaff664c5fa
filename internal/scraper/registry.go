// Package scraper turns organization member directories into candidate
// school records: a YAML-seeded organization registry, a rate-limited
// caching fetcher, per-organization HTML extractors, and a bounded worker
// pool running them.
package scraper

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/validation"
)

//go:embed organizations.yaml
var defaultSeed []byte

type organizationSeed struct {
	Organizations []organizationEntry `yaml:"organizations" validate:"required,min=1,dive"`
}

type organizationEntry struct {
	ID                  int64    `yaml:"id" validate:"required,gt=0"`
	Name                string   `yaml:"name" validate:"required"`
	Abbreviation        string   `yaml:"abbreviation" validate:"required"`
	HomepageURL         string   `yaml:"homepage_url" validate:"required,url"`
	SchoolListURL       string   `yaml:"school_list_url" validate:"required,url"`
	Extractor           string   `yaml:"extractor" validate:"required"`
	IndicatorAttributes []string `yaml:"match_indicator_attributes" validate:"required,min=1"`
	RelevantAttributes  []string `yaml:"match_relevant_attributes"`
}

// LoadOrganizations reads the organization seed at path. A missing file
// falls back to the embedded seed, so a fresh data directory works without
// setup.
func LoadOrganizations(path string) ([]domain.Organization, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data = defaultSeed
	} else if err != nil {
		return nil, fmt.Errorf("read organization seed: %w", err)
	}
	return parseOrganizations(data)
}

func parseOrganizations(data []byte) ([]domain.Organization, error) {
	var seed organizationSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "parsing organization seed")
	}
	if err := validation.New().Validate(&seed); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(seed.Organizations))
	out := make([]domain.Organization, 0, len(seed.Organizations))
	for _, e := range seed.Organizations {
		if seen[e.ID] {
			return nil, errors.Validationf("duplicate organization id %d in seed", e.ID)
		}
		seen[e.ID] = true

		if _, ok := extractors[e.Extractor]; !ok {
			return nil, errors.Validationf("organization %q names unknown extractor %q", e.Abbreviation, e.Extractor)
		}

		indicator, err := resolveAttributes(e.IndicatorAttributes)
		if err != nil {
			return nil, errors.Wrapf(err, "organization %q indicator attributes", e.Abbreviation)
		}
		relevant, err := resolveAttributes(e.RelevantAttributes)
		if err != nil {
			return nil, errors.Wrapf(err, "organization %q relevant attributes", e.Abbreviation)
		}

		out = append(out, domain.Organization{
			ID:                       e.ID,
			Name:                     e.Name,
			Abbreviation:             e.Abbreviation,
			HomepageURL:              e.HomepageURL,
			SchoolListURL:            e.SchoolListURL,
			Extractor:                e.Extractor,
			MatchIndicatorAttributes: indicator,
			MatchRelevantAttributes:  relevant,
		})
	}
	return out, nil
}

func resolveAttributes(names []string) ([]domain.Attribute, error) {
	out := make([]domain.Attribute, 0, len(names))
	for _, name := range names {
		a, err := domain.AttributeByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
