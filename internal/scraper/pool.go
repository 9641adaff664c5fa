package scraper

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// Result is one organization's fetch outcome. A failed organization
// carries its error here rather than failing the whole run; the caller
// decides whether to continue with partial results.
type Result struct {
	Org     domain.Organization
	Schools []*domain.SchoolRecord
	Err     error
}

// Scraper fetches and extracts every organization's school list with a
// bounded worker pool.
type Scraper struct {
	fetcher *Fetcher
	workers int
	log     *logger.Logger
}

// New creates a scraper running at most workers fetches concurrently.
func New(fetcher *Fetcher, workers int, log *logger.Logger) *Scraper {
	if workers < 1 {
		workers = 1
	}
	return &Scraper{fetcher: fetcher, workers: workers, log: log}
}

// Run fetches and extracts all organizations. Results keep the input
// order. Only context cancellation aborts the pool; per-organization
// failures are recorded in their Result.
func (s *Scraper) Run(ctx context.Context, orgs []domain.Organization) ([]Result, error) {
	results := make([]Result, len(orgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, org := range orgs {
		g.Go(func() error {
			results[i] = s.runOne(ctx, org)
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		total += len(r.Schools)
	}
	s.log.Info("school list fetch complete",
		"organizations", len(orgs), "failed", failed, "schools", total)
	return results, nil
}

func (s *Scraper) runOne(ctx context.Context, org domain.Organization) Result {
	log := s.log.WithField("org", org.Abbreviation)
	log.Info("fetching school list", "url", org.SchoolListURL)

	res := Result{Org: org}

	body, err := s.fetcher.Fetch(ctx, org.SchoolListURL)
	if err != nil {
		log.WithError(err).Warn("school list fetch failed")
		res.Err = err
		return res
	}

	extractor, err := ExtractorFor(org.Extractor)
	if err != nil {
		res.Err = err
		return res
	}

	schools, err := extractor.Extract(body, &org, log)
	if err != nil {
		log.WithError(err).Warn("school list extraction failed")
		res.Err = err
		return res
	}

	log.Info("parsed schools", "count", len(schools))
	res.Schools = schools
	return res
}
