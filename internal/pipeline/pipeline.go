// Package pipeline composes a full sync run: fetch school lists, normalize
// candidates, apply corrections, link and resolve each candidate against
// the cache, and flush the surviving mutations.
package pipeline

import (
	"context"

	"github.com/schoolatlas/schoolatlas/internal/cache"
	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/matching"
	"github.com/schoolatlas/schoolatlas/internal/normalize"
	"github.com/schoolatlas/schoolatlas/internal/resolution"
	"github.com/schoolatlas/schoolatlas/internal/scraper"
)

// Storage is everything the pipeline needs from persistence: the cache's
// flush target plus snapshot loads and organization upserts.
type Storage interface {
	cache.Store
	LoadDistricts(ctx context.Context) ([]domain.District, error)
	LoadSchools(ctx context.Context) ([]*domain.SchoolRecord, error)
	SaveOrganizations(ctx context.Context, orgs []domain.Organization) error
}

// Fetcher produces per-organization fetch results. Satisfied by
// *scraper.Scraper; stubbed in tests.
type Fetcher interface {
	Run(ctx context.Context, orgs []domain.Organization) ([]scraper.Result, error)
}

// FailurePolicy decides whether a run continues after some organizations
// failed to fetch. Returning false aborts before any resolution happens.
type FailurePolicy func(failed []scraper.Result) bool

// ContinueOnFailure proceeds with whatever fetched successfully.
func ContinueOnFailure([]scraper.Result) bool { return true }

// Orchestrator runs the sync pipeline.
type Orchestrator struct {
	storage     Storage
	fetcher     Fetcher
	corrections *corrections.Store
	coordinator *resolution.Coordinator
	cmp         *matching.Comparator
	onFailure   FailurePolicy
	log         *logger.Logger
}

// New creates an orchestrator. A nil policy continues on fetch failures.
func New(storage Storage, fetcher Fetcher, store *corrections.Store, coordinator *resolution.Coordinator, cmp *matching.Comparator, policy FailurePolicy, log *logger.Logger) *Orchestrator {
	if policy == nil {
		policy = ContinueOnFailure
	}
	return &Orchestrator{
		storage:     storage,
		fetcher:     fetcher,
		corrections: store,
		coordinator: coordinator,
		cmp:         cmp,
		onFailure:   policy,
		log:         log,
	}
}

// SetFailurePolicy replaces the fetch failure policy.
func (o *Orchestrator) SetFailurePolicy(policy FailurePolicy) {
	if policy != nil {
		o.onFailure = policy
	}
}

// Stats summarizes one completed run.
type Stats struct {
	Candidates   int
	Omitted      int
	Duplicates   int
	NewDistricts int
	Added        int
	Appended     int
	Overwritten  int
}

// Run executes the full pipeline for the given organizations. A reviewer
// abort stops the run before flushing; nothing is persisted.
func (o *Orchestrator) Run(ctx context.Context, orgs []domain.Organization) (*Stats, error) {
	if err := o.storage.SaveOrganizations(ctx, orgs); err != nil {
		return nil, errors.Wrap(err, "saving organizations")
	}

	c := cache.New(o.log)
	districts, err := o.storage.LoadDistricts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading districts")
	}
	schools, err := o.storage.LoadSchools(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading schools")
	}
	c.LoadSnapshot(districts, schools)
	o.log.Info("loaded cache snapshot", "districts", len(districts), "schools", len(schools))

	if err := o.corrections.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "loading corrections")
	}

	results, err := o.fetcher.Run(ctx, orgs)
	if err != nil {
		return nil, errors.Wrap(err, "fetching school lists")
	}
	var failed []scraper.Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 && !o.onFailure(failed) {
		return nil, errors.Abortedf("aborted after %d fetch failures", len(failed))
	}

	stats := &Stats{}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		org := r.Org
		for _, rec := range r.Schools {
			stats.Candidates++
			o.normalizeRecord(rec)
			o.applyAttributeCorrections(rec)
			if !o.applyRecordCorrections(rec) {
				stats.Omitted++
				continue
			}

			res, err := o.coordinator.Resolve(ctx, rec, &org, c.Schools())
			if err != nil {
				return nil, err
			}
			o.apply(c, res, rec, org.ID, stats)
		}
	}

	if err := c.Flush(ctx, o.storage); err != nil {
		return nil, errors.Wrap(err, "flushing cache")
	}
	o.log.Info("sync run complete",
		"candidates", stats.Candidates,
		"omitted", stats.Omitted,
		"duplicates", stats.Duplicates,
		"new_districts", stats.NewDistricts,
		"added", stats.Added,
		"appended", stats.Appended,
		"overwritten", stats.Overwritten)
	return stats, nil
}

// normalizeRecord cleans one candidate in place: whitespace, URL
// canonicalization, person-name casing, then the missing-name and
// missing-website exclusion bookkeeping.
func (o *Orchestrator) normalizeRecord(rec *domain.SchoolRecord) {
	for _, a := range domain.Attributes() {
		v, ok := rec.Value(a).(string)
		if !ok {
			continue
		}
		switch {
		case a.Meta().Kind == domain.KindURL:
			rec.Set(a, normalize.CanonicalURL(v))
		case a == domain.ContactName || a == domain.HeadmasterName:
			rec.Set(a, normalize.TitleCase(normalize.CleanValue(v)))
		default:
			rec.Set(a, normalize.CleanValue(v))
		}
	}

	if o.cmp.EffectivelyNull(domain.Name, rec.Value(domain.Name)) {
		rec.Set(domain.Name, o.cmp.MissingName)
		rec.Set(domain.IsExcluded, true)
		rec.Set(domain.ExcludedReason, "school has no name")
	} else if o.cmp.EffectivelyNull(domain.WebsiteURL, rec.Value(domain.WebsiteURL)) {
		rec.Set(domain.IsExcluded, true)
		rec.Set(domain.ExcludedReason, "school has no website")
	}
}

func (o *Orchestrator) applyAttributeCorrections(rec *domain.SchoolRecord) {
	for _, raw := range o.corrections.ByTag(corrections.TagSchoolAttribute) {
		corr, ok := raw.(*corrections.AttributeCorrection)
		if !ok {
			continue
		}
		if corr.Apply(rec) {
			o.log.Debug("applied attribute correction",
				"attribute", corr.Attribute.String(), "school", rec.Name())
		}
	}
}

// applyRecordCorrections runs every matching record correction. Returns
// false when an omit action drops the candidate.
func (o *Orchestrator) applyRecordCorrections(rec *domain.SchoolRecord) bool {
	for _, raw := range o.corrections.ByTag(corrections.TagSchoolCorrection) {
		corr, ok := raw.(*corrections.SchoolCorrection)
		if !ok {
			continue
		}
		if !corr.MatchesRecord(o.cmp, rec) {
			continue
		}
		if !corr.Action.Apply(rec) {
			o.log.Info("omitting candidate by correction",
				"school", rec.Name(), "notes", corr.Notes)
			return false
		}
		o.log.Debug("applied record correction", "school", rec.Name())
	}
	return true
}

// apply mutates the cache according to one resolution.
func (o *Orchestrator) apply(c *cache.Cache, res resolution.Resolution, rec *domain.SchoolRecord, orgID int64, stats *Stats) {
	switch res.Kind() {
	case resolution.KindOmit:
		stats.Omitted++

	case resolution.KindDuplicate:
		stats.Duplicates++
		if d := res.Existing().District(); d != nil {
			c.AddRelation(d, orgID)
		}

	case resolution.KindNewDistrict:
		stats.NewDistricts++
		website, _ := rec.Value(domain.WebsiteURL).(string)
		d := cache.NewDistrict(rec.Name(), website)
		c.AddDistrict(d)
		c.NewSchool(rec, d)
		c.AddRelation(d, orgID)

	case resolution.KindAddToDistrict:
		stats.Added++
		c.NewSchool(rec, res.District())
		c.AddRelation(res.District(), orgID)

	case resolution.KindAppend:
		stats.Appended++
		existing := res.Existing()
		for _, a := range domain.MatchingAttributes() {
			v := rec.Value(a)
			if o.cmp.EffectivelyNull(a, v) {
				continue
			}
			if o.cmp.EffectivelyNull(a, existing.Get(a)) {
				existing.Put(a, v)
			}
		}
		if d := existing.District(); d != nil {
			c.AddRelation(d, orgID)
		}

	case resolution.KindOverwrite:
		stats.Overwritten++
		existing := res.Existing()
		for _, a := range domain.MatchingAttributes() {
			if v := rec.Value(a); !o.cmp.EffectivelyNull(a, v) {
				existing.Put(a, v)
			}
		}
		if d := existing.District(); d != nil {
			c.AddRelation(d, orgID)
		}
	}
}
