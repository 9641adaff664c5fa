// Package cache tracks pending mutations to districts and schools during a
// sync run. Nothing touches the database until Flush, which resolves
// forward references (schools pointing at not-yet-inserted districts) in
// dependency order.
package cache

import (
	"context"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// Store is the subset of persistence the cache needs at flush time.
type Store interface {
	InsertDistrict(ctx context.Context, d *domain.District) (int64, error)
	UpdateDistrict(ctx context.Context, d *domain.District) error
	InsertSchool(ctx context.Context, r *domain.SchoolRecord) (int64, error)
	UpdateSchool(ctx context.Context, id int64, changed map[domain.Attribute]any, districtID int64) error
	InsertDistrictOrganization(ctx context.Context, districtID, orgID int64) error
}

// Relation is a pending district-organization membership row.
type Relation struct {
	District *CachedDistrict
	OrgID    int64
}

// Cache holds every district and school the run knows about, plus pending
// relation rows. It is not safe for concurrent use; the resolution phase is
// strictly sequential.
type Cache struct {
	log       *logger.Logger
	districts []*CachedDistrict
	schools   []*CachedSchool
	relations []Relation
}

// New creates an empty cache.
func New(log *logger.Logger) *Cache {
	return &Cache{log: log}
}

// LoadSnapshot seeds the cache from store contents, wiring each school to
// its district. A school referencing a missing district is kept without a
// district and logged.
func (c *Cache) LoadSnapshot(districts []domain.District, schools []*domain.SchoolRecord) {
	byID := make(map[int64]*CachedDistrict, len(districts))
	for _, d := range districts {
		cd := WrapDistrict(d)
		c.districts = append(c.districts, cd)
		byID[d.ID] = cd
	}

	for _, r := range schools {
		cs := c.WrapSchool(r, byID[r.DistrictID])
		if cs.district == nil && r.DistrictID != domain.NoID {
			c.log.Warn("school references missing district",
				"school", r.Name(), "district_id", r.DistrictID)
		}
		c.schools = append(c.schools, cs)
	}
}

// NewSchool registers a school pending insertion. Its attribute values are
// recorded as overlay entries so they are written at flush.
func (c *Cache) NewSchool(rec *domain.SchoolRecord, district *CachedDistrict) *CachedSchool {
	s := &CachedSchool{
		isNew:    true,
		baseline: &domain.SchoolRecord{ID: domain.NoID, DistrictID: domain.NoID, OrgID: rec.OrgID},
		overlay:  make(map[domain.Attribute]any, len(rec.Values)),
		district: district,
		log:      c.log,
	}
	for _, a := range domain.Attributes() {
		if v, ok := rec.Values[a]; ok {
			s.Put(a, v)
		}
	}
	c.schools = append(c.schools, s)
	return s
}

// WrapSchool wraps a school loaded from the store without registering any
// pending changes.
func (c *Cache) WrapSchool(rec *domain.SchoolRecord, district *CachedDistrict) *CachedSchool {
	return &CachedSchool{
		baseline: rec,
		overlay:  make(map[domain.Attribute]any),
		district: district,
		log:      c.log,
	}
}

// AddDistrict registers a district pending insertion.
func (c *Cache) AddDistrict(d *CachedDistrict) {
	c.districts = append(c.districts, d)
}

// AddRelation records that a district has a member school listed by the
// organization. Duplicates are dropped.
func (c *Cache) AddRelation(d *CachedDistrict, orgID int64) {
	for _, r := range c.relations {
		if r.District == d && r.OrgID == orgID {
			return
		}
	}
	c.relations = append(c.relations, Relation{District: d, OrgID: orgID})
}

// Districts returns every cached district in registration order.
func (c *Cache) Districts() []*CachedDistrict {
	return c.districts
}

// Schools returns every cached school in registration order.
func (c *Cache) Schools() []*CachedSchool {
	return c.schools
}

// Flush writes pending mutations in dependency order: district inserts and
// updates first so every new district holds a real id, then schools with
// their district ids resolved, then relation rows. A school whose district
// still has no id after the district pass is a programming error and aborts
// the flush.
func (c *Cache) Flush(ctx context.Context, store Store) error {
	var inserted, updated int

	for _, d := range c.districts {
		switch {
		case d.isNew:
			snap := d.Snapshot()
			id, err := store.InsertDistrict(ctx, &snap)
			if err != nil {
				return errors.Wrapf(err, "inserting district %q", d.Name())
			}
			d.markFlushed(id)
			inserted++
		case d.Changed():
			snap := d.Snapshot()
			if err := store.UpdateDistrict(ctx, &snap); err != nil {
				return errors.Wrapf(err, "updating district %q", d.Name())
			}
			d.markFlushed(snap.ID)
			updated++
		}
	}
	c.log.Info("flushed districts", "inserted", inserted, "updated", updated)

	inserted, updated = 0, 0
	var skipped int
	for _, s := range c.schools {
		if !s.isNew && !s.Changed() {
			skipped++
			continue
		}

		districtID := domain.NoID
		if s.district != nil {
			districtID = s.district.ID()
		} else if s.baseline != nil {
			districtID = s.baseline.DistrictID
		}
		if districtID == domain.NoID {
			return errors.Invariantf("school %q has unresolved district at flush", s.DisplayName())
		}

		if s.isNew {
			rec := s.Snapshot()
			id, err := store.InsertSchool(ctx, rec)
			if err != nil {
				return errors.Wrapf(err, "inserting school %q", s.DisplayName())
			}
			s.markFlushed(id)
			inserted++
			continue
		}

		if err := store.UpdateSchool(ctx, s.ID(), s.ChangedAttributes(), districtID); err != nil {
			return errors.Wrapf(err, "updating school %q", s.DisplayName())
		}
		s.markFlushed(s.ID())
		updated++
	}
	c.log.Info("flushed schools", "inserted", inserted, "updated", updated, "unchanged", skipped)

	for _, r := range c.relations {
		if r.District.ID() == domain.NoID {
			return errors.Invariantf("relation references unflushed district %q", r.District.Name())
		}
		if err := store.InsertDistrictOrganization(ctx, r.District.ID(), r.OrgID); err != nil {
			return errors.Wrapf(err, "recording organization %d for district %q", r.OrgID, r.District.Name())
		}
	}
	c.log.Info("flushed relations", "count", len(c.relations))
	c.relations = c.relations[:0]

	return nil
}
