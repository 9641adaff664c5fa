package cache

import (
	"time"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// CachedSchool composes a baseline record with an overlay of pending
// attribute changes. Reads see the overlay first, so later pipeline stages
// observe earlier mutations before anything is flushed.
type CachedSchool struct {
	isNew    bool
	baseline *domain.SchoolRecord
	overlay  map[domain.Attribute]any
	district *CachedDistrict
	log      *logger.Logger
}

// Get returns the effective value for the attribute: the pending change if
// one exists, otherwise the baseline value.
func (s *CachedSchool) Get(a domain.Attribute) any {
	if v, ok := s.overlay[a]; ok {
		return v
	}
	if s.baseline == nil {
		return nil
	}
	return s.baseline.Value(a)
}

// Put records a pending change. Oversized string values are truncated to
// the attribute's maximum length with a warning. Writing a value equal to
// the baseline removes the pending change instead of recording a no-op.
func (s *CachedSchool) Put(a domain.Attribute, value any) {
	value, truncated := a.Clean(value)
	if truncated {
		s.log.Warn("truncated oversized attribute value",
			"attribute", a.String(),
			"max_length", a.Meta().MaxLength,
			"school", s.DisplayName())
	}

	if s.baseline != nil && valuesEqual(s.baseline.Value(a), value) {
		delete(s.overlay, a)
		return
	}
	s.overlay[a] = value
}

// ID returns the school's database id, or domain.NoID before first flush.
func (s *CachedSchool) ID() int64 {
	if s.baseline == nil {
		return domain.NoID
	}
	return s.baseline.ID
}

// OrgID returns the id of the organization the record came from.
func (s *CachedSchool) OrgID() int64 {
	if s.baseline == nil {
		return domain.NoID
	}
	return s.baseline.OrgID
}

// IsNew reports whether the school is pending insertion.
func (s *CachedSchool) IsNew() bool {
	return s.isNew
}

// Changed reports whether the school has pending attribute changes.
func (s *CachedSchool) Changed() bool {
	return len(s.overlay) > 0
}

// ChangedAttributes returns a copy of the pending changes.
func (s *CachedSchool) ChangedAttributes() map[domain.Attribute]any {
	out := make(map[domain.Attribute]any, len(s.overlay))
	for a, v := range s.overlay {
		out[a] = v
	}
	return out
}

// District returns the school's district, which may itself be pending
// insertion. Nil when the school has no district yet.
func (s *CachedSchool) District() *CachedDistrict {
	return s.district
}

// SetDistrict points the school at a district, typically one created
// earlier in the same run.
func (s *CachedSchool) SetDistrict(d *CachedDistrict) {
	s.district = d
}

// DisplayName returns the effective school name for logs and prompts.
func (s *CachedSchool) DisplayName() string {
	if n, ok := s.Get(domain.Name).(string); ok {
		return n
	}
	return ""
}

// Snapshot returns the effective record: baseline plus overlay. The
// district id reflects the linked district when it has one assigned.
func (s *CachedSchool) Snapshot() *domain.SchoolRecord {
	var rec *domain.SchoolRecord
	if s.baseline != nil {
		rec = s.baseline.Copy()
	} else {
		rec = domain.NewSchoolRecord(domain.NoID)
	}
	for a, v := range s.overlay {
		rec.Set(a, v)
	}
	if s.district != nil {
		rec.DistrictID = s.district.ID()
	}
	return rec
}

// markFlushed folds the overlay into the baseline after a successful write.
func (s *CachedSchool) markFlushed(id int64) {
	if s.baseline == nil {
		s.baseline = domain.NewSchoolRecord(domain.NoID)
	}
	for a, v := range s.overlay {
		s.baseline.Set(a, v)
	}
	s.baseline.ID = id
	if s.district != nil {
		s.baseline.DistrictID = s.district.ID()
	}
	s.overlay = make(map[domain.Attribute]any)
	s.isNew = false
}

// valuesEqual compares attribute values, treating dates by calendar instant.
func valuesEqual(a, b any) bool {
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if aok && bok {
		return ta.Equal(tb)
	}
	return a == b
}
