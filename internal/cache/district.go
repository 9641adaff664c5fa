package cache

import (
	"github.com/schoolatlas/schoolatlas/internal/domain"
)

// CachedDistrict is a district plus its pending, unflushed changes. New
// districts have no database id until the cache is flushed.
type CachedDistrict struct {
	isNew    bool
	baseline domain.District

	nameOverride *string
	urlOverride  *string
}

// NewDistrict creates a district that does not exist in the store yet.
func NewDistrict(name, websiteURL string) *CachedDistrict {
	return &CachedDistrict{
		isNew:    true,
		baseline: domain.District{ID: domain.NoID, Name: name, WebsiteURL: websiteURL},
	}
}

// WrapDistrict wraps a district loaded from the store.
func WrapDistrict(d domain.District) *CachedDistrict {
	return &CachedDistrict{baseline: d}
}

// ID returns the district's database id, or domain.NoID while the district
// is still pending insertion.
func (d *CachedDistrict) ID() int64 {
	return d.baseline.ID
}

// IsNew reports whether the district is pending insertion.
func (d *CachedDistrict) IsNew() bool {
	return d.isNew
}

// Name returns the effective name, including any pending override.
func (d *CachedDistrict) Name() string {
	if d.nameOverride != nil {
		return *d.nameOverride
	}
	return d.baseline.Name
}

// WebsiteURL returns the effective website URL, including any pending override.
func (d *CachedDistrict) WebsiteURL() string {
	if d.urlOverride != nil {
		return *d.urlOverride
	}
	return d.baseline.WebsiteURL
}

// SetName records a pending name change. Setting the baseline value clears
// the override.
func (d *CachedDistrict) SetName(name string) {
	if name == d.baseline.Name {
		d.nameOverride = nil
		return
	}
	d.nameOverride = &name
}

// SetWebsiteURL records a pending website URL change.
func (d *CachedDistrict) SetWebsiteURL(url string) {
	if url == d.baseline.WebsiteURL {
		d.urlOverride = nil
		return
	}
	d.urlOverride = &url
}

// Changed reports whether the district has pending changes to persist.
func (d *CachedDistrict) Changed() bool {
	return d.nameOverride != nil || d.urlOverride != nil
}

// Snapshot returns the effective district value.
func (d *CachedDistrict) Snapshot() domain.District {
	return domain.District{
		ID:         d.baseline.ID,
		Name:       d.Name(),
		WebsiteURL: d.WebsiteURL(),
	}
}

// markFlushed assigns the id issued by the store and folds overrides into
// the baseline.
func (d *CachedDistrict) markFlushed(id int64) {
	d.baseline = domain.District{ID: id, Name: d.Name(), WebsiteURL: d.WebsiteURL()}
	d.isNew = false
	d.nameOverride = nil
	d.urlOverride = nil
}
