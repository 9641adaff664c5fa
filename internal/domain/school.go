package domain

import "strings"

// NoID marks a record that has not been assigned a database id yet.
const NoID int64 = -1

// SchoolRecord is one school as observed from a source organization or
// loaded from the database. Values is keyed by Attribute; iterate it in
// attribute declaration order.
type SchoolRecord struct {
	ID         int64
	DistrictID int64
	OrgID      int64
	Values     map[Attribute]any
}

// NewSchoolRecord creates an unsaved record with attribute defaults applied.
func NewSchoolRecord(orgID int64) *SchoolRecord {
	values := make(map[Attribute]any, attributeCount)
	for _, a := range Attributes() {
		if d := a.Meta().Default; d != nil {
			values[a] = d
		}
	}
	return &SchoolRecord{
		ID:         NoID,
		DistrictID: NoID,
		OrgID:      orgID,
		Values:     values,
	}
}

// Value returns the record's value for the attribute, or nil when unset.
func (r *SchoolRecord) Value(a Attribute) any {
	return r.Values[a]
}

// Set stores a value for the attribute.
func (r *SchoolRecord) Set(a Attribute, v any) {
	if r.Values == nil {
		r.Values = make(map[Attribute]any, attributeCount)
	}
	r.Values[a] = v
}

// Name returns the record's name attribute as a string, or "" when unset.
func (r *SchoolRecord) Name() string {
	if s, ok := r.Values[Name].(string); ok {
		return s
	}
	return ""
}

// Excluded reports whether the record carries the exclusion flag.
func (r *SchoolRecord) Excluded() bool {
	b, _ := r.Values[IsExcluded].(bool)
	return b
}

// Copy returns a deep copy of the record.
func (r *SchoolRecord) Copy() *SchoolRecord {
	values := make(map[Attribute]any, len(r.Values))
	for a, v := range r.Values {
		values[a] = v
	}
	return &SchoolRecord{
		ID:         r.ID,
		DistrictID: r.DistrictID,
		OrgID:      r.OrgID,
		Values:     values,
	}
}

// IsNullValue reports whether a raw attribute value carries no information:
// nil, a blank string, or the literal string "null". The missing-name
// sentinel is handled by the comparator, which knows the configured value.
func IsNullValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		t := strings.TrimSpace(s)
		return t == "" || strings.EqualFold(t, "null")
	}
	return false
}
