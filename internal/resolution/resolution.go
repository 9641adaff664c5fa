// Package resolution decides where each candidate record lands: duplicate,
// new district, member of an existing district, or merged into an existing
// school. Automatic corrections resolve what they can; everything else goes
// through the Reviewer port.
package resolution

import (
	"fmt"

	"github.com/schoolatlas/schoolatlas/internal/cache"
)

// Kind enumerates the terminal states of the resolution state machine.
type Kind int

const (
	// KindNewDistrict creates a district for the candidate.
	KindNewDistrict Kind = iota
	// KindOmit drops the candidate entirely.
	KindOmit
	// KindDuplicate means an existing school already covers the candidate.
	KindDuplicate
	// KindAddToDistrict inserts the candidate into an existing district.
	KindAddToDistrict
	// KindAppend fills the existing school's empty attributes from the
	// candidate; no new school is created.
	KindAppend
	// KindOverwrite replaces the existing school's attributes with the
	// candidate's non-null values, exclusion bookkeeping excepted.
	KindOverwrite
)

func (k Kind) String() string {
	switch k {
	case KindNewDistrict:
		return "new_district"
	case KindOmit:
		return "omit"
	case KindDuplicate:
		return "duplicate"
	case KindAddToDistrict:
		return "add_to_district"
	case KindAppend:
		return "append"
	case KindOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Resolution is a terminal state plus its payload. Constructors enforce
// that payload-carrying kinds actually carry one.
type Resolution struct {
	kind     Kind
	existing *cache.CachedSchool
	district *cache.CachedDistrict
}

// Kind returns the terminal state.
func (r Resolution) Kind() Kind { return r.kind }

// Existing returns the target school for Duplicate, Append, and Overwrite.
func (r Resolution) Existing() *cache.CachedSchool { return r.existing }

// District returns the target district for AddToDistrict.
func (r Resolution) District() *cache.CachedDistrict { return r.district }

// NewDistrict resolves to creating a fresh district.
func NewDistrict() Resolution {
	return Resolution{kind: KindNewDistrict}
}

// Omit resolves to dropping the candidate.
func Omit() Resolution {
	return Resolution{kind: KindOmit}
}

// Duplicate resolves to an already-covered candidate.
func Duplicate(existing *cache.CachedSchool) Resolution {
	if existing == nil {
		panic("resolution: Duplicate requires an existing school")
	}
	return Resolution{kind: KindDuplicate, existing: existing}
}

// AddToDistrict resolves to membership in an existing district.
func AddToDistrict(district *cache.CachedDistrict) Resolution {
	if district == nil {
		panic("resolution: AddToDistrict requires a district")
	}
	return Resolution{kind: KindAddToDistrict, district: district}
}

// Append resolves to filling gaps in an existing school.
func Append(existing *cache.CachedSchool) Resolution {
	if existing == nil {
		panic("resolution: Append requires an existing school")
	}
	return Resolution{kind: KindAppend, existing: existing}
}

// Overwrite resolves to replacing an existing school's values.
func Overwrite(existing *cache.CachedSchool) Resolution {
	if existing == nil {
		panic("resolution: Overwrite requires an existing school")
	}
	return Resolution{kind: KindOverwrite, existing: existing}
}
