package matching

import (
	"sort"

	"github.com/schoolatlas/schoolatlas/internal/cache"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// SchoolMatch is the comparison of one candidate against one cached school.
type SchoolMatch struct {
	School *cache.CachedSchool
	Levels map[domain.Attribute]domain.MatchLevel
	// NonNullMatches counts attributes where both sides hold real values
	// that agree at least weakly. Used for district ranking.
	NonNullMatches int
}

// Level returns the match level recorded for the attribute.
func (m *SchoolMatch) Level(a domain.Attribute) domain.MatchLevel {
	return m.Levels[a]
}

// DistrictMatch groups the partial matches that share a district.
type DistrictMatch struct {
	District *cache.CachedDistrict
	Schools  []*SchoolMatch
	// NonNullMatches aggregates the member matches' counts.
	NonNullMatches int
}

// LinkResult is the outcome of linking one candidate against the cache.
// Duplicate set means the scan short-circuited on an existing record the
// candidate adds nothing to. Otherwise Districts holds the plausible homes,
// strongest evidence first; empty means the candidate looks new.
type LinkResult struct {
	Duplicate *SchoolMatch
	Districts []*DistrictMatch
}

// Linker links candidates against cached schools.
type Linker struct {
	cmp *Comparator
	log *logger.Logger
}

// NewLinker creates a linker.
func NewLinker(cmp *Comparator, log *logger.Logger) *Linker {
	return &Linker{cmp: cmp, log: log}
}

// Link compares the candidate against every cached school. The first exact
// duplicate terminates the scan. Partial matches, gated by the candidate's
// organization indicator attributes, are grouped by district (deduplicated
// in discovery order) and ranked by aggregate non-null match count. A
// cached school whose district cannot be resolved is logged and dropped,
// costing at most one candidate district.
func (l *Linker) Link(candidate *domain.SchoolRecord, org *domain.Organization, schools []*cache.CachedSchool) *LinkResult {
	result := &LinkResult{}
	byDistrict := make(map[*cache.CachedDistrict]*DistrictMatch)

	for _, school := range schools {
		match := l.compareAll(candidate, school)

		if l.isDuplicate(candidate, match) {
			result.Duplicate = match
			return result
		}

		if !l.isPartialMatch(candidate, org, match) {
			continue
		}

		district := school.District()
		if district == nil {
			l.log.Warn("partial match has no resolvable district, skipping",
				"candidate", candidate.Name(), "existing", school.DisplayName())
			continue
		}

		dm, ok := byDistrict[district]
		if !ok {
			dm = &DistrictMatch{District: district}
			byDistrict[district] = dm
			result.Districts = append(result.Districts, dm)
		}
		dm.Schools = append(dm.Schools, match)
		dm.NonNullMatches += match.NonNullMatches
	}

	// Stable: equal evidence keeps discovery order.
	sort.SliceStable(result.Districts, func(i, j int) bool {
		return result.Districts[i].NonNullMatches > result.Districts[j].NonNullMatches
	})

	return result
}

func (l *Linker) compareAll(candidate *domain.SchoolRecord, school *cache.CachedSchool) *SchoolMatch {
	match := &SchoolMatch{
		School: school,
		Levels: make(map[domain.Attribute]domain.MatchLevel, len(domain.Attributes())),
	}
	for _, a := range domain.Attributes() {
		cv, ev := candidate.Value(a), school.Get(a)
		level := l.cmp.Compare(a, cv, ev)
		match.Levels[a] = level
		// Exclusion bookkeeping attributes agree on almost every pair;
		// letting them score would skew district ranking by member count.
		if !a.Meta().Exclusion && level.AtLeast(domain.LevelRelated) &&
			!l.cmp.EffectivelyNull(a, cv) && !l.cmp.EffectivelyNull(a, ev) {
			match.NonNullMatches++
		}
	}
	return match
}

// isDuplicate reports whether the candidate adds nothing over the cached
// school. Every non-exclusion attribute must match exactly, where URL
// attributes naming the same page count as exact, and an attribute the
// candidate lacks but the existing school has makes the candidate a subset
// rather than a mismatch.
func (l *Linker) isDuplicate(candidate *domain.SchoolRecord, match *SchoolMatch) bool {
	for _, a := range domain.MatchingAttributes() {
		level := match.Levels[a]
		if level == domain.LevelExact {
			continue
		}
		if a.Meta().Kind == domain.KindURL && level.AtLeast(domain.LevelIndicator) {
			continue
		}
		if l.cmp.EffectivelyNull(a, candidate.Value(a)) &&
			!l.cmp.EffectivelyNull(a, match.School.Get(a)) {
			continue
		}
		return false
	}
	return true
}

// isPartialMatch applies the organization's indicator-attribute gate: at
// least one whitelisted attribute reaching indicator strength with a real
// value on the candidate side.
func (l *Linker) isPartialMatch(candidate *domain.SchoolRecord, org *domain.Organization, match *SchoolMatch) bool {
	for _, a := range org.MatchIndicatorAttributes {
		if l.cmp.EffectivelyNull(a, candidate.Value(a)) {
			continue
		}
		if match.Levels[a].AtLeast(domain.LevelIndicator) {
			return true
		}
	}
	return false
}
