// Package matching implements attribute comparison and record linkage:
// deciding how strongly a scraped candidate agrees with each cached school
// and which districts are plausible homes for it.
package matching

import (
	"strings"
	"time"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/normalize"
)

// Comparator grades agreement between two values of one attribute.
type Comparator struct {
	// MissingName is the sentinel substituted for absent school names
	// during normalization. It compares as effectively null.
	MissingName string
}

// NewComparator creates a comparator with the configured missing-name
// sentinel.
func NewComparator(missingName string) *Comparator {
	return &Comparator{MissingName: missingName}
}

// EffectivelyNull reports whether a value carries no information for the
// attribute: nil, blank, the literal "null", or (for the name attribute)
// the missing-name sentinel.
func (c *Comparator) EffectivelyNull(a domain.Attribute, v any) bool {
	if domain.IsNullValue(v) {
		return true
	}
	if a == domain.Name && c.MissingName != "" {
		if s, ok := v.(string); ok && s == c.MissingName {
			return true
		}
	}
	return false
}

// Compare grades the agreement between a candidate value and an existing
// value. Checks run in order and short-circuit: identity, nullness,
// type-specific exactness, type-specific indicators, weak relatedness.
// Both sides absent counts as consistent but unconfirmed, which is why it
// outranks a one-sided null.
func (c *Comparator) Compare(a domain.Attribute, candidate, existing any) domain.MatchLevel {
	if identical(candidate, existing) {
		return domain.LevelExact
	}

	candNull := c.EffectivelyNull(a, candidate)
	existNull := c.EffectivelyNull(a, existing)
	if candNull && existNull {
		return domain.LevelIndicator
	}
	if candNull || existNull {
		return domain.LevelNone
	}

	switch a.Meta().Kind {
	case domain.KindDate:
		return compareDates(candidate, existing)
	case domain.KindFloat:
		return compareFloats(candidate, existing)
	case domain.KindURL:
		return compareURLs(a, candidate, existing)
	case domain.KindString:
		return compareStrings(candidate, existing)
	default:
		// Ints and bools only match by identity, handled above.
		return domain.LevelNone
	}
}

func identical(a, b any) bool {
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if aok && bok {
		return ta.Equal(tb)
	}
	if aok != bok {
		return false
	}
	return a == b
}

// compareDates grades by calendar day, ignoring time of day and zone.
func compareDates(candidate, existing any) domain.MatchLevel {
	ta, aok := candidate.(time.Time)
	tb, bok := existing.(time.Time)
	if !aok || !bok {
		return domain.LevelNone
	}
	ya, ma, da := ta.Date()
	yb, mb, db := tb.Date()
	if ya == yb && ma == mb && da == db {
		return domain.LevelExact
	}
	return domain.LevelNone
}

const floatTolerance = 1e-5

func compareFloats(candidate, existing any) domain.MatchLevel {
	fa, aok := candidate.(float64)
	fb, bok := existing.(float64)
	if !aok || !bok {
		return domain.LevelNone
	}
	diff := fa - fb
	if diff < 0 {
		diff = -diff
	}
	if diff <= floatTolerance {
		return domain.LevelExact
	}
	return domain.LevelNone
}

// compareURLs grades page agreement. Two URLs naming the same page differ
// only in scheme, a www. prefix, host casing, or a sole trailing slash;
// that earns an indicator. For the website attribute a shared host alone is
// still weak evidence, since campuses of one district share a site.
func compareURLs(a domain.Attribute, candidate, existing any) domain.MatchLevel {
	sa, aok := candidate.(string)
	sb, bok := existing.(string)
	if !aok || !bok {
		return domain.LevelNone
	}
	if normalize.URLStringsEqual(sa, sb) {
		return domain.LevelIndicator
	}
	if a == domain.WebsiteURL && normalize.URLStringsHostEqual(sa, sb) {
		return domain.LevelRelated
	}
	return domain.LevelNone
}

func compareStrings(candidate, existing any) domain.MatchLevel {
	sa, aok := candidate.(string)
	sb, bok := existing.(string)
	if !aok || !bok {
		return domain.LevelNone
	}
	sa, sb = strings.TrimSpace(sa), strings.TrimSpace(sb)
	if sa == sb {
		return domain.LevelExact
	}
	if normalize.FoldEqual(sa, sb) {
		return domain.LevelIndicator
	}
	return domain.LevelNone
}
