package domain

// MatchLevel expresses how strongly two attribute values agree.
// Levels are ordered: Exact > Indicator > Related > None.
type MatchLevel int

const (
	// LevelNone means the values do not meaningfully agree.
	LevelNone MatchLevel = iota
	// LevelRelated means the values share a weak signal, such as two URLs
	// on the same host.
	LevelRelated
	// LevelIndicator means the values agree strongly enough to suggest the
	// records describe the same school.
	LevelIndicator
	// LevelExact means the values are equal.
	LevelExact
)

// AtLeast reports whether l is at least as strong as min.
func (l MatchLevel) AtLeast(min MatchLevel) bool {
	return l >= min
}

func (l MatchLevel) String() string {
	switch l {
	case LevelExact:
		return "exact"
	case LevelIndicator:
		return "indicator"
	case LevelRelated:
		return "related"
	default:
		return "none"
	}
}

// ParseMatchLevel converts a stored level name back to a MatchLevel.
// Unknown names map to LevelNone.
func ParseMatchLevel(s string) MatchLevel {
	switch s {
	case "exact":
		return LevelExact
	case "indicator":
		return LevelIndicator
	case "related":
		return LevelRelated
	default:
		return LevelNone
	}
}
