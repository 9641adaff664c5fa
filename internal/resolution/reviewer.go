package resolution

import (
	"context"

	"github.com/schoolatlas/schoolatlas/internal/cache"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/matching"
)

// Choice is the closed set of answers a reviewer can give for one
// candidate-district pairing.
type Choice int

const (
	// ChoiceIgnore advances to the next ranked district.
	ChoiceIgnore Choice = iota
	// ChoiceAddToDistrict accepts the candidate as a new member school.
	ChoiceAddToDistrict
	// ChoiceOverwrite replaces a member school's values with the candidate's.
	ChoiceOverwrite
	// ChoiceAppend fills a member school's empty values from the candidate.
	ChoiceAppend
	// ChoiceOmit drops the candidate and skips the remaining districts.
	ChoiceOmit
)

func (c Choice) String() string {
	switch c {
	case ChoiceIgnore:
		return "ignore"
	case ChoiceAddToDistrict:
		return "add to district"
	case ChoiceOverwrite:
		return "overwrite"
	case ChoiceAppend:
		return "append"
	case ChoiceOmit:
		return "omit"
	default:
		return "unknown"
	}
}

// Decision is the reviewer's answer. Member names the target school for
// Overwrite and Append; it may be nil when the district has exactly one
// member match.
type Decision struct {
	Choice Choice
	Member *matching.SchoolMatch
}

// ComparisonView is everything the reviewer sees for one candidate-district
// pairing: the candidate's attributes, the district, and each member match
// with its per-attribute levels.
type ComparisonView struct {
	Candidate *domain.SchoolRecord
	Org       *domain.Organization
	District  *cache.CachedDistrict
	Members   []*matching.SchoolMatch
	// Rank and Total place this district among the ranked candidates,
	// e.g. "district 2 of 3".
	Rank  int
	Total int
	// MaxRows caps the attribute rows rendered at once.
	MaxRows int
}

// Reviewer is the human (or scripted) decision port. Review blocks until
// answered; cancellation must surface as an error wrapping errors.ErrAborted.
type Reviewer interface {
	Review(ctx context.Context, v ComparisonView) (Decision, error)
}
