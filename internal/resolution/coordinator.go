package resolution

import (
	"context"

	"github.com/schoolatlas/schoolatlas/internal/cache"
	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/matching"
)

// Coordinator runs the per-candidate state machine over the linker's
// output. It consults district-match corrections before ever involving the
// reviewer, so recurring pairings resolve silently.
type Coordinator struct {
	linker      *matching.Linker
	corrections *corrections.Store
	reviewer    Reviewer
	log         *logger.Logger
	maxRows     int
}

// NewCoordinator creates a coordinator. maxRows caps the comparison rows
// shown per review prompt.
func NewCoordinator(linker *matching.Linker, store *corrections.Store, reviewer Reviewer, log *logger.Logger, maxRows int) *Coordinator {
	return &Coordinator{
		linker:      linker,
		corrections: store,
		reviewer:    reviewer,
		log:         log,
		maxRows:     maxRows,
	}
}

// Resolve decides where the candidate lands. Districts are visited in
// ranked order; each is first tried against the loaded district-match
// corrections and only then escalated to the reviewer. Ignoring every
// district ends at NewDistrict. Reviewer cancellation propagates as an
// aborted error.
func (c *Coordinator) Resolve(ctx context.Context, candidate *domain.SchoolRecord, org *domain.Organization, schools []*cache.CachedSchool) (Resolution, error) {
	link := c.linker.Link(candidate, org, schools)

	if link.Duplicate != nil {
		c.log.Debug("candidate is a duplicate",
			"candidate", candidate.Name(), "existing", link.Duplicate.School.DisplayName())
		return Duplicate(link.Duplicate.School), nil
	}

	if len(link.Districts) == 0 {
		return NewDistrict(), nil
	}

	for i, dm := range link.Districts {
		if corr := c.matchCorrection(candidate, dm.District); corr != nil {
			c.applyOverrides(corr, dm.District)
			c.log.Info("district match resolved by correction",
				"candidate", candidate.Name(), "district", dm.District.Name())
			return AddToDistrict(dm.District), nil
		}

		decision, err := c.reviewer.Review(ctx, ComparisonView{
			Candidate: candidate,
			Org:       org,
			District:  dm.District,
			Members:   dm.Schools,
			Rank:      i + 1,
			Total:     len(link.Districts),
			MaxRows:   c.maxRows,
		})
		if err != nil {
			if errors.Is(err, errors.ErrAborted) || errors.Is(err, context.Canceled) {
				return Resolution{}, errors.Aborted("review cancelled").WithCause(err)
			}
			return Resolution{}, errors.Wrap(err, "reviewing candidate")
		}

		c.log.Debug("reviewer decision",
			"candidate", candidate.Name(), "district", dm.District.Name(), "choice", decision.Choice.String())

		switch decision.Choice {
		case ChoiceIgnore:
			continue
		case ChoiceAddToDistrict:
			return AddToDistrict(dm.District), nil
		case ChoiceOmit:
			return Omit(), nil
		case ChoiceOverwrite, ChoiceAppend:
			member, err := selectMember(decision, dm)
			if err != nil {
				return Resolution{}, err
			}
			if decision.Choice == ChoiceOverwrite {
				return Overwrite(member.School), nil
			}
			return Append(member.School), nil
		default:
			return Resolution{}, errors.Invariantf("reviewer returned unknown choice %d", decision.Choice)
		}
	}

	// Every ranked district was ignored.
	return NewDistrict(), nil
}

// matchCorrection returns the first loaded district-match correction whose
// rules all pass for the pair, or nil.
func (c *Coordinator) matchCorrection(candidate *domain.SchoolRecord, district *cache.CachedDistrict) *corrections.DistrictMatchCorrection {
	snapshot := district.Snapshot()
	for _, raw := range c.corrections.ByTag(corrections.TagDistrictMatch) {
		corr, ok := raw.(*corrections.DistrictMatchCorrection)
		if !ok {
			continue
		}
		if corr.MatchesDistrict(candidate, snapshot) {
			return corr
		}
	}
	return nil
}

// applyOverrides writes the correction's name/URL substitutions onto the
// matched district.
func (c *Coordinator) applyOverrides(corr *corrections.DistrictMatchCorrection, district *cache.CachedDistrict) {
	snapshot := district.Snapshot()
	district.SetName(corr.Name(snapshot))
	district.SetWebsiteURL(corr.URL(snapshot))
}

// selectMember resolves which member school an Overwrite or Append targets.
// With one member the choice is implicit; with several the reviewer must
// have named one belonging to the district.
func selectMember(decision Decision, dm *matching.DistrictMatch) (*matching.SchoolMatch, error) {
	if len(dm.Schools) == 1 {
		return dm.Schools[0], nil
	}
	if decision.Member == nil {
		return nil, errors.Invariantf("%s with %d members requires a selection", decision.Choice, len(dm.Schools))
	}
	for _, m := range dm.Schools {
		if m == decision.Member {
			return m, nil
		}
	}
	return nil, errors.Invariant("reviewer selected a school outside the district")
}
