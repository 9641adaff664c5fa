package resolution

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolatlas/schoolatlas/internal/cache"
	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/matching"
)

// scriptedReviewer returns canned decisions in order and records the views
// it was shown.
type scriptedReviewer struct {
	decisions []Decision
	err       error
	views     []ComparisonView
}

func (r *scriptedReviewer) Review(_ context.Context, v ComparisonView) (Decision, error) {
	r.views = append(r.views, v)
	if r.err != nil {
		return Decision{}, r.err
	}
	if len(r.decisions) == 0 {
		return Decision{}, errors.Invariant("scripted reviewer exhausted")
	}
	d := r.decisions[0]
	r.decisions = r.decisions[1:]
	return d, nil
}

type stubRepo struct{ rows []corrections.Row }

func (s *stubRepo) ListCorrections(context.Context) ([]corrections.Row, error) { return s.rows, nil }
func (s *stubRepo) InsertCorrection(_ context.Context, row *corrections.Row) (int64, error) {
	s.rows = append(s.rows, *row)
	return int64(len(s.rows)), nil
}

type fixture struct {
	coordinator *Coordinator
	cache       *cache.Cache
	corrections *corrections.Store
	reviewer    *scriptedReviewer
	org         *domain.Organization
}

func newFixture(t *testing.T, decisions ...Decision) *fixture {
	t.Helper()
	log := logger.New(logger.Config{Writer: io.Discard, Format: "json", Level: slog.LevelError})
	cmp := matching.NewComparator("MISSING_NAME")
	store := corrections.NewStore(&stubRepo{}, log)
	require.NoError(t, store.Load(context.Background()))
	reviewer := &scriptedReviewer{decisions: decisions}
	return &fixture{
		coordinator: NewCoordinator(matching.NewLinker(cmp, log), store, reviewer, log, 25),
		cache:       cache.New(log),
		corrections: store,
		reviewer:    reviewer,
		org: &domain.Organization{
			ID:                       1,
			Name:                     "ACCS",
			MatchIndicatorAttributes: []domain.Attribute{domain.Name, domain.WebsiteURL},
		},
	}
}

func (f *fixture) addSchool(name, website string, district *cache.CachedDistrict) *cache.CachedSchool {
	r := domain.NewSchoolRecord(1)
	r.ID = int64(len(f.cache.Schools()) + 1)
	r.Set(domain.Name, name)
	if website != "" {
		r.Set(domain.WebsiteURL, website)
	}
	return f.cache.WrapSchool(r, district)
}

func candidate(name, website string) *domain.SchoolRecord {
	r := domain.NewSchoolRecord(1)
	r.Set(domain.Name, name)
	if website != "" {
		r.Set(domain.WebsiteURL, website)
	}
	return r
}

func TestResolveDuplicate(t *testing.T) {
	f := newFixture(t)
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Grace"})
	existing := f.addSchool("Grace Academy", "http://grace.org", d)

	res, err := f.coordinator.Resolve(context.Background(),
		candidate("Grace Academy", "https://www.grace.org/"), f.org,
		[]*cache.CachedSchool{existing})

	require.NoError(t, err)
	assert.Equal(t, KindDuplicate, res.Kind())
	assert.Same(t, existing, res.Existing())
	assert.Empty(t, f.reviewer.views, "duplicates never reach the reviewer")
}

func TestResolveNewDistrictWhenNothingMatches(t *testing.T) {
	f := newFixture(t)
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})
	existing := f.addSchool("Covenant School", "http://covenant.org", d)

	res, err := f.coordinator.Resolve(context.Background(),
		candidate("St. Brendan Academy", "http://stbrendan.edu"), f.org,
		[]*cache.CachedSchool{existing})

	require.NoError(t, err)
	assert.Equal(t, KindNewDistrict, res.Kind())
	assert.Empty(t, f.reviewer.views)
}

func TestResolveAutoDistrictMatchCorrection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.corrections.Add(context.Background(), &corrections.DistrictMatchCorrection{
		Rules:      []corrections.Rule{{Type: corrections.RuleWebsiteDomainMatches, Value: "stmarks.edu"}},
		NewName:    "St. Mark's Classical Schools",
		UseNewName: true,
	}))

	d := cache.WrapDistrict(domain.District{ID: 1, Name: "St. Mark's", WebsiteURL: "http://stmarks.edu"})
	existing := f.addSchool("St. Mark's Lower", "http://stmarks.edu", d)

	res, err := f.coordinator.Resolve(context.Background(),
		candidate("St. Mark's Upper", "http://www.stmarks.edu"), f.org,
		[]*cache.CachedSchool{existing})

	require.NoError(t, err)
	assert.Equal(t, KindAddToDistrict, res.Kind())
	assert.Same(t, d, res.District())
	assert.Empty(t, f.reviewer.views, "correction must preempt the reviewer")
	assert.Equal(t, "St. Mark's Classical Schools", d.Name(), "name override applied")
	assert.Equal(t, "http://stmarks.edu", d.WebsiteURL(), "url untouched without use_new_url")
}

func TestResolveIgnoreOnlyDistrictMeansNewDistrict(t *testing.T) {
	f := newFixture(t, Decision{Choice: ChoiceIgnore})
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})
	existing := f.addSchool("Covenant Upper", "http://covenant.org", d)

	res, err := f.coordinator.Resolve(context.Background(),
		candidate("Covenant Lower", "http://covenant.org"), f.org,
		[]*cache.CachedSchool{existing})

	require.NoError(t, err)
	assert.Equal(t, KindNewDistrict, res.Kind())
	require.Len(t, f.reviewer.views, 1)
	assert.Equal(t, 1, f.reviewer.views[0].Rank)
	assert.Equal(t, 1, f.reviewer.views[0].Total)
}

func TestResolveAddToDistrict(t *testing.T) {
	f := newFixture(t, Decision{Choice: ChoiceAddToDistrict})
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})
	existing := f.addSchool("Covenant Upper", "http://covenant.org", d)

	res, err := f.coordinator.Resolve(context.Background(),
		candidate("Covenant Lower", "http://covenant.org"), f.org,
		[]*cache.CachedSchool{existing})

	require.NoError(t, err)
	assert.Equal(t, KindAddToDistrict, res.Kind())
	assert.Same(t, d, res.District())
}

func TestResolveOmitSkipsRemainingDistricts(t *testing.T) {
	f := newFixture(t, Decision{Choice: ChoiceOmit})

	d1 := cache.WrapDistrict(domain.District{ID: 1, Name: "First"})
	d2 := cache.WrapDistrict(domain.District{ID: 2, Name: "Second"})
	s1 := f.addSchool("First School", "http://shared.org", d1)
	s2 := f.addSchool("Second School", "http://shared.org", d2)

	res, err := f.coordinator.Resolve(context.Background(),
		candidate("New School", "http://shared.org"), f.org,
		[]*cache.CachedSchool{s1, s2})

	require.NoError(t, err)
	assert.Equal(t, KindOmit, res.Kind())
	assert.Len(t, f.reviewer.views, 1, "omit must not visit the second district")
}

func TestResolveOverwriteSingleMemberImplicitSelection(t *testing.T) {
	f := newFixture(t, Decision{Choice: ChoiceOverwrite})
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})
	existing := f.addSchool("Covenant Upper", "http://covenant.org", d)

	res, err := f.coordinator.Resolve(context.Background(),
		candidate("Covenant School", "http://covenant.org"), f.org,
		[]*cache.CachedSchool{existing})

	require.NoError(t, err)
	assert.Equal(t, KindOverwrite, res.Kind())
	assert.Same(t, existing, res.Existing())
}

func TestResolveAppendWithMemberSelection(t *testing.T) {
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})

	// Without a selection and two member matches: invariant error.
	f := newFixture(t, Decision{Choice: ChoiceAppend})
	upper := f.addSchool("Covenant Upper", "http://covenant.org", d)
	lower := f.addSchool("Covenant Lower", "http://covenant.org", d)

	_, err := f.coordinator.Resolve(context.Background(),
		candidate("Covenant Grammar", "http://covenant.org"), f.org,
		[]*cache.CachedSchool{upper, lower})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvariant))

	// With the member picked from the rendered view.
	f2 := newFixture(t)
	f2.coordinator.reviewer = &memberSelectingReviewer{choice: ChoiceAppend, index: 1}
	upper2 := f2.addSchool("Covenant Upper", "http://covenant.org", d)
	lower2 := f2.addSchool("Covenant Lower", "http://covenant.org", d)

	res, err := f2.coordinator.Resolve(context.Background(),
		candidate("Covenant Grammar", "http://covenant.org"), f2.org,
		[]*cache.CachedSchool{upper2, lower2})
	require.NoError(t, err)
	assert.Equal(t, KindAppend, res.Kind())
	assert.Same(t, lower2, res.Existing())
}

// memberSelectingReviewer picks the member at index from the view.
type memberSelectingReviewer struct {
	choice Choice
	index  int
}

func (r *memberSelectingReviewer) Review(_ context.Context, v ComparisonView) (Decision, error) {
	return Decision{Choice: r.choice, Member: v.Members[r.index]}, nil
}

func TestResolveReviewerCancellation(t *testing.T) {
	f := newFixture(t)
	f.reviewer.err = errors.Aborted("user pressed esc")

	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})
	existing := f.addSchool("Covenant Upper", "http://covenant.org", d)

	_, err := f.coordinator.Resolve(context.Background(),
		candidate("Covenant Lower", "http://covenant.org"), f.org,
		[]*cache.CachedSchool{existing})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAborted))
}
