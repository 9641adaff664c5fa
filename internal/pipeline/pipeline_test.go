package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/matching"
	"github.com/schoolatlas/schoolatlas/internal/resolution"
	"github.com/schoolatlas/schoolatlas/internal/scraper"
)

// memStorage is an in-memory Storage recording every write.
type memStorage struct {
	districts []domain.District
	schools   []*domain.SchoolRecord
	orgs      []domain.Organization
	relations [][2]int64
	updates   []map[domain.Attribute]any
	nextID    int64
	calls     []string
}

func (m *memStorage) LoadDistricts(context.Context) ([]domain.District, error) {
	return m.districts, nil
}

func (m *memStorage) LoadSchools(context.Context) ([]*domain.SchoolRecord, error) {
	return m.schools, nil
}

func (m *memStorage) SaveOrganizations(_ context.Context, orgs []domain.Organization) error {
	m.orgs = orgs
	return nil
}

func (m *memStorage) InsertDistrict(_ context.Context, d *domain.District) (int64, error) {
	m.nextID++
	m.calls = append(m.calls, fmt.Sprintf("insert district %q", d.Name))
	return m.nextID, nil
}

func (m *memStorage) UpdateDistrict(_ context.Context, d *domain.District) error {
	m.calls = append(m.calls, fmt.Sprintf("update district %d", d.ID))
	return nil
}

func (m *memStorage) InsertSchool(_ context.Context, r *domain.SchoolRecord) (int64, error) {
	m.nextID++
	m.calls = append(m.calls, fmt.Sprintf("insert school %v", r.Value(domain.Name)))
	return m.nextID, nil
}

func (m *memStorage) UpdateSchool(_ context.Context, id int64, changed map[domain.Attribute]any, districtID int64) error {
	m.updates = append(m.updates, changed)
	m.calls = append(m.calls, fmt.Sprintf("update school %d", id))
	return nil
}

func (m *memStorage) InsertDistrictOrganization(_ context.Context, districtID, orgID int64) error {
	m.relations = append(m.relations, [2]int64{districtID, orgID})
	m.calls = append(m.calls, fmt.Sprintf("insert relation %d-%d", districtID, orgID))
	return nil
}

// stubFetcher returns canned results without touching the network.
type stubFetcher struct {
	results []scraper.Result
}

func (f *stubFetcher) Run(context.Context, []domain.Organization) ([]scraper.Result, error) {
	return f.results, nil
}

type stubRepo struct{ rows []corrections.Row }

func (s *stubRepo) ListCorrections(context.Context) ([]corrections.Row, error) { return s.rows, nil }
func (s *stubRepo) InsertCorrection(_ context.Context, row *corrections.Row) (int64, error) {
	s.rows = append(s.rows, *row)
	return int64(len(s.rows)), nil
}

type scriptedReviewer struct {
	decisions []resolution.Decision
	err       error
	calls     int
}

func (r *scriptedReviewer) Review(context.Context, resolution.ComparisonView) (resolution.Decision, error) {
	r.calls++
	if r.err != nil {
		return resolution.Decision{}, r.err
	}
	if len(r.decisions) == 0 {
		return resolution.Decision{}, errors.Invariant("scripted reviewer exhausted")
	}
	d := r.decisions[0]
	r.decisions = r.decisions[1:]
	return d, nil
}

type fixture struct {
	orchestrator *Orchestrator
	storage      *memStorage
	reviewer     *scriptedReviewer
	corrections  *corrections.Store
	org          domain.Organization
}

func newFixture(t *testing.T, storage *memStorage, fetcher Fetcher, decisions ...resolution.Decision) *fixture {
	t.Helper()
	log := logger.New(logger.Config{Writer: io.Discard, Format: "json", Level: slog.LevelError})
	cmp := matching.NewComparator("MISSING_NAME")
	store := corrections.NewStore(&stubRepo{}, log)
	reviewer := &scriptedReviewer{decisions: decisions}
	coordinator := resolution.NewCoordinator(matching.NewLinker(cmp, log), store, reviewer, log, 25)

	storage.nextID = 1000
	return &fixture{
		orchestrator: New(storage, fetcher, store, coordinator, cmp, nil, log),
		storage:      storage,
		reviewer:     reviewer,
		corrections:  store,
		org: domain.Organization{
			ID:                       1,
			Name:                     "ACCS",
			Abbreviation:             "ACCS",
			MatchIndicatorAttributes: []domain.Attribute{domain.Name, domain.WebsiteURL},
		},
	}
}

func record(orgID int64, name, website string) *domain.SchoolRecord {
	r := domain.NewSchoolRecord(orgID)
	r.Set(domain.Name, name)
	if website != "" {
		r.Set(domain.WebsiteURL, website)
	}
	return r
}

func existingSchool(id, districtID int64, name, website string) *domain.SchoolRecord {
	r := record(1, name, website)
	r.ID = id
	r.DistrictID = districtID
	return r
}

func TestRunDuplicateAddsRelationOnly(t *testing.T) {
	storage := &memStorage{
		districts: []domain.District{{ID: 5, Name: "Grace", WebsiteURL: "http://grace.org"}},
		schools:   []*domain.SchoolRecord{existingSchool(9, 5, "Grace Academy", "http://grace.org")},
	}
	// Same school, URL spelled differently.
	fetcher := &stubFetcher{results: []scraper.Result{{
		Org:     domain.Organization{ID: 1, Abbreviation: "ACCS", MatchIndicatorAttributes: []domain.Attribute{domain.Name, domain.WebsiteURL}},
		Schools: []*domain.SchoolRecord{record(1, "Grace Academy", "https://www.grace.org/")},
	}}}

	f := newFixture(t, storage, fetcher)
	stats, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 0, f.reviewer.calls, "duplicates never reach the reviewer")
	assert.Equal(t, [][2]int64{{5, 1}}, storage.relations)
	for _, call := range storage.calls {
		assert.NotContains(t, call, "insert school", "no new school for a duplicate")
	}
}

func TestRunOmitCorrectionPreFilter(t *testing.T) {
	storage := &memStorage{}
	fetcher := &stubFetcher{results: []scraper.Result{{
		Org:     domain.Organization{ID: 1, Abbreviation: "ACCS"},
		Schools: []*domain.SchoolRecord{record(1, "Closed School", "http://closed.org")},
	}}}

	f := newFixture(t, storage, fetcher)
	require.NoError(t, f.corrections.Load(context.Background()))
	require.NoError(t, f.corrections.Add(context.Background(), &corrections.SchoolCorrection{
		Matches: []corrections.AttributeMatch{
			{Attribute: domain.Name, Value: "Closed School", MinLevel: domain.LevelIndicator},
		},
		Action: corrections.OmitAction{},
		Notes:  "shut down in 2024",
	}))

	stats, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Omitted)
	assert.Equal(t, 0, f.reviewer.calls, "omitted candidates never reach linkage")
	assert.Empty(t, storage.calls)
}

func TestRunNewDistrict(t *testing.T) {
	storage := &memStorage{}
	fetcher := &stubFetcher{results: []scraper.Result{{
		Org:     domain.Organization{ID: 1, Abbreviation: "ACCS"},
		Schools: []*domain.SchoolRecord{record(1, "St. Brendan Academy", "http://stbrendan.edu")},
	}}}

	f := newFixture(t, storage, fetcher)
	stats, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewDistricts)
	require.Len(t, storage.relations, 1)
	assert.Equal(t, int64(1), storage.relations[0][1])
	assert.Contains(t, storage.calls, `insert district "St. Brendan Academy"`)
	assert.Contains(t, storage.calls, "insert school St. Brendan Academy")
}

func TestRunAppendFillsMissingValues(t *testing.T) {
	storage := &memStorage{
		districts: []domain.District{{ID: 5, Name: "Covenant"}},
		schools:   []*domain.SchoolRecord{existingSchool(9, 5, "Covenant School", "http://covenant.org")},
	}
	candidate := record(1, "Covenant Academy", "http://covenant.org")
	candidate.Set(domain.Phone, "(208) 555-0100")
	fetcher := &stubFetcher{results: []scraper.Result{{
		Org:     domain.Organization{ID: 1, Abbreviation: "ACCS", MatchIndicatorAttributes: []domain.Attribute{domain.Name, domain.WebsiteURL}},
		Schools: []*domain.SchoolRecord{candidate},
	}}}

	f := newFixture(t, storage, fetcher, resolution.Decision{Choice: resolution.ChoiceAppend})
	stats, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Appended)
	require.Len(t, storage.updates, 1)
	assert.Equal(t, "(208) 555-0100", storage.updates[0][domain.Phone])
	assert.NotContains(t, storage.updates[0], domain.Name, "append must not replace existing values")
}

func TestRunReviewerAbortSkipsFlush(t *testing.T) {
	storage := &memStorage{
		districts: []domain.District{{ID: 5, Name: "Covenant"}},
		schools:   []*domain.SchoolRecord{existingSchool(9, 5, "Covenant Upper", "http://covenant.org")},
	}
	fetcher := &stubFetcher{results: []scraper.Result{{
		Org:     domain.Organization{ID: 1, Abbreviation: "ACCS", MatchIndicatorAttributes: []domain.Attribute{domain.Name, domain.WebsiteURL}},
		Schools: []*domain.SchoolRecord{record(1, "Covenant Lower", "http://covenant.org")},
	}}}

	f := newFixture(t, storage, fetcher)
	f.reviewer.err = errors.Aborted("operator quit")

	_, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAborted))
	assert.Empty(t, storage.calls, "nothing may be persisted after an abort")
}

func TestRunFetchFailurePolicy(t *testing.T) {
	failing := []scraper.Result{{
		Org: domain.Organization{ID: 1, Abbreviation: "ACCS"},
		Err: errors.Internal("connection refused"),
	}}

	t.Run("abort policy stops the run", func(t *testing.T) {
		storage := &memStorage{}
		f := newFixture(t, storage, &stubFetcher{results: failing})
		f.orchestrator.onFailure = func([]scraper.Result) bool { return false }

		_, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrAborted))
	})

	t.Run("default policy continues", func(t *testing.T) {
		storage := &memStorage{}
		f := newFixture(t, storage, &stubFetcher{results: failing})

		stats, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Candidates)
	})
}

func TestRunNormalizesCandidates(t *testing.T) {
	storage := &memStorage{}
	candidate := record(1, "  Trinity Classical School ", "trinityclassical.org")
	candidate.Set(domain.HeadmasterName, "JOHN A. SMITH")
	fetcher := &stubFetcher{results: []scraper.Result{{
		Org:     domain.Organization{ID: 1, Abbreviation: "ACCS"},
		Schools: []*domain.SchoolRecord{candidate},
	}}}

	f := newFixture(t, storage, fetcher)
	_, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})
	require.NoError(t, err)

	assert.Equal(t, "Trinity Classical School", candidate.Value(domain.Name))
	assert.Equal(t, "John A. Smith", candidate.Value(domain.HeadmasterName))
	assert.Equal(t, "http://trinityclassical.org", candidate.Value(domain.WebsiteURL))
}

func TestRunSubstitutesMissingName(t *testing.T) {
	storage := &memStorage{}
	candidate := domain.NewSchoolRecord(1)
	candidate.Set(domain.WebsiteURL, "http://nameless.org")
	fetcher := &stubFetcher{results: []scraper.Result{{
		Org:     domain.Organization{ID: 1, Abbreviation: "ACCS"},
		Schools: []*domain.SchoolRecord{candidate},
	}}}

	f := newFixture(t, storage, fetcher)
	_, err := f.orchestrator.Run(context.Background(), []domain.Organization{f.org})
	require.NoError(t, err)

	assert.Equal(t, "MISSING_NAME", candidate.Value(domain.Name))
	assert.Equal(t, true, candidate.Value(domain.IsExcluded))
	assert.Equal(t, "school has no name", candidate.Value(domain.ExcludedReason))
}
