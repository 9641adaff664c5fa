package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logger.New(logger.Config{Writer: io.Discard, Format: "json", Level: slog.LevelError})
	s, err := Open(filepath.Join(t.TempDir(), "atlas.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDistrictRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertDistrict(ctx, &domain.District{Name: "Covenant", WebsiteURL: "http://covenant.org"})
	if err != nil {
		t.Fatalf("insert district: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a generated id")
	}

	if err := s.UpdateDistrict(ctx, &domain.District{ID: id, Name: "Covenant Classical", WebsiteURL: "http://covenant.org"}); err != nil {
		t.Fatalf("update district: %v", err)
	}

	districts, err := s.LoadDistricts(ctx)
	if err != nil {
		t.Fatalf("load districts: %v", err)
	}
	if len(districts) != 1 {
		t.Fatalf("expected 1 district, got %d", len(districts))
	}
	if districts[0].Name != "Covenant Classical" {
		t.Errorf("name = %q, want %q", districts[0].Name, "Covenant Classical")
	}
}

func TestSchoolRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveOrganizations(ctx, []domain.Organization{{ID: 1, Name: "ACCS", Abbreviation: "ACCS"}}); err != nil {
		t.Fatalf("save organizations: %v", err)
	}
	districtID, err := s.InsertDistrict(ctx, &domain.District{Name: "Grace"})
	if err != nil {
		t.Fatalf("insert district: %v", err)
	}

	rec := domain.NewSchoolRecord(1)
	rec.DistrictID = districtID
	rec.Set(domain.Name, "Grace Academy")
	rec.Set(domain.WebsiteURL, "http://grace.org")
	rec.Set(domain.YearFounded, 1981)
	rec.Set(domain.Latitude, 44.97)
	rec.Set(domain.DateAccredited, time.Date(2015, time.September, 1, 0, 0, 0, 0, time.UTC))
	rec.Set(domain.IsExcluded, true)
	rec.Set(domain.ExcludedReason, "closed")

	id, err := s.InsertSchool(ctx, rec)
	if err != nil {
		t.Fatalf("insert school: %v", err)
	}

	schools, err := s.LoadSchools(ctx)
	if err != nil {
		t.Fatalf("load schools: %v", err)
	}
	if len(schools) != 1 {
		t.Fatalf("expected 1 school, got %d", len(schools))
	}
	got := schools[0]
	if got.ID != id || got.DistrictID != districtID || got.OrgID != 1 {
		t.Fatalf("ids: got (%d,%d,%d), want (%d,%d,1)", got.ID, got.DistrictID, got.OrgID, id, districtID)
	}
	if v := got.Value(domain.Name); v != "Grace Academy" {
		t.Errorf("name = %v", v)
	}
	if v := got.Value(domain.YearFounded); v != 1981 {
		t.Errorf("year_founded = %v (%T), want int 1981", v, v)
	}
	if v := got.Value(domain.Latitude); v != 44.97 {
		t.Errorf("latitude = %v", v)
	}
	d, ok := got.Value(domain.DateAccredited).(time.Time)
	if !ok || !d.Equal(time.Date(2015, time.September, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date_accredited = %v", got.Value(domain.DateAccredited))
	}
	if v := got.Value(domain.IsExcluded); v != true {
		t.Errorf("is_excluded = %v", v)
	}
	if v := got.Value(domain.Phone); v != nil {
		t.Errorf("unset attribute came back non-nil: %v", v)
	}
}

func TestUpdateSchoolWritesOnlyChanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveOrganizations(ctx, []domain.Organization{{ID: 1, Name: "ACCS", Abbreviation: "ACCS"}}); err != nil {
		t.Fatalf("save organizations: %v", err)
	}
	districtID, err := s.InsertDistrict(ctx, &domain.District{Name: "Grace"})
	if err != nil {
		t.Fatalf("insert district: %v", err)
	}

	rec := domain.NewSchoolRecord(1)
	rec.DistrictID = districtID
	rec.Set(domain.Name, "Grace Academy")
	rec.Set(domain.City, "Moscow")
	id, err := s.InsertSchool(ctx, rec)
	if err != nil {
		t.Fatalf("insert school: %v", err)
	}

	changed := map[domain.Attribute]any{
		domain.Name:       "Grace Classical Academy",
		domain.Enrollment: 240,
	}
	if err := s.UpdateSchool(ctx, id, changed, districtID); err != nil {
		t.Fatalf("update school: %v", err)
	}

	schools, err := s.LoadSchools(ctx)
	if err != nil {
		t.Fatalf("load schools: %v", err)
	}
	got := schools[0]
	if v := got.Value(domain.Name); v != "Grace Classical Academy" {
		t.Errorf("name = %v", v)
	}
	if v := got.Value(domain.Enrollment); v != 240 {
		t.Errorf("enrollment = %v", v)
	}
	if v := got.Value(domain.City); v != "Moscow" {
		t.Errorf("untouched attribute changed: city = %v", v)
	}
}

func TestInsertDistrictOrganizationIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveOrganizations(ctx, []domain.Organization{{ID: 1, Name: "ACCS", Abbreviation: "ACCS"}}); err != nil {
		t.Fatalf("save organizations: %v", err)
	}
	districtID, err := s.InsertDistrict(ctx, &domain.District{Name: "Grace"})
	if err != nil {
		t.Fatalf("insert district: %v", err)
	}

	for range 3 {
		if err := s.InsertDistrictOrganization(ctx, districtID, 1); err != nil {
			t.Fatalf("insert relation: %v", err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM district_organizations").Scan(&count); err != nil {
		t.Fatalf("count relations: %v", err)
	}
	if count != 1 {
		t.Errorf("relation count = %d, want 1", count)
	}
}

func TestSaveOrganizationsUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orgs := []domain.Organization{{ID: 1, Name: "Association", Abbreviation: "ACCS", HomepageURL: "http://accs.org"}}
	if err := s.SaveOrganizations(ctx, orgs); err != nil {
		t.Fatalf("save organizations: %v", err)
	}
	orgs[0].Name = "Association of Classical Christian Schools"
	if err := s.SaveOrganizations(ctx, orgs); err != nil {
		t.Fatalf("re-save organizations: %v", err)
	}

	var name string
	if err := s.db.QueryRowContext(ctx, "SELECT name FROM organizations WHERE id = 1").Scan(&name); err != nil {
		t.Fatalf("query organization: %v", err)
	}
	if name != "Association of Classical Christian Schools" {
		t.Errorf("name = %q", name)
	}
}

func TestCorrectionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	row := &corrections.Row{
		Type:                "school_correction",
		Data:                []byte(`{"matches":[]}`),
		DeserializationData: []byte(`{"action":"omit"}`),
		Notes:               "permanently closed",
	}
	id, err := s.InsertCorrection(ctx, row)
	if err != nil {
		t.Fatalf("insert correction: %v", err)
	}

	rows, err := s.ListCorrections(ctx)
	if err != nil {
		t.Fatalf("list corrections: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.ID != id || got.Type != "school_correction" {
		t.Errorf("row = %+v", got)
	}
	if string(got.Data) != `{"matches":[]}` || string(got.DeserializationData) != `{"action":"omit"}` {
		t.Errorf("payloads: data=%s hints=%s", got.Data, got.DeserializationData)
	}
	if got.Notes != "permanently closed" {
		t.Errorf("notes = %q", got.Notes)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	log := logger.New(logger.Config{Writer: io.Discard, Format: "json", Level: slog.LevelError})
	path := filepath.Join(t.TempDir(), "atlas.db")

	s1, err := Open(path, log)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s1.InsertDistrict(context.Background(), &domain.District{Name: "Grace"}); err != nil {
		t.Fatalf("insert district: %v", err)
	}
	s1.Close()

	s2, err := Open(path, log)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	districts, err := s2.LoadDistricts(context.Background())
	if err != nil {
		t.Fatalf("load districts: %v", err)
	}
	if len(districts) != 1 {
		t.Errorf("expected district to survive reopen, got %d", len(districts))
	}
}
