package matching

import (
	"io"
	"log/slog"
	"testing"

	"github.com/schoolatlas/schoolatlas/internal/cache"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

func newTestLinker(t *testing.T) (*Linker, *cache.Cache) {
	t.Helper()
	log := logger.New(logger.Config{Writer: io.Discard, Format: "json", Level: slog.LevelError})
	return NewLinker(NewComparator(missingName), log), cache.New(log)
}

func record(name, website string) *domain.SchoolRecord {
	r := domain.NewSchoolRecord(1)
	if name != "" {
		r.Set(domain.Name, name)
	}
	if website != "" {
		r.Set(domain.WebsiteURL, website)
	}
	return r
}

func testOrg() *domain.Organization {
	return &domain.Organization{
		ID:   1,
		Name: "Association of Classical Christian Schools",
		MatchIndicatorAttributes: []domain.Attribute{
			domain.Name, domain.WebsiteURL, domain.ACCSPageURL,
		},
	}
}

func TestLinkExactDuplicateShortCircuits(t *testing.T) {
	l, c := newTestLinker(t)

	existing := record("Grace Academy", "http://www.grace.org")
	existing.ID = 1
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Grace Academy"})
	schools := []*cache.CachedSchool{c.WrapSchool(existing, d)}

	candidate := record("Grace Academy", "https://grace.org/")
	res := l.Link(candidate, testOrg(), schools)

	if res.Duplicate == nil {
		t.Fatal("expected duplicate for url differing only by scheme/www/slash")
	}
	if len(res.Districts) != 0 {
		t.Errorf("duplicate result should carry no districts, got %d", len(res.Districts))
	}
}

func TestLinkSubsetCandidateIsDuplicate(t *testing.T) {
	l, c := newTestLinker(t)

	existing := record("Grace Academy", "http://grace.org")
	existing.Set(domain.City, "Austin")
	existing.ID = 1
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Grace Academy"})
	schools := []*cache.CachedSchool{c.WrapSchool(existing, d)}

	// Candidate carries strictly less information.
	candidate := record("Grace Academy", "http://grace.org")
	res := l.Link(candidate, testOrg(), schools)

	if res.Duplicate == nil {
		t.Fatal("candidate that is a subset of an existing record should be a duplicate")
	}
}

func TestLinkNoMatchesMeansNewDistrict(t *testing.T) {
	l, c := newTestLinker(t)

	existing := record("Covenant School", "http://covenant.org")
	existing.ID = 1
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant School"})
	schools := []*cache.CachedSchool{c.WrapSchool(existing, d)}

	candidate := record("St. Brendan Academy", "http://stbrendan.edu")
	res := l.Link(candidate, testOrg(), schools)

	if res.Duplicate != nil {
		t.Error("unrelated candidate flagged as duplicate")
	}
	if len(res.Districts) != 0 {
		t.Errorf("unrelated candidate matched %d districts, want 0", len(res.Districts))
	}
}

func TestLinkRelatedWebsiteDoesNotGate(t *testing.T) {
	l, c := newTestLinker(t)

	// Same host, different page: related, below the indicator gate.
	existing := record("Covenant Upper School", "http://covenant.org/upper")
	existing.ID = 1
	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})
	schools := []*cache.CachedSchool{c.WrapSchool(existing, d)}

	candidate := record("Covenant Lower School", "http://covenant.org/lower")
	res := l.Link(candidate, testOrg(), schools)

	if len(res.Districts) != 0 {
		t.Errorf("related-only evidence should not produce a partial match, got %d districts", len(res.Districts))
	}
}

func TestLinkGroupsAndDeduplicatesDistricts(t *testing.T) {
	l, c := newTestLinker(t)

	d := cache.WrapDistrict(domain.District{ID: 1, Name: "Covenant"})
	lower := record("Covenant Lower School", "http://covenant.org")
	lower.ID = 1
	upper := record("Covenant Upper School", "http://covenant.org")
	upper.ID = 2
	schools := []*cache.CachedSchool{c.WrapSchool(lower, d), c.WrapSchool(upper, d)}

	candidate := record("Covenant Grammar School", "http://covenant.org")
	res := l.Link(candidate, testOrg(), schools)

	if len(res.Districts) != 1 {
		t.Fatalf("district count = %d, want 1 (deduplicated)", len(res.Districts))
	}
	if len(res.Districts[0].Schools) != 2 {
		t.Errorf("member matches = %d, want 2", len(res.Districts[0].Schools))
	}
}

func TestLinkRankingIsStableAndOrdered(t *testing.T) {
	l, c := newTestLinker(t)

	weak := cache.WrapDistrict(domain.District{ID: 1, Name: "Weak"})
	strong := cache.WrapDistrict(domain.District{ID: 2, Name: "Strong"})

	// Weak: only the website matches.
	w := record("Other Name", "http://shared.org")
	w.ID = 1
	// Strong: website and city match.
	s := record("Another Name", "http://shared.org")
	s.Set(domain.City, "Moscow")
	s.ID = 2

	schools := []*cache.CachedSchool{c.WrapSchool(w, weak), c.WrapSchool(s, strong)}

	candidate := record("New School", "http://shared.org")
	candidate.Set(domain.City, "Moscow")
	res := l.Link(candidate, testOrg(), schools)

	if len(res.Districts) != 2 {
		t.Fatalf("district count = %d, want 2", len(res.Districts))
	}
	if res.Districts[0].District != strong {
		t.Errorf("first ranked district = %q, want the stronger match", res.Districts[0].District.Name())
	}

	// Equal evidence: discovery order preserved.
	tie := record("Tie Name", "http://shared.org")
	tie.ID = 3
	tieDistrict := cache.WrapDistrict(domain.District{ID: 3, Name: "Tie"})
	schools = []*cache.CachedSchool{c.WrapSchool(w, weak), c.WrapSchool(tie, tieDistrict)}

	res = l.Link(record("X", "http://shared.org"), testOrg(), schools)
	if len(res.Districts) != 2 || res.Districts[0].District != weak {
		t.Error("equal-evidence districts should keep discovery order")
	}
}

func TestLinkRankingIgnoresBookkeepingAttributes(t *testing.T) {
	l, c := newTestLinker(t)

	// One member matching on website and city...
	near := cache.WrapDistrict(domain.District{ID: 1, Name: "Close"})
	a := record("Other Name", "http://shared.org")
	a.Set(domain.City, "Moscow")
	a.ID = 1

	// ...against two members matching on website alone. The exclusion
	// bookkeeping columns agree on every pair, so two members would
	// outscore one if they were allowed to count.
	big := cache.WrapDistrict(domain.District{ID: 2, Name: "Big"})
	b1 := record("First Name", "http://shared.org")
	b1.ID = 2
	b2 := record("Second Name", "http://shared.org")
	b2.ID = 3

	schools := []*cache.CachedSchool{
		c.WrapSchool(a, near), c.WrapSchool(b1, big), c.WrapSchool(b2, big),
	}

	candidate := record("New School", "http://shared.org")
	candidate.Set(domain.City, "Moscow")
	res := l.Link(candidate, testOrg(), schools)

	if len(res.Districts) != 2 {
		t.Fatalf("district count = %d, want 2", len(res.Districts))
	}
	for _, dm := range res.Districts {
		if dm.NonNullMatches != 2 {
			t.Errorf("district %q non-null matches = %d, want 2",
				dm.District.Name(), dm.NonNullMatches)
		}
	}
	if res.Districts[0].District != near {
		t.Errorf("first ranked district = %q, want the tie broken by discovery order",
			res.Districts[0].District.Name())
	}
}

func TestLinkSkipsUnresolvableDistrict(t *testing.T) {
	l, c := newTestLinker(t)

	orphan := record("Orphan School", "http://orphan.org")
	orphan.ID = 1
	schools := []*cache.CachedSchool{c.WrapSchool(orphan, nil)}

	candidate := record("Orphan School", "http://orphan.org")
	candidate.Set(domain.City, "Somewhere") // avoid the duplicate short-circuit
	res := l.Link(candidate, testOrg(), schools)

	if res.Duplicate != nil {
		t.Fatal("unexpected duplicate")
	}
	if len(res.Districts) != 0 {
		t.Errorf("unresolvable district should be dropped, got %d", len(res.Districts))
	}
}
