package scraper

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
	"github.com/schoolatlas/schoolatlas/internal/normalize"
)

// accsExtractor parses the ACCS member directory. Each school is a card
// with a heading, a website link, a location line, and a "more info" link
// styled inline-block that points at the school's profile page.
type accsExtractor struct{}

func (accsExtractor) Abbreviation() string { return "ACCS" }

func (accsExtractor) Extract(body []byte, org *domain.Organization, log *logger.Logger) ([]*domain.SchoolRecord, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ACCS directory")
	}

	cards := findAll(doc, tagWithClass("div", "school-card"))
	out := make([]*domain.SchoolRecord, 0, len(cards))
	for _, card := range cards {
		rec := domain.NewSchoolRecord(org.ID)

		if h := findFirst(card, isTag("h3")); h != nil {
			rec.Set(domain.Name, textContent(h))
		}
		for _, a := range findAll(card, isTag("a")) {
			href := attrVal(a, "href")
			switch {
			case strings.Contains(attrVal(a, "style"), "display: inline-block"):
				rec.Set(domain.ACCSPageURL, resolveRef(org.SchoolListURL, href))
			case hasClass(a, "school-website") && href != "":
				rec.Set(domain.WebsiteURL, href)
			}
		}
		if loc := findFirst(card, tagWithClass("div", "school-location")); loc != nil {
			city, state := splitLocation(textContent(loc))
			rec.Set(domain.City, city)
			rec.Set(domain.State, state)
		}

		if normalize.CleanValue(nameOf(rec)) == "" && rec.Value(domain.ACCSPageURL) == nil {
			log.Warn("skipping ACCS card with neither name nor profile link")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func nameOf(rec *domain.SchoolRecord) string {
	if v, ok := rec.Value(domain.Name).(string); ok {
		return v
	}
	return ""
}

// splitLocation breaks "City, ST" into its parts; a missing comma means
// the whole string is the city.
func splitLocation(s string) (city, state string) {
	if i := strings.LastIndex(s, ","); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return strings.TrimSpace(s), ""
}

// resolveRef turns a relative href into an absolute URL against the list
// page. Absolute hrefs pass through.
func resolveRef(base, href string) string {
	if href == "" || strings.Contains(href, "://") {
		return href
	}
	u, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return u.ResolveReference(ref).String()
}
