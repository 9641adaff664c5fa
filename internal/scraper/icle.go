package scraper

import (
	"bytes"

	"golang.org/x/net/html"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// icleExtractor parses the ICLE school network listing: one article per
// school with a heading link to the school's network profile, a website
// link, and a location line.
type icleExtractor struct{}

func (icleExtractor) Abbreviation() string { return "ICLE" }

func (icleExtractor) Extract(body []byte, org *domain.Organization, log *logger.Logger) ([]*domain.SchoolRecord, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ICLE network list")
	}

	entries := findAll(doc, tagWithClass("article", "network-school"))
	out := make([]*domain.SchoolRecord, 0, len(entries))
	for _, entry := range entries {
		rec := domain.NewSchoolRecord(org.ID)

		if h := findFirst(entry, isTag("h2")); h != nil {
			rec.Set(domain.Name, textContent(h))
			if a := findFirst(h, isTag("a")); a != nil {
				rec.Set(domain.ICLEPageURL, resolveRef(org.SchoolListURL, attrVal(a, "href")))
			}
		}
		if a := findFirst(entry, tagWithClass("a", "school-site")); a != nil {
			rec.Set(domain.WebsiteURL, attrVal(a, "href"))
		}
		if loc := findFirst(entry, tagWithClass("span", "school-location")); loc != nil {
			city, state := splitLocation(textContent(loc))
			rec.Set(domain.City, city)
			rec.Set(domain.State, state)
		}

		out = append(out, rec)
	}
	return out, nil
}
