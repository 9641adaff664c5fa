package scraper

import (
	"bytes"
	"regexp"

	"golang.org/x/net/html"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// asaExtractor parses the ASA member directory: one member-info block per
// school with a title link, a location/website heading, grades, a short
// description, and a contact block holding email and phone lines.
type asaExtractor struct{}

var asaContactPattern = regexp.MustCompile(`Email: ?(\S+@\S+\.\w+)?[\s\S]*Phone: ?([()\d -]+)?`)

func (asaExtractor) Abbreviation() string { return "ASA" }

func (asaExtractor) Extract(body []byte, org *domain.Organization, log *logger.Logger) ([]*domain.SchoolRecord, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ASA member list")
	}

	members := findAll(doc, tagWithClass("div", "member-info"))
	out := make([]*domain.SchoolRecord, 0, len(members))
	for _, member := range members {
		rec := domain.NewSchoolRecord(org.ID)

		if title := findFirst(member, tagWithClass("div", "member-title")); title != nil {
			rec.Set(domain.Name, textContent(title))
		}
		if site := findFirst(member, tagWithClass("div", "location-website")); site != nil {
			if a := findFirst(site, isTag("a")); a != nil {
				rec.Set(domain.WebsiteURL, attrVal(a, "href"))
			}
			if h := findFirst(site, isTag("h4")); h != nil {
				city, state := splitLocation(textContent(h))
				rec.Set(domain.City, city)
				rec.Set(domain.State, state)
			}
		}
		if grades := findFirst(member, tagWithClass("div", "grades")); grades != nil {
			rec.Set(domain.GradesOffered, textContent(grades))
		}
		if desc := findFirst(member, tagWithClass("div", "member-description")); desc != nil {
			rec.Set(domain.Bio, textContent(desc))
		}
		if contact := findFirst(member, tagWithClass("div", "member-contact")); contact != nil {
			if m := asaContactPattern.FindStringSubmatch(textContent(contact)); m != nil {
				if m[1] != "" {
					rec.Set(domain.Email, m[1])
				}
				if m[2] != "" {
					rec.Set(domain.Phone, m[2])
				}
			}
		}

		out = append(out, rec)
	}
	return out, nil
}
