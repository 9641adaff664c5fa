package scraper

import (
	"encoding/json"
	"strings"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

// ghiExtractor parses the GHI admin export, which is not HTML at all: the
// body is a JavaScript assignment ("per = {...}") whose object carries two
// parallel arrays. dataRS holds [name, address, grades, website] rows;
// mapRS holds objects with the same school plus coordinates.
type ghiExtractor struct{}

type ghiMapEntry struct {
	Name           string  `json:"t"`
	Address        string  `json:"a"`
	Grades         string  `json:"g"`
	MailingAddress string  `json:"u"`
	Latitude       float64 `json:"lt"`
	Longitude      float64 `json:"ln"`
}

type ghiPayload struct {
	Data [][]string    `json:"dataRS"`
	Map  []ghiMapEntry `json:"mapRS"`
}

func (ghiExtractor) Abbreviation() string { return "GHI" }

func (ghiExtractor) Extract(body []byte, org *domain.Organization, log *logger.Logger) ([]*domain.SchoolRecord, error) {
	// Strip the assignment prefix before the JSON object.
	text := string(body)
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, errors.Validation("GHI export contains no JSON object")
	}

	var payload ghiPayload
	if err := json.Unmarshal([]byte(text[start:]), &payload); err != nil {
		return nil, errors.Wrap(err, "parsing GHI export")
	}
	if len(payload.Data) != len(payload.Map) {
		return nil, errors.Validationf("GHI export row mismatch: %d data vs %d map", len(payload.Data), len(payload.Map))
	}

	out := make([]*domain.SchoolRecord, 0, len(payload.Data))
	for i, row := range payload.Data {
		if len(row) < 4 {
			log.Warn("skipping short GHI data row", "index", i, "fields", len(row))
			continue
		}
		entry := payload.Map[i]

		// The two arrays must describe the same school.
		if row[0] != entry.Name {
			log.Warn("GHI school name mismatch, skipping", "data", row[0], "map", entry.Name)
			continue
		}
		if row[1] != entry.Address {
			log.Warn("GHI school address mismatch, skipping", "school", row[0])
			continue
		}

		rec := domain.NewSchoolRecord(org.ID)
		rec.Set(domain.Name, row[0])
		rec.Set(domain.Address, row[1])
		rec.Set(domain.GradesOffered, row[2])
		rec.Set(domain.WebsiteURL, row[3])
		if entry.MailingAddress != "" {
			rec.Set(domain.MailingAddress, entry.MailingAddress)
		}
		if entry.Latitude != 0 || entry.Longitude != 0 {
			rec.Set(domain.Latitude, entry.Latitude)
			rec.Set(domain.Longitude, entry.Longitude)
		}
		out = append(out, rec)
	}
	return out, nil
}
