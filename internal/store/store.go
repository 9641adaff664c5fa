// Package store provides SQLite-backed persistence for districts, schools,
// organizations, their relations, and corrections.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/schoolatlas/schoolatlas/internal/corrections"
	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

const dateFormat = "2006-01-02"

// Store provides SQLite-backed persistence for the atlas.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// Open creates a SQLite store at the given path. It configures WAL mode,
// sets pragmas, and runs the embedded schema.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; the resolution phase is sequential anyway.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadDistricts returns every district, used once per run to seed the cache.
func (s *Store) LoadDistricts(ctx context.Context) ([]domain.District, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, website_url FROM districts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query districts: %w", err)
	}
	defer rows.Close()

	var out []domain.District
	for rows.Next() {
		var d domain.District
		var name, url sql.NullString
		if err := rows.Scan(&d.ID, &name, &url); err != nil {
			return nil, fmt.Errorf("scan district: %w", err)
		}
		d.Name = name.String
		d.WebsiteURL = url.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// LoadSchools returns every school with its attribute values, used once per
// run to seed the cache.
func (s *Store) LoadSchools(ctx context.Context) ([]*domain.SchoolRecord, error) {
	attrs := domain.Attributes()
	cols := make([]string, 0, len(attrs)+3)
	cols = append(cols, "id", "district_id", "organization_id")
	for _, a := range attrs {
		cols = append(cols, a.Meta().Name)
	}

	query := fmt.Sprintf("SELECT %s FROM schools ORDER BY id", strings.Join(cols, ", "))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schools: %w", err)
	}
	defer rows.Close()

	var out []*domain.SchoolRecord
	for rows.Next() {
		rec := &domain.SchoolRecord{Values: make(map[domain.Attribute]any, len(attrs))}

		dests := make([]any, 0, len(cols))
		dests = append(dests, &rec.ID, &rec.DistrictID, &rec.OrgID)
		scratch := make([]any, len(attrs))
		for i, a := range attrs {
			scratch[i] = scanDest(a)
			dests = append(dests, scratch[i])
		}

		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		for i, a := range attrs {
			if v, ok := scanValue(a, scratch[i]); ok {
				rec.Values[a] = v
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertDistrict inserts a district and returns its generated id.
func (s *Store) InsertDistrict(ctx context.Context, d *domain.District) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO districts (name, website_url) VALUES (?, ?)",
		nullable(d.Name), nullable(d.WebsiteURL))
	if err != nil {
		return 0, fmt.Errorf("insert district: %w", err)
	}
	return res.LastInsertId()
}

// UpdateDistrict writes a district's name and website URL.
func (s *Store) UpdateDistrict(ctx context.Context, d *domain.District) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE districts SET name = ?, website_url = ? WHERE id = ?",
		nullable(d.Name), nullable(d.WebsiteURL), d.ID)
	if err != nil {
		return fmt.Errorf("update district %d: %w", d.ID, err)
	}
	return nil
}

// InsertSchool inserts a school with every set attribute and returns its
// generated id. The record's DistrictID must already be resolved.
func (s *Store) InsertSchool(ctx context.Context, r *domain.SchoolRecord) (int64, error) {
	cols := []string{"district_id", "organization_id"}
	args := []any{r.DistrictID, r.OrgID}
	placeholders := []string{"?", "?"}

	for _, a := range domain.Attributes() {
		v, ok := r.Values[a]
		if !ok || v == nil {
			continue
		}
		cols = append(cols, a.Meta().Name)
		args = append(args, toSQL(v))
		placeholders = append(placeholders, "?")
	}

	query := fmt.Sprintf("INSERT INTO schools (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert school: %w", err)
	}
	return res.LastInsertId()
}

// UpdateSchool writes only the changed attributes, in declaration order,
// plus the district id.
func (s *Store) UpdateSchool(ctx context.Context, id int64, changed map[domain.Attribute]any, districtID int64) error {
	sets := []string{"district_id = ?"}
	args := []any{districtID}

	for _, a := range domain.Attributes() {
		v, ok := changed[a]
		if !ok {
			continue
		}
		sets = append(sets, a.Meta().Name+" = ?")
		args = append(args, toSQL(v))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE schools SET %s WHERE id = ?", strings.Join(sets, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update school %d: %w", id, err)
	}
	return nil
}

// InsertDistrictOrganization records a district-organization membership.
// Re-inserting an existing pair is a no-op.
func (s *Store) InsertDistrictOrganization(ctx context.Context, districtID, orgID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO district_organizations (district_id, organization_id) VALUES (?, ?)",
		districtID, orgID)
	if err != nil {
		return fmt.Errorf("insert district organization: %w", err)
	}
	return nil
}

// SaveOrganizations upserts the seeded organizations.
func (s *Store) SaveOrganizations(ctx context.Context, orgs []domain.Organization) error {
	for _, o := range orgs {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO organizations (id, name, abbreviation, homepage_url, school_list_url)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name,
			   abbreviation = excluded.abbreviation,
			   homepage_url = excluded.homepage_url,
			   school_list_url = excluded.school_list_url`,
			o.ID, o.Name, o.Abbreviation, o.HomepageURL, o.SchoolListURL)
		if err != nil {
			return fmt.Errorf("save organization %q: %w", o.Abbreviation, err)
		}
	}
	return nil
}

// ListCorrections returns every persisted correction row.
func (s *Store) ListCorrections(ctx context.Context) ([]corrections.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, data, deserialization_data, notes FROM corrections ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []corrections.Row
	for rows.Next() {
		var r corrections.Row
		var hints, notes sql.NullString
		var data string
		if err := rows.Scan(&r.ID, &r.Type, &data, &hints, &notes); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		r.Data = []byte(data)
		if hints.Valid {
			r.DeserializationData = []byte(hints.String)
		}
		r.Notes = notes.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertCorrection persists a correction row and returns its generated id.
func (s *Store) InsertCorrection(ctx context.Context, row *corrections.Row) (int64, error) {
	var hints any
	if len(row.DeserializationData) > 0 {
		hints = string(row.DeserializationData)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO corrections (type, data, deserialization_data, notes) VALUES (?, ?, ?, ?)",
		row.Type, string(row.Data), hints, nullable(row.Notes))
	if err != nil {
		return 0, fmt.Errorf("insert correction: %w", err)
	}
	return res.LastInsertId()
}

// scanDest returns a scan target suited to the attribute's kind.
func scanDest(a domain.Attribute) any {
	switch a.Meta().Kind {
	case domain.KindInt:
		return &sql.NullInt64{}
	case domain.KindFloat:
		return &sql.NullFloat64{}
	case domain.KindBool:
		return &sql.NullBool{}
	default:
		return &sql.NullString{}
	}
}

// scanValue converts a scanned column back to the attribute's native type.
// The second return is false for NULL columns.
func scanValue(a domain.Attribute, dest any) (any, bool) {
	switch d := dest.(type) {
	case *sql.NullInt64:
		if !d.Valid {
			return nil, false
		}
		return int(d.Int64), true
	case *sql.NullFloat64:
		if !d.Valid {
			return nil, false
		}
		return d.Float64, true
	case *sql.NullBool:
		if !d.Valid {
			return nil, false
		}
		return d.Bool, true
	case *sql.NullString:
		if !d.Valid {
			return nil, false
		}
		if a.Meta().Kind == domain.KindDate {
			t, err := time.Parse(dateFormat, d.String)
			if err != nil {
				return nil, false
			}
			return t, true
		}
		return d.String, true
	default:
		return nil, false
	}
}

// toSQL converts an attribute value to its column representation.
func toSQL(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(dateFormat)
	}
	return v
}

// nullable maps "" to NULL so blank strings don't masquerade as values.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
