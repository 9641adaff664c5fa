// Package corrections implements persisted, user-authored override rules:
// value substitutions applied during normalization, record-level triggers
// that omit or rewrite candidates before linkage, and district-match rules
// that resolve a review prompt automatically.
package corrections

import (
	"encoding/json"
	"time"

	"github.com/schoolatlas/schoolatlas/internal/domain"
	"github.com/schoolatlas/schoolatlas/internal/errors"
	"github.com/schoolatlas/schoolatlas/internal/matching"
	"github.com/schoolatlas/schoolatlas/internal/normalize"
)

// Type tags persisted in the corrections table. The set is closed; decoding
// dispatches over an explicit switch, never reflection.
const (
	TagSchoolAttribute  = "school_attribute"
	TagSchoolCorrection = "school_correction"
	TagDistrictMatch    = "district_match"
)

// MaxNotesLength bounds the free-text notes stored with a correction.
const MaxNotesLength = 300

// Correction is one persisted override rule.
type Correction interface {
	// Tag returns the persisted type discriminant.
	Tag() string
	// GetNotes returns the reviewer-facing notes.
	GetNotes() string
}

// AttributeMatch is one condition of a record-level correction: the
// record's live value for Attribute must match Value at MinLevel or above.
type AttributeMatch struct {
	Attribute domain.Attribute
	Value     any
	MinLevel  domain.MatchLevel
}

// Matches evaluates the condition against a record.
func (m AttributeMatch) Matches(cmp *matching.Comparator, rec *domain.SchoolRecord) bool {
	return cmp.Compare(m.Attribute, rec.Value(m.Attribute), m.Value).AtLeast(m.MinLevel)
}

// AttributeCorrection substitutes one attribute value for another during
// normalization, before any matching happens.
type AttributeCorrection struct {
	Attribute domain.Attribute
	Value     any
	NewValue  any
	Notes     string
}

func (c *AttributeCorrection) Tag() string      { return TagSchoolAttribute }
func (c *AttributeCorrection) GetNotes() string { return c.Notes }

// Apply replaces the record's value when it equals the correction's trigger
// value. Reports whether a substitution happened.
func (c *AttributeCorrection) Apply(rec *domain.SchoolRecord) bool {
	if rec.Value(c.Attribute) != c.Value {
		return false
	}
	rec.Set(c.Attribute, c.NewValue)
	return true
}

// ActionType discriminates the concrete action of a SchoolCorrection. It is
// persisted in the row's deserialization hints, not in the payload itself.
type ActionType string

const (
	ActionOmit             ActionType = "omit"
	ActionChangeAttributes ActionType = "change_attributes"
)

// Action is what a matching SchoolCorrection does to a record. Apply
// returns false when the record should be dropped entirely.
type Action interface {
	Type() ActionType
	Apply(rec *domain.SchoolRecord) bool
}

// OmitAction drops the record before it reaches the linker.
type OmitAction struct{}

func (OmitAction) Type() ActionType                { return ActionOmit }
func (OmitAction) Apply(*domain.SchoolRecord) bool { return false }

// ChangeAttributesAction overwrites the listed attributes in place.
type ChangeAttributesAction struct {
	NewValues map[domain.Attribute]any
}

func (ChangeAttributesAction) Type() ActionType { return ActionChangeAttributes }

func (a ChangeAttributesAction) Apply(rec *domain.SchoolRecord) bool {
	for attr, v := range a.NewValues {
		rec.Set(attr, v)
	}
	return true
}

// SchoolCorrection applies an action to every record matching all of its
// conditions. Evaluated per candidate before linkage.
type SchoolCorrection struct {
	Matches []AttributeMatch
	Action  Action
	Notes   string
}

func (c *SchoolCorrection) Tag() string      { return TagSchoolCorrection }
func (c *SchoolCorrection) GetNotes() string { return c.Notes }

// MatchesRecord reports whether every condition passes.
func (c *SchoolCorrection) MatchesRecord(cmp *matching.Comparator, rec *domain.SchoolRecord) bool {
	for _, m := range c.Matches {
		if !m.Matches(cmp, rec) {
			return false
		}
	}
	return true
}

// RuleType discriminates district-match rules.
type RuleType string

// RuleWebsiteDomainMatches passes when the candidate's website and the
// district's website both live on the rule's domain.
const RuleWebsiteDomainMatches RuleType = "website_url_domain_matches"

// Rule is one condition of a DistrictMatchCorrection.
type Rule struct {
	Type  RuleType `json:"type"`
	Value string   `json:"value"`
}

// Passes evaluates the rule for a candidate-district pair.
func (r Rule) Passes(candidate *domain.SchoolRecord, district domain.District) bool {
	if r.Type != RuleWebsiteDomainMatches {
		return false
	}
	site, _ := candidate.Value(domain.WebsiteURL).(string)
	return hostIs(site, r.Value) && hostIs(district.WebsiteURL, r.Value)
}

func hostIs(rawURL, domainName string) bool {
	if rawURL == "" || domainName == "" {
		return false
	}
	u, err := normalize.ParseURL(rawURL)
	if err != nil {
		return false
	}
	return normalize.Host(u) == domainName
}

// DistrictMatchCorrection resolves a candidate-district review prompt
// automatically: when every rule passes, the candidate is added to the
// district without reviewer input, optionally renaming the district or
// replacing its URL. UseNewName distinguishes "leave the name alone" from
// "clear the name".
type DistrictMatchCorrection struct {
	Rules      []Rule
	NewName    string
	UseNewName bool
	NewURL     string
	UseNewURL  bool
	Notes      string
}

func (c *DistrictMatchCorrection) Tag() string      { return TagDistrictMatch }
func (c *DistrictMatchCorrection) GetNotes() string { return c.Notes }

// MatchesDistrict reports whether every rule passes for the pair.
func (c *DistrictMatchCorrection) MatchesDistrict(candidate *domain.SchoolRecord, district domain.District) bool {
	if len(c.Rules) == 0 {
		return false
	}
	for _, r := range c.Rules {
		if !r.Passes(candidate, district) {
			return false
		}
	}
	return true
}

// Name returns the district name to use after the match.
func (c *DistrictMatchCorrection) Name(district domain.District) string {
	if c.UseNewName {
		return c.NewName
	}
	return district.Name
}

// URL returns the district website URL to use after the match.
func (c *DistrictMatchCorrection) URL(district domain.District) string {
	if c.UseNewURL {
		return c.NewURL
	}
	return district.WebsiteURL
}

// Wire formats. Attributes are persisted by name and values as JSON, so
// decoding coerces values back to the attribute's native type.

type attributeCorrectionWire struct {
	Attribute string `json:"attribute"`
	Value     any    `json:"value"`
	NewValue  any    `json:"new_value"`
}

type attributeMatchWire struct {
	Attribute string `json:"attribute"`
	Value     any    `json:"value"`
	MinLevel  string `json:"min_level"`
}

type schoolCorrectionWire struct {
	Matches   []attributeMatchWire `json:"matches"`
	NewValues map[string]any       `json:"new_values,omitempty"`
}

type districtMatchWire struct {
	Rules      []Rule `json:"rules"`
	NewName    string `json:"new_name,omitempty"`
	UseNewName bool   `json:"use_new_name"`
	NewURL     string `json:"new_url,omitempty"`
	UseNewURL  bool   `json:"use_new_url"`
}

// actionHints is the polymorphic deserialization hint payload: it names the
// concrete action variant without embedding it in the data JSON.
type actionHints struct {
	Action ActionType `json:"action"`
}

// encode renders a correction to its persisted form: payload JSON plus
// optional deserialization hints.
func encode(c Correction) (data, hints []byte, err error) {
	switch v := c.(type) {
	case *AttributeCorrection:
		data, err = json.Marshal(attributeCorrectionWire{
			Attribute: v.Attribute.String(),
			Value:     v.Value,
			NewValue:  v.NewValue,
		})
		return data, nil, err

	case *SchoolCorrection:
		if v.Action == nil {
			return nil, nil, errors.Validation("school correction requires an action")
		}
		wire := schoolCorrectionWire{}
		for _, m := range v.Matches {
			wire.Matches = append(wire.Matches, attributeMatchWire{
				Attribute: m.Attribute.String(),
				Value:     m.Value,
				MinLevel:  m.MinLevel.String(),
			})
		}
		if change, ok := v.Action.(ChangeAttributesAction); ok {
			wire.NewValues = make(map[string]any, len(change.NewValues))
			for a, val := range change.NewValues {
				wire.NewValues[a.String()] = val
			}
		}
		if data, err = json.Marshal(wire); err != nil {
			return nil, nil, err
		}
		hints, err = json.Marshal(actionHints{Action: v.Action.Type()})
		return data, hints, err

	case *DistrictMatchCorrection:
		data, err = json.Marshal(districtMatchWire{
			Rules:      v.Rules,
			NewName:    v.NewName,
			UseNewName: v.UseNewName,
			NewURL:     v.NewURL,
			UseNewURL:  v.UseNewURL,
		})
		return data, nil, err

	default:
		return nil, nil, errors.Validationf("unknown correction type %T", c)
	}
}

// decode reconstructs a correction from its persisted form. Unknown tags
// and malformed payloads return errors for the caller to log and skip.
func decode(tag string, data, hints []byte, notes string) (Correction, error) {
	switch tag {
	case TagSchoolAttribute:
		var wire attributeCorrectionWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		attr, err := domain.AttributeByName(wire.Attribute)
		if err != nil {
			return nil, err
		}
		return &AttributeCorrection{
			Attribute: attr,
			Value:     coerceValue(attr, wire.Value),
			NewValue:  coerceValue(attr, wire.NewValue),
			Notes:     notes,
		}, nil

	case TagSchoolCorrection:
		var wire schoolCorrectionWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		var hint actionHints
		if err := json.Unmarshal(hints, &hint); err != nil {
			return nil, errors.Wrap(err, "school correction missing action hint")
		}

		c := &SchoolCorrection{Notes: notes}
		for _, m := range wire.Matches {
			attr, err := domain.AttributeByName(m.Attribute)
			if err != nil {
				return nil, err
			}
			c.Matches = append(c.Matches, AttributeMatch{
				Attribute: attr,
				Value:     coerceValue(attr, m.Value),
				MinLevel:  domain.ParseMatchLevel(m.MinLevel),
			})
		}

		switch hint.Action {
		case ActionOmit:
			c.Action = OmitAction{}
		case ActionChangeAttributes:
			change := ChangeAttributesAction{NewValues: make(map[domain.Attribute]any, len(wire.NewValues))}
			for name, val := range wire.NewValues {
				attr, err := domain.AttributeByName(name)
				if err != nil {
					return nil, err
				}
				change.NewValues[attr] = coerceValue(attr, val)
			}
			c.Action = change
		default:
			return nil, errors.Validationf("unknown school correction action %q", hint.Action)
		}
		return c, nil

	case TagDistrictMatch:
		var wire districtMatchWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		return &DistrictMatchCorrection{
			Rules:      wire.Rules,
			NewName:    wire.NewName,
			UseNewName: wire.UseNewName,
			NewURL:     wire.NewURL,
			UseNewURL:  wire.UseNewURL,
			Notes:      notes,
		}, nil

	default:
		return nil, errors.Validationf("unknown correction tag %q", tag)
	}
}

// coerceValue converts a JSON-decoded value to the attribute's native type.
// encoding/json hands back float64 for every number and strings for dates.
func coerceValue(a domain.Attribute, v any) any {
	if v == nil {
		return nil
	}
	switch a.Meta().Kind {
	case domain.KindInt:
		if f, ok := v.(float64); ok {
			return int(f)
		}
	case domain.KindDate:
		if s, ok := v.(string); ok {
			if t, err := time.Parse("2006-01-02", s); err == nil {
				return t
			}
		}
	}
	return v
}
