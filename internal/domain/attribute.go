package domain

import "fmt"

// Attribute identifies one tracked property of a school. Declaration order
// is load-bearing: iteration, display, and storage column order all follow it.
type Attribute int

const (
	Name Attribute = iota
	Phone
	Address
	MailingAddress
	City
	State
	Country
	WebsiteURL
	ContactName
	Email
	DateAccredited
	YearFounded
	GradesOffered
	Enrollment
	NumberOfTeachers
	TuitionRange
	HeadmasterName
	Latitude
	Longitude
	Bio
	ACCSPageURL
	ICLEPageURL
	IsExcluded
	ExcludedReason

	attributeCount
)

// Kind is the value type an attribute carries.
type Kind int

const (
	KindString Kind = iota
	KindURL
	KindDate
	KindInt
	KindFloat
	KindBool
)

// Meta describes an attribute's storage and comparison characteristics.
type Meta struct {
	Name      string
	Kind      Kind
	Default   any
	MaxLength int
	// Exclusion attributes carry review bookkeeping rather than school
	// identity; they never participate in matching.
	Exclusion bool
}

var metas = [attributeCount]Meta{
	Name:             {Name: "name", Kind: KindString, MaxLength: 100},
	Phone:            {Name: "phone", Kind: KindString, MaxLength: 20},
	Address:          {Name: "address", Kind: KindString, MaxLength: 100},
	MailingAddress:   {Name: "mailing_address", Kind: KindString, MaxLength: 100},
	City:             {Name: "city", Kind: KindString, MaxLength: 50},
	State:            {Name: "state", Kind: KindString, MaxLength: 40},
	Country:          {Name: "country", Kind: KindString, MaxLength: 30},
	WebsiteURL:       {Name: "website_url", Kind: KindURL, MaxLength: 300},
	ContactName:      {Name: "contact_name", Kind: KindString, MaxLength: 100},
	Email:            {Name: "email", Kind: KindString, MaxLength: 100},
	DateAccredited:   {Name: "date_accredited", Kind: KindDate},
	YearFounded:      {Name: "year_founded", Kind: KindInt},
	GradesOffered:    {Name: "grades_offered", Kind: KindString, MaxLength: 100},
	Enrollment:       {Name: "enrollment", Kind: KindInt},
	NumberOfTeachers: {Name: "number_of_teachers", Kind: KindInt},
	TuitionRange:     {Name: "tuition_range", Kind: KindString, MaxLength: 50},
	HeadmasterName:   {Name: "headmaster_name", Kind: KindString, MaxLength: 100},
	Latitude:         {Name: "latitude", Kind: KindFloat},
	Longitude:        {Name: "longitude", Kind: KindFloat},
	Bio:              {Name: "bio", Kind: KindString, MaxLength: 65535},
	ACCSPageURL:      {Name: "accs_page_url", Kind: KindURL, MaxLength: 300},
	ICLEPageURL:      {Name: "icle_page_url", Kind: KindURL, MaxLength: 300},
	IsExcluded:       {Name: "is_excluded", Kind: KindBool, Default: false, Exclusion: true},
	ExcludedReason:   {Name: "excluded_reason", Kind: KindString, MaxLength: 100, Exclusion: true},
}

var attributesByName = func() map[string]Attribute {
	m := make(map[string]Attribute, attributeCount)
	for _, a := range Attributes() {
		m[a.Meta().Name] = a
	}
	return m
}()

// Attributes returns every attribute in declaration order.
func Attributes() []Attribute {
	all := make([]Attribute, attributeCount)
	for i := range all {
		all[i] = Attribute(i)
	}
	return all
}

// MatchingAttributes returns the attributes that participate in matching,
// in declaration order.
func MatchingAttributes() []Attribute {
	out := make([]Attribute, 0, attributeCount)
	for _, a := range Attributes() {
		if !a.Meta().Exclusion {
			out = append(out, a)
		}
	}
	return out
}

// AttributeByName resolves a stored column or payload name.
func AttributeByName(name string) (Attribute, error) {
	a, ok := attributesByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown attribute %q", name)
	}
	return a, nil
}

// Meta returns the attribute's metadata.
func (a Attribute) Meta() Meta {
	return metas[a]
}

func (a Attribute) String() string {
	if a < 0 || a >= attributeCount {
		return fmt.Sprintf("attribute(%d)", int(a))
	}
	return metas[a].Name
}

// IsPageURL reports whether the attribute is an organization listing-page
// URL. Page URLs are issued per organization and identify a school more
// strongly than a shared website host does.
func (a Attribute) IsPageURL() bool {
	return a.Meta().Kind == KindURL && a != WebsiteURL
}

// Clean truncates string and URL values to the attribute's maximum length.
// It returns the possibly-shortened value and whether truncation happened.
func (a Attribute) Clean(value any) (any, bool) {
	m := a.Meta()
	if m.MaxLength == 0 {
		return value, false
	}
	s, ok := value.(string)
	if !ok || len(s) <= m.MaxLength {
		return value, false
	}
	return s[:m.MaxLength], true
}
