package domain

// Organization is a source that publishes a list of member schools.
type Organization struct {
	ID            int64
	Name          string
	Abbreviation  string
	HomepageURL   string
	SchoolListURL string
	// Extractor names the HTML extractor that parses this organization's
	// school list.
	Extractor string
	// MatchIndicatorAttributes are the attributes whose agreement suggests
	// a candidate from this organization matches an existing school.
	MatchIndicatorAttributes []Attribute
	// MatchRelevantAttributes are shown to the reviewer in addition to the
	// indicator attributes.
	MatchRelevantAttributes []Attribute
}
