// Package normalize provides value cleaning, person-name casing, and URL
// canonicalization and comparison for school records.
package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CleanValue trims whitespace, including non-breaking spaces that HTML
// sources are fond of.
func CleanValue(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

// TitleCase renders a person or school name in title case.
// Casers are stateful, so each call builds its own.
func TitleCase(s string) string {
	t := cases.Title(language.AmericanEnglish).String(CleanValue(s))

	// cases.Title lowercases the letter after an apostrophe, turning
	// O'Brien into O'brien. Restore the capital when the apostrophe
	// follows a single-letter prefix (O', D', L'); possessives like
	// Mary's keep their lowercase tail.
	r := []rune(t)
	for i := 2; i < len(r); i++ {
		if r[i-1] == '\'' && unicode.IsLetter(r[i-2]) && unicode.IsLetter(r[i]) &&
			(i < 3 || !unicode.IsLetter(r[i-3])) {
			r[i] = unicode.ToUpper(r[i])
		}
	}
	return string(r)
}

// FoldEqual reports whether two strings are equal under Unicode case folding.
func FoldEqual(a, b string) bool {
	c := cases.Fold()
	return c.String(a) == c.String(b)
}

// ParseURL parses a possibly scheme-less URL the way it appears on source
// pages. A missing scheme defaults to http.
func ParseURL(raw string) (*url.URL, error) {
	raw = CleanValue(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CanonicalURL returns a normalized rendering of raw: scheme added when
// missing and host lowercased. Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	u, err := ParseURL(raw)
	if err != nil {
		return CleanValue(raw)
	}
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// Host returns the comparison form of a URL's host: lowercased, port and
// leading "www." dropped.
func Host(u *url.URL) string {
	h := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(h, "www.")
}

// HostEqual reports whether two URLs point at the same site.
func HostEqual(a, b *url.URL) bool {
	return Host(a) == Host(b)
}

// URLEqual reports whether two URLs address the same page: same host, same
// path, and same query. A trailing slash on the path is ignored unless a
// query string is present, since some sites only resolve the slashed form
// of a query URL.
func URLEqual(a, b *url.URL) bool {
	if !HostEqual(a, b) {
		return false
	}
	if a.RawQuery != b.RawQuery {
		return false
	}

	pa, pb := a.EscapedPath(), b.EscapedPath()
	if a.RawQuery == "" {
		pa = strings.TrimSuffix(pa, "/")
		pb = strings.TrimSuffix(pb, "/")
	}
	return pa == pb
}

// URLStringsEqual parses both strings and compares them with URLEqual.
// Unparseable values only match by exact string equality.
func URLStringsEqual(a, b string) bool {
	ua, errA := ParseURL(a)
	ub, errB := ParseURL(b)
	if errA != nil || errB != nil {
		return CleanValue(a) == CleanValue(b)
	}
	return URLEqual(ua, ub)
}

// URLStringsHostEqual parses both strings and compares hosts only.
func URLStringsHostEqual(a, b string) bool {
	ua, errA := ParseURL(a)
	ub, errB := ParseURL(b)
	if errA != nil || errB != nil {
		return false
	}
	return HostEqual(ua, ub)
}
