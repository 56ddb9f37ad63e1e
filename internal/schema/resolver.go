package schema

import "strings"

// Resolve returns the first header, in the export's left-to-right order, that
// contains token as a case-insensitive substring. The boolean is false when no
// header qualifies.
func Resolve(headers []string, token string) (string, bool) {
	idx := ResolveIndex(headers, token)
	if idx < 0 {
		return "", false
	}
	return headers[idx], true
}

// ResolveIndex is Resolve returning the header position, or -1.
func ResolveIndex(headers []string, token string) int {
	needle := strings.ToLower(token)
	for i, h := range headers {
		if strings.Contains(strings.ToLower(h), needle) {
			return i
		}
	}
	return -1
}

// Candidates returns every header qualifying for token, in original order.
func Candidates(headers []string, token string) []string {
	needle := strings.ToLower(token)
	var out []string
	for _, h := range headers {
		if strings.Contains(strings.ToLower(h), needle) {
			out = append(out, h)
		}
	}
	return out
}

// Match is the resolution of one canonical field against an export.
type Match struct {
	Field Field
	// Header is the chosen source column; empty when unmatched.
	Header string
	// Index is the column position of Header, or -1 when unmatched.
	Index int
	// Candidates lists all qualifying headers; more than one means the
	// first-match tie-break picked among several.
	Candidates []string
}

// Matched reports whether the field resolved to a column.
func (m Match) Matched() bool {
	return m.Index >= 0
}

// Ambiguous reports whether more than one header qualified.
func (m Match) Ambiguous() bool {
	return len(m.Candidates) > 1
}

// Mapping is the per-export column mapping keyed by storage column.
type Mapping struct {
	Headers []string
	matches []Match
	byCol   map[string]int
}

// ResolveAll computes the mapping of every canonical field for headers.
func ResolveAll(headers []string) Mapping {
	m := Mapping{
		Headers: append([]string(nil), headers...),
		byCol:   make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		idx := ResolveIndex(headers, f.Token)
		match := Match{Field: f, Index: idx, Candidates: Candidates(headers, f.Token)}
		if idx >= 0 {
			match.Header = headers[idx]
		}
		m.byCol[f.Column] = len(m.matches)
		m.matches = append(m.matches, match)
	}
	return m
}

// Matches returns the resolution of every canonical field in declaration order.
func (m Mapping) Matches() []Match {
	return append([]Match(nil), m.matches...)
}

// Lookup returns the resolution for a storage column.
func (m Mapping) Lookup(column string) (Match, bool) {
	i, ok := m.byCol[column]
	if !ok {
		return Match{}, false
	}
	return m.matches[i], true
}

// Ambiguous returns the matches where several headers qualified.
func (m Mapping) Ambiguous() []Match {
	var out []Match
	for _, match := range m.matches {
		if match.Ambiguous() {
			out = append(out, match)
		}
	}
	return out
}

// Unmatched returns the fields no header resolved to.
func (m Mapping) Unmatched() []Field {
	var out []Field
	for _, match := range m.matches {
		if !match.Matched() {
			out = append(out, match.Field)
		}
	}
	return out
}
