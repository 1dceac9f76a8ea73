// Package company finds organization names in story text and resolves tickers
// from a local table.
package company

import (
	"regexp"
	"strings"
)

// Company is one row of the lookup table. Ticker may be empty for private companies.
type Company struct {
	Name    string
	Ticker  string
	Aliases []string
}

// Match is a resolved organization.
type Match struct {
	Company string
	Ticker  string
}

var (
	capitalized = regexp.MustCompile(`[A-Z][\w&'’.-]*(?:\s+(?:&\s+)?[A-Z][\w&'’.-]*)*`)
	suffixed    = regexp.MustCompile(`([A-Z][\w&'’.-]*(?:\s+[A-Z][\w&'’.-]*)*),?\s+(?:Inc|Corp|Corporation|Ltd|LLC|PLC|Co|Holdings|Group)\b\.?`)
	cashtag     = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
)

var suffixWords = map[string]bool{
	"inc": true, "corp": true, "corporation": true, "ltd": true, "llc": true,
	"plc": true, "co": true, "company": true, "holdings": true, "group": true,
}

// Extractor resolves names against the table. It is read-only after New and
// safe for concurrent use.
type Extractor struct {
	byName   map[string]Company
	byTicker map[string]Company
	maxWords int
}

// New indexes table by lower-cased name, alias and ticker.
func New(table []Company) *Extractor {
	e := &Extractor{byName: map[string]Company{}, byTicker: map[string]Company{}, maxWords: 1}
	for _, c := range table {
		c.Name = strings.TrimSpace(c.Name)
		c.Ticker = strings.ToUpper(strings.TrimSpace(c.Ticker))
		if c.Name == "" {
			continue
		}
		for _, key := range append([]string{c.Name}, c.Aliases...) {
			key = normalizeName(key)
			if key == "" {
				continue
			}
			if _, dup := e.byName[key]; !dup {
				e.byName[key] = c
			}
			if n := len(strings.Fields(key)); n > e.maxWords {
				e.maxWords = n
			}
		}
		if c.Ticker != "" {
			e.byTicker[c.Ticker] = c
		}
	}
	return e
}

// Extract returns the first known organization mentioned in the headline, or
// failing that in the body. Unknown names produce an empty Match and false.
func (e *Extractor) Extract(headline, body string) (Match, bool) {
	for _, text := range []string{headline, body} {
		if m, ok := e.scan(text); ok {
			return m, true
		}
	}
	return Match{}, false
}

type span struct {
	start int
	text  string
}

func (e *Extractor) scan(text string) (Match, bool) {
	var spans []span
	for _, loc := range cashtag.FindAllStringSubmatchIndex(text, -1) {
		if c, ok := e.byTicker[text[loc[2]:loc[3]]]; ok {
			spans = append(spans, span{start: loc[0], text: c.Name})
		}
	}
	for _, loc := range suffixed.FindAllStringSubmatchIndex(text, -1) {
		spans = append(spans, span{start: loc[2], text: text[loc[2]:loc[3]]})
	}
	for _, loc := range capitalized.FindAllStringIndex(text, -1) {
		spans = append(spans, span{start: loc[0], text: text[loc[0]:loc[1]]})
	}

	best := -1
	var found Company
	for _, sp := range spans {
		if best >= 0 && sp.start >= best {
			continue
		}
		if c, offset, ok := e.resolve(sp.text); ok {
			if pos := sp.start + offset; best < 0 || pos < best {
				best, found = pos, c
			}
		}
	}
	if best < 0 {
		return Match{}, false
	}
	return Match{Company: found.Name, Ticker: found.Ticker}, true
}

// resolve tries every word window of a capitalized run, leftmost first and
// longest first, and returns the byte offset of the matching window.
func (e *Extractor) resolve(run string) (Company, int, bool) {
	words := strings.Fields(run)
	offsets := make([]int, len(words))
	pos := 0
	for i, w := range words {
		idx := strings.Index(run[pos:], w)
		offsets[i] = pos + idx
		pos += idx + len(w)
	}

	for i := range words {
		limit := e.maxWords + 1
		if i+limit > len(words) {
			limit = len(words) - i
		}
		for n := limit; n >= 1; n-- {
			key := normalizeName(strings.Join(words[i:i+n], " "))
			if c, ok := e.byName[key]; ok {
				return c, offsets[i], true
			}
		}
	}
	return Company{}, 0, false
}

// normalizeName lower-cases a name, drops possessives, edge punctuation and
// trailing corporate suffixes.
func normalizeName(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		f = strings.TrimSuffix(f, "'s")
		f = strings.TrimSuffix(f, "’s")
		fields[i] = strings.Trim(f, ".,;:!?\"'’()")
	}
	for len(fields) > 1 && suffixWords[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
