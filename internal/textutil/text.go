// Package textutil holds the small string routines shared by the extraction stages.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// invisible are zero-width and formatting runes newsletters sprinkle into preheaders.
var invisible = map[rune]bool{
	'\u200b': true, '\u200c': true, '\u200d': true, '\u2060': true,
	'\ufeff': true, '\u00ad': true, '\u034f': true, '\u180e': true,
}

// CleanLine removes invisible runes, folds all whitespace runs into one space and trims.
func CleanLine(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if invisible[r] {
			continue
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeHeadline lower-cases s, strips punctuation and symbols and collapses spaces.
// Two headlines that differ only in case or punctuation normalize to the same key.
func NormalizeHeadline(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case invisible[r]:
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r == '\'' || r == '\u2019':
			// apostrophes join words: "nvidia's" -> "nvidias"
		default:
			space = true
		}
	}
	return b.String()
}

var abbreviations = map[string]bool{
	"inc": true, "corp": true, "ltd": true, "co": true, "mr": true, "mrs": true,
	"ms": true, "dr": true, "st": true, "vs": true, "jr": true, "sr": true,
	"e.g": true, "i.e": true, "u.s": true, "u.k": true, "no": true, "est": true,
}

// Sentences splits text into sentences on terminal punctuation followed by a
// capitalized word, digit or quote. Common abbreviations and initials do not end a sentence.
func Sentences(text string) []string {
	text = CleanLine(text)
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && (text[j] == '"' || text[j] == ')' || text[j] == '\'' || text[j] == '.') {
			j++
		}
		if j >= len(text) || text[j] != ' ' {
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[j+1:])
		if !(unicode.IsUpper(next) || unicode.IsDigit(next) || next == '"' || next == '\u201c' || next == '$') {
			continue
		}
		if c == '.' && isAbbreviation(text[start:i]) {
			continue
		}
		out = append(out, strings.TrimSpace(text[start:j]))
		start = j + 1
		i = j
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func isAbbreviation(before string) bool {
	word := before
	if i := strings.LastIndexByte(before, ' '); i >= 0 {
		word = before[i+1:]
	}
	word = strings.ToLower(strings.Trim(word, "(\"'"))
	if abbreviations[word] {
		return true
	}
	// single initials such as "J." in "J. Powell"
	r, size := utf8.DecodeRuneInString(word)
	return size == len(word) && unicode.IsLetter(r)
}

// Summarize takes the first maxSentences sentences of body, keeps adding
// sentences while the result is shorter than minChars, and caps it at maxChars.
func Summarize(body string, maxSentences, minChars, maxChars int) string {
	sentences := Sentences(body)
	if len(sentences) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range sentences {
		if i >= maxSentences && maxSentences > 0 && b.Len() >= minChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return Truncate(b.String(), maxChars)
}

// Truncate shortens s to at most max bytes, cutting at a word boundary and
// appending "...". A non-positive max disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max - 3
	if cut < 1 {
		cut = max
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if i := strings.LastIndexByte(s[:cut], ' '); i > cut/2 {
		cut = i
	}
	return strings.TrimRight(s[:cut], " ,;:-") + "..."
}

// Words counts whitespace-separated tokens that contain at least one letter.
func Words(s string) int {
	n := 0
	for _, f := range strings.Fields(s) {
		if strings.IndexFunc(f, unicode.IsLetter) >= 0 {
			n++
		}
	}
	return n
}
