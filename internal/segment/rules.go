package segment

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/textutil"
)

// Kind tags a boundary rule family.
type Kind string

const (
	KindNumbered  Kind = "numbered"
	KindBullet    Kind = "bullet"
	KindHeadline  Kind = "headline"
	KindSeparator Kind = "separator"
	KindSection   Kind = "section"
)

// priority orders kinds when one line matches several rules.
var priority = map[Kind]int{
	KindNumbered:  5,
	KindBullet:    4,
	KindHeadline:  3,
	KindSeparator: 2,
	KindSection:   1,
}

func (k Kind) startsStory() bool {
	return k == KindNumbered || k == KindBullet || k == KindHeadline
}

// Marker is what a rule recognized at a line.
type Marker struct {
	Kind     Kind
	Headline string
	// Rest is text on the marked line that belongs to the story body.
	Rest    string
	Ordinal int
	// Consumes counts following lines folded into the marker.
	Consumes int
}

// Rule recognizes story boundaries. Implementations must be stateless.
type Rule interface {
	Kind() Kind
	Mark(lines []domain.Line, i int) (Marker, bool)
}

const (
	defaultNumberedPattern  = `^\(?(?P<n>\d{1,2})[.)](?:\s+(?P<headline>.*))?$`
	defaultBulletPattern    = `^[•·▪▫◦‣]\s+(?P<text>\S.*)$`
	defaultSeparatorPattern = `^(?:[-_=*~•·—–#]\s*){3,}$`
	maxHeadlineLen          = 140
	minHeadlineLen          = 8
	maxHeadlineWords        = 16
	minParagraphLen         = 60
)

func compile(pattern, fallback string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = fallback
	}
	return regexp.Compile(pattern)
}

func group(re *regexp.Regexp, match []string, name string, fallback int) string {
	if i := re.SubexpIndex(name); i > 0 && i < len(match) {
		return match[i]
	}
	if fallback < len(match) {
		return match[fallback]
	}
	return ""
}

type numberedRule struct {
	re *regexp.Regexp
}

func newNumberedRule(cfg RuleConfig) (Rule, error) {
	re, err := compile(cfg.Pattern, defaultNumberedPattern)
	if err != nil {
		return nil, err
	}
	return numberedRule{re: re}, nil
}

func (numberedRule) Kind() Kind { return KindNumbered }

func (r numberedRule) Mark(lines []domain.Line, i int) (Marker, bool) {
	m := r.re.FindStringSubmatch(lines[i].Text)
	if m == nil {
		return Marker{}, false
	}
	n, err := strconv.Atoi(group(r.re, m, "n", 1))
	if err != nil {
		return Marker{}, false
	}

	marker := Marker{Kind: KindNumbered, Ordinal: n}
	rest := cleanHeadline(group(r.re, m, "headline", 2))
	if rest == "" {
		if i+1 >= len(lines) {
			return Marker{}, false
		}
		marker.Headline = cleanHeadline(lines[i+1].Text)
		marker.Consumes = 1
		return marker, marker.Headline != ""
	}
	marker.Headline, marker.Rest = splitHeadline(rest)
	return marker, true
}

type bulletRule struct {
	re *regexp.Regexp
}

func newBulletRule(cfg RuleConfig) (Rule, error) {
	re, err := compile(cfg.Pattern, defaultBulletPattern)
	if err != nil {
		return nil, err
	}
	return bulletRule{re: re}, nil
}

func (bulletRule) Kind() Kind { return KindBullet }

// Mark opens a story at a bullet-led line. A short title-shaped item heads the
// lines below it; otherwise the item is the body and its lead sentence the headline.
func (r bulletRule) Mark(lines []domain.Line, i int) (Marker, bool) {
	m := r.re.FindStringSubmatch(lines[i].Text)
	if m == nil {
		return Marker{}, false
	}
	text := strings.TrimSpace(group(r.re, m, "text", 1))
	if !strings.ContainsFunc(text, func(c rune) bool { return unicode.IsLetter(c) || unicode.IsDigit(c) }) {
		return Marker{}, false
	}
	if i+1 < len(lines) && titleLike(text) && len(lines[i+1].Text) >= minParagraphLen {
		return Marker{Kind: KindBullet, Headline: cleanHeadline(text)}, true
	}
	headline := cleanHeadline(leadSentence(text))
	return Marker{Kind: KindBullet, Headline: headline, Rest: text}, headline != ""
}

type headlineRule struct {
	re *regexp.Regexp
}

func newHeadlineRule(cfg RuleConfig) (Rule, error) {
	if strings.TrimSpace(cfg.Pattern) == "" {
		return headlineRule{}, nil
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, err
	}
	return headlineRule{re: re}, nil
}

func (headlineRule) Kind() Kind { return KindHeadline }

func (r headlineRule) Mark(lines []domain.Line, i int) (Marker, bool) {
	text := lines[i].Text
	if r.re == nil {
		if !headlineShaped(lines, i) {
			return Marker{}, false
		}
		return Marker{Kind: KindHeadline, Headline: cleanHeadline(text)}, true
	}

	loc := r.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Marker{}, false
	}
	m := make([]string, len(loc)/2)
	for g := range m {
		if loc[2*g] >= 0 {
			m[g] = text[loc[2*g]:loc[2*g+1]]
		}
	}
	headline := cleanHeadline(group(r.re, m, "headline", 1))
	if headline == "" {
		headline = cleanHeadline(m[0])
	}
	return Marker{
		Kind:     KindHeadline,
		Headline: headline,
		Rest:     strings.TrimSpace(text[loc[1]:]),
	}, headline != ""
}

// headlineShaped reports whether lines[i] is a short title opening a block and
// followed by a longer paragraph line.
func headlineShaped(lines []domain.Line, i int) bool {
	if i+1 >= len(lines) || !opensBlock(lines, i) {
		return false
	}
	text := lines[i].Text
	if len(text) < minHeadlineLen || len(text) > maxHeadlineLen {
		return false
	}
	if textutil.Words(text) > maxHeadlineWords || textutil.Words(text) < 2 {
		return false
	}
	first := []rune(text)[0]
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) && first != '"' && first != '\'' {
		return false
	}
	switch text[len(text)-1] {
	case '.', ',', ';', ':':
		return false
	}
	next := lines[i+1].Text
	return len(next) >= minParagraphLen && len(next) >= len(text)+20
}

// opensBlock reports whether lines[i] can start a block: it is the first line,
// follows a paragraph break or a finished sentence, or follows a paragraph-length
// line while the next line does not continue in lower case.
func opensBlock(lines []domain.Line, i int) bool {
	if i == 0 || lines[i].BreakBefore {
		return true
	}
	prev := lines[i-1].Text
	if len(prev) >= minParagraphLen && i+1 < len(lines) {
		if next := []rune(lines[i+1].Text); len(next) > 0 && !unicode.IsLower(next[0]) {
			return true
		}
	}
	prev = strings.TrimRight(prev, `"')”’ `)
	if prev == "" {
		return false
	}
	switch prev[len(prev)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

type separatorRule struct {
	re *regexp.Regexp
}

func newSeparatorRule(cfg RuleConfig) (Rule, error) {
	re, err := compile(cfg.Pattern, defaultSeparatorPattern)
	if err != nil {
		return nil, err
	}
	return separatorRule{re: re}, nil
}

func (separatorRule) Kind() Kind { return KindSeparator }

func (r separatorRule) Mark(lines []domain.Line, i int) (Marker, bool) {
	if !r.re.MatchString(lines[i].Text) {
		return Marker{}, false
	}
	return Marker{Kind: KindSeparator}, true
}

type sectionRule struct {
	re *regexp.Regexp
}

func newSectionRule(cfg RuleConfig) (Rule, error) {
	if strings.TrimSpace(cfg.Pattern) == "" {
		return sectionRule{}, nil
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, err
	}
	return sectionRule{re: re}, nil
}

func (sectionRule) Kind() Kind { return KindSection }

func (r sectionRule) Mark(lines []domain.Line, i int) (Marker, bool) {
	text := lines[i].Text
	if r.re != nil {
		return Marker{Kind: KindSection}, r.re.MatchString(text)
	}
	return Marker{Kind: KindSection}, symbolOnly(text) || shoutedHeader(text)
}

// symbolOnly matches emoji or ornament lines used as section markers.
func symbolOnly(s string) bool {
	seen := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return false
		case unicode.IsSymbol(r) || r > unicode.MaxLatin1 && !unicode.IsSpace(r):
			seen = true
		}
	}
	return seen
}

// shoutedHeader matches all-caps lines longer than 20 characters.
func shoutedHeader(s string) bool {
	if len(s) <= 20 {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 4
}

// cleanHeadline strips markdown emphasis and list decorations.
func cleanHeadline(s string) string {
	s = textutil.CleanLine(s)
	s = strings.Trim(s, " *_#|>-–—•·")
	return strings.TrimSpace(s)
}

// splitHeadline separates a long numbered line into a title and the rest of its text.
func splitHeadline(text string) (headline, rest string) {
	if len(text) <= maxHeadlineLen {
		return text, ""
	}
	sentences := textutil.Sentences(text)
	if len(sentences) > 1 && len(sentences[0]) <= maxHeadlineLen {
		return strings.TrimRight(sentences[0], "."), strings.TrimSpace(strings.Join(sentences[1:], " "))
	}
	return textutil.Truncate(text, maxHeadlineLen), text
}
