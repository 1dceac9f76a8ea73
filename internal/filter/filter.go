// Package filter drops candidate stories that are not news.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/textutil"
)

// DefaultPromoPatterns mark sponsored and subscription content.
var DefaultPromoPatterns = []string{
	`(?:^|[^-\w])sponsor(?:ed|s)?\b`,
	`\(sponsor\)`,
	`\badvertisement\b`,
	`\bpaid (?:post|partnership|content)\b`,
	`\bpresented by\b`,
	`\bin partnership with\b`,
	`\bunsubscribe\b`,
	`\bsubscribe (?:now|today|here|for free)\b`,
	`\bsign up (?:now|today|for free)\b`,
	`\breferral\b`,
	`\brefer (?:a friend|your friends|friends)\b`,
	`\bshare your (?:unique )?(?:referral )?link\b`,
	`\bpromo code\b`,
	`\buse code\b`,
	`\blimited[- ]time offer\b`,
	`\bclaim your\b`,
	`\bstart your free trial\b`,
}

// DefaultBoilerplatePatterns mark navigation and footer phrases.
var DefaultBoilerplatePatterns = []string{
	`\bread more\b`,
	`\bcontinue reading\b`,
	`\bread the (?:full )?(?:story|article)\b`,
	`\bshare (?:this|on (?:twitter|x|facebook|linkedin))\b`,
	`\bfollow us(?: on \w+)?\b`,
	`\bforward (?:this(?: email)?|to a friend)\b`,
	`\bview (?:in|this email in) (?:your )?browser\b`,
	`\bclick here\b`,
	`\btweet this\b`,
	`\bprivacy policy\b`,
	`\bterms of (?:service|use)\b`,
	`\bmanage (?:your )?preferences\b`,
	`\ball rights reserved\b`,
	`\bcontact us\b`,
	`\badvertise with us\b`,
	`©`,
}

// Rules are the tunable acceptance thresholds.
type Rules struct {
	MinBodyLength       int
	MinSentenceWords    int
	PromoPatterns       []string
	BoilerplatePatterns []string
	// Similarity is the within-message duplicate threshold for normalized headlines.
	Similarity float64
}

// Verdict is the filter outcome for one candidate.
type Verdict struct {
	Accept bool
	Reason domain.RejectReason
	Detail string
}

// Filter holds compiled rules and is safe for concurrent use.
type Filter struct {
	minBody    int
	minWords   int
	promo      []*regexp.Regexp
	boiler     []*regexp.Regexp
	similarity float64
}

// New compiles the rules. Empty pattern lists fall back to the defaults.
func New(r Rules) (*Filter, error) {
	f := &Filter{
		minBody:    r.MinBodyLength,
		minWords:   r.MinSentenceWords,
		similarity: r.Similarity,
	}
	if f.minWords <= 0 {
		f.minWords = 5
	}
	if f.similarity <= 0 {
		f.similarity = 1
	}

	promo := r.PromoPatterns
	if len(promo) == 0 {
		promo = DefaultPromoPatterns
	}
	boiler := r.BoilerplatePatterns
	if len(boiler) == 0 {
		boiler = DefaultBoilerplatePatterns
	}

	var err error
	if f.promo, err = compileAll(promo); err != nil {
		return nil, fmt.Errorf("promo patterns: %w", err)
	}
	if f.boiler, err = compileAll(boiler); err != nil {
		return nil, fmt.Errorf("boilerplate patterns: %w", err)
	}
	return f, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if !strings.HasPrefix(p, "(?i)") {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Session returns a checker for the candidates of one message. It tracks
// accepted headlines to reject repeats and must not be shared between goroutines.
func (f *Filter) Session() *Session {
	return &Session{f: f}
}

// Session applies the filter to the candidates of a single message.
type Session struct {
	f    *Filter
	seen []string
}

// Check evaluates c. Accepted headlines are remembered for duplicate detection.
func (s *Session) Check(c domain.CandidateStory) Verdict {
	v := s.f.evaluate(c)
	if !v.Accept {
		return v
	}

	key := textutil.NormalizeHeadline(c.Headline)
	for _, prev := range s.seen {
		if textutil.SameHeadline(key, prev, s.f.similarity) {
			return Verdict{Reason: domain.ReasonDuplicate, Detail: "headline repeats an earlier story in the same message"}
		}
	}
	s.seen = append(s.seen, key)
	return v
}

func (f *Filter) evaluate(c domain.CandidateStory) Verdict {
	headline := strings.TrimSpace(c.Headline)
	if strings.IndexFunc(headline, unicode.IsLetter) < 0 {
		return Verdict{Reason: domain.ReasonMalformed, Detail: "missing headline"}
	}

	for _, re := range f.promo {
		if m := re.FindString(headline + "\n" + c.Body); m != "" {
			return Verdict{Reason: domain.ReasonPromotional, Detail: fmt.Sprintf("matched %q", strings.TrimSpace(m))}
		}
	}

	stripped := c.Body
	matched := false
	for _, re := range f.boiler {
		if re.MatchString(stripped) {
			matched = true
			stripped = re.ReplaceAllString(stripped, " ")
		}
	}
	if matched && utf8.RuneCountInString(strings.TrimSpace(stripped)) < f.minBody {
		return Verdict{Reason: domain.ReasonBoilerplate, Detail: "navigation text only"}
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(c.Body)); n < f.minBody {
		return Verdict{Reason: domain.ReasonTooShort, Detail: fmt.Sprintf("body has %d characters, need %d", n, f.minBody)}
	}

	for _, sentence := range textutil.Sentences(stripped) {
		if f.substantive(sentence) {
			return Verdict{Accept: true}
		}
	}
	return Verdict{Reason: domain.ReasonBoilerplate, Detail: "no substantive sentence"}
}

// substantive requires enough words and some lower-case prose words, which
// menus and lists of names lack.
func (f *Filter) substantive(sentence string) bool {
	if textutil.Words(sentence) < f.minWords {
		return false
	}
	lower := 0
	for _, w := range strings.Fields(sentence) {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsLower(r) {
			lower++
		}
	}
	return lower >= 2
}
