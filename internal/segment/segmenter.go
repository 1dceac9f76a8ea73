// Package segment splits normalized newsletter text into candidate stories.
package segment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/textutil"
)

// PlanConfig is the per-source segmentation setup.
type PlanConfig struct {
	Rules []RuleConfig
	// MaxStories caps candidates per message; zero means unlimited.
	MaxStories int
	// MinLineLength drops shorter body lines.
	MinLineLength int
	// MaxBodyLines caps body lines per story; zero means unlimited.
	MaxBodyLines int
}

type plan struct {
	rules         []Rule
	hasStart      bool
	maxStories    int
	minLineLength int
	maxBodyLines  int
}

// DefaultRules is used for sources without their own rule set.
var DefaultRules = []RuleConfig{
	{Kind: string(KindNumbered)},
	{Kind: string(KindBullet)},
	{Kind: string(KindHeadline)},
	{Kind: string(KindSeparator)},
}

// Segmenter resolves a rule plan per source and applies it. Plans are
// compiled once; Segment is safe for concurrent use.
type Segmenter struct {
	plans    map[string]plan
	fallback plan
}

// New compiles the per-source plans with rules from reg.
func New(reg *Registry, sources map[string]PlanConfig) (*Segmenter, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	fallback, err := compilePlan(reg, PlanConfig{Rules: DefaultRules})
	if err != nil {
		return nil, err
	}
	s := &Segmenter{plans: map[string]plan{}, fallback: fallback}
	for id, cfg := range sources {
		if len(cfg.Rules) == 0 {
			cfg.Rules = DefaultRules
		}
		p, err := compilePlan(reg, cfg)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", id, err)
		}
		s.plans[id] = p
	}
	return s, nil
}

func compilePlan(reg *Registry, cfg PlanConfig) (plan, error) {
	p := plan{
		maxStories:    cfg.MaxStories,
		minLineLength: cfg.MinLineLength,
		maxBodyLines:  cfg.MaxBodyLines,
	}
	for _, rc := range cfg.Rules {
		rule, err := reg.Build(rc)
		if err != nil {
			return plan{}, err
		}
		p.rules = append(p.rules, rule)
		p.hasStart = p.hasStart || rule.Kind().startsStory()
	}
	sort.SliceStable(p.rules, func(i, j int) bool {
		return priority[p.rules[i].Kind()] > priority[p.rules[j].Kind()]
	})
	return p, nil
}

type draft struct {
	headline string
	body     []string
}

// Segment splits text into candidates using the plan of sourceID. When no
// rule finds a boundary the text is split on paragraph breaks instead.
// Zero candidates is a valid result.
func (s *Segmenter) Segment(messageID, sourceID string, text domain.NormalizedText) []domain.CandidateStory {
	p, ok := s.plans[sourceID]
	if !ok {
		p = s.fallback
	}

	drafts, boundaries := p.apply(text.Lines)
	if boundaries == 0 {
		drafts = p.paragraphs(text.Lines)
	}

	out := make([]domain.CandidateStory, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, domain.CandidateStory{
			Headline:  textutil.Truncate(d.headline, 200),
			Body:      strings.Join(d.body, " "),
			MessageID: messageID,
			SourceID:  sourceID,
			Position:  len(out) + 1,
		})
	}
	return out
}

func (p plan) mark(lines []domain.Line, i, lastOrdinal int) (Marker, bool) {
	for _, r := range p.rules {
		m, ok := r.Mark(lines, i)
		if !ok {
			continue
		}
		if m.Kind == KindNumbered && m.Ordinal != 1 && m.Ordinal != lastOrdinal+1 {
			continue
		}
		return m, true
	}
	return Marker{}, false
}

func (p plan) apply(lines []domain.Line) ([]draft, int) {
	var (
		drafts      []draft
		cur         *draft
		boundaries  int
		lastOrdinal int
		openNext    = !p.hasStart
	)
	flush := func() {
		if cur != nil && (cur.headline != "" || len(cur.body) > 0) {
			drafts = append(drafts, *cur)
		}
		cur = nil
	}

	for i := 0; i < len(lines); i++ {
		if p.maxStories > 0 && len(drafts) >= p.maxStories {
			break
		}
		if m, ok := p.mark(lines, i, lastOrdinal); ok {
			flush()
			switch m.Kind {
			case KindNumbered, KindBullet, KindHeadline:
				cur = &draft{headline: m.Headline}
				if m.Rest != "" {
					cur.body = append(cur.body, m.Rest)
				}
				if m.Kind == KindNumbered {
					lastOrdinal = m.Ordinal
				}
				boundaries++
				openNext = false
				i += m.Consumes
			case KindSeparator:
				boundaries++
				openNext = true
			case KindSection:
				openNext = false
			}
			continue
		}

		text := lines[i].Text
		if openNext {
			cur = &draft{headline: cleanHeadline(text)}
			openNext = false
			continue
		}
		if cur == nil {
			continue
		}
		p.addBody(cur, text)
	}
	flush()

	if p.maxStories > 0 && len(drafts) > p.maxStories {
		drafts = drafts[:p.maxStories]
	}
	return drafts, boundaries
}

func (p plan) addBody(d *draft, text string) {
	if len(text) < p.minLineLength {
		return
	}
	if p.maxBodyLines > 0 && len(d.body) >= p.maxBodyLines {
		return
	}
	d.body = append(d.body, text)
}

// paragraphs is the generic fallback: each blank-line separated block is a
// story. A block made of a single title-shaped line heads the next block.
func (p plan) paragraphs(lines []domain.Line) []draft {
	var blocks [][]domain.Line
	for i, l := range lines {
		if i == 0 || l.BreakBefore {
			blocks = append(blocks, nil)
		}
		blocks[len(blocks)-1] = append(blocks[len(blocks)-1], l)
	}

	var (
		drafts  []draft
		pending string
	)
	for bi, block := range blocks {
		if p.maxStories > 0 && len(drafts) >= p.maxStories {
			break
		}
		if len(block) == 1 && bi+1 < len(blocks) && titleLike(block[0].Text) {
			pending = cleanHeadline(block[0].Text)
			continue
		}

		d := draft{headline: pending}
		pending = ""
		start := 0
		if d.headline == "" && len(block) > 1 && titleLike(block[0].Text) {
			d.headline = cleanHeadline(block[0].Text)
			start = 1
		}
		for _, l := range block[start:] {
			p.addBody(&d, l.Text)
		}
		if d.headline == "" {
			d.headline = leadSentence(strings.Join(d.body, " "))
		}
		if d.headline != "" || len(d.body) > 0 {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

func titleLike(s string) bool {
	return headlineShaped([]domain.Line{{Text: s}, {Text: strings.Repeat("x", len(s)+minParagraphLen)}}, 0)
}

func leadSentence(text string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return ""
	}
	return textutil.Truncate(strings.TrimRight(sentences[0], "."), maxHeadlineLen)
}
