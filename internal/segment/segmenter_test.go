package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/normalize"
)

const tldrPattern = `^(?P<headline>[A-Z0-9][A-Z0-9\s&',.:!?$%/-]+?)\s*\((?P<minutes>\d+)\s+MINUTE\s+READ\)\s*(?:\[\d+\])?`

func lines(texts ...string) domain.NormalizedText {
	var out domain.NormalizedText
	for _, t := range texts {
		brk := false
		if strings.HasPrefix(t, "\n") {
			brk = true
			t = strings.TrimPrefix(t, "\n")
		}
		out.Lines = append(out.Lines, domain.Line{Text: t, BreakBefore: brk})
	}
	return out
}

func mustSegmenter(t *testing.T, sources map[string]PlanConfig) *Segmenter {
	t.Helper()
	s, err := New(DefaultRegistry(), sources)
	if err != nil {
		t.Fatalf("new segmenter: %v", err)
	}
	return s
}

func tldrPlan() PlanConfig {
	return PlanConfig{
		Rules: []RuleConfig{
			{Kind: "headline", Pattern: tldrPattern},
			{Kind: "section"},
		},
		MinLineLength: 20,
		MaxBodyLines:  10,
	}
}

func TestSegmentTLDRSections(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, map[string]PlanConfig{"tldr": tldrPlan()})
	text := lines(
		"TLDR",
		"Big Tech & Startups",
		"APPLE UNVEILS NEW AI CHIP (3 MINUTE READ) [1]",
		"Apple announced its M5 chip today, which the company says doubles neural engine throughput.",
		"It ships in new MacBooks next month according to the company.",
		"NVIDIA POSTS RECORD QUARTER (4 MINUTE READ) [2]",
		"Nvidia reported record quarterly revenue driven by demand for data center GPUs.",
		"🚀",
		"SCIENCE & FUTURISTIC TECHNOLOGY",
		"Sponsored content lives here and must not join the previous story at all.",
		"SPACEX LAUNCHES STARSHIP AGAIN (2 MINUTE READ) [3]",
		"SpaceX completed the sixth test flight of Starship with a successful booster catch.",
		"OPENAI RAISES FUNDS (1 MINUTE READ) [4]",
		"short",
		"OpenAI closed a new funding round valuing the company at over 150 billion dollars.",
	)

	got := s.Segment("m1", "tldr", text)
	want := []string{"APPLE UNVEILS NEW AI CHIP", "NVIDIA POSTS RECORD QUARTER", "SPACEX LAUNCHES STARSHIP AGAIN", "OPENAI RAISES FUNDS"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Headline != w {
			t.Fatalf("candidate %d: want headline %q got %q", i, w, got[i].Headline)
		}
		if got[i].Position != i+1 || got[i].MessageID != "m1" || got[i].SourceID != "tldr" {
			t.Fatalf("candidate %d: bad provenance %+v", i, got[i])
		}
	}
	if strings.Contains(got[1].Body, "Sponsored") {
		t.Fatalf("section marker did not end the story: %q", got[1].Body)
	}
	if strings.Contains(got[3].Body, "short") {
		t.Fatalf("short line leaked into body: %q", got[3].Body)
	}
}

func TestSegmentKHeadlinesYieldKCandidates(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, map[string]PlanConfig{"tldr": tldrPlan()})
	for k := 1; k <= 8; k++ {
		var texts []string
		for i := 1; i <= k; i++ {
			texts = append(texts,
				fmt.Sprintf("STORY NUMBER %d HEADLINE (%d MINUTE READ) [%d]", i, i, i),
				fmt.Sprintf("Body of story %d carries enough words to look like real newsletter prose.", i),
			)
		}
		got := s.Segment("m", "tldr", lines(texts...))
		if len(got) != k {
			t.Fatalf("k=%d: expected %d candidates, got %d", k, k, len(got))
		}
	}
}

func TestSegmentTightHeadlines(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, nil)
	text := lines(
		"Apple ships its new headset",
		"Apple said the device goes on sale in twelve more countries next month.",
		"Fed holds rates steady again",
		"The Federal Reserve left its benchmark rate unchanged for a fourth straight meeting",
		"Oil slides as supply grows",
		"Crude prices fell for a third session after OPEC members signaled higher output.",
	)
	got := s.Segment("m", "unknown", text)
	want := []string{"Apple ships its new headset", "Fed holds rates steady again", "Oil slides as supply grows"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Headline != w {
			t.Fatalf("candidate %d: want %q got %q", i, w, got[i].Headline)
		}
	}
}

func TestSegmentWrappedBodyIsNotAHeadline(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, nil)
	text := lines(
		"Markets rally on cooling inflation",
		"Stocks climbed for a third day as investors cheered softer price data and",
		"Treasury yields",
		"fell to their lowest level since the spring according to market data.",
	)
	got := s.Segment("m", "unknown", text)
	if len(got) != 1 || got[0].Headline != "Markets rally on cooling inflation" {
		t.Fatalf("expected one candidate, got %+v", got)
	}
}

func TestSegmentBullets(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, nil)
	text := lines(
		"Today's quick hits:",
		"• Apple said its headset goes on sale in twelve more countries next month. Prices are unchanged.",
		"• The Federal Reserve left its benchmark rate unchanged for a fourth straight meeting.",
		"· Crude prices fell for a third session after OPEC members signaled higher output.",
		"• • •",
	)
	got := s.Segment("m", "unknown", text)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
	}
	if got[0].Headline != "Apple said its headset goes on sale in twelve more countries next month" {
		t.Fatalf("unexpected bullet headline %q", got[0].Headline)
	}
	if !strings.HasSuffix(got[0].Body, "Prices are unchanged.") || strings.Contains(got[2].Body, "•") {
		t.Fatalf("unexpected bullet bodies: %+v", got)
	}

	titled := lines(
		"• Fed holds rates steady",
		"The Federal Reserve left its benchmark rate unchanged for a fourth straight meeting.",
		"• Oil slides as supply grows",
		"Crude prices fell for a third session after OPEC members signaled higher output.",
	)
	got = s.Segment("m", "unknown", titled)
	if len(got) != 2 || got[1].Headline != "Oil slides as supply grows" || !strings.HasPrefix(got[1].Body, "Crude prices") {
		t.Fatalf("titled bullets: unexpected candidates %+v", got)
	}
}

// layouts render k stories in the shapes newsletters commonly use.
var layouts = []struct {
	name        string
	source      string
	contentType string
	render      func(k int) string
}{
	{"headings", "unknown", "text/html", func(k int) string {
		var b strings.Builder
		for i := 1; i <= k; i++ {
			fmt.Fprintf(&b, "<h2>%s</h2><p>%s</p>", storyHeadline(i), storyBody(i))
		}
		return "<html><body>" + b.String() + "</body></html>"
	}},
	{"table rows", "unknown", "text/html", func(k int) string {
		var b strings.Builder
		for i := 1; i <= k; i++ {
			fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td></tr><tr><td>%s</td></tr>", storyHeadline(i), storyBody(i))
		}
		return "<html><body><table>" + b.String() + "</table></body></html>"
	}},
	{"line breaks", "unknown", "text/html", func(k int) string {
		var b strings.Builder
		for i := 1; i <= k; i++ {
			fmt.Fprintf(&b, "<b>%s</b><br>%s<br>", storyHeadline(i), storyBody(i))
		}
		return "<html><body><div>" + b.String() + "</div></body></html>"
	}},
	{"separators", "sep", "text/html", func(k int) string {
		parts := make([]string, 0, k)
		for i := 1; i <= k; i++ {
			parts = append(parts, fmt.Sprintf("<p>%s</p><p>%s</p>", storyHeadline(i), storyBody(i)))
		}
		return "<html><body>" + strings.Join(parts, "<hr>") + "</body></html>"
	}},
	{"tight plain text", "unknown", "text/plain", func(k int) string {
		var b strings.Builder
		for i := 1; i <= k; i++ {
			fmt.Fprintf(&b, "%s\n%s\n", storyHeadline(i), storyBody(i))
		}
		return b.String()
	}},
	{"bullets", "unknown", "text/plain", func(k int) string {
		var b strings.Builder
		for i := 1; i <= k; i++ {
			fmt.Fprintf(&b, "• %s\n", storyBody(i))
		}
		return b.String()
	}},
}

func storyHeadline(i int) string {
	return fmt.Sprintf("Story %d headline about the markets", i)
}

func storyBody(i int) string {
	return fmt.Sprintf("Story %d body carries enough words to look like real newsletter prose today.", i)
}

func TestSegmentKStoriesAcrossLayouts(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, map[string]PlanConfig{"sep": {Rules: []RuleConfig{{Kind: "separator"}}}})
	n := normalize.New(normalize.Options{})
	for _, layout := range layouts {
		for k := 1; k <= 6; k++ {
			body := domain.Part{ContentType: layout.contentType + "; charset=utf-8", Data: []byte(layout.render(k))}
			text, err := n.Normalize(body)
			if err != nil {
				t.Fatalf("%s k=%d: normalize: %v", layout.name, k, err)
			}
			got := s.Segment("m", layout.source, text)
			if len(got) != k {
				t.Fatalf("%s k=%d: expected %d candidates, got %d:\n%s", layout.name, k, k, len(got), text.String())
			}
			for j, c := range got {
				if !strings.Contains(c.Headline, fmt.Sprintf("Story %d ", j+1)) {
					t.Fatalf("%s k=%d: candidate %d has headline %q", layout.name, k, j, c.Headline)
				}
			}
		}
	}
}

func TestSegmentNumberingBeatsSeparator(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, map[string]PlanConfig{
		"brew": {Rules: []RuleConfig{{Kind: "separator", Pattern: `={3,}`}, {Kind: "numbered"}}},
	})
	text := lines(
		"Intro line that should be ignored by the segmenter entirely.",
		"1. Markets rally === stocks up",
		"Stocks climbed for a third day as investors cheered cooling inflation data.",
		"=====",
		"2. Oil slides",
		"Crude prices fell after OPEC signaled higher output for the coming quarter.",
		"5) reasons the analysts gave are listed below in the original piece.",
	)

	got := s.Segment("m", "brew", text)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].Headline != "Markets rally === stocks up" {
		t.Fatalf("unexpected first headline: %q", got[0].Headline)
	}
	if got[1].Headline != "Oil slides" || !strings.Contains(got[1].Body, "5) reasons") {
		t.Fatalf("out-of-sequence number must stay in the body: %+v", got[1])
	}
}

func TestSegmentNumberOnItsOwnLine(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, nil)
	text := lines(
		"\n1.",
		"Fed holds rates",
		"The central bank left its benchmark rate unchanged for the fourth meeting in a row.",
		"\n2.",
		"Apple ships Vision Pro",
		"The headset goes on sale in twelve more countries starting next Friday morning.",
	)
	got := s.Segment("m", "unknown", text)
	if len(got) != 2 || got[0].Headline != "Fed holds rates" || got[1].Headline != "Apple ships Vision Pro" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
	if !strings.HasPrefix(got[0].Body, "The central bank") {
		t.Fatalf("headline line leaked into body: %q", got[0].Body)
	}
}

func TestSegmentParagraphFallback(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, nil)
	text := lines(
		"The Fed held rates steady on Wednesday. Officials signaled patience on future cuts.",
		"\nRetail sales rose 0.4% in March, beating forecasts. Economists had expected a smaller gain.",
	)
	got := s.Segment("m", "unknown", text)
	if len(got) != 2 {
		t.Fatalf("expected 2 paragraph candidates, got %d: %+v", len(got), got)
	}
	if got[0].Headline != "The Fed held rates steady on Wednesday" {
		t.Fatalf("unexpected fallback headline: %q", got[0].Headline)
	}
}

func TestSegmentSeparatorBlocks(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, map[string]PlanConfig{"sep": {Rules: []RuleConfig{{Kind: "separator"}}}})
	text := lines(
		"Story A title",
		"Body of story A with plenty of words to read through.",
		"---",
		"Story B title",
		"Body of story B with plenty of words to read through.",
	)
	got := s.Segment("m", "sep", text)
	if len(got) != 2 || got[0].Headline != "Story A title" || got[1].Headline != "Story B title" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestSegmentMaxStoriesAndEmpty(t *testing.T) {
	t.Parallel()

	s := mustSegmenter(t, map[string]PlanConfig{"capped": {Rules: []RuleConfig{{Kind: "numbered"}}, MaxStories: 3}})
	var texts []string
	for i := 1; i <= 5; i++ {
		texts = append(texts, fmt.Sprintf("%d. Headline %d", i, i), "Some body text that follows the numbered headline line.")
	}
	if got := s.Segment("m", "capped", lines(texts...)); len(got) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(got))
	}
	if got := s.Segment("m", "capped", domain.NormalizedText{}); len(got) != 0 {
		t.Fatalf("expected no candidates for empty text, got %d", len(got))
	}
}

func TestRegistryBuild(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()
	if _, err := reg.Build(RuleConfig{Kind: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := reg.Build(RuleConfig{Kind: "headline", Pattern: "("}); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
	if _, err := New(reg, map[string]PlanConfig{"x": {Rules: []RuleConfig{{Kind: "nope"}}}}); err == nil {
		t.Fatalf("expected segmenter construction to fail")
	}
}
