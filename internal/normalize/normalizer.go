// Package normalize turns raw MIME bodies into line-structured plain text.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/textutil"
)

// ErrNoText is returned when no part of the body yields any text.
var ErrNoText = errors.New("no extractable text")

// Options tunes HTML handling.
type Options struct {
	// Readability runs a main-content pass over HTML bodies before extraction.
	Readability bool
	// ChromeSelectors are extra CSS selectors removed from HTML bodies.
	ChromeSelectors []string
}

// Normalizer extracts text from message bodies. It holds no per-message state
// and is safe for concurrent use.
type Normalizer struct {
	opts   Options
	chrome []string
}

// New builds a Normalizer.
func New(opts Options) *Normalizer {
	chrome := append([]string{}, defaultChrome...)
	for _, sel := range opts.ChromeSelectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			chrome = append(chrome, sel)
		}
	}
	return &Normalizer{opts: opts, chrome: chrome}
}

// Normalize picks the best text part of body and renders it as lines.
// A text/plain part is preferred; the first HTML part is used otherwise.
// An empty result is always accompanied by an error wrapping ErrNoText.
func (n *Normalizer) Normalize(body domain.Part) (domain.NormalizedText, error) {
	var (
		problems []string
		htmlSeen bool
	)

	plain, html := n.pick(body, &problems)
	if plain != "" {
		if looksLikeHTML(plain) {
			html, htmlSeen = plain, true
		} else if text := toLines(plain, true); !text.Empty() {
			return text, nil
		}
	}

	if html != "" {
		htmlSeen = true
		raw, err := n.htmlText(html)
		if err != nil {
			problems = append(problems, fmt.Sprintf("parse html: %v", err))
		} else if text := toLines(raw, false); !text.Empty() {
			return text, nil
		}
	}

	if !htmlSeen && plain == "" && len(problems) == 0 {
		problems = append(problems, "no text/plain or text/html part")
	}
	if len(problems) == 0 {
		return domain.NormalizedText{}, ErrNoText
	}
	return domain.NormalizedText{}, fmt.Errorf("%w: %s", ErrNoText, strings.Join(problems, "; "))
}

// pick walks the part tree depth-first and returns the decoded contents of
// the first non-empty text/plain and text/html parts.
func (n *Normalizer) pick(p domain.Part, problems *[]string) (plain, html string) {
	var visit func(p domain.Part)
	visit = func(p domain.Part) {
		if plain != "" && html != "" {
			return
		}
		if p.IsMultipart() {
			for _, child := range p.Parts {
				visit(child)
			}
			return
		}

		mt := p.MediaType()
		isHTML := mt == "text/html" || mt == "application/xhtml+xml"
		isPlain := mt == "text/plain" || mt == ""
		if !isHTML && !isPlain {
			return
		}
		if isHTML && html != "" || isPlain && plain != "" {
			return
		}

		data, err := decodeTransfer(p.TransferEncoding, p.Data)
		if err != nil {
			*problems = append(*problems, fmt.Sprintf("%s: %v", mt, err))
			return
		}
		text := decodeCharset(p.ContentType, data, isHTML)
		if strings.TrimSpace(text) == "" {
			return
		}
		if isHTML {
			html = text
		} else {
			plain = text
		}
	}
	visit(p)
	return plain, html
}

func looksLikeHTML(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<body") || strings.Contains(head, "<table")
}

var (
	urlOnly   = regexp.MustCompile(`^[<(\[]?https?://\S+[>)\]]?$`)
	inlineURL = regexp.MustCompile(`\s*[<(\[]https?://[^\s>)\]]+[>)\]]`)
)

// toLines splits text into non-empty cleaned lines. A form feed line, or a
// blank line when blankIsBreak is set, becomes a BreakBefore flag on the next line.
func toLines(s string, blankIsBreak bool) domain.NormalizedText {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var (
		out          domain.NormalizedText
		pendingBreak bool
	)
	for _, raw := range strings.Split(s, "\n") {
		if strings.ContainsRune(raw, '\f') {
			pendingBreak = true
			continue
		}
		line := textutil.CleanLine(inlineURL.ReplaceAllString(raw, ""))
		if line == "" {
			pendingBreak = pendingBreak || blankIsBreak
			continue
		}
		if urlOnly.MatchString(line) {
			continue
		}
		out.Lines = append(out.Lines, domain.Line{
			Text:        line,
			BreakBefore: pendingBreak && len(out.Lines) > 0,
		})
		pendingBreak = false
	}
	return out
}
