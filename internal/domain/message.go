package domain

import (
	"strings"
	"time"
)

// Part is a single node of a MIME body tree. Leaf parts carry Data; multipart
// containers carry Parts.
type Part struct {
	ContentType      string
	TransferEncoding string
	Data             []byte
	Parts            []Part
}

// MediaType returns the lower-cased media type without parameters.
func (p Part) MediaType() string {
	mt := p.ContentType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsMultipart reports whether the part is a container.
func (p Part) IsMultipart() bool {
	return len(p.Parts) > 0 || strings.HasPrefix(p.MediaType(), "multipart/")
}

// RawMessage is an email as supplied by the inbox collaborator.
type RawMessage struct {
	ID         string
	From       string
	Subject    string
	ListID     string
	ReceivedAt time.Time
	Body       Part
}

// Line is one non-empty line of normalized text. BreakBefore marks a
// paragraph boundary between this line and the previous one.
type Line struct {
	Text        string
	BreakBefore bool
}

// NormalizedText is a markup-free, line-structured rendering of a body.
type NormalizedText struct {
	Lines []Line
}

// Empty reports whether no text was extracted.
func (t NormalizedText) Empty() bool {
	return len(t.Lines) == 0
}

// String joins lines, rendering paragraph boundaries as blank lines.
func (t NormalizedText) String() string {
	var b strings.Builder
	for i, l := range t.Lines {
		if i > 0 {
			b.WriteByte('\n')
			if l.BreakBefore {
				b.WriteByte('\n')
			}
		}
		b.WriteString(l.Text)
	}
	return b.String()
}
