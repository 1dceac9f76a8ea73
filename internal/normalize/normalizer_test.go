package normalize

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/SAMK-online/NewsPod/internal/domain"
)

const newsletterHTML = `<html><head><title>Brew</title><style>.x{color:red}</style></head><body>
<div class="preheader" style="display:none">Preview text you should never see</div>
<header>Morning Brew</header>
<nav><a href="#">Home</a> <a href="#">Archive</a></nav>
<h1>Markets</h1>
<p>Stocks <b>rallied</b> on Tuesday.<br>Second line here.</p>
<ol><li>First item</li><li>Second item</li></ol>
<hr>
<p>After the rule.</p>
<script>var tracking = 1;</script>
<footer>Unsubscribe | Manage preferences</footer>
</body></html>`

func TestNormalizeHTMLKeepsStructure(t *testing.T) {
	t.Parallel()

	n := New(Options{})
	text, err := n.Normalize(domain.Part{ContentType: "text/html; charset=utf-8", Data: []byte(newsletterHTML)})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := []domain.Line{
		{Text: "Markets"},
		{Text: "Stocks rallied on Tuesday.", BreakBefore: true},
		{Text: "Second line here."},
		{Text: "1. First item", BreakBefore: true},
		{Text: "2. Second item"},
		{Text: "---", BreakBefore: true},
		{Text: "After the rule.", BreakBefore: true},
	}
	if len(text.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(text.Lines), text.String())
	}
	for i, w := range want {
		if text.Lines[i] != w {
			t.Fatalf("line %d: want %+v got %+v", i, w, text.Lines[i])
		}
	}
}

func TestNormalizeRowsAndBoldLeadsBreakParagraphs(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		html string
		want []domain.Line
	}{
		"table rows": {
			html: `<table><tr><td><strong>Fed holds rates</strong></td></tr><tr><td>The central bank left rates unchanged.</td></tr>` +
				`<tr><td><strong>Oil slides</strong></td></tr><tr><td>Crude fell for a third day.</td></tr></table>`,
			want: []domain.Line{
				{Text: "Fed holds rates"},
				{Text: "The central bank left rates unchanged.", BreakBefore: true},
				{Text: "Oil slides", BreakBefore: true},
				{Text: "Crude fell for a third day.", BreakBefore: true},
			},
		},
		"bold leads": {
			html: `<div><b>Fed holds rates</b><br>The central bank left rates unchanged.<br><b>Oil slides</b><br>Crude fell, <b>again</b>.</div>`,
			want: []domain.Line{
				{Text: "Fed holds rates"},
				{Text: "The central bank left rates unchanged."},
				{Text: "Oil slides", BreakBefore: true},
				{Text: "Crude fell, again."},
			},
		},
	}

	n := New(Options{})
	for name, tc := range cases {
		text, err := n.Normalize(domain.Part{ContentType: "text/html", Data: []byte("<html><body>" + tc.html + "</body></html>")})
		if err != nil {
			t.Fatalf("%s: normalize: %v", name, err)
		}
		if len(text.Lines) != len(tc.want) {
			t.Fatalf("%s: expected %d lines, got %d:\n%s", name, len(tc.want), len(text.Lines), text.String())
		}
		for i, w := range tc.want {
			if text.Lines[i] != w {
				t.Fatalf("%s: line %d: want %+v got %+v", name, i, w, text.Lines[i])
			}
		}
	}
}

func TestNormalizePrefersPlainText(t *testing.T) {
	t.Parallel()

	body := domain.Part{
		ContentType: "multipart/alternative; boundary=x",
		Parts: []domain.Part{
			{ContentType: "text/plain; charset=utf-8", Data: []byte("Hello world.\r\n\r\n\r\nSecond para.\r\nstill second.")},
			{ContentType: "text/html", Data: []byte("<p>HTML version</p>")},
		},
	}

	text, err := New(Options{}).Normalize(body)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(text.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", text.String())
	}
	if text.Lines[0].Text != "Hello world." || !text.Lines[1].BreakBefore || text.Lines[2].BreakBefore {
		t.Fatalf("unexpected lines: %+v", text.Lines)
	}
}

func TestNormalizeFallsBackToNestedHTML(t *testing.T) {
	t.Parallel()

	body := domain.Part{
		ContentType: "multipart/mixed",
		Parts: []domain.Part{
			{
				ContentType: "multipart/alternative",
				Parts: []domain.Part{
					{ContentType: "text/plain", Data: []byte("  \r\n ")},
					{ContentType: "text/html", Data: []byte("<p>One</p><p>Two</p><p>Three</p>")},
				},
			},
			{ContentType: "application/pdf", TransferEncoding: "base64", Data: []byte("JVBERi0=")},
		},
	}

	text, err := New(Options{}).Normalize(body)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(text.Lines) != 3 {
		t.Fatalf("document collapsed: %q", text.String())
	}
}

func TestNormalizeDecodesTransferAndCharset(t *testing.T) {
	t.Parallel()

	latin := base64.StdEncoding.EncodeToString([]byte("Caf\xe9 au lait"))
	cases := []struct {
		name string
		part domain.Part
		want string
	}{
		{
			name: "base64 latin1",
			part: domain.Part{ContentType: `text/plain; charset="ISO-8859-1"`, TransferEncoding: "base64", Data: []byte(latin)},
			want: "Café au lait",
		},
		{
			name: "quoted printable",
			part: domain.Part{ContentType: "text/plain; charset=utf-8", TransferEncoding: "Quoted-Printable", Data: []byte("Soft=\r\nbreak and caf=C3=A9")},
			want: "Softbreak and café",
		},
		{
			name: "unknown charset keeps utf8",
			part: domain.Part{ContentType: "text/plain; charset=x-made-up", Data: []byte("déjà vu")},
			want: "déjà vu",
		},
		{
			name: "undeclared invalid utf8",
			part: domain.Part{ContentType: "text/plain", Data: []byte("na\xefve")},
			want: "naïve",
		},
	}

	n := New(Options{})
	for _, tc := range cases {
		text, err := n.Normalize(tc.part)
		if err != nil {
			t.Fatalf("%s: normalize: %v", tc.name, err)
		}
		if got := text.String(); got != tc.want {
			t.Fatalf("%s: want %q got %q", tc.name, tc.want, got)
		}
	}
}

func TestNormalizeNoText(t *testing.T) {
	t.Parallel()

	n := New(Options{})
	_, err := n.Normalize(domain.Part{ContentType: "image/png", Data: []byte{0x89, 0x50}})
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}

	_, err = n.Normalize(domain.Part{ContentType: "text/plain", TransferEncoding: "base64", Data: []byte("!!!not base64!!!")})
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText for undecodable part, got %v", err)
	}
}

func TestNormalizePlainBodyThatIsHTML(t *testing.T) {
	t.Parallel()

	text, err := New(Options{}).Normalize(domain.Part{
		ContentType: "text/plain",
		Data:        []byte("<!DOCTYPE html><html><body><p>Real content</p><p>More</p></body></html>"),
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(text.Lines) != 2 || text.Lines[0].Text != "Real content" {
		t.Fatalf("unexpected lines: %+v", text.Lines)
	}
}

func TestNormalizeDropsURLNoise(t *testing.T) {
	t.Parallel()

	plain := "Read the story <https://example.com/a?b=c>\nhttps://tracking.example.com/x\nNext line [https://x.y/z]"
	text, err := New(Options{}).Normalize(domain.Part{ContentType: "text/plain", Data: []byte(plain)})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if text.String() != "Read the story\nNext line" {
		t.Fatalf("unexpected text: %q", text.String())
	}
}
