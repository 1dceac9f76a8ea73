package normalize

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// paragraphBreak is written between block elements; toLines turns it into BreakBefore.
const paragraphBreak = "\n\f\n"

// defaultChrome selects navigational and hidden elements dropped before text extraction.
var defaultChrome = []string{
	"head", "script", "style", "noscript", "template", "iframe", "svg", "form", "button",
	"nav", "header", "footer", "[role=navigation]", "[role=banner]", "[role=contentinfo]",
	"[aria-hidden=true]", ".preheader", "#preheader", ".footer", "#footer", ".unsubscribe",
}

// chromePhrases mark small blocks that only carry list management links.
var chromePhrases = []string{
	"unsubscribe", "manage your preferences", "update your preferences", "manage preferences",
	"view in browser", "view online", "view this email in your browser", "email preferences",
	"you are receiving this", "you received this email", "forward to a friend",
}

const maxChromeBlock = 280

// maxLeadEmphasis bounds bold text treated as a heading when it opens a line.
const maxLeadEmphasis = 140

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true, "title": true,
	"template": true, "iframe": true, "svg": true, "nav": true, "footer": true,
	"header": true, "form": true, "button": true, "select": true, "object": true,
}

var paragraphTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "tr": true, "blockquote": true, "section": true, "article": true, "ul": true,
	"ol": true, "pre": true, "dl": true, "figure": true, "main": true, "aside": true,
}

var lineTags = map[string]bool{
	"div": true, "td": true, "th": true, "li": true, "dt": true, "dd": true,
	"caption": true, "center": true, "address": true, "figcaption": true, "tbody": true,
}

// htmlText renders an HTML document into line-structured text.
func (n *Normalizer) htmlText(src string) (string, error) {
	if n.opts.Readability {
		if content, ok := readableContent(src); ok {
			src = content
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", err
	}
	removeChrome(doc, n.chrome)

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	w := &textWriter{}
	for _, node := range root.Nodes {
		w.walk(node)
	}
	return w.b.String(), nil
}

func removeChrome(doc *goquery.Document, selectors []string) {
	for _, sel := range selectors {
		doc.Find(sel).Remove()
	}

	doc.Find("[style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		style := strings.ToLower(strings.ReplaceAll(s.AttrOr("style", ""), " ", ""))
		return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") ||
			strings.Contains(style, "max-height:0") && strings.Contains(style, "overflow:hidden")
	}).Remove()

	doc.Find("p, div, td, span, table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text == "" || len(text) > maxChromeBlock {
			return false
		}
		for _, phrase := range chromePhrases {
			if strings.Contains(text, phrase) {
				return true
			}
		}
		return false
	}).Remove()
}

func readableContent(src string) (string, bool) {
	base := &url.URL{Scheme: "https", Host: "newsletter.invalid", Path: "/"}
	article, err := readability.FromReader(strings.NewReader(src), base)
	if err != nil {
		return "", false
	}
	if len(strings.TrimSpace(article.TextContent)) < 200 {
		return "", false
	}
	return article.Content, true
}

type textWriter struct {
	b        strings.Builder
	pre      int
	brs      int
	ordinals []int
	inOL     []bool
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	case html.DocumentNode:
		w.children(n)
		return
	default:
		return
	}

	tag := strings.ToLower(n.Data)
	if skipTags[tag] {
		return
	}

	switch {
	case tag == "br":
		w.brs++
		if w.brs == 2 {
			w.b.WriteString(paragraphBreak)
		} else {
			w.b.WriteByte('\n')
		}
		return
	case tag == "hr":
		w.b.WriteString(paragraphBreak + "---" + paragraphBreak)
		return
	case tag == "img":
		return
	case (tag == "b" || tag == "strong") && w.atLineStart():
		// Bold text opening a line heads a block, as in <b>Title</b><br>body.
		if t := strings.TrimSpace(nodeText(n)); t != "" && len(t) <= maxLeadEmphasis {
			w.b.WriteString(paragraphBreak)
		}
	}

	switch tag {
	case "pre":
		w.pre++
		defer func() { w.pre-- }()
	case "ol":
		start := 1
		if v, err := strconv.Atoi(attr(n, "start")); err == nil {
			start = v
		}
		w.ordinals = append(w.ordinals, start-1)
		w.inOL = append(w.inOL, true)
		defer w.pop()
	case "ul":
		w.ordinals = append(w.ordinals, 0)
		w.inOL = append(w.inOL, false)
		defer w.pop()
	}

	switch {
	case paragraphTags[tag]:
		w.b.WriteString(paragraphBreak)
		w.children(n)
		w.b.WriteString(paragraphBreak)
	case lineTags[tag]:
		w.b.WriteByte('\n')
		if tag == "li" {
			w.listMarker()
		}
		w.children(n)
		w.b.WriteByte('\n')
	default:
		w.children(n)
	}
}

func (w *textWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *textWriter) text(data string) {
	if w.pre > 0 {
		w.brs = 0
		w.b.WriteString(data)
		return
	}
	if strings.TrimSpace(data) == "" {
		w.b.WriteByte(' ')
		return
	}
	w.brs = 0
	if first := data[0]; first == ' ' || first == '\n' || first == '\t' || first == '\r' {
		w.b.WriteByte(' ')
	}
	w.b.WriteString(strings.Join(strings.Fields(data), " "))
	if last := data[len(data)-1]; last == ' ' || last == '\n' || last == '\t' || last == '\r' {
		w.b.WriteByte(' ')
	}
}

func (w *textWriter) atLineStart() bool {
	s := strings.TrimRight(w.b.String(), " ")
	return s == "" || s[len(s)-1] == '\n'
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

func (w *textWriter) listMarker() {
	depth := len(w.inOL)
	if depth == 0 || !w.inOL[depth-1] {
		return
	}
	w.ordinals[depth-1]++
	w.b.WriteString(strconv.Itoa(w.ordinals[depth-1]) + ". ")
}

func (w *textWriter) pop() {
	w.ordinals = w.ordinals[:len(w.ordinals)-1]
	w.inOL = w.inOL[:len(w.inOL)-1]
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
