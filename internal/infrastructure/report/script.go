package report

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/SAMK-online/NewsPod/internal/domain"
)

// Joe is the enthusiastic host, Jane the analytical one.
const scriptTemplate = `Joe: Welcome to NewsPod, your newsletter roundup for {{.Date}}!
{{- if .Stories}}
Jane: We went through {{.Newsletters}} and kept {{.Count}} {{if eq .Count 1}}story{{else}}stories{{end}} worth your time.
{{- range .Stories}}

Joe: {{.Lead}} {{.Headline}}.
Jane: {{.Summary}}
{{- if .Ticker}}
Joe: Market check on {{.Company}}, ticker {{.Ticker}}: {{.Market}}.
Jane: {{if .HasQuote}}Keep that move in context. One day of trading rarely tells the whole story.{{else}}No reliable price data came through for that one, so we will leave the numbers aside.{{end}}
{{- end}}
Jane: That one came from {{.Sources}}.
{{- end}}

Joe: And that's the roundup!
Jane: Thanks for listening. See you next time.
{{- else}}
Jane: Quiet inbox this time. None of the newsletters gave us a story we could report.
{{- range .Notes}}
Jane: {{.}}
{{- end}}
Joe: We'll be back with more soon.
{{- end}}
`

var scriptTmpl = template.Must(template.New("script").Parse(scriptTemplate))

type scriptStory struct {
	Lead     string
	Headline string
	Summary  string
	Company  string
	Ticker   string
	Market   string
	HasQuote bool
	Sources  string
}

type scriptView struct {
	Date        string
	Newsletters string
	Count       int
	Stories     []scriptStory
	Notes       []string
}

// RenderScript writes the two-host podcast script for the collection.
func RenderScript(r domain.ReportCollection, generatedAt time.Time) (string, error) {
	view := scriptView{
		Date:        generatedAt.Format("Monday, January 2"),
		Newsletters: joinNames(r.Newsletters()),
		Count:       len(r.Stories),
	}
	for i, s := range r.Stories {
		company := s.Company
		if company == "" {
			company = s.Ticker
		}
		view.Stories = append(view.Stories, scriptStory{
			Lead:     lead(i, len(r.Stories)),
			Headline: strings.TrimRight(s.Headline, ".!?"),
			Summary:  s.Summary,
			Company:  company,
			Ticker:   s.Ticker,
			Market:   s.FinancialContext(),
			HasQuote: s.Financial != nil && s.Financial.Available,
			Sources:  joinNames(strings.Split(sourceList(s), ", ")),
		})
	}
	if len(r.Stories) == 0 {
		view.Notes = r.Notes.Log
	}

	var b strings.Builder
	if err := scriptTmpl.Execute(&b, view); err != nil {
		return "", fmt.Errorf("execute script template: %w", err)
	}
	return b.String(), nil
}

func lead(i, total int) string {
	switch {
	case i == 0:
		return "First up:"
	case i == total-1:
		return "Finally:"
	default:
		return "Next:"
	}
}

// joinNames renders "A", "A and B" or "A, B and C".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "our newsletters"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
