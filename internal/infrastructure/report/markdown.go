// Package report renders a ReportCollection as Markdown, PDF and a podcast
// script, and writes them to disk.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/SAMK-online/NewsPod/internal/domain"
)

const reportTitle = "Newsletter News Report"

// RenderMarkdown lays out the collection. The processing notes always close
// the document, also when no story was extracted.
func RenderMarkdown(r domain.ReportCollection, generatedAt time.Time) string {
	var b strings.Builder
	n := r.Notes
	newsletters := r.Newsletters()

	fmt.Fprintf(&b, "# %s\n\n", reportTitle)
	fmt.Fprintf(&b, "_Generated %s", generatedAt.UTC().Format("2006-01-02 15:04 MST"))
	if n.RunID != "" {
		fmt.Fprintf(&b, ", run %s", n.RunID)
	}
	b.WriteString("_\n\n")

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "Scanned %d messages: %d from known newsletters were processed and %d were set aside. ",
		n.MessagesScanned, n.MessagesAccepted, n.MessagesRejected)
	fmt.Fprintf(&b, "%d %s extracted from %d %s",
		len(r.Stories), plural(len(r.Stories), "story was", "stories were"),
		len(newsletters), plural(len(newsletters), "newsletter", "newsletters"))
	if n.CrossDuplicates > 0 {
		fmt.Fprintf(&b, " after merging %d cross-newsletter %s", n.CrossDuplicates, plural(n.CrossDuplicates, "duplicate", "duplicates"))
	}
	b.WriteString(".\n\n")

	b.WriteString("## Newsletters Processed\n\n")
	if len(newsletters) == 0 {
		b.WriteString("None.\n\n")
	}
	for _, name := range newsletters {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	if len(newsletters) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Stories\n\n")
	if len(r.Stories) == 0 {
		b.WriteString("No stories were extracted in this window. See the processing notes below.\n\n")
	}
	for i, s := range r.Stories {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, s.Headline)
		fmt.Fprintf(&b, "- **Source:** %s\n", sourceList(s))
		if s.Company != "" {
			company := s.Company
			if s.Ticker != "" {
				company += " (" + s.Ticker + ")"
			}
			fmt.Fprintf(&b, "- **Company:** %s\n", company)
		}
		fmt.Fprintf(&b, "- **Financial Context:** %s\n", s.FinancialContext())
		if !s.Source.ReceivedAt.IsZero() {
			fmt.Fprintf(&b, "- **Received:** %s\n", s.Source.ReceivedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
		fmt.Fprintf(&b, "\n%s\n\n", s.Summary)
	}

	b.WriteString("## Newsletter Processing Notes\n\n")
	for _, line := range noteLines(n) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

func sourceList(s domain.AcceptedStory) string {
	var names []string
	seen := map[string]bool{}
	for _, ref := range s.Sources() {
		name := ref.SourceName
		if name == "" {
			name = ref.SourceID
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// noteLines flattens run-level log entries and per-message outcomes.
func noteLines(n domain.ProcessingNotes) []string {
	lines := append([]string(nil), n.Log...)
	for _, m := range n.Messages {
		who := m.SourceName
		if who == "" {
			who = m.From
		}
		subject := ""
		if m.Subject != "" {
			subject = fmt.Sprintf(" %q", m.Subject)
		}

		switch {
		case !m.Accepted:
			lines = append(lines, fmt.Sprintf("%s%s: skipped (%s: %s)", who, subject, m.Reason, m.Detail))
		case m.Reason != "":
			lines = append(lines, fmt.Sprintf("%s%s: %s (%s)", who, subject, m.Reason, m.Detail))
		default:
			lines = append(lines, fmt.Sprintf("%s%s: %d of %d candidates kept", who, subject, m.Stories, m.Candidates))
		}
		for _, rej := range m.Rejections {
			headline := rej.Headline
			if headline == "" {
				headline = "(no headline)"
			}
			lines = append(lines, fmt.Sprintf("%s: dropped %q as %s (%s)", who, headline, rej.Reason, rej.Detail))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No messages were found in the inbox window.")
	}
	return lines
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
