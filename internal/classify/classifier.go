// Package classify decides whether a message comes from a known newsletter.
package classify

import (
	"fmt"
	"sort"

	"github.com/SAMK-online/NewsPod/internal/domain"
)

// Source is one allow-listed newsletter.
type Source struct {
	ID      string
	Name    string
	Domains []string
	ListIDs []string
}

// Signal names the header evidence behind a decision.
type Signal string

const (
	SignalDomain Signal = "domain"
	SignalListID Signal = "list-id"
)

// Result is the classifier outcome: a recognized source or a reason.
type Result struct {
	Recognized bool
	Source     Source
	Domain     string
	Signal     Signal
	Reason     string
}

type entry struct {
	source  Source
	order   int
	listIDs map[string]bool
}

// Classifier matches messages against an allow-list injected at construction.
type Classifier struct {
	entries []entry
}

// New builds a Classifier from the allow-list.
func New(sources []Source) *Classifier {
	c := &Classifier{}
	for i, src := range sources {
		e := entry{source: src, order: i, listIDs: map[string]bool{}}
		domains := make([]string, 0, len(src.Domains))
		for _, d := range src.Domains {
			if d = normalizeDomain(d); d != "" {
				domains = append(domains, d)
			}
		}
		e.source.Domains = domains
		for _, id := range src.ListIDs {
			if id = ListID(id); id != "" {
				e.listIDs[id] = true
			}
		}
		c.entries = append(c.entries, e)
	}
	return c
}

// Classify inspects the From and List-Id headers. The display name in From is ignored.
func (c *Classifier) Classify(msg domain.RawMessage) Result {
	senderDomain, err := SenderDomain(msg.From)
	if err != nil {
		return Result{Reason: fmt.Sprintf("cannot parse sender %q", msg.From)}
	}

	type match struct {
		entry
		specificity int
	}
	var matches []match
	for _, e := range c.entries {
		best := -1
		for _, d := range e.source.Domains {
			if domainMatches(senderDomain, d) && len(d) > best {
				best = len(d)
			}
		}
		if best >= 0 {
			matches = append(matches, match{entry: e, specificity: best})
		}
	}
	if len(matches) == 0 {
		return Result{Domain: senderDomain, Reason: fmt.Sprintf("sender domain %s is not allow-listed", senderDomain)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].specificity != matches[j].specificity {
			return matches[i].specificity > matches[j].specificity
		}
		return matches[i].order < matches[j].order
	})

	listID := ListID(msg.ListID)
	if listID == "" {
		return Result{Recognized: true, Source: matches[0].source, Domain: senderDomain, Signal: SignalDomain}
	}

	for _, m := range matches {
		if m.listIDs[listID] {
			return Result{Recognized: true, Source: m.source, Domain: senderDomain, Signal: SignalListID}
		}
	}
	for _, m := range matches {
		if len(m.listIDs) == 0 {
			return Result{Recognized: true, Source: m.source, Domain: senderDomain, Signal: SignalDomain}
		}
	}
	return Result{
		Domain: senderDomain,
		Reason: fmt.Sprintf("list id %s does not belong to any list of %s", listID, senderDomain),
	}
}
