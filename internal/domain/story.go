package domain

import (
	"fmt"
	"time"
)

// CandidateStory is a block of text the segmenter believes is one story.
type CandidateStory struct {
	Headline  string
	Body      string
	MessageID string
	SourceID  string
	Position  int
}

// SourceRef attributes a story to the newsletter it came from.
type SourceRef struct {
	SourceID     string
	SourceName   string
	SenderDomain string
	MessageID    string
	ReceivedAt   time.Time
}

// FinancialSnapshot is a point-in-time quote for a story's ticker.
type FinancialSnapshot struct {
	Ticker        string
	Price         float64
	ChangePercent float64
	Currency      string
	AsOf          time.Time
	Available     bool
}

// AcceptedStory passed every filter rule.
type AcceptedStory struct {
	Headline  string
	Summary   string
	Company   string
	Ticker    string
	Financial *FinancialSnapshot
	Source    SourceRef
	// AlsoIn lists later sources that carried the same story.
	AlsoIn []SourceRef
}

// Sources returns the primary source followed by merged duplicates.
func (s AcceptedStory) Sources() []SourceRef {
	out := make([]SourceRef, 0, 1+len(s.AlsoIn))
	out = append(out, s.Source)
	return append(out, s.AlsoIn...)
}

// FinancialContext renders the story's snapshot, or "No financial data".
func (s AcceptedStory) FinancialContext() string {
	if s.Ticker == "" || s.Financial == nil {
		return NoFinancialData
	}
	return s.Financial.Context()
}

// NoFinancialData is shown when a story has no usable quote.
const NoFinancialData = "No financial data"

// Context renders the snapshot as "$950.00 (+1.50%)".
func (f FinancialSnapshot) Context() string {
	if !f.Available {
		return NoFinancialData
	}
	symbol := "$"
	if f.Currency != "" && f.Currency != "USD" {
		symbol = f.Currency + " "
	}
	return fmt.Sprintf("%s%.2f (%+.2f%%)", symbol, f.Price, f.ChangePercent)
}
