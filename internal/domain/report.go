package domain

import "time"

// RejectReason enumerates why a message or story was dropped.
type RejectReason string

const (
	ReasonUnrecognizedSender RejectReason = "unrecognized-sender"
	ReasonNoText             RejectReason = "no-text"
	ReasonNoStories          RejectReason = "no-stories"
	ReasonCancelled          RejectReason = "cancelled"
	ReasonTooShort           RejectReason = "too-short"
	ReasonPromotional        RejectReason = "promotional"
	ReasonBoilerplate        RejectReason = "boilerplate"
	ReasonDuplicate          RejectReason = "duplicate"
	ReasonMalformed          RejectReason = "malformed"
	ReasonAlreadyReported    RejectReason = "already-reported"
)

// Rejection records one dropped candidate story.
type Rejection struct {
	Position int
	Headline string
	Reason   RejectReason
	Detail   string
}

// MessageNote summarizes what happened to a single message.
type MessageNote struct {
	MessageID  string
	From       string
	Subject    string
	SourceID   string
	SourceName string
	ReceivedAt time.Time
	Accepted   bool
	Reason     RejectReason
	Detail     string
	Candidates int
	Stories    int
	Rejections []Rejection
}

// ProcessingNotes is the audit trail of one run.
type ProcessingNotes struct {
	RunID            string
	StartedAt        time.Time
	MessagesScanned  int
	MessagesAccepted int
	MessagesRejected int
	StoriesAccepted  int
	CrossDuplicates  int
	Messages         []MessageNote
	// Log holds run-level events outside any single message.
	Log []string
}

// ReportCollection is the final ordered, deduplicated output of a run.
type ReportCollection struct {
	Stories []AcceptedStory
	Notes   ProcessingNotes
}

// Newsletters returns the distinct source names that contributed stories, in order.
func (c ReportCollection) Newsletters() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range c.Stories {
		for _, src := range s.Sources() {
			name := src.SourceName
			if name == "" {
				name = src.SourceID
			}
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
