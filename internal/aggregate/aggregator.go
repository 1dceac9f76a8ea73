// Package aggregate merges per-message results into one deduplicated report.
package aggregate

import (
	"fmt"
	"sync"
	"time"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/textutil"
)

// Aggregator is the single writer of a run's ReportCollection.
type Aggregator struct {
	mu         sync.Mutex
	similarity float64
	stories    []domain.AcceptedStory
	keys       []string
	notes      domain.ProcessingNotes
}

// New creates an Aggregator. similarity is the normalized-headline threshold
// above which two stories are the same; 1 means exact match after normalization.
func New(similarity float64, runID string, startedAt time.Time) *Aggregator {
	if similarity <= 0 || similarity > 1 {
		similarity = 1
	}
	return &Aggregator{
		similarity: similarity,
		notes:      domain.ProcessingNotes{RunID: runID, StartedAt: startedAt},
	}
}

// AddMessage records the outcome of one message and merges its stories.
func (a *Aggregator) AddMessage(note domain.MessageNote, stories []domain.AcceptedStory) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.notes.MessagesScanned++
	if note.Accepted {
		a.notes.MessagesAccepted++
	} else {
		a.notes.MessagesRejected++
	}
	note.Stories = len(stories)
	note.Rejections = append([]domain.Rejection(nil), note.Rejections...)
	a.notes.Messages = append(a.notes.Messages, note)

	for _, s := range stories {
		var merged bool
		a.stories, a.keys, merged = merge(a.stories, a.keys, s, a.similarity)
		if merged {
			a.notes.CrossDuplicates++
		}
	}
	a.notes.StoriesAccepted = len(a.stories)
}

// Logf appends a run-level note.
func (a *Aggregator) Logf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notes.Log = append(a.notes.Log, fmt.Sprintf(format, args...))
}

// Collection returns a snapshot that later calls cannot modify.
func (a *Aggregator) Collection() domain.ReportCollection {
	a.mu.Lock()
	defer a.mu.Unlock()

	notes := a.notes
	notes.Messages = append([]domain.MessageNote(nil), a.notes.Messages...)
	notes.Log = append([]string(nil), a.notes.Log...)
	return domain.ReportCollection{Stories: cloneStories(a.stories), Notes: notes}
}

// Dedup collapses stories with similar normalized headlines, keeping the
// first occurrence and folding later sources into it. Order is preserved.
// Applying Dedup to its own output returns the same collection.
func Dedup(stories []domain.AcceptedStory, similarity float64) []domain.AcceptedStory {
	if similarity <= 0 || similarity > 1 {
		similarity = 1
	}
	var (
		out  []domain.AcceptedStory
		keys []string
	)
	for _, s := range stories {
		out, keys, _ = merge(out, keys, s, similarity)
	}
	return cloneStories(out)
}

func merge(stories []domain.AcceptedStory, keys []string, s domain.AcceptedStory, similarity float64) ([]domain.AcceptedStory, []string, bool) {
	key := textutil.NormalizeHeadline(s.Headline)
	for i, k := range keys {
		if !textutil.SameHeadline(key, k, similarity) {
			continue
		}
		for _, src := range s.Sources() {
			if !hasSource(stories[i], src) {
				stories[i].AlsoIn = append(stories[i].AlsoIn, src)
			}
		}
		return stories, keys, true
	}
	s.AlsoIn = append([]domain.SourceRef(nil), s.AlsoIn...)
	return append(stories, s), append(keys, key), false
}

func hasSource(s domain.AcceptedStory, ref domain.SourceRef) bool {
	for _, existing := range s.Sources() {
		if existing.MessageID == ref.MessageID && existing.SourceID == ref.SourceID {
			return true
		}
	}
	return false
}

func cloneStories(in []domain.AcceptedStory) []domain.AcceptedStory {
	out := make([]domain.AcceptedStory, len(in))
	for i, s := range in {
		s.AlsoIn = append([]domain.SourceRef(nil), s.AlsoIn...)
		if s.Financial != nil {
			f := *s.Financial
			s.Financial = &f
		}
		out[i] = s
	}
	return out
}
