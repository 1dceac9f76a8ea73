package aggregate

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/SAMK-online/NewsPod/internal/domain"
)

func story(headline, source, msg string) domain.AcceptedStory {
	return domain.AcceptedStory{
		Headline: headline,
		Summary:  "Summary text for " + headline,
		Source:   domain.SourceRef{SourceID: source, SourceName: source, MessageID: msg, SenderDomain: source + ".com"},
	}
}

func TestAggregatorMergesAcrossMessages(t *testing.T) {
	t.Parallel()

	a := New(1, "run-1", time.Unix(0, 0))
	a.AddMessage(domain.MessageNote{MessageID: "m1", Accepted: true}, []domain.AcceptedStory{
		story("Nvidia beats estimates", "brew", "m1"),
		story("Oil slides on OPEC news", "brew", "m1"),
	})
	a.AddMessage(domain.MessageNote{MessageID: "m2", Accepted: true}, []domain.AcceptedStory{
		story("NVIDIA beats estimates!", "axios", "m2"),
		story("Fed holds rates", "axios", "m2"),
	})
	a.AddMessage(domain.MessageNote{MessageID: "m3", Reason: domain.ReasonUnrecognizedSender}, nil)

	c := a.Collection()
	if len(c.Stories) != 3 {
		t.Fatalf("expected 3 stories, got %d", len(c.Stories))
	}
	first := c.Stories[0]
	if first.Headline != "Nvidia beats estimates" || first.Source.SourceID != "brew" {
		t.Fatalf("first-seen must win, got %+v", first)
	}
	if len(first.AlsoIn) != 1 || first.AlsoIn[0].SourceID != "axios" {
		t.Fatalf("expected axios attribution merged, got %+v", first.AlsoIn)
	}
	if c.Stories[1].Headline != "Oil slides on OPEC news" || c.Stories[2].Headline != "Fed holds rates" {
		t.Fatalf("encounter order not preserved: %+v", c.Stories)
	}

	n := c.Notes
	if n.MessagesScanned != 3 || n.MessagesAccepted != 2 || n.MessagesRejected != 1 || n.CrossDuplicates != 1 || n.StoriesAccepted != 3 {
		t.Fatalf("unexpected notes: %+v", n)
	}
	if n.Messages[1].Stories != 2 {
		t.Fatalf("per-message count should be pre-dedup, got %d", n.Messages[1].Stories)
	}
}

func TestDedupIdempotent(t *testing.T) {
	t.Parallel()

	in := []domain.AcceptedStory{
		story("Nvidia beats estimates", "brew", "m1"),
		story("Nvidia beat estimates", "axios", "m2"),
		story("Oil slides", "brew", "m1"),
		story("oil slides.", "hustle", "m3"),
		story("Fed holds rates", "axios", "m2"),
	}

	for _, threshold := range []float64{1, 0.9} {
		once := Dedup(in, threshold)
		twice := Dedup(once, threshold)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("threshold %.2f: dedup not idempotent:\n%+v\n%+v", threshold, once, twice)
		}
		again := Dedup(in, threshold)
		if !reflect.DeepEqual(once, again) {
			t.Fatalf("threshold %.2f: dedup not deterministic", threshold)
		}
	}

	if got := len(Dedup(in, 1)); got != 4 {
		t.Fatalf("exact threshold: expected 4 stories, got %d", got)
	}
	if got := len(Dedup(in, 0.9)); got != 3 {
		t.Fatalf("0.9 threshold: expected 3 stories, got %d", got)
	}
}

func TestCollectionIsSnapshot(t *testing.T) {
	t.Parallel()

	a := New(1, "run", time.Now())
	a.AddMessage(domain.MessageNote{MessageID: "m1", Accepted: true}, []domain.AcceptedStory{story("Fed holds rates", "brew", "m1")})
	c := a.Collection()

	a.AddMessage(domain.MessageNote{MessageID: "m2", Accepted: true}, []domain.AcceptedStory{story("Fed holds rates", "axios", "m2")})
	if len(c.Stories[0].AlsoIn) != 0 || len(c.Notes.Messages) != 1 {
		t.Fatalf("snapshot changed after later writes: %+v", c)
	}
}

func TestAggregatorConcurrentWriters(t *testing.T) {
	t.Parallel()

	a := New(1, "run", time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.AddMessage(domain.MessageNote{Accepted: true}, []domain.AcceptedStory{story("Same story everywhere", "brew", "m")})
		}()
	}
	wg.Wait()

	c := a.Collection()
	if len(c.Stories) != 1 || c.Notes.MessagesScanned != 20 {
		t.Fatalf("unexpected result: stories=%d scanned=%d", len(c.Stories), c.Notes.MessagesScanned)
	}
}
