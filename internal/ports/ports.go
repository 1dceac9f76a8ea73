package ports

import (
	"context"
	"time"

	"github.com/SAMK-online/NewsPod/internal/domain"
)

// MessageSource supplies newsletter emails received since a point in time.
// A partial result together with an error is allowed.
type MessageSource interface {
	FetchRecent(ctx context.Context, since time.Time) ([]domain.RawMessage, error)
}

// QuoteProvider resolves a ticker to a price snapshot.
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (domain.FinancialSnapshot, error)
}

// StoryArchive remembers stories reported by earlier runs.
type StoryArchive interface {
	AlreadyReported(ctx context.Context, keys []string) (map[string]bool, error)
	SaveReported(ctx context.Context, runID string, stories []domain.AcceptedStory) error
}

// Publisher renders or delivers a finished collection (Markdown, PDF, script).
type Publisher interface {
	Name() string
	Publish(ctx context.Context, report domain.ReportCollection) error
}

// Notifier streams a short digest to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}
