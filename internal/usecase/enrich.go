package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SAMK-online/NewsPod/internal/domain"
)

// enrich attaches price snapshots to stories with a ticker. Each ticker is
// quoted once per run; failures leave the story without financial context.
func (p *Pipeline) enrich(ctx context.Context, report *domain.ReportCollection, log zerolog.Logger) {
	if p.quotes == nil {
		return
	}

	cache := map[string]*domain.FinancialSnapshot{}
	for i := range report.Stories {
		s := &report.Stories[i]
		if s.Ticker == "" {
			continue
		}

		snap, ok := cache[s.Ticker]
		if !ok {
			quote, err := p.quotes.Quote(ctx, s.Ticker)
			if err != nil {
				log.Warn().Err(err).Str("ticker", s.Ticker).Msg("quote unavailable")
				report.Notes.Log = append(report.Notes.Log, fmt.Sprintf("quote %s: %v", s.Ticker, err))
				quote = domain.FinancialSnapshot{Ticker: s.Ticker}
			}
			snap = &quote
			cache[s.Ticker] = snap
		}

		copied := *snap
		s.Financial = &copied
	}
}
