package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SAMK-online/NewsPod/internal/classify"
	"github.com/SAMK-online/NewsPod/internal/company"
	"github.com/SAMK-online/NewsPod/internal/config"
	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/filter"
	"github.com/SAMK-online/NewsPod/internal/infrastructure/inbox"
	"github.com/SAMK-online/NewsPod/internal/infrastructure/quotes"
	"github.com/SAMK-online/NewsPod/internal/infrastructure/report"
	"github.com/SAMK-online/NewsPod/internal/infrastructure/storage"
	"github.com/SAMK-online/NewsPod/internal/infrastructure/telegram"
	"github.com/SAMK-online/NewsPod/internal/logging"
	"github.com/SAMK-online/NewsPod/internal/normalize"
	"github.com/SAMK-online/NewsPod/internal/ports"
	"github.com/SAMK-online/NewsPod/internal/segment"
	"github.com/SAMK-online/NewsPod/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	archive  *storage.Archive
	logger   zerolog.Logger
}

// New builds a runnable application. Only a message source that cannot be
// constructed is fatal; other adapters degrade to being absent.
func New(ctx context.Context, cfg config.Config, baseLogger zerolog.Logger) (*Application, error) {
	source, err := newSource(ctx, cfg, logging.Component(baseLogger, "inbox."+cfg.Inbox.Provider))
	if err != nil {
		return nil, err
	}
	return NewWithSource(ctx, cfg, source, baseLogger), nil
}

// NewWithSource wires everything around an existing message source.
func NewWithSource(ctx context.Context, cfg config.Config, source ports.MessageSource, baseLogger zerolog.Logger) *Application {
	a := &Application{cfg: cfg, logger: logging.Component(baseLogger, "app")}

	deps := usecase.PipelineDeps{
		Source:     source,
		Normalizer: normalize.New(normalize.Options{Readability: cfg.Normalizer.Readability, ChromeSelectors: cfg.Normalizer.ChromeSelectors}),
		Classifier: classify.New(classifierSources(cfg.Sources)),
		Segmenter:  a.segmenter(cfg.Sources),
		Filter:     a.filter(cfg.Filter),
		Extractor:  company.New(companyTable(cfg.Companies)),
		Logger:     logging.Component(baseLogger, "pipeline"),
		Options: usecase.Options{
			Window:           cfg.Inbox.Window,
			Workers:          cfg.Pipeline.Workers,
			Similarity:       cfg.Aggregate.Similarity,
			SummarySentences: cfg.Pipeline.SummarySentences,
			MinSummaryLength: cfg.Filter.MinBodyLength,
			MaxSummaryLength: cfg.Pipeline.MaxSummaryLength,
			SkipReported:     cfg.Archive.SkipReported,
		},
	}

	if !cfg.Quotes.Disabled && cfg.Quotes.Endpoint != "" {
		deps.Quotes = quotes.NewClient(quotes.Options{
			Endpoint:    cfg.Quotes.Endpoint,
			RPM:         cfg.Quotes.RPM,
			Burst:       cfg.Quotes.Burst,
			Timeout:     cfg.Quotes.Timeout,
			MaxAttempts: cfg.Quotes.MaxAttempts,
			Logger:      logging.Component(baseLogger, "quotes"),
		})
	}

	if cfg.Archive.DSN != "" {
		archive, err := storage.Open(ctx, cfg.Archive.Driver, cfg.Archive.DSN)
		if err != nil {
			a.logger.Warn().Err(err).Str("driver", cfg.Archive.Driver).Msg("archive unavailable; running without it")
		} else {
			a.archive = archive
			deps.Archive = archive
		}
	}

	tg := cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		deps.Notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID, tg.APIURL, logging.Component(baseLogger, "telegram"))
	}

	reportLogger := logging.Component(baseLogger, "report")
	if cfg.Output.Enabled(config.FormatMarkdown) {
		deps.Publishers = append(deps.Publishers, report.NewMarkdownPublisher(cfg.Output.Dir, reportLogger))
	}
	if cfg.Output.Enabled(config.FormatPDF) {
		deps.Publishers = append(deps.Publishers, report.NewPDFPublisher(cfg.Output.Dir, reportLogger))
	}
	if cfg.Output.Enabled(config.FormatScript) {
		deps.Publishers = append(deps.Publishers, report.NewScriptPublisher(cfg.Output.Dir, reportLogger))
	}

	a.pipeline = usecase.NewPipeline(deps)
	return a
}

func newSource(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ports.MessageSource, error) {
	switch strings.ToLower(cfg.Inbox.Provider) {
	case "gmail", "":
		g, err := inbox.NewGmail(ctx, cfg.Inbox.GmailDir, inbox.GmailOptions{
			Domains:     allDomains(cfg.Sources),
			MaxMessages: cfg.Inbox.MaxMessages,
			Concurrency: cfg.Inbox.Concurrency,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gmail inbox: %w", err)
		}
		return g, nil
	case "eml":
		d, err := inbox.NewEMLDir(cfg.Inbox.EMLDir, logger)
		if err != nil {
			return nil, fmt.Errorf("eml inbox: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown inbox provider %q", cfg.Inbox.Provider)
	}
}

// segmenter compiles per-source rules; a broken rule set falls back to the defaults.
func (a *Application) segmenter(sources []config.SourceConfig) *segment.Segmenter {
	reg := segment.DefaultRegistry()
	plans := map[string]segment.PlanConfig{}
	for _, s := range sources {
		plan := segment.PlanConfig{
			MaxStories:    s.MaxStories,
			MinLineLength: s.MinLineLength,
			MaxBodyLines:  s.MaxBodyLines,
		}
		for _, r := range s.Rules {
			plan.Rules = append(plan.Rules, segment.RuleConfig{Kind: r.Kind, Pattern: r.Pattern})
		}
		plans[s.ID] = plan
	}

	seg, err := segment.New(reg, plans)
	if err != nil {
		a.logger.Error().Err(err).Msg("invalid segmentation rules; using defaults")
		seg, _ = segment.New(reg, nil)
	}
	return seg
}

func (a *Application) filter(cfg config.FilterConfig) *filter.Filter {
	rules := filter.Rules{
		MinBodyLength:       cfg.MinBodyLength,
		MinSentenceWords:    cfg.MinSentenceWords,
		PromoPatterns:       cfg.PromoPatterns,
		BoilerplatePatterns: cfg.BoilerplatePatterns,
		Similarity:          cfg.Similarity,
	}
	f, err := filter.New(rules)
	if err != nil {
		a.logger.Error().Err(err).Msg("invalid filter patterns; using defaults")
		rules.PromoPatterns, rules.BoilerplatePatterns = nil, nil
		f, _ = filter.New(rules)
	}
	return f
}

func classifierSources(sources []config.SourceConfig) []classify.Source {
	out := make([]classify.Source, 0, len(sources))
	for _, s := range sources {
		out = append(out, classify.Source{ID: s.ID, Name: s.Name, Domains: s.Domains, ListIDs: s.ListIDs})
	}
	return out
}

func companyTable(companies []config.CompanyConfig) []company.Company {
	out := make([]company.Company, 0, len(companies))
	for _, c := range companies {
		out = append(out, company.Company{Name: c.Name, Ticker: c.Ticker, Aliases: c.Aliases})
	}
	return out
}

func allDomains(sources []config.SourceConfig) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range sources {
		for _, d := range s.Domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" && !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context, now time.Time) (domain.ReportCollection, error) {
	return a.pipeline.Run(ctx, now)
}

// Close releases the archive connection.
func (a *Application) Close() error {
	if a.archive == nil {
		return nil
	}
	return a.archive.Close()
}
