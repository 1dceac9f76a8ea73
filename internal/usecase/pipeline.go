package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/SAMK-online/NewsPod/internal/aggregate"
	"github.com/SAMK-online/NewsPod/internal/classify"
	"github.com/SAMK-online/NewsPod/internal/company"
	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/filter"
	"github.com/SAMK-online/NewsPod/internal/normalize"
	"github.com/SAMK-online/NewsPod/internal/ports"
	"github.com/SAMK-online/NewsPod/internal/segment"
	"github.com/SAMK-online/NewsPod/internal/textutil"
)

// Options tunes a run.
type Options struct {
	Window           time.Duration
	Workers          int
	Similarity       float64
	SummarySentences int
	MinSummaryLength int
	MaxSummaryLength int
	SkipReported     bool
}

// PipelineDeps wires the extraction stages and driven adapters into the pipeline.
type PipelineDeps struct {
	Source     ports.MessageSource
	Normalizer *normalize.Normalizer
	Classifier *classify.Classifier
	Segmenter  *segment.Segmenter
	Filter     *filter.Filter
	Extractor  *company.Extractor
	Quotes     ports.QuoteProvider
	Archive    ports.StoryArchive
	Notifier   ports.Notifier
	Publishers []ports.Publisher
	Logger     zerolog.Logger
	Options    Options
}

// Pipeline implements the newsletter-to-report workflow.
type Pipeline struct {
	source     ports.MessageSource
	normalizer *normalize.Normalizer
	classifier *classify.Classifier
	segmenter  *segment.Segmenter
	filter     *filter.Filter
	extractor  *company.Extractor
	quotes     ports.QuoteProvider
	archive    ports.StoryArchive
	notifier   ports.Notifier
	publishers []ports.Publisher
	logger     zerolog.Logger
	opts       Options
}

// NewPipeline constructs the orchestration component. Missing stages fall
// back to permissive defaults.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:     deps.Source,
		normalizer: deps.Normalizer,
		classifier: deps.Classifier,
		segmenter:  deps.Segmenter,
		filter:     deps.Filter,
		extractor:  deps.Extractor,
		quotes:     deps.Quotes,
		archive:    deps.Archive,
		notifier:   deps.Notifier,
		publishers: deps.Publishers,
		logger:     deps.Logger,
		opts:       deps.Options,
	}
	if p.normalizer == nil {
		p.normalizer = normalize.New(normalize.Options{})
	}
	if p.classifier == nil {
		p.classifier = classify.New(nil)
	}
	if p.segmenter == nil {
		p.segmenter, _ = segment.New(segment.DefaultRegistry(), nil)
	}
	if p.filter == nil {
		p.filter, _ = filter.New(filter.Rules{})
	}
	if p.extractor == nil {
		p.extractor = company.New(nil)
	}
	if p.opts.Workers <= 0 {
		p.opts.Workers = 4
	}
	if p.opts.Window <= 0 {
		p.opts.Window = 24 * time.Hour
	}
	if p.opts.SummarySentences <= 0 {
		p.opts.SummarySentences = 3
	}
	if p.opts.MaxSummaryLength <= 0 {
		p.opts.MaxSummaryLength = 1000
	}
	return p
}

// Run fetches the recent messages, extracts the report, enriches it and
// hands it to the configured outputs. Adapter failures are logged and noted;
// the collection is returned regardless.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (domain.ReportCollection, error) {
	if p.source == nil {
		return domain.ReportCollection{}, fmt.Errorf("message source is not configured")
	}

	runID := uuid.NewString()
	log := p.logger.With().Str("run_id", runID).Logger()
	since := now.Add(-p.opts.Window)

	msgs, err := p.source.FetchRecent(ctx, since)
	var fetchNote string
	if err != nil {
		fetchNote = fmt.Sprintf("inbox returned a partial result (%d messages): %v", len(msgs), err)
		log.Warn().Err(err).Int("messages", len(msgs)).Msg("fetch recent messages")
	}
	log.Info().Int("messages", len(msgs)).Time("since", since).Msg("messages fetched")

	report := p.process(ctx, runID, now, msgs)
	if fetchNote != "" {
		report.Notes.Log = append([]string{fetchNote}, report.Notes.Log...)
	}

	if len(report.Stories) == 0 {
		log.Warn().
			Int("scanned", report.Notes.MessagesScanned).
			Int("rejected", report.Notes.MessagesRejected).
			Msg("run produced no stories")
	}

	p.enrich(ctx, &report, log)

	if p.archive != nil && len(report.Stories) > 0 {
		if err := p.archive.SaveReported(ctx, runID, report.Stories); err != nil {
			log.Error().Err(err).Msg("archive reported stories")
			report.Notes.Log = append(report.Notes.Log, fmt.Sprintf("archive: %v", err))
		}
	}

	if p.notifier != nil && len(report.Stories) > 0 {
		if err := p.notifier.PublishDigest(ctx, buildDigestMessage(report)); err != nil {
			log.Error().Err(err).Msg("publish digest")
			report.Notes.Log = append(report.Notes.Log, fmt.Sprintf("notifier: %v", err))
		}
	}

	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, report); err != nil {
			log.Error().Err(err).Str("publisher", pub.Name()).Msg("publish report")
			report.Notes.Log = append(report.Notes.Log, fmt.Sprintf("%s: %v", pub.Name(), err))
			continue
		}
		log.Debug().Str("publisher", pub.Name()).Msg("report published")
	}

	log.Info().
		Int("stories", len(report.Stories)).
		Int("scanned", report.Notes.MessagesScanned).
		Int("accepted", report.Notes.MessagesAccepted).
		Int("rejected", report.Notes.MessagesRejected).
		Int("cross_duplicates", report.Notes.CrossDuplicates).
		Msg("run finished")
	return report, nil
}

// Process runs the extraction stages over msgs and aggregates the result.
// Messages are processed in parallel; aggregation happens in inbox order.
func (p *Pipeline) Process(ctx context.Context, msgs []domain.RawMessage) domain.ReportCollection {
	return p.process(ctx, uuid.NewString(), time.Now(), msgs)
}

type messageResult struct {
	note    domain.MessageNote
	stories []domain.AcceptedStory
}

func (p *Pipeline) process(ctx context.Context, runID string, startedAt time.Time, msgs []domain.RawMessage) domain.ReportCollection {
	results := make([]messageResult, len(msgs))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, msg := range msgs {
		if ctx.Err() != nil {
			results[i] = messageResult{note: baseNote(msg, domain.ReasonCancelled, "run cancelled before processing")}
			continue
		}
		g.Go(func() error {
			results[i] = p.processMessage(msg)
			return nil
		})
	}
	_ = g.Wait()

	if p.opts.SkipReported && p.archive != nil {
		p.dropReported(ctx, results)
	}

	agg := aggregate.New(p.opts.Similarity, runID, startedAt)
	for _, r := range results {
		agg.AddMessage(r.note, r.stories)
	}
	if len(msgs) > 0 && agg.Collection().Notes.MessagesAccepted == 0 {
		agg.Logf("no message could be processed; the report is empty")
	}
	return agg.Collection()
}

func baseNote(msg domain.RawMessage, reason domain.RejectReason, detail string) domain.MessageNote {
	return domain.MessageNote{
		MessageID:  msg.ID,
		From:       msg.From,
		Subject:    msg.Subject,
		ReceivedAt: msg.ReceivedAt,
		Reason:     reason,
		Detail:     detail,
	}
}

func (p *Pipeline) processMessage(msg domain.RawMessage) (res messageResult) {
	log := p.logger.With().Str("message_id", msg.ID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("message processing aborted")
			res = messageResult{note: baseNote(msg, domain.ReasonMalformed, fmt.Sprintf("internal error: %v", r))}
		}
	}()

	cls := p.classifier.Classify(msg)
	if !cls.Recognized {
		log.Debug().Str("from", msg.From).Str("reason", cls.Reason).Msg("sender rejected")
		return messageResult{note: baseNote(msg, domain.ReasonUnrecognizedSender, cls.Reason)}
	}

	note := baseNote(msg, "", "")
	note.SourceID = cls.Source.ID
	note.SourceName = cls.Source.Name

	text, err := p.normalizer.Normalize(msg.Body)
	if err != nil {
		note.Reason = domain.ReasonNoText
		note.Detail = err.Error()
		log.Debug().Err(err).Msg("normalize body")
		return messageResult{note: note}
	}
	note.Accepted = true

	candidates := p.segmenter.Segment(msg.ID, cls.Source.ID, text)
	note.Candidates = len(candidates)
	if len(candidates) == 0 {
		note.Reason = domain.ReasonNoStories
		note.Detail = "no story boundaries found"
		return messageResult{note: note}
	}

	ref := domain.SourceRef{
		SourceID:     cls.Source.ID,
		SourceName:   cls.Source.Name,
		SenderDomain: cls.Domain,
		MessageID:    msg.ID,
		ReceivedAt:   msg.ReceivedAt,
	}

	session := p.filter.Session()
	var stories []domain.AcceptedStory
	for _, c := range candidates {
		v := session.Check(c)
		if !v.Accept {
			note.Rejections = append(note.Rejections, domain.Rejection{
				Position: c.Position, Headline: c.Headline, Reason: v.Reason, Detail: v.Detail,
			})
			continue
		}

		summary := textutil.Summarize(c.Body, p.opts.SummarySentences, p.opts.MinSummaryLength, p.opts.MaxSummaryLength)
		if utf8.RuneCountInString(summary) < p.opts.MinSummaryLength || summary == "" {
			note.Rejections = append(note.Rejections, domain.Rejection{
				Position: c.Position, Headline: c.Headline, Reason: domain.ReasonTooShort, Detail: "summary below minimum length",
			})
			continue
		}

		match, _ := p.extractor.Extract(c.Headline, c.Body)
		stories = append(stories, domain.AcceptedStory{
			Headline: c.Headline,
			Summary:  summary,
			Company:  match.Company,
			Ticker:   match.Ticker,
			Source:   ref,
		})
	}

	log.Debug().
		Str("source", cls.Source.ID).
		Int("candidates", len(candidates)).
		Int("accepted", len(stories)).
		Msg("message processed")
	return messageResult{note: note, stories: stories}
}

func (p *Pipeline) dropReported(ctx context.Context, results []messageResult) {
	var keys []string
	for _, r := range results {
		for _, s := range r.stories {
			keys = append(keys, textutil.NormalizeHeadline(s.Headline))
		}
	}
	if len(keys) == 0 {
		return
	}

	seen, err := p.archive.AlreadyReported(ctx, keys)
	if err != nil {
		p.logger.Warn().Err(err).Msg("load reported stories; keeping all")
		return
	}

	for i := range results {
		kept := results[i].stories[:0]
		for _, s := range results[i].stories {
			if seen[textutil.NormalizeHeadline(s.Headline)] {
				results[i].note.Rejections = append(results[i].note.Rejections, domain.Rejection{
					Headline: s.Headline, Reason: domain.ReasonAlreadyReported, Detail: "reported by an earlier run",
				})
				continue
			}
			kept = append(kept, s)
		}
		results[i].stories = kept
	}
}

func buildDigestMessage(report domain.ReportCollection) string {
	if len(report.Stories) == 0 {
		return ""
	}

	var b strings.Builder
	for _, s := range report.Stories {
		fmt.Fprintf(&b, "- %s\n", s.Headline)
		if s.Ticker != "" {
			fmt.Fprintf(&b, "%s (%s): %s\n", s.Company, s.Ticker, s.FinancialContext())
		}
		fmt.Fprintf(&b, "%s\nvia %s\n\n", s.Summary, s.Source.SourceName)
	}
	return b.String()
}
