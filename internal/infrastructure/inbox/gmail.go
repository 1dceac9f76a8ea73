// Package inbox supplies newsletter messages from Gmail or a directory of
// .eml files.
package inbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/ports"
)

// ErrNoToken means no cached OAuth token exists; authorization is done outside this program.
var ErrNoToken = errors.New("gmail token not found")

const gmailUser = "me"

var _ ports.MessageSource = (*Gmail)(nil)

// GmailOptions tunes the Gmail collaborator.
type GmailOptions struct {
	// Domains become from: terms of the search query.
	Domains     []string
	MaxMessages int64
	Concurrency int
	Logger      zerolog.Logger
	now         func() time.Time
}

// Gmail reads newsletters through the Gmail API with read-only scope.
type Gmail struct {
	svc     *gmailv1.Service
	domains []string
	max     int64
	workers int
	logger  zerolog.Logger
	now     func() time.Time
}

// NewGmail loads client_secret.json and a cached token.json from configDir.
// It never starts an interactive OAuth flow.
func NewGmail(ctx context.Context, configDir string, opts GmailOptions) (*Gmail, error) {
	credPath := filepath.Join(configDir, "client_secret.json")
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credPath, err)
	}

	cfg, err := google.ConfigFromJSON(b, gmailv1.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}

	tokPath := filepath.Join(configDir, "token.json")
	tok, err := readToken(tokPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoToken, tokPath)
		}
		return nil, fmt.Errorf("read token at %s: %w", tokPath, err)
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailWithService(svc, opts), nil
}

// NewGmailWithService wraps an already authenticated service.
func NewGmailWithService(svc *gmailv1.Service, opts GmailOptions) *Gmail {
	g := &Gmail{
		svc:     svc,
		domains: opts.Domains,
		max:     opts.MaxMessages,
		workers: opts.Concurrency,
		logger:  opts.Logger,
		now:     opts.now,
	}
	if g.max <= 0 {
		g.max = 100
	}
	if g.workers <= 0 {
		g.workers = 8
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Query builds the search for messages from the allow-listed domains newer than since.
func Query(domains []string, since, now time.Time) string {
	days := int(math.Ceil(now.Sub(since).Hours() / 24))
	if days < 1 {
		days = 1
	}
	q := fmt.Sprintf("newer_than:%dd", days)
	if len(domains) == 0 {
		return q
	}
	terms := make([]string, 0, len(domains))
	for _, d := range domains {
		terms = append(terms, "from:"+d)
	}
	return q + " (" + strings.Join(terms, " OR ") + ")"
}

// FetchRecent lists matching messages and fetches them in full. Messages that
// fail to load are skipped; the joined error reports them with the partial result.
func (g *Gmail) FetchRecent(ctx context.Context, since time.Time) ([]domain.RawMessage, error) {
	ids, err := g.list(ctx, Query(g.domains, since, g.now()))
	if err != nil {
		return nil, err
	}
	g.logger.Debug().Int("ids", len(ids)).Msg("messages listed")

	results := make([]*domain.RawMessage, len(ids))
	var (
		mu   sync.Mutex
		errs []error
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, id := range ids {
		eg.Go(func() error {
			msg, err := g.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(egCtx).Do()
			if err != nil {
				g.logger.Warn().Err(err).Str("message_id", id).Msg("fetch message")
				mu.Lock()
				errs = append(errs, fmt.Errorf("get message %s: %w", id, err))
				mu.Unlock()
				return nil
			}
			raw := ToRawMessage(msg)
			results[i] = &raw
			return nil
		})
	}
	_ = eg.Wait()

	var out []domain.RawMessage
	for _, r := range results {
		if r == nil || r.ReceivedAt.Before(since) {
			continue
		}
		out = append(out, *r)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

func (g *Gmail) list(ctx context.Context, query string) ([]string, error) {
	var ids []string
	call := g.svc.Users.Messages.List(gmailUser).Q(query).MaxResults(min(g.max, 500))
	pageToken := ""
	for int64(len(ids)) < g.max {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return ids, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			if int64(len(ids)) >= g.max {
				break
			}
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

// ToRawMessage converts a full-format Gmail message. Body data arrives
// transfer-decoded, so parts carry no transfer encoding.
func ToRawMessage(m *gmailv1.Message) domain.RawMessage {
	raw := domain.RawMessage{ID: m.Id}
	if m.Payload == nil {
		return raw
	}
	var date string
	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			raw.From = h.Value
		case "subject":
			raw.Subject = h.Value
		case "list-id":
			raw.ListID = h.Value
		case "date":
			date = h.Value
		}
	}
	if m.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(m.InternalDate).UTC()
	} else {
		raw.ReceivedAt = parseDate(date)
	}
	raw.Body = convertPart(m.Payload)
	return raw
}

func convertPart(p *gmailv1.MessagePart) domain.Part {
	part := domain.Part{ContentType: p.MimeType}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, "Content-Type") && h.Value != "" {
			part.ContentType = h.Value
		}
	}
	attachment := p.Filename != "" || (p.Body != nil && p.Body.AttachmentId != "")
	if p.Body != nil && p.Body.Data != "" && !attachment {
		part.Data = decodeBase64URL(p.Body.Data)
	}
	for _, sub := range p.Parts {
		if sub == nil {
			continue
		}
		part.Parts = append(part.Parts, convertPart(sub))
	}
	return part
}

func decodeBase64URL(data string) []byte {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail uses unpadded base64url
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return nil
		}
	}
	return b
}

func parseDate(h string) time.Time {
	h = strings.TrimSpace(h)
	if h == "" {
		return time.Time{}
	}
	// Drop trailing comments such as "(UTC)".
	if i := strings.Index(h, " ("); i > 0 {
		h = h[:i]
	}
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC850,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, h); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
