package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/ports"
)

const maxPartDepth = 8

var _ ports.MessageSource = (*EMLDir)(nil)

// EMLDir reads RFC 5322 messages saved as *.eml files.
type EMLDir struct {
	dir    string
	logger zerolog.Logger
}

// NewEMLDir checks that dir exists.
func NewEMLDir(dir string, logger zerolog.Logger) (*EMLDir, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open eml dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open eml dir: %s is not a directory", dir)
	}
	return &EMLDir{dir: dir, logger: logger}, nil
}

// FetchRecent parses every .eml file received at or after since, oldest first.
// Unreadable files are skipped and reported in the returned error.
func (d *EMLDir) FetchRecent(ctx context.Context, since time.Time) ([]domain.RawMessage, error) {
	paths, err := filepath.Glob(filepath.Join(d.dir, "*.eml"))
	if err != nil {
		return nil, fmt.Errorf("list eml files: %w", err)
	}
	sort.Strings(paths)

	var (
		out  []domain.RawMessage
		errs []error
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg, err := readEML(path)
		if err != nil {
			d.logger.Warn().Err(err).Str("file", path).Msg("skip eml file")
			errs = append(errs, err)
			continue
		}
		if msg.ReceivedAt.Before(since) {
			continue
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, errors.Join(errs...)
}

func readEML(path string) (domain.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	msg, err := ParseMessage(f)
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if msg.ID == "" {
		msg.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if msg.ReceivedAt.IsZero() {
		if info, err := f.Stat(); err == nil {
			msg.ReceivedAt = info.ModTime().UTC()
		}
	}
	return msg, nil
}

// ParseMessage reads one RFC 5322 message. Leaf parts keep their raw,
// transfer-encoded bytes; attachments are dropped.
func ParseMessage(r io.Reader) (domain.RawMessage, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return domain.RawMessage{}, err
	}

	dec := new(mime.WordDecoder)
	header := func(key string) string {
		v := m.Header.Get(key)
		if out, err := dec.DecodeHeader(v); err == nil {
			return out
		}
		return v
	}

	raw := domain.RawMessage{
		ID:      strings.Trim(m.Header.Get("Message-Id"), "<> "),
		From:    header("From"),
		Subject: header("Subject"),
		ListID:  header("List-Id"),
	}
	if t, err := m.Header.Date(); err == nil {
		raw.ReceivedAt = t.UTC()
	} else {
		raw.ReceivedAt = parseDate(m.Header.Get("Date"))
	}

	body, err := readPart(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), m.Body, 0)
	if err != nil {
		return domain.RawMessage{}, err
	}
	raw.Body = body
	return raw, nil
}

func readPart(contentType, encoding string, r io.Reader, depth int) (domain.Part, error) {
	if contentType == "" {
		contentType = "text/plain; charset=us-ascii"
	}
	part := domain.Part{ContentType: contentType, TransferEncoding: encoding}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		data, err := io.ReadAll(r)
		if err != nil {
			return part, fmt.Errorf("read body: %w", err)
		}
		part.Data = data
		return part, nil
	}
	if depth >= maxPartDepth {
		return part, nil
	}

	mr := multipart.NewReader(r, params["boundary"])
	for {
		p, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Truncated multipart bodies keep the parts read so far.
			if len(part.Parts) > 0 {
				break
			}
			return part, fmt.Errorf("read multipart: %w", err)
		}
		if isAttachment(p.Header.Get("Content-Disposition")) {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, p); err != nil {
			return part, fmt.Errorf("read part: %w", err)
		}
		child, err := readPart(p.Header.Get("Content-Type"), p.Header.Get("Content-Transfer-Encoding"), &buf, depth+1)
		if err != nil {
			return part, err
		}
		part.Parts = append(part.Parts, child)
	}
	return part, nil
}

func isAttachment(disposition string) bool {
	d, _, err := mime.ParseMediaType(disposition)
	return err == nil && d == "attachment"
}
