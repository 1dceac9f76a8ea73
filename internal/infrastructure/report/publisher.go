package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/ports"
)

// Default file names inside the output directory.
const (
	MarkdownFile = "newsletter_report.md"
	PDFFile      = "newsletter_report.pdf"
	ScriptFile   = "podcast_script.txt"
)

type renderFunc func(r domain.ReportCollection, generatedAt time.Time) ([]byte, error)

// FilePublisher renders a collection and writes it atomically to path.
type FilePublisher struct {
	name   string
	path   string
	render renderFunc
	logger zerolog.Logger
	now    func() time.Time
}

var _ ports.Publisher = (*FilePublisher)(nil)

// NewMarkdownPublisher writes the Markdown report into dir.
func NewMarkdownPublisher(dir string, logger zerolog.Logger) *FilePublisher {
	return newFilePublisher("markdown", filepath.Join(dir, MarkdownFile), logger, func(r domain.ReportCollection, at time.Time) ([]byte, error) {
		return []byte(RenderMarkdown(r, at)), nil
	})
}

// NewPDFPublisher writes the PDF rendering of the Markdown report into dir.
func NewPDFPublisher(dir string, logger zerolog.Logger) *FilePublisher {
	return newFilePublisher("pdf", filepath.Join(dir, PDFFile), logger, func(r domain.ReportCollection, at time.Time) ([]byte, error) {
		var buf bytes.Buffer
		if err := RenderPDF(RenderMarkdown(r, at), at, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// NewScriptPublisher writes the podcast script into dir.
func NewScriptPublisher(dir string, logger zerolog.Logger) *FilePublisher {
	return newFilePublisher("script", filepath.Join(dir, ScriptFile), logger, func(r domain.ReportCollection, at time.Time) ([]byte, error) {
		s, err := RenderScript(r, at)
		return []byte(s), err
	})
}

func newFilePublisher(name, path string, logger zerolog.Logger, render renderFunc) *FilePublisher {
	return &FilePublisher{name: name, path: path, render: render, logger: logger, now: time.Now}
}

// Name identifies the output in logs and notes.
func (p *FilePublisher) Name() string { return p.name }

// Path is the destination file.
func (p *FilePublisher) Path() string { return p.path }

// Publish renders r and replaces the destination file.
func (p *FilePublisher) Publish(ctx context.Context, r domain.ReportCollection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := p.render(r, p.now())
	if err != nil {
		return fmt.Errorf("render %s: %w", p.name, err)
	}
	if err := writeFile(p.path, data); err != nil {
		return err
	}
	p.logger.Info().Str("output", p.name).Str("path", p.path).Int("bytes", len(data)).Msg("report written")
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
