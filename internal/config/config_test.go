package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SAMK-online/NewsPod/internal/company"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newspod.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
inbox:
  provider: eml
  emlDir: ./fixtures
  window: 48h
sources:
  - id: brew
    name: Morning Brew
    domains: [morningbrew.com]
    rules:
      - kind: numbered
    maxStories: 5
archive:
  dsn: reported.db
  skipReported: true
output:
  formats: [markdown]
`)
	t.Setenv(configPathEnv, "")
	t.Setenv(archiveDriverEnv, "")

	cfg := Load(path)

	if cfg.Inbox.Provider != "eml" || cfg.Inbox.EMLDir != "./fixtures" || cfg.Inbox.Window != 48*time.Hour {
		t.Fatalf("inbox section not merged: %+v", cfg.Inbox)
	}
	if cfg.Inbox.Concurrency != 8 {
		t.Fatalf("unset fields must keep defaults, got concurrency %d", cfg.Inbox.Concurrency)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].MaxStories != 5 || cfg.Sources[0].Rules[0].Kind != "numbered" {
		t.Fatalf("sources must replace defaults: %+v", cfg.Sources)
	}
	if cfg.Archive.Driver != "sqlite" || cfg.Archive.DSN != "reported.db" || !cfg.Archive.SkipReported {
		t.Fatalf("unexpected archive config: %+v", cfg.Archive)
	}
	if !cfg.Output.Enabled(FormatMarkdown) || cfg.Output.Enabled(FormatPDF) {
		t.Fatalf("unexpected output formats: %v", cfg.Output.Formats)
	}
	if len(cfg.Companies) == 0 {
		t.Fatalf("default ticker table expected")
	}
}

func TestLoadFallsBackOnInvalidFile(t *testing.T) {
	t.Setenv(configPathEnv, writeConfig(t, "inbox: [not, a, map"))

	cfg := Load("")
	if cfg.Inbox.Provider != "gmail" || len(cfg.Sources) != len(defaultConfig().Sources) {
		t.Fatalf("expected defaults, got %+v", cfg.Inbox)
	}

	missing := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if missing.Pipeline.Workers != 4 {
		t.Fatalf("expected defaults for a missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(gmailDirEnv, "/secrets/gmail")
	t.Setenv(archiveDSNEnv, "postgres://newspod@localhost/newspod")
	t.Setenv(archiveDriverEnv, "postgres")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(telegramChatIDEnv, "42")
	t.Setenv(quotesEndpointEnv, "http://quotes.local/chart/")
	t.Setenv(logLevelEnv, "debug")

	cfg := Load("")

	if cfg.Inbox.GmailDir != "/secrets/gmail" {
		t.Fatalf("gmail dir override ignored")
	}
	if cfg.Archive.Driver != "postgres" || cfg.Archive.DSN != "postgres://newspod@localhost/newspod" {
		t.Fatalf("archive override ignored: %+v", cfg.Archive)
	}
	if cfg.Notifications.Telegram.BotToken != "token" || cfg.Notifications.Telegram.ChatID != "42" {
		t.Fatalf("telegram override ignored")
	}
	if cfg.Quotes.Endpoint != "http://quotes.local/chart/" || cfg.Logging.Level != "debug" {
		t.Fatalf("quotes or logging override ignored")
	}
}

func TestDefaultSourcesCoverAllowList(t *testing.T) {
	t.Parallel()

	domains := map[string]string{}
	for _, s := range defaultConfig().Sources {
		for _, d := range s.Domains {
			domains[d] = s.ID
		}
	}
	for _, d := range []string{"morningbrew.com", "thehustle.co", "axios.com", "tldr.tech", "tldrnewsletter.com", "marketwatch.com"} {
		if _, ok := domains[d]; !ok {
			t.Fatalf("domain %s missing from defaults", d)
		}
	}
	if domains["tldr.tech"] != "tldr" || domains["tldrnewsletter.com"] != "tldr" {
		t.Fatalf("TLDR domains must share one source")
	}
}

func TestDefaultCompaniesDoNotGuess(t *testing.T) {
	t.Parallel()

	var table []company.Company
	for _, c := range defaultConfig().Companies {
		table = append(table, company.Company{Name: c.Name, Ticker: c.Ticker, Aliases: c.Aliases})
	}
	e := company.New(table)

	if m, ok := e.Extract("Claude Monet's estate sells water lilies", "The auction house expects record bids for the painting."); ok {
		t.Fatalf("painter must not resolve to a company, got %+v", m)
	}
	if m, ok := e.Extract("Anthropic raises new funding", ""); !ok || m.Company != "Anthropic" || m.Ticker != "" {
		t.Fatalf("expected private Anthropic match, got %+v %v", m, ok)
	}
	if m, ok := e.Extract("NVIDIA posts record quarter", ""); !ok || m.Ticker != "NVDA" {
		t.Fatalf("expected NVDA, got %+v %v", m, ok)
	}
}
