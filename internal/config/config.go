package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "NEWSPOD_CONFIG"
	gmailDirEnv       = "GMAIL_CONFIG_DIR"
	archiveDSNEnv     = "NEWSPOD_ARCHIVE_DSN"
	archiveDriverEnv  = "NEWSPOD_ARCHIVE_DRIVER"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	quotesEndpointEnv = "QUOTES_ENDPOINT"
	logLevelEnv       = "NEWSPOD_LOG_LEVEL"
)

// Output formats understood by Output.Formats.
const (
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
	FormatScript   = "script"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Inbox         InboxConfig        `yaml:"inbox"`
	Sources       []SourceConfig     `yaml:"sources"`
	Filter        FilterConfig       `yaml:"filter"`
	Companies     []CompanyConfig    `yaml:"companies"`
	Aggregate     AggregateConfig    `yaml:"aggregate"`
	Normalizer    NormalizerConfig   `yaml:"normalizer"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Quotes        QuotesConfig       `yaml:"quotes"`
	Archive       ArchiveConfig      `yaml:"archive"`
	Output        OutputConfig       `yaml:"output"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects the log level (error, warn, info, debug).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// InboxConfig selects the message source and its recency window.
type InboxConfig struct {
	Provider    string        `yaml:"provider"`
	Window      time.Duration `yaml:"window"`
	MaxMessages int64         `yaml:"maxMessages"`
	Concurrency int           `yaml:"concurrency"`
	// GmailDir holds client_secret.json and token.json.
	GmailDir string `yaml:"gmailDir"`
	EMLDir   string `yaml:"emlDir"`
}

// SourceConfig describes one allow-listed newsletter and how to split it.
type SourceConfig struct {
	ID            string       `yaml:"id"`
	Name          string       `yaml:"name"`
	Domains       []string     `yaml:"domains"`
	ListIDs       []string     `yaml:"listIds"`
	Rules         []RuleConfig `yaml:"rules"`
	MaxStories    int          `yaml:"maxStories"`
	MinLineLength int          `yaml:"minLineLength"`
	MaxBodyLines  int          `yaml:"maxBodyLines"`
}

// RuleConfig is one segmentation rule, resolved through the rule registry.
type RuleConfig struct {
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
}

// FilterConfig holds the story acceptance thresholds.
type FilterConfig struct {
	MinBodyLength       int      `yaml:"minBodyLength"`
	MinSentenceWords    int      `yaml:"minSentenceWords"`
	PromoPatterns       []string `yaml:"promoPatterns"`
	BoilerplatePatterns []string `yaml:"boilerplatePatterns"`
	Similarity          float64  `yaml:"similarity"`
}

// CompanyConfig is one row of the ticker table.
type CompanyConfig struct {
	Name    string   `yaml:"name"`
	Ticker  string   `yaml:"ticker"`
	Aliases []string `yaml:"aliases"`
}

// AggregateConfig tunes cross-newsletter deduplication.
type AggregateConfig struct {
	Similarity float64 `yaml:"similarity"`
}

// NormalizerConfig tunes HTML extraction.
type NormalizerConfig struct {
	Readability     bool     `yaml:"readability"`
	ChromeSelectors []string `yaml:"chromeSelectors"`
}

// PipelineConfig tunes message processing.
type PipelineConfig struct {
	Workers          int `yaml:"workers"`
	SummarySentences int `yaml:"summarySentences"`
	MaxSummaryLength int `yaml:"maxSummaryLength"`
}

// QuotesConfig describes the price endpoint.
type QuotesConfig struct {
	Disabled    bool          `yaml:"disabled"`
	Endpoint    string        `yaml:"endpoint"`
	RPM         int           `yaml:"rpm"`
	Burst       int           `yaml:"burst"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
}

// ArchiveConfig describes the reported-story store. An empty DSN disables it.
type ArchiveConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	SkipReported bool   `yaml:"skipReported"`
}

// OutputConfig lists the report files written after a run.
type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
}

// Enabled reports whether format is listed.
func (o OutputConfig) Enabled(format string) bool {
	for _, f := range o.Formats {
		if strings.EqualFold(strings.TrimSpace(f), format) {
			return true
		}
	}
	return false
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIURL   string `yaml:"apiUrl"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// path wins over NEWSPOD_CONFIG; an unreadable file falls back to defaults.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config: cannot read file, falling back to defaults")
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("config: cannot parse file, falling back to defaults")
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(gmailDirEnv); v != "" {
		c.Inbox.GmailDir = v
	}

	if v := os.Getenv(archiveDSNEnv); v != "" {
		c.Archive.DSN = v
	}

	if v := os.Getenv(archiveDriverEnv); v != "" {
		c.Archive.Driver = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(quotesEndpointEnv); v != "" {
		c.Quotes.Endpoint = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Inbox.Provider != "" {
		base.Inbox.Provider = override.Inbox.Provider
	}
	if override.Inbox.Window > 0 {
		base.Inbox.Window = override.Inbox.Window
	}
	if override.Inbox.MaxMessages > 0 {
		base.Inbox.MaxMessages = override.Inbox.MaxMessages
	}
	if override.Inbox.Concurrency > 0 {
		base.Inbox.Concurrency = override.Inbox.Concurrency
	}
	if override.Inbox.GmailDir != "" {
		base.Inbox.GmailDir = override.Inbox.GmailDir
	}
	if override.Inbox.EMLDir != "" {
		base.Inbox.EMLDir = override.Inbox.EMLDir
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	if override.Filter.MinBodyLength > 0 {
		base.Filter.MinBodyLength = override.Filter.MinBodyLength
	}
	if override.Filter.MinSentenceWords > 0 {
		base.Filter.MinSentenceWords = override.Filter.MinSentenceWords
	}
	if len(override.Filter.PromoPatterns) > 0 {
		base.Filter.PromoPatterns = override.Filter.PromoPatterns
	}
	if len(override.Filter.BoilerplatePatterns) > 0 {
		base.Filter.BoilerplatePatterns = override.Filter.BoilerplatePatterns
	}
	if override.Filter.Similarity > 0 {
		base.Filter.Similarity = override.Filter.Similarity
	}

	if len(override.Companies) > 0 {
		base.Companies = override.Companies
	}

	if override.Aggregate.Similarity > 0 {
		base.Aggregate.Similarity = override.Aggregate.Similarity
	}

	if override.Normalizer.Readability {
		base.Normalizer.Readability = true
	}
	if len(override.Normalizer.ChromeSelectors) > 0 {
		base.Normalizer.ChromeSelectors = override.Normalizer.ChromeSelectors
	}

	if override.Pipeline.Workers > 0 {
		base.Pipeline.Workers = override.Pipeline.Workers
	}
	if override.Pipeline.SummarySentences > 0 {
		base.Pipeline.SummarySentences = override.Pipeline.SummarySentences
	}
	if override.Pipeline.MaxSummaryLength > 0 {
		base.Pipeline.MaxSummaryLength = override.Pipeline.MaxSummaryLength
	}

	if override.Quotes.Disabled {
		base.Quotes.Disabled = true
	}
	if override.Quotes.Endpoint != "" {
		base.Quotes.Endpoint = override.Quotes.Endpoint
	}
	if override.Quotes.RPM > 0 {
		base.Quotes.RPM = override.Quotes.RPM
	}
	if override.Quotes.Burst > 0 {
		base.Quotes.Burst = override.Quotes.Burst
	}
	if override.Quotes.Timeout > 0 {
		base.Quotes.Timeout = override.Quotes.Timeout
	}
	if override.Quotes.MaxAttempts > 0 {
		base.Quotes.MaxAttempts = override.Quotes.MaxAttempts
	}

	if override.Archive.Driver != "" {
		base.Archive.Driver = override.Archive.Driver
	}
	if override.Archive.DSN != "" {
		base.Archive.DSN = override.Archive.DSN
	}
	if override.Archive.SkipReported {
		base.Archive.SkipReported = true
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}
	if len(override.Output.Formats) > 0 {
		base.Output.Formats = override.Output.Formats
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIURL != "" {
		base.Notifications.Telegram.APIURL = override.Notifications.Telegram.APIURL
	}

	return base
}

// tldrHeadline matches "ALL CAPS HEADLINE (3 MINUTE READ) [12]".
const tldrHeadline = `^(?P<headline>[A-Z0-9][A-Z0-9\s&',.:!?$%/-]+?)\s*\((?P<minutes>\d+)\s+MINUTE\s+READ\)\s*(?:\[\d+\])?`

func newsletter(id, name string, domains ...string) SourceConfig {
	return SourceConfig{ID: id, Name: name, Domains: domains}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Inbox: InboxConfig{
			Provider:    "gmail",
			Window:      24 * time.Hour,
			MaxMessages: 100,
			Concurrency: 8,
			GmailDir:    ".",
		},
		Sources: []SourceConfig{
			newsletter("morning-brew", "Morning Brew", "morningbrew.com"),
			newsletter("the-hustle", "The Hustle", "thehustle.co"),
			newsletter("axios", "Axios", "axios.com"),
			newsletter("techcrunch", "TechCrunch", "techcrunch.com"),
			newsletter("venturebeat", "VentureBeat", "venturebeat.com"),
			newsletter("the-verge", "The Verge", "theverge.com"),
			newsletter("ars-technica", "Ars Technica", "arstechnica.com"),
			newsletter("wired", "Wired", "wired.com"),
			newsletter("bloomberg", "Bloomberg", "bloomberg.com"),
			newsletter("reuters", "Reuters", "reuters.com"),
			newsletter("wsj", "The Wall Street Journal", "wsj.com"),
			newsletter("ft", "Financial Times", "ft.com"),
			newsletter("cnn", "CNN", "cnn.com"),
			newsletter("bbc", "BBC", "bbc.com"),
			newsletter("npr", "NPR", "npr.org"),
			newsletter("nytimes", "The New York Times", "nytimes.com"),
			newsletter("washington-post", "The Washington Post", "washingtonpost.com"),
			newsletter("guardian", "The Guardian", "theguardian.com"),
			newsletter("forbes", "Forbes", "forbes.com"),
			newsletter("business-insider", "Business Insider", "businessinsider.com"),
			newsletter("cnbc", "CNBC", "cnbc.com"),
			newsletter("marketwatch", "MarketWatch", "marketwatch.com"),
			newsletter("yahoo", "Yahoo", "yahoo.com"),
			newsletter("msn", "MSN", "msn.com"),
			{
				ID:      "tldr",
				Name:    "TLDR",
				Domains: []string{"tldr.tech", "tldrnewsletter.com"},
				Rules: []RuleConfig{
					{Kind: "headline", Pattern: tldrHeadline},
					{Kind: "section"},
				},
				MinLineLength: 20,
				MaxBodyLines:  10,
			},
		},
		Filter: FilterConfig{
			MinBodyLength:    80,
			MinSentenceWords: 5,
			Similarity:       0.9,
		},
		Companies: []CompanyConfig{
			{Name: "Alphabet", Ticker: "GOOGL", Aliases: []string{"Google", "YouTube", "DeepMind"}},
			{Name: "Amazon", Ticker: "AMZN", Aliases: []string{"AWS", "Amazon Web Services"}},
			{Name: "Microsoft", Ticker: "MSFT"},
			{Name: "Apple", Ticker: "AAPL"},
			{Name: "Meta", Ticker: "META", Aliases: []string{"Facebook", "Instagram", "WhatsApp"}},
			{Name: "Tesla", Ticker: "TSLA"},
			{Name: "NVIDIA", Ticker: "NVDA"},
			{Name: "AMD", Ticker: "AMD", Aliases: []string{"Advanced Micro Devices"}},
			{Name: "Intel", Ticker: "INTC"},
			{Name: "Netflix", Ticker: "NFLX"},
			{Name: "Salesforce", Ticker: "CRM"},
			{Name: "Oracle", Ticker: "ORCL"},
			{Name: "IBM", Ticker: "IBM"},
			{Name: "Broadcom", Ticker: "AVGO"},
			{Name: "TSMC", Ticker: "TSM", Aliases: []string{"Taiwan Semiconductor"}},
			{Name: "Uber", Ticker: "UBER"},
			{Name: "OpenAI", Aliases: []string{"ChatGPT"}},
			{Name: "Anthropic"},
			{Name: "DeepSeek"},
		},
		Aggregate: AggregateConfig{Similarity: 0.9},
		Pipeline: PipelineConfig{
			Workers:          4,
			SummarySentences: 3,
			MaxSummaryLength: 1000,
		},
		Quotes: QuotesConfig{
			Endpoint:    "https://query1.finance.yahoo.com/v8/finance/chart/",
			RPM:         60,
			Burst:       5,
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
		},
		Archive: ArchiveConfig{Driver: "sqlite"},
		Output: OutputConfig{
			Dir:     ".",
			Formats: []string{FormatMarkdown, FormatPDF, FormatScript},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIURL: "https://api.telegram.org"},
		},
	}
}
