// Package quotes fetches price snapshots from a Yahoo-style chart endpoint.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/SAMK-online/NewsPod/internal/domain"
	"github.com/SAMK-online/NewsPod/internal/ports"
)

// ErrUnavailable means the endpoint has no usable price for the ticker.
var ErrUnavailable = errors.New("quote unavailable")

var _ ports.QuoteProvider = (*Client)(nil)

// Options configures a Client. Zero values select conservative defaults.
type Options struct {
	Endpoint    string
	RPM         int
	Burst       int
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// Client talks to the chart endpoint, one ticker per request.
type Client struct {
	endpoint    string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewClient creates a reusable, rate limited HTTP client.
func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:    opts.Endpoint,
		http:        opts.HTTPClient,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		logger:      opts.Logger,
		now:         time.Now,
	}
	if !strings.HasSuffix(c.endpoint, "/") {
		c.endpoint += "/"
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 3
	}
	if c.baseDelay <= 0 {
		c.baseDelay = time.Second
	}

	rpm, burst := opts.RPM, opts.Burst
	if rpm <= 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// retryable marks failures worth another attempt.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// Quote returns the latest price and daily change for ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (domain.FinancialSnapshot, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" || ticker == "N/A" {
		return domain.FinancialSnapshot{}, fmt.Errorf("%w: empty ticker", ErrUnavailable)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug().Err(lastErr).Str("ticker", ticker).Dur("delay", delay).Msg("retrying quote")
			select {
			case <-ctx.Done():
				return domain.FinancialSnapshot{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.FinancialSnapshot{}, fmt.Errorf("limiter wait: %w", err)
		}

		snap, err := c.fetch(ctx, ticker)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		var r retryable
		if !errors.As(err, &r) {
			return domain.FinancialSnapshot{}, err
		}
	}
	return domain.FinancialSnapshot{}, fmt.Errorf("quote %s: max attempts exceeded: %w", ticker, lastErr)
}

func (c *Client) fetch(ctx context.Context, ticker string) (domain.FinancialSnapshot, error) {
	endpoint := c.endpoint + url.PathEscape(ticker) + "?range=1d&interval=1d"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.FinancialSnapshot{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; newspod)")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.FinancialSnapshot{}, ctx.Err()
		}
		return domain.FinancialSnapshot{}, retryable{fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.FinancialSnapshot{}, retryable{fmt.Errorf("unexpected status %s", resp.Status)}
	case resp.StatusCode == http.StatusNotFound:
		return domain.FinancialSnapshot{}, fmt.Errorf("%w: unknown symbol %s", ErrUnavailable, ticker)
	case resp.StatusCode != http.StatusOK:
		return domain.FinancialSnapshot{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.FinancialSnapshot{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Chart.Error != nil {
		return domain.FinancialSnapshot{}, fmt.Errorf("%w: %s", ErrUnavailable, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 || body.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return domain.FinancialSnapshot{}, fmt.Errorf("%w: no price for %s", ErrUnavailable, ticker)
	}

	meta := body.Chart.Result[0].Meta
	snap := domain.FinancialSnapshot{
		Ticker:    ticker,
		Price:     meta.RegularMarketPrice,
		Currency:  meta.Currency,
		Available: true,
		AsOf:      c.now().UTC(),
	}
	if meta.RegularMarketTime > 0 {
		snap.AsOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	if meta.ChartPreviousClose > 0 {
		snap.ChangePercent = (meta.RegularMarketPrice - meta.ChartPreviousClose) / meta.ChartPreviousClose * 100
	}
	return snap, nil
}
