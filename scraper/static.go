package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/cardgrade/config"
	"github.com/aluiziolira/cardgrade/models"
)

// StaticFetcher downloads listing markup over plain HTTP with colly. No scripts run,
// so image sizes come from markup attributes or URL size tokens.
type StaticFetcher struct {
	cfg       *config.Config
	transport http.RoundTripper
}

// NewStaticFetcher returns a colly-backed fetcher.
func NewStaticFetcher(cfg *config.Config) *StaticFetcher {
	return &StaticFetcher{
		cfg: cfg,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.NavigationTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// WithTransport swaps the HTTP transport, e.g. for httpmock in tests.
func (f *StaticFetcher) WithTransport(rt http.RoundTripper) *StaticFetcher {
	f.transport = rt
	return f
}

// Fetch downloads the listing, retrying transient failures with capped exponential backoff.
func (f *StaticFetcher) Fetch(ctx context.Context, identifier string) (*models.RenderedPage, error) {
	target := f.cfg.ListingURL(identifier)
	policy := backoff{base: f.cfg.RetryBackoff, max: f.cfg.RetryBackoffMax}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.delay(attempt)
			slog.Debug("retrying listing fetch",
				slog.String("identifier", identifier),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr),
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, ErrTimeout{Err: err}
			}
		}

		page, err := f.fetchOnce(ctx, identifier, target)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (f *StaticFetcher) fetchOnce(ctx context.Context, identifier, target string) (*models.RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout{Err: err}
	}

	collector := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(f.cfg.NavigationTimeout)
	collector.WithTransport(f.transport)

	headers := RequestHeaders(f.cfg)

	var (
		body     []byte
		status   int
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		code := 0
		if r != nil {
			code = r.StatusCode
		}
		status = code
		fetchErr = classifyError(err, code)
	})

	if err := collector.Visit(target); err != nil && fetchErr == nil {
		fetchErr = classifyError(err, status)
	}
	if fetchErr == nil && ctx.Err() != nil {
		fetchErr = ErrTimeout{Err: ctx.Err()}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if classified := classifyError(nil, status); classified != nil {
		return nil, classified
	}

	images, text, err := ParseHTML(target, string(body))
	if err != nil {
		return nil, err
	}
	return &models.RenderedPage{
		Identifier: identifier,
		URL:        target,
		StatusCode: status,
		Images:     images,
		Text:       text,
		HTML:       string(body),
	}, nil
}

// backoff doubles the base delay per attempt up to max.
type backoff struct {
	base time.Duration
	max  time.Duration
}

func (b backoff) delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := b.base
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if b.max > 0 && delay > b.max {
		delay = b.max
	}
	return delay
}

func retryable(err error) bool {
	var (
		timeout ErrTimeout
		conn    ErrConnection
		limited ErrRateLimited
		status  ErrStatus
	)
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &timeout), errors.As(err, &conn), errors.As(err, &limited):
		return true
	case errors.As(err, &status):
		return status.Code >= http.StatusInternalServerError
	default:
		return false
	}
}

var (
	_ Fetcher = (*StaticFetcher)(nil)
	_ Fetcher = (*BrowserFetcher)(nil)
	_ Fetcher = (*FixtureFetcher)(nil)
)
