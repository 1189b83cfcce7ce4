package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/aluiziolira/cardgrade/config"
	"github.com/aluiziolira/cardgrade/models"
)

const collectImagesJS = `() => Array.from(document.images).map(img => ({
	src: img.currentSrc || img.src || "",
	width: img.naturalWidth || img.width || 0,
	height: img.naturalHeight || img.height || 0,
}))`

const bodyTextJS = `() => document.body ? document.body.innerText : ""`

// BrowserFetcher renders listings in a headless Chromium. Every Fetch launches
// its own browser process and tears it down before returning.
type BrowserFetcher struct {
	cfg *config.Config
}

// NewBrowserFetcher returns a rod-backed fetcher.
func NewBrowserFetcher(cfg *config.Config) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

// Fetch navigates to the listing, waits for DOMContentLoaded plus the settle delay, and snapshots the page.
func (f *BrowserFetcher) Fetch(ctx context.Context, identifier string) (*models.RenderedPage, error) {
	target := f.cfg.ListingURL(identifier)

	l := launcher.New().
		Context(ctx).
		Headless(f.cfg.Headless).
		NoSandbox(f.cfg.NoSandbox).
		Set("disable-blink-features", "AutomationControlled")
	if f.cfg.BrowserBin != "" {
		l = l.Bin(f.cfg.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("launch: %w", err)}
	}
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("connect: %w", err)}
	}
	defer func() {
		if err := browser.Close(); err != nil {
			slog.Debug("browser close failed", slog.String("identifier", identifier), slog.Any("error", err))
		}
	}()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("open page: %w", err)}
	}
	defer func() {
		_ = page.Close()
	}()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      f.cfg.UserAgent,
		AcceptLanguage: f.cfg.AcceptLanguage,
	}); err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("set user agent: %w", err)}
	}
	if _, err := page.SetExtraHeaders(extraHeaderPairs(f.cfg)); err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("set headers: %w", err)}
	}

	var status atomic.Int64
	waitEvents := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Type == proto.NetworkResourceTypeDocument && e.Response != nil {
			status.Store(int64(e.Response.Status))
		}
	})
	go waitEvents()

	nav := page.Timeout(f.cfg.NavigationTimeout)
	waitDOM := nav.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := nav.Navigate(target); err != nil {
		nav.CancelTimeout()
		return nil, classifyError(navigationErr(err), 0)
	}
	waitDOM()
	loadErr := domContentLoadedErr(nav.GetContext())
	nav.CancelTimeout()
	if loadErr != nil {
		return nil, loadErr
	}

	if err := sleepCtx(ctx, f.cfg.SettleDelay); err != nil {
		return nil, ErrTimeout{Err: err}
	}

	code := int(status.Load())
	if classified := classifyError(nil, code); classified != nil {
		return nil, classified
	}

	rendered := &models.RenderedPage{
		Identifier: identifier,
		URL:        target,
		StatusCode: code,
	}

	read := page.Context(ctx)
	res, err := read.Eval(collectImagesJS)
	if err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("collect images: %w", err)}
	}
	if err := res.Value.Unmarshal(&rendered.Images); err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("decode images: %w", err)}
	}

	if res, err := read.Eval(bodyTextJS); err == nil {
		rendered.Text = res.Value.Str()
	}

	html, err := read.HTML()
	if err != nil {
		return nil, ErrBrowser{Err: fmt.Errorf("read html: %w", err)}
	}
	rendered.HTML = html

	slog.Debug("listing rendered",
		slog.String("identifier", identifier),
		slog.Int("status", code),
		slog.Int("images", len(rendered.Images)),
	)
	return rendered, nil
}

func extraHeaderPairs(cfg *config.Config) []string {
	h := RequestHeaders(cfg)
	// Accept-Language is carried by the user agent override.
	h.Del("Accept-Language")
	pairs := make([]string, 0, len(h)*2)
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		pairs = append(pairs, key, values[0])
	}
	return pairs
}

// domContentLoadedErr reports a navigation whose wait ended because ctx expired rather than
// because the document loaded.
func domContentLoadedErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ErrTimeout{Err: fmt.Errorf("wait for DOMContentLoaded: %w", err)}
	}
	return nil
}

func navigationErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ErrConnection{Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
