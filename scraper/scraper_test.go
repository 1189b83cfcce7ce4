package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/cardgrade/config"
)

const listingHTML = `<!doctype html>
<html><head><title>PSA 10 Charizard</title><script>var x = "GEM";</script></head>
<body>
<div id="vi_psa_card_insights"><span class="elevated-info__item__value">PSA 10</span></div>
<div class="x-price-primary"><span class="ux-textspans">US $45.00</span></div>
<img src="https://i.ebayimg.com/images/g/frontHash/s-l1600.webp">
<img src="https://i.ebayimg.com/images/g/backHash/s-l500.jpg" width="400" height="400">
<img src="/static/logo.png" width="32" height="32">
<img src="data:image/gif;base64,R0lGOD" data-src="https://i.ebayimg.com/images/g/lazyHash/s-l300.jpg">
</body></html>`

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ListingBaseURL = "http://listing.test/itm/"
	cfg.MaxRetries = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	cfg.NavigationTimeout = time.Second
	return cfg
}

func TestBackoffCapped(t *testing.T) {
	b := backoff{base: 200 * time.Millisecond, max: 500 * time.Millisecond}

	if got := b.delay(1); got != 200*time.Millisecond {
		t.Fatalf("first delay = %v, want 200ms", got)
	}
	if got := b.delay(2); got != 400*time.Millisecond {
		t.Fatalf("second delay = %v, want 400ms", got)
	}
	if got := b.delay(4); got > b.max {
		t.Fatalf("delay %v exceeds max %v", got, b.max)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusBadGateway, expected: "status"},
		{name: "success status", err: nil, statusCode: http.StatusOK, expected: "unknown"},
		{name: "browser", err: ErrBrowser{Err: errors.New("no chrome")}, statusCode: 0, expected: "browser"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	cfg := config.DefaultConfig()
	h := RequestHeaders(cfg)

	want := map[string]string{
		"Accept-Language":           "en-US,en;q=0.9",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}
	for key, value := range want {
		if got := h.Get(key); got != value {
			t.Fatalf("header %s = %q, want %q", key, got, value)
		}
	}
	if !strings.HasPrefix(h.Get("Accept"), "text/html") {
		t.Fatalf("unexpected accept header %q", h.Get("Accept"))
	}

	pairs := extraHeaderPairs(cfg)
	if len(pairs)%2 != 0 {
		t.Fatalf("header pairs must be even, got %d", len(pairs))
	}
	for i := 0; i < len(pairs); i += 2 {
		if pairs[i] == "Accept-Language" {
			t.Fatalf("accept-language should travel with the user agent override")
		}
	}
}

func TestParseHTML(t *testing.T) {
	images, text, err := ParseHTML("https://www.ebay.com/itm/1", listingHTML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(images) != 4 {
		t.Fatalf("expected 4 images, got %d: %+v", len(images), images)
	}

	front := images[0]
	if front.Width != 1600 || front.Height != 1600 {
		t.Fatalf("size token not applied: %+v", front)
	}
	if images[1].Width != 400 {
		t.Fatalf("width attribute ignored: %+v", images[1])
	}
	if images[2].URL != "https://www.ebay.com/static/logo.png" {
		t.Fatalf("relative src not resolved: %q", images[2].URL)
	}
	if images[3].URL != "https://i.ebayimg.com/images/g/lazyHash/s-l300.jpg" {
		t.Fatalf("lazy src not used: %q", images[3].URL)
	}

	if !strings.Contains(text, "PSA 10") || !strings.Contains(text, "US $45.00") {
		t.Fatalf("body text missing panel content: %q", text)
	}
	if strings.Contains(text, "var x") {
		t.Fatalf("script content leaked into text: %q", text)
	}
}

func TestStaticFetcherSendsIdentity(t *testing.T) {
	cfg := testConfig()

	var got http.Header
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://listing.test/itm/111111111111",
		func(req *http.Request) (*http.Response, error) {
			got = req.Header.Clone()
			return httpmock.NewStringResponse(http.StatusOK, listingHTML), nil
		})

	page, err := NewStaticFetcher(cfg).WithTransport(transport).Fetch(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.StatusCode != http.StatusOK || len(page.Images) != 4 {
		t.Fatalf("unexpected page: status=%d images=%d", page.StatusCode, len(page.Images))
	}
	if !strings.Contains(page.HTML, "vi_psa_card_insights") {
		t.Fatalf("html not retained")
	}
	if got.Get("User-Agent") != cfg.UserAgent {
		t.Fatalf("user agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Sec-Fetch-Mode") != "navigate" {
		t.Fatalf("navigation headers missing: %v", got)
	}
}

func TestStaticFetcherHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusServiceUnavailable, expected: "status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			cfg := testConfig()
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", "http://listing.test/itm/42", httpmock.NewStringResponder(tt.status, ""))

			_, err := NewStaticFetcher(cfg).WithTransport(transport).Fetch(context.Background(), "42")
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if got := ErrorTypeLabel(err); got != tt.expected {
				t.Fatalf("label = %q, want %q (err=%v)", got, tt.expected, err)
			}
		})
	}
}

func TestStaticFetcherRetriesServerErrors(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://listing.test/itm/7", httpmock.ResponderFromMultipleResponses(
		[]*http.Response{
			httpmock.NewStringResponse(http.StatusBadGateway, ""),
			httpmock.NewStringResponse(http.StatusOK, listingHTML),
		},
	))

	page, err := NewStaticFetcher(cfg).WithTransport(transport).Fetch(context.Background(), "7")
	if err != nil {
		t.Fatalf("fetch after retry: %v", err)
	}
	if page.Identifier != "7" {
		t.Fatalf("identifier = %q", page.Identifier)
	}
	if calls := transport.GetTotalCallCount(); calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestStaticFetcherDoesNotRetryForbidden(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://listing.test/itm/8", httpmock.NewStringResponder(http.StatusForbidden, ""))

	if _, err := NewStaticFetcher(cfg).WithTransport(transport).Fetch(context.Background(), "8"); err == nil {
		t.Fatalf("expected forbidden error")
	}
	if calls := transport.GetTotalCallCount(); calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestFixtureFetcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "111.html"), []byte(listingHTML), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg := testConfig()
	cfg.Engine = config.EngineFixture
	cfg.FixtureDir = dir

	fetcher, err := New(cfg)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	page, err := fetcher.Fetch(context.Background(), "111")
	if err != nil {
		t.Fatalf("fetch fixture: %v", err)
	}
	if len(page.Images) != 4 {
		t.Fatalf("expected 4 images, got %d", len(page.Images))
	}

	_, err = fetcher.Fetch(context.Background(), "missing")
	if got := ErrorTypeLabel(err); got != "not_found" {
		t.Fatalf("missing fixture label = %q (err=%v)", got, err)
	}
}

func TestImageClientFetch(t *testing.T) {
	cfg := testConfig()
	client := NewImageClient(cfg)
	httpmock.ActivateNonDefault(client.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://i.ebayimg.com/images/g/abc/s-l1600.webp",
		httpmock.NewBytesResponder(http.StatusOK, []byte{0x52, 0x49, 0x46, 0x46}))
	httpmock.RegisterResponder("GET", "https://i.ebayimg.com/images/g/gone/s-l1600.webp",
		httpmock.NewStringResponder(http.StatusNotFound, ""))

	body, err := client.Fetch(context.Background(), "https://i.ebayimg.com/images/g/abc/s-l1600.webp")
	if err != nil {
		t.Fatalf("fetch image: %v", err)
	}
	if len(body) != 4 {
		t.Fatalf("body length = %d", len(body))
	}

	_, err = client.Fetch(context.Background(), "https://i.ebayimg.com/images/g/gone/s-l1600.webp")
	if got := ErrorTypeLabel(err); got != "not_found" {
		t.Fatalf("label = %q (err=%v)", got, err)
	}

	if _, err := client.Fetch(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestDOMContentLoadedErr(t *testing.T) {
	if err := domContentLoadedErr(context.Background()); err != nil {
		t.Fatalf("live context: unexpected error %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := domContentLoadedErr(ctx)
	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
	if got := ErrorTypeLabel(err); got != "timeout" {
		t.Fatalf("label = %q", got)
	}
}
