// Package scraper fetches listing pages and image bytes with a browser-like request identity.
package scraper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aluiziolira/cardgrade/config"
	"github.com/aluiziolira/cardgrade/models"
)

// Fetcher turns a listing identifier into a rendered page.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (*models.RenderedPage, error)
}

// Navigation headers sent with every listing request.
const (
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
)

// RequestHeaders returns the header set presented to the listing site.
// The user agent is set separately by each engine.
func RequestHeaders(cfg *config.Config) http.Header {
	h := http.Header{}
	h.Set("Accept", acceptHeader)
	h.Set("Accept-Language", cfg.AcceptLanguage)
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// New builds the fetcher selected by cfg.Engine.
func New(cfg *config.Config) (Fetcher, error) {
	switch cfg.Engine {
	case config.EngineBrowser:
		return NewBrowserFetcher(cfg), nil
	case config.EngineStatic:
		return NewStaticFetcher(cfg), nil
	case config.EngineFixture:
		return NewFixtureFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
