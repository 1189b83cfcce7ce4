package scraper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aluiziolira/cardgrade/config"
	"github.com/aluiziolira/cardgrade/models"
)

// FixtureFetcher serves saved listing markup from <dir>/<identifier>.html.
type FixtureFetcher struct {
	dir string
	cfg *config.Config
}

// NewFixtureFetcher reads listings from cfg.FixtureDir.
func NewFixtureFetcher(cfg *config.Config) *FixtureFetcher {
	return &FixtureFetcher{dir: cfg.FixtureDir, cfg: cfg}
}

func (f *FixtureFetcher) Fetch(ctx context.Context, identifier string) (*models.RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrTimeout{Err: err}
	}

	name := filepath.Join(f.dir, filepath.Base(identifier)+".html")
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound{Err: fmt.Errorf("fixture %s: %w", name, err)}
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", name, err)
	}

	target := f.cfg.ListingURL(identifier)
	images, text, err := ParseHTML(target, string(data))
	if err != nil {
		return nil, err
	}
	return &models.RenderedPage{
		Identifier: identifier,
		URL:        target,
		StatusCode: 200,
		Images:     images,
		Text:       text,
		HTML:       string(data),
	}, nil
}
