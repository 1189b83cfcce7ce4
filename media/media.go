// Package media saves dataset images into per-grade folders for training.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aluiziolira/cardgrade/models"
)

// ImageSource fetches image bytes.
type ImageSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Stats summarises a download pass.
type Stats struct {
	Saved   int
	Skipped int
	Failed  int
}

// Downloader writes front and back images to <dir>/<grade>/<identifier>_<side>_<basename>.
type Downloader struct {
	images  ImageSource
	dir     string
	limiter *rate.Limiter
}

// NewDownloader returns a downloader that waits delay between requests.
func NewDownloader(images ImageSource, dir string, delay time.Duration) *Downloader {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Downloader{images: images, dir: dir, limiter: rate.NewLimiter(limit, 1)}
}

// Download saves every image of records. Per-file failures are logged and counted; only
// cancellation stops the pass early.
func (d *Downloader) Download(ctx context.Context, records []*models.CardRecord) (Stats, error) {
	var stats Stats
	for _, r := range records {
		for _, side := range []struct{ name, url string }{
			{"front", r.FrontImageURL},
			{"back", r.BackImageURL},
		} {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			target := d.Target(r, side.name, side.url)
			if _, err := os.Stat(target); err == nil {
				stats.Skipped++
				continue
			}

			if err := d.save(ctx, side.url, target); err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				slog.Warn("image download failed",
					slog.String("identifier", r.Identifier),
					slog.String("side", side.name),
					slog.String("url", side.url),
					slog.Any("error", err),
				)
				stats.Failed++
				continue
			}
			slog.Debug("image saved", slog.String("path", target))
			stats.Saved++
		}
	}
	return stats, nil
}

// Target returns the file an image of record is stored at.
func (d *Downloader) Target(r *models.CardRecord, side, imageURL string) string {
	name := fmt.Sprintf("%s_%s_%s", safeName(r.Identifier), side, basename(imageURL))
	return filepath.Join(d.dir, strconv.Itoa(r.Grade), name)
}

func (d *Downloader) save(ctx context.Context, imageURL, target string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := d.images.Fetch(ctx, imageURL)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create grade directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}

func basename(imageURL string) string {
	name := ""
	if u, err := url.Parse(imageURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return safeName(name)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

