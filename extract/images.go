// Package extract resolves front/back images and the grade/price of a rendered listing.
package extract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/aluiziolira/cardgrade/models"
)

// ErrNoImages is returned when no image passes the size threshold.
var ErrNoImages = errors.New("extract: no qualifying images")

// HighResMarker is the size token of the largest listing image variant.
const HighResMarker = "1600"

const highResFilename = "s-l1600.webp"

var hashSegment = regexp.MustCompile(`/g/([^/]+)/`)

// ImageSelector picks the front and back card faces from a page's images.
type ImageSelector struct {
	MinSize int
}

// NewImageSelector returns a selector that ignores images not larger than minSize in both dimensions.
func NewImageSelector(minSize int) *ImageSelector {
	return &ImageSelector{MinSize: minSize}
}

// Candidates filters out icons, thumbnails and ads.
func (s *ImageSelector) Candidates(images []models.ImageCandidate) []models.ImageCandidate {
	out := make([]models.ImageCandidate, 0, len(images))
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		if img.Width > s.MinSize && img.Height > s.MinSize {
			out = append(out, img)
		}
	}
	return out
}

// Select resolves the image pair.
//
// The front is the first candidate carrying the high-resolution marker, kept as served, else the
// first candidate rewritten to its high-resolution variant.
// Listing photos share a content-hash path segment across their size variants, so the back is the
// candidate whose hash appears exactly once and differs from the front's. Without one, the first
// other candidate is used, and a single-image listing reuses the front.
func (s *ImageSelector) Select(page *models.RenderedPage) (models.ImagePair, error) {
	if page == nil {
		return models.ImagePair{}, ErrNoImages
	}
	candidates := s.Candidates(page.Images)
	if len(candidates) == 0 {
		return models.ImagePair{}, ErrNoImages
	}

	frontIdx := -1
	for i, c := range candidates {
		if strings.Contains(c.URL, HighResMarker) {
			frontIdx = i
			break
		}
	}
	var front string
	if frontIdx >= 0 {
		front = candidates[frontIdx].URL
	} else {
		frontIdx = 0
		front = NormalizeHighRes(candidates[0].URL)
	}
	frontHash := HashSegment(candidates[frontIdx].URL)

	counts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if h := HashSegment(c.URL); h != "" {
			counts[h]++
		}
	}

	for _, c := range candidates {
		h := HashSegment(c.URL)
		if h == "" || counts[h] != 1 || h == frontHash {
			continue
		}
		return models.ImagePair{FrontURL: front, BackURL: NormalizeHighRes(c.URL)}, nil
	}

	for i, c := range candidates {
		if i != frontIdx && c.URL != front {
			return models.ImagePair{FrontURL: front, BackURL: c.URL}, nil
		}
	}

	return models.ImagePair{FrontURL: front, BackURL: front}, nil
}

// HashSegment returns the content-hash path segment of a listing image URL, or "".
func HashSegment(url string) string {
	m := hashSegment.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// NormalizeHighRes rewrites the filename after the hash segment to the largest variant.
// URLs without a hash segment are returned unchanged.
func NormalizeHighRes(url string) string {
	loc := hashSegment.FindStringIndex(url)
	if loc == nil {
		return url
	}
	return url[:loc[1]] + highResFilename
}
