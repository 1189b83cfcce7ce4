package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/cardgrade/models"
)

var (
	sizeToken = regexp.MustCompile(`s-l(\d+)`)
	spaces    = regexp.MustCompile(`\s+`)
)

// ParseHTML reads image candidates and visible text from static markup.
// Dimensions come from width/height attributes, falling back to the s-l<N> size token in the URL.
func ParseHTML(pageURL, html string) ([]models.ImageCandidate, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)

	var images []models.ImageCandidate
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				src = base.ResolveReference(ref).String()
			}
		}

		width := attrInt(s, "width")
		height := attrInt(s, "height")
		if width == 0 || height == 0 {
			if m := sizeToken.FindStringSubmatch(src); m != nil {
				n, _ := strconv.Atoi(m[1])
				if width == 0 {
					width = n
				}
				if height == 0 {
					height = n
				}
			}
		}
		images = append(images, models.ImageCandidate{URL: src, Width: width, Height: height})
	})

	doc.Find("script, style, noscript").Remove()
	text := strings.TrimSpace(spaces.ReplaceAllString(doc.Find("body").Text(), " "))
	return images, text, nil
}

func attrInt(s *goquery.Selection, name string) int {
	raw := strings.TrimSuffix(strings.TrimSpace(s.AttrOr(name, "")), "px")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
