package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/cardgrade/models"
	"github.com/aluiziolira/cardgrade/parser"
)

// Selectors for the graded-item insights panel and the primary price.
const (
	PanelSelector      = "#vi_psa_card_insights"
	PanelValueSelector = ".elevated-info__item__value"
	PriceSelector      = "div.x-price-primary span.ux-textspans"
)

// Extraction sources.
const (
	SourcePanel = "panel"
	SourceOCR   = "ocr"
)

// ImageSource fetches raw image bytes.
type ImageSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Recognizer turns image bytes into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// GradeExtractor reads the grade and price from the insights panel, falling back to OCR
// of the front image when the listing has no panel.
type GradeExtractor struct {
	images ImageSource
	ocr    Recognizer
}

// NewGradeExtractor builds an extractor. A nil recognizer disables the OCR fallback.
func NewGradeExtractor(images ImageSource, ocr Recognizer) *GradeExtractor {
	return &GradeExtractor{images: images, ocr: ocr}
}

// OCREnabled reports whether the fallback can run.
func (g *GradeExtractor) OCREnabled() bool {
	return g != nil && g.ocr != nil && g.images != nil
}

// Extract never fails; an unknown grade is reported as Grade 0.
func (g *GradeExtractor) Extract(ctx context.Context, page *models.RenderedPage, frontURL string) models.Extraction {
	if page == nil {
		return models.Extraction{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		slog.Debug("listing html unreadable", slog.String("identifier", page.Identifier), slog.Any("error", err))
		return g.fromOCR(ctx, page.Identifier, frontURL)
	}

	panel := doc.Find(PanelSelector)
	if panel.Length() > 0 {
		return fromPanel(panel, doc)
	}
	return g.fromOCR(ctx, page.Identifier, frontURL)
}

func fromPanel(panel *goquery.Selection, doc *goquery.Document) models.Extraction {
	out := models.Extraction{Source: SourcePanel}

	value := strings.TrimSpace(panel.Find(PanelValueSelector).First().Text())
	out.Grade = parser.ParsePanelGrade(value)

	price := strings.TrimSpace(doc.Find(PriceSelector).First().Text())
	out.Price = parser.NormalizePrice(price)
	return out
}

func (g *GradeExtractor) fromOCR(ctx context.Context, identifier, frontURL string) models.Extraction {
	if !g.OCREnabled() || frontURL == "" {
		return models.Extraction{}
	}

	image, err := g.images.Fetch(ctx, frontURL)
	if err != nil {
		slog.Debug("front image fetch failed", slog.String("identifier", identifier), slog.Any("error", err))
		return models.Extraction{}
	}

	text, err := g.ocr.Recognize(ctx, image)
	if err != nil {
		slog.Debug("ocr failed", slog.String("identifier", identifier), slog.Any("error", err))
		return models.Extraction{}
	}

	// Source is set only once recognition produced text.
	out := models.Extraction{
		Source:  SourceOCR,
		OCRText: text,
		Grade:   parser.GradeFromOCR(text),
		Cert:    parser.CertFromOCR(text),
	}
	if !out.HasGrade() {
		slog.Debug("ocr text has no grade keyword",
			slog.String("identifier", identifier),
			slog.String("text", out.OCRText),
		)
		return out
	}
	slog.Debug("ocr text recognised",
		slog.String("identifier", identifier),
		slog.Int("grade", out.Grade),
		slog.Int("chars", len(text)),
	)
	return out
}
