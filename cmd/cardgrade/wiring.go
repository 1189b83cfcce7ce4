package main

import (
	"github.com/aluiziolira/cardgrade/config"
	"github.com/aluiziolira/cardgrade/extract"
	"github.com/aluiziolira/cardgrade/pipeline"
	"github.com/aluiziolira/cardgrade/scraper"
)

// newRunner wires the configured fetch engine, image selection and grade extraction.
func newRunner(c *config.Config, writer pipeline.OutputWriter, opts ...pipeline.Option) (*pipeline.Runner, error) {
	fetcher, err := scraper.New(c)
	if err != nil {
		return nil, err
	}

	images := scraper.NewImageClient(c)
	var ocr extract.Recognizer
	if c.OCREnabled {
		ocr = extract.NewTesseractRecognizer(c.OCRLanguage)
	}
	grades := extract.NewGradeExtractor(images, ocr)

	return pipeline.NewRunner(c, fetcher, extract.NewImageSelector(c.MinImageSize), grades, writer, opts...), nil
}
