package extract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs tesseract over in-memory images. Each call uses its own client.
type TesseractRecognizer struct {
	Language string
}

// NewTesseractRecognizer returns a recognizer for the given tesseract language code.
func NewTesseractRecognizer(language string) *TesseractRecognizer {
	if language == "" {
		language = "eng"
	}
	return &TesseractRecognizer{Language: language}
}

type ocrResult struct {
	text string
	err  error
}

// Recognize returns the text tesseract finds in image. Engine panics are reported as errors.
func (r *TesseractRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("ocr: empty image")
	}

	done := make(chan ocrResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- ocrResult{err: fmt.Errorf("ocr: engine panic: %v", rec)}
			}
		}()
		text, err := r.recognize(image)
		done <- ocrResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("ocr: %w", ctx.Err())
	case res := <-done:
		return res.text, res.err
	}
}

func (r *TesseractRecognizer) recognize(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.Language); err != nil {
		return "", fmt.Errorf("ocr: set language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("ocr: load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognise: %w", err)
	}
	return text, nil
}
