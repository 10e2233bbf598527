package screenshot

import (
	"context"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer implements TextRecognizer on the local Tesseract
// engine. Clients are created per call: gosseract clients are not safe for
// concurrent reuse and a monitoring cycle's OCR volume is small.
type TesseractRecognizer struct{}

// NewTesseractRecognizer creates a Tesseract-backed recognizer.
func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{}
}

// Recognize runs OCR over the image bytes and returns the raw text.
func (r *TesseractRecognizer) Recognize(ctx context.Context, imageData []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", err
	}
	return client.Text()
}
