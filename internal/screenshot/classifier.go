package screenshot

import (
	"bytes"
	"context"
	"image"
	"strings"

	// Register the decoders screenshots arrive in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/sirupsen/logrus"
)

// blackRatioThreshold is the fraction of zero-luminance pixels above which a
// frame counts as black.
const blackRatioThreshold = 0.90

// ErrorPhrases is the fixed vocabulary of player error/status text scanned
// for in screenshots.
var ErrorPhrases = []string{
	"something went wrong, please contact your administrator",
	"getting player data",
	"downloading player assets",
	"setting up programmatic",
	"getting host schedule",
	"refetch started",
	"player is healthy",
	"updates are available",
	"downloading updates",
}

// OutcomeKind distinguishes a usable classification from the specific ways
// an image can fail to classify.
type OutcomeKind int

const (
	// OutcomeClassified means the image decoded and was fully evaluated.
	OutcomeClassified OutcomeKind = iota
	// OutcomeDecodeFailed means the image bytes could not be decoded.
	OutcomeDecodeFailed
	// OutcomeOCRUnavailable means the image decoded but text recognition failed.
	OutcomeOCRUnavailable
)

// Outcome is the per-image classification result. It is a value, not an
// error: failed classifications are aggregated explicitly by the reducer.
type Outcome struct {
	Kind    OutcomeKind
	Black   bool
	Phrases []string
}

// TextRecognizer extracts text from an image. The production implementation
// wraps Tesseract; tests substitute their own.
type TextRecognizer interface {
	Recognize(ctx context.Context, imageData []byte) (string, error)
}

// Classifier evaluates screenshot images for black frames and error text.
type Classifier struct {
	recognizer TextRecognizer
}

// NewClassifier creates a Classifier using the given text recognizer.
func NewClassifier(recognizer TextRecognizer) *Classifier {
	return &Classifier{recognizer: recognizer}
}

// Classify evaluates one image. Black frames skip OCR entirely; a decode or
// OCR failure is reported as its own outcome kind so the caller can count it
// as "no classification" rather than guessing.
func (c *Classifier) Classify(ctx context.Context, imageData []byte) Outcome {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		logrus.WithError(err).Debug("Screenshot failed to decode")
		return Outcome{Kind: OutcomeDecodeFailed}
	}

	if isBlackFrame(img) {
		return Outcome{Kind: OutcomeClassified, Black: true}
	}

	text, err := c.recognizer.Recognize(ctx, imageData)
	if err != nil {
		logrus.WithError(err).Warn("Text recognition unavailable for screenshot")
		return Outcome{Kind: OutcomeOCRUnavailable}
	}

	return Outcome{
		Kind:    OutcomeClassified,
		Phrases: MatchPhrases(text),
	}
}

// MatchPhrases returns every vocabulary phrase contained in the text,
// compared lowercased and trimmed.
func MatchPhrases(text string) []string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return nil
	}
	var found []string
	for _, phrase := range ErrorPhrases {
		if strings.Contains(normalized, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

// isBlackFrame reports whether the image is a near-uniform black frame:
// the zero-luminance histogram bucket holds more than 90% of pixels.
// A degenerate image with no pixels is not black.
func isBlackFrame(img image.Image) bool {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total <= 0 {
		return false
	}

	blackPixels := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma on 16-bit channels, scaled back to 8-bit.
			luma := (299*r + 587*g + 114*b) / 1000 >> 8
			if luma == 0 {
				blackPixels++
			}
		}
	}

	ratio := float64(blackPixels) / float64(total)
	if ratio > blackRatioThreshold {
		logrus.WithField("black_ratio", ratio).Debug("Detected black frame")
		return true
	}
	return false
}
