package ocr

import (
	"context"
	"image"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Fragment is one line of text reported by an OCR engine.
type Fragment struct {
	// Text is the recognized text content.
	Text string `json:"text"`

	// Confidence is the engine's confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds locates the line in the recognized image.
	Bounds Bounds `json:"bounds"`
}

// Recognizer runs OCR over an in-memory image.
//
// Fragments come back in engine reading order. Languages are Tesseract codes
// such as "eng" or "tha"; an empty list lets the implementation pick its
// default. Implementations must be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, languages []string) ([]Fragment, error)
}
