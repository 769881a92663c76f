package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract is a Recognizer backed by the Tesseract engine through gosseract.
//
// A gosseract client is not safe for concurrent use, so every Recognize call
// creates and closes its own.
type Tesseract struct {
	// TessdataPrefix overrides the traineddata directory. Empty uses the
	// library default (TESSDATA_PREFIX or the system install).
	TessdataPrefix string
}

// NewTesseract returns a Tesseract recognizer.
func NewTesseract(tessdataPrefix string) *Tesseract {
	return &Tesseract{TessdataPrefix: tessdataPrefix}
}

// Recognize implements Recognizer. Fragments are text lines (RIL_TEXTLINE)
// with confidence scaled to [0, 1].
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, languages []string) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	langs, err := NormalizeLanguages(languages)
	if err != nil {
		return nil, err
	}

	orig := img.Bounds()
	img = Preprocess(img)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("failed to set language %s: %w", strings.Join(langs, "+"), err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	// Tesseract cannot be interrupted; a deadline that passed meanwhile still wins.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scale := upscaleFactor(orig, img.Bounds())
	frags := make([]Fragment, 0, len(boxes))
	for _, box := range boxes {
		frags = append(frags, Fragment{
			Text:       strings.TrimSpace(box.Word),
			Confidence: clampUnit(box.Confidence / 100.0),
			Bounds: Bounds{
				X1: orig.Min.X + box.Box.Min.X/scale,
				Y1: orig.Min.Y + box.Box.Min.Y/scale,
				X2: orig.Min.X + box.Box.Max.X/scale,
				Y2: orig.Min.Y + box.Box.Max.Y/scale,
			},
		})
	}
	return frags, nil
}

// upscaleFactor reports how much preprocessing enlarged the image.
func upscaleFactor(orig, processed image.Rectangle) int {
	if orig.Dy() <= 0 {
		return 1
	}
	if s := processed.Dy() / orig.Dy(); s > 1 {
		return s
	}
	return 1
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
