package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrEmptyRegion is returned when a crop box has no overlap with the image.
var ErrEmptyRegion = errors.New("crop region does not overlap the image")

// CropBox extracts box from img, grown by padding pixels on every side and
// clamped to the image bounds.
func CropBox(img image.Image, box image.Rectangle, padding int) (*image.NRGBA, error) {
	if padding < 0 {
		padding = 0
	}
	region := box.Canon().Inset(-padding).Intersect(img.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("box %v in image %v: %w", box, img.Bounds(), ErrEmptyRegion)
	}
	return imaging.Crop(img, region), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
