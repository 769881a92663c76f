package ocr

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
)

// minTextHeight is the smallest image height upscaled before recognition.
// Tesseract misses glyphs much below ~20px cap height.
const minTextHeight = 48

// Preprocess prepares an image for recognition: grayscale, a mild contrast
// boost, and a 2x upscale for very small inputs.
func Preprocess(img image.Image) image.Image {
	var out image.Image = effect.Grayscale(img)
	out = adjust.Contrast(out, 0.2)

	b := out.Bounds()
	if b.Dy() > 0 && b.Dy() < minTextHeight {
		out = transform.Resize(out, b.Dx()*2, b.Dy()*2, transform.Linear)
	}
	return out
}
