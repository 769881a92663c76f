package ocr

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createImageWithText renders lines of text and scales the result up so
// Tesseract has glyphs of a readable size.
func createImageWithText(lines []string, scale int) *image.RGBA {
	maxLen := 0
	for _, line := range lines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	w, h := maxLen*7+40, len(lines)*16+30

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	for i, line := range lines {
		drawText(small, 20, 20+i*16, line, color.Black)
	}

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.At(x, y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return img
}

// recognizeOrSkip skips the test when the Tesseract runtime or its English
// data is missing.
func recognizeOrSkip(t *testing.T, img image.Image) []Fragment {
	t.Helper()
	frags, err := NewTesseract("").Recognize(context.Background(), img, []string{"eng"})
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "tess") || strings.Contains(msg, "language") || strings.Contains(msg, "library") {
			t.Skipf("Tesseract not available: %v", err)
		}
		t.Fatalf("Recognize failed: %v", err)
	}
	return frags
}

func TestTesseract_Recognize(t *testing.T) {
	img := createImageWithText([]string{"HELLO WORLD", "LINE TWO"}, 4)
	frags := recognizeOrSkip(t, img)

	t.Logf("Fragments: %d", len(frags))
	for i, f := range frags {
		t.Logf("  %d: %q (confidence: %.2f)", i, f.Text, f.Confidence)
		assert.GreaterOrEqual(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
		assert.LessOrEqual(t, f.Bounds.X2, img.Bounds().Dx())
	}
	assert.Equal(t, "", Text(frags, 1.0))
}

func TestTesseract_BlankImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	frags := recognizeOrSkip(t, img)
	assert.Equal(t, "", Text(frags, 0))
}

func TestTesseract_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTesseract("").Recognize(ctx, image.NewRGBA(image.Rect(0, 0, 10, 10)), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTesseract_InvalidLanguage(t *testing.T) {
	_, err := NewTesseract("").Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)), []string{"../etc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OCR language")
}

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 20))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{200, 30, 30, 255}}, image.Point{}, draw.Src)

	out := Preprocess(img)
	assert.Equal(t, image.Rect(0, 0, 120, 40), out.Bounds())

	r, g, b, _ := out.At(10, 10).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)

	big := image.NewRGBA(image.Rect(0, 0, 100, 100))
	assert.Equal(t, big.Bounds(), Preprocess(big).Bounds())
}

func TestUpscaleFactor(t *testing.T) {
	assert.Equal(t, 1, upscaleFactor(image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10)))
	assert.Equal(t, 2, upscaleFactor(image.Rect(0, 0, 10, 10), image.Rect(0, 0, 20, 20)))
	assert.Equal(t, 1, upscaleFactor(image.Rectangle{}, image.Rect(0, 0, 20, 20)))
}
