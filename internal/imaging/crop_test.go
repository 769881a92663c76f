package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropBox(t *testing.T) {
	img := newQuadrantImage(100, 100)

	cropped, err := CropBox(img, image.Rect(0, 0, 50, 50), 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 50), cropped.Bounds())

	r, g, b, _ := cropped.At(25, 25).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestCropBox_Padding(t *testing.T) {
	img := newQuadrantImage(100, 100)

	cropped, err := CropBox(img, image.Rect(40, 40, 60, 60), 5)
	require.NoError(t, err)
	assert.Equal(t, 30, cropped.Bounds().Dx())
	assert.Equal(t, 30, cropped.Bounds().Dy())

	// negative padding is treated as none
	cropped, err = CropBox(img, image.Rect(40, 40, 60, 60), -10)
	require.NoError(t, err)
	assert.Equal(t, 20, cropped.Bounds().Dx())
}

func TestCropBox_ClampsToBounds(t *testing.T) {
	img := newQuadrantImage(100, 80)

	tests := []struct {
		name  string
		box   image.Rectangle
		pad   int
		wantW int
		wantH int
	}{
		{"overhang right", image.Rect(90, 10, 130, 20), 0, 10, 10},
		{"negative origin", image.Rect(-20, -20, 10, 10), 0, 10, 10},
		{"padding past edge", image.Rect(0, 0, 100, 80), 25, 100, 80},
		{"inverted corners", image.Rect(50, 40, 10, 0), 0, 40, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cropped, err := CropBox(img, tt.box, tt.pad)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cropped.Bounds().Dx())
			assert.Equal(t, tt.wantH, cropped.Bounds().Dy())
		})
	}
}

func TestCropBox_NoOverlap(t *testing.T) {
	img := newQuadrantImage(10, 10)
	_, err := CropBox(img, image.Rect(20, 20, 30, 30), 0)
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestEncodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 7, 3))
	img.Set(1, 1, color.RGBA{10, 20, 30, 255})

	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	assert.Equal(t, MIMEPNG, sniff(data))
}
