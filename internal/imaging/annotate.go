package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabeledBox is a rectangle to outline on an annotated copy of an image.
type LabeledBox struct {
	Label string
	Score float64
	Rect  image.Rectangle
}

// outlineWidth is the stroke width of annotation rectangles in pixels.
const outlineWidth = 3

// Annotate returns a copy of img with every box outlined and captioned.
// Boxes sharing a label share a color; colors are spread evenly around the
// hue circle in order of first appearance.
func Annotate(img image.Image, boxes []LabeledBox) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	palette := LabelPalette(labelsOf(boxes))
	for _, b := range boxes {
		c := palette[b.Label]
		r := b.Rect.Canon().Intersect(bounds)
		if r.Empty() {
			continue
		}
		strokeRect(dst, r, c)
		caption(dst, r, fmt.Sprintf("%s %.2f", b.Label, b.Score), c)
	}
	return dst
}

// LabelPalette assigns a distinct, saturated color to each label.
func LabelPalette(labels []string) map[string]color.Color {
	palette := make(map[string]color.Color, len(labels))
	n := len(labels)
	for i, label := range labels {
		hue := 360.0 * float64(i) / float64(n)
		palette[label] = colorful.Hsv(hue, 0.85, 0.95).Clamped()
	}
	return palette
}

func labelsOf(boxes []LabeledBox) []string {
	seen := make(map[string]bool, len(boxes))
	labels := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if !seen[b.Label] {
			seen[b.Label] = true
			labels = append(labels, b.Label)
		}
	}
	return labels
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	w := outlineWidth
	if r.Dx() < 2*w || r.Dy() < 2*w {
		w = 1
	}
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y),
		image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// caption draws text on a filled tab above the box, or inside its top edge
// when there is no room above.
func caption(dst *image.RGBA, r image.Rectangle, text string, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
	}
	width := d.MeasureString(text).Ceil() + 4
	height := face.Height + 2

	top := r.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	tab := image.Rect(r.Min.X, top, r.Min.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, tab, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(tab.Min.X+2, tab.Min.Y+face.Ascent+1)
	d.DrawString(text)
}
