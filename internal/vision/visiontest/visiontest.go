// Package visiontest provides in-memory stand-ins for the model backends so
// transports can be tested without Tesseract, MuPDF or a detection endpoint.
package visiontest

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ironsheep/vision-mcp/internal/cache"
	"github.com/ironsheep/vision-mcp/internal/detection"
	"github.com/ironsheep/vision-mcp/internal/imaging"
	"github.com/ironsheep/vision-mcp/internal/logging"
	"github.com/ironsheep/vision-mcp/internal/ocr"
	"github.com/ironsheep/vision-mcp/internal/pdf"
	"github.com/ironsheep/vision-mcp/internal/vision"
)

// DefaultModel is the detection model configured by NewService.
const DefaultModel = "test/detector"

// Detector returns canned detections filtered to the requested labels and
// remembers the labels and model of the last call.
type Detector struct {
	Detections []detection.Detection
	Err        error

	// Delay makes Detect block until it elapses or ctx ends.
	Delay time.Duration

	// Panic makes Detect panic with this value when non-nil.
	Panic any

	mu     sync.Mutex
	labels []string
	model  string
}

func (d *Detector) Detect(ctx context.Context, img image.Image, labels []string, model string) ([]detection.Detection, error) {
	d.mu.Lock()
	d.labels = labels
	d.model = model
	d.mu.Unlock()

	if d.Panic != nil {
		panic(d.Panic)
	}
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	var out []detection.Detection
	for _, det := range d.Detections {
		for _, l := range labels {
			if detection.SameLabel(det.Label, l) {
				out = append(out, det)
				break
			}
		}
	}
	return out, nil
}

// Labels returns the labels passed to the last Detect call.
func (d *Detector) Labels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.labels
}

// Model returns the model passed to the last Detect call.
func (d *Detector) Model() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model
}

// Recognizer returns Fragments for every image, unless ByWidth or Fail has
// an entry for the image width. Pages rendered by Rasterizer are n+1 pixels
// wide, so the width keys page n (zero based).
type Recognizer struct {
	Fragments []ocr.Fragment
	Err       error

	ByWidth map[int][]ocr.Fragment
	Fail    map[int]error

	mu        sync.Mutex
	calls     int
	languages []string
}

func (r *Recognizer) Recognize(ctx context.Context, img image.Image, languages []string) ([]ocr.Fragment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.languages = languages

	w := img.Bounds().Dx()
	if err := r.Fail[w]; err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if frags, ok := r.ByWidth[w]; ok {
		return frags, nil
	}
	return r.Fragments, nil
}

// SetFail makes images of the given width fail with err, or succeed again
// when err is nil.
func (r *Recognizer) SetFail(width int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail == nil {
		r.Fail = make(map[int]error)
	}
	if err == nil {
		delete(r.Fail, width)
		return
	}
	r.Fail[width] = err
}

// Calls reports how many times Recognize ran.
func (r *Recognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Languages returns the languages passed to the last Recognize call.
func (r *Recognizer) Languages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.languages
}

// Rasterizer opens every input as a document of Pages blank pages. Page n
// (zero based) renders as an image n+1 pixels wide and 1 pixel high.
type Rasterizer struct {
	Pages   int
	OpenErr error

	mu       sync.Mutex
	rendered []int
	closed   bool
}

func (r *Rasterizer) Open(data []byte) (pdf.Document, error) {
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	return &document{r: r}, nil
}

// Rendered lists the pages rendered so far in render order.
func (r *Rasterizer) Rendered() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.rendered...)
}

// Closed reports whether the last opened document was closed.
func (r *Rasterizer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type document struct {
	r *Rasterizer
}

func (d *document) NumPages() int { return d.r.Pages }

func (d *document) RenderPage(ctx context.Context, n int) (image.Image, error) {
	d.r.mu.Lock()
	d.r.rendered = append(d.r.rendered, n)
	d.r.mu.Unlock()
	return image.NewGray(image.Rect(0, 0, n+1, 1)), nil
}

func (d *document) Close() error {
	d.r.mu.Lock()
	d.r.closed = true
	d.r.mu.Unlock()
	return nil
}

// Option adjusts the vision.Options built by NewService.
type Option func(*vision.Options)

// WithCache enables the OCR cache.
func WithCache(c *cache.Cache) Option {
	return func(o *vision.Options) { o.Cache = c }
}

// NewService wires the fakes into a vision.Service. Nil fakes are replaced
// by zero values.
func NewService(t testing.TB, d *Detector, r *Recognizer, p *Rasterizer, opts ...Option) *vision.Service {
	t.Helper()
	if d == nil {
		d = &Detector{}
	}
	if r == nil {
		r = &Recognizer{}
	}
	if p == nil {
		p = &Rasterizer{Pages: 1}
	}
	o := vision.Options{
		Detector:     d,
		Recognizer:   r,
		Rasterizer:   p,
		Loader:       imaging.NewLoader(time.Second),
		DefaultModel: DefaultModel,
		Logger:       Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	svc, err := vision.New(o)
	if err != nil {
		t.Fatalf("vision.New: %v", err)
	}
	return svc
}

// Logger discards output.
func Logger() logging.Logger {
	return logging.New(io.Discard)
}

// WriteImage writes a white PNG with a dark rectangle in its upper left
// quarter and returns its path.
func WriteImage(t testing.TB, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, width/2, height/2), &image.Uniform{color.RGBA{40, 40, 40, 255}}, image.Point{}, draw.Src)

	path := filepath.Join(t.TempDir(), "image.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// WritePDF writes a file that sniffs as a PDF and returns its path.
func WritePDF(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"), 0o644); err != nil {
		t.Fatalf("failed to write pdf: %v", err)
	}
	return path
}
