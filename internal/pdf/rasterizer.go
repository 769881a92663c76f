package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI renders pages at 2x zoom.
const DefaultDPI = 144

// ErrPageRange is returned for a page index outside the document.
var ErrPageRange = errors.New("page out of range")

// Document is an open PDF.
type Document interface {
	// NumPages reports the page count.
	NumPages() int

	// RenderPage rasterizes page n (zero based).
	RenderPage(ctx context.Context, n int) (image.Image, error)

	Close() error
}

// Rasterizer opens PDF documents from memory.
type Rasterizer interface {
	Open(data []byte) (Document, error)
}

// Fitz is a Rasterizer backed by MuPDF.
type Fitz struct {
	DPI float64
}

// NewFitz returns a MuPDF rasterizer. A dpi of zero means DefaultDPI.
func NewFitz(dpi float64) *Fitz {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Fitz{DPI: dpi}
}

// Open implements Rasterizer.
func (f *Fitz) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	dpi := f.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &fitzDocument{doc: doc, dpi: dpi, pages: doc.NumPage()}, nil
}

// fitzDocument serializes access to the MuPDF handle, which must not be used
// from two goroutines at once.
type fitzDocument struct {
	mu    sync.Mutex
	doc   *fitz.Document
	dpi   float64
	pages int
}

func (d *fitzDocument) NumPages() int {
	return d.pages
}

func (d *fitzDocument) RenderPage(ctx context.Context, n int) (image.Image, error) {
	if n < 0 || n >= d.pages {
		return nil, fmt.Errorf("page %d of %d: %w", n+1, d.pages, ErrPageRange)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := d.doc.ImageDPI(n, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", n+1, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}

// PageCount clamps a requested page limit to the document: a limit of zero or
// less, or one past the end, means every page.
func PageCount(doc Document, limit int) int {
	n := doc.NumPages()
	if limit > 0 && limit < n {
		return limit
	}
	return n
}
