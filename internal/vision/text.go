package vision

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/vision-mcp/internal/cache"
	"github.com/ironsheep/vision-mcp/internal/imaging"
	"github.com/ironsheep/vision-mcp/internal/ocr"
	"github.com/ironsheep/vision-mcp/internal/pdf"
)

// Operation names used in cache keys.
const (
	opImageText = "read_text_from_image"
	opPDFText   = "read_text_from_pdf"
)

// TextOptions controls OCR calls.
type TextOptions struct {
	// Languages are OCR language codes. Empty selects the service default.
	Languages []string

	// MinConfidence drops fragments at or below it. Zero keeps everything.
	MinConfidence float64

	// UseCache consults and fills the OCR cache when one is configured.
	UseCache bool
}

// PDFOptions controls ReadTextFromPDF.
type PDFOptions struct {
	TextOptions

	// NumPages limits OCR to the first pages. Zero means every page.
	NumPages int

	// BatchSize is how many pages are recognized at once. Zero means one.
	BatchSize int
}

// ReadTextFromImage returns the text in imagePath, one fragment per line in
// reading order.
func (s *Service) ReadTextFromImage(ctx context.Context, imagePath string, opts TextOptions) (string, error) {
	langs, err := s.languages(opts)
	if err != nil {
		return "", err
	}

	img, src, err := s.loadImage(ctx, imagePath)
	if err != nil {
		return "", err
	}

	key := cache.NewKey(opImageText, src.Data, langs, opts.MinConfidence, 0)
	if text, ok := s.cached(ctx, opts.UseCache, key); ok {
		return text, nil
	}

	frags, err := s.recognizer.Recognize(ctx, img, langs)
	if err != nil {
		return "", ModelInvocationFailed("OCR failed", err)
	}
	text := ocr.Text(frags, opts.MinConfidence)

	s.store(ctx, opts.UseCache, key, imagePath, text)
	return text, nil
}

// ReadTextFromPDF rasterizes the first opts.NumPages pages of pdfPath and
// returns their text in page order, each page under a "--- Page N ---"
// header. A page that fails is reported in its header and the rest proceed.
func (s *Service) ReadTextFromPDF(ctx context.Context, pdfPath string, opts PDFOptions) (string, error) {
	if opts.NumPages < 0 {
		return "", InvalidArgument("num_pages must be at least 1, got %d", opts.NumPages)
	}
	if opts.BatchSize < 0 {
		return "", InvalidArgument("batch_size must be at least 1, got %d", opts.BatchSize)
	}
	batch := opts.BatchSize
	if batch == 0 {
		batch = 1
	}
	langs, err := s.languages(opts.TextOptions)
	if err != nil {
		return "", err
	}

	src, err := s.fetch(ctx, pdfPath)
	if err != nil {
		return "", err
	}
	if !src.IsPDF() {
		return "", ImageLoadFailed(pdfPath, fmt.Errorf("%w: %s is not a PDF", imaging.ErrUnsupportedType, src.MIME))
	}

	key := cache.NewKey(opPDFText, src.Data, langs, opts.MinConfidence, opts.NumPages)
	if text, ok := s.cached(ctx, opts.UseCache, key); ok {
		return text, nil
	}

	doc, err := s.rasterizer.Open(src.Data)
	if err != nil {
		return "", ImageLoadFailed(pdfPath, err)
	}
	defer doc.Close()

	n := pdf.PageCount(doc, opts.NumPages)
	s.log.Debugf("reading %d of %d pages from %s, %d at a time", n, doc.NumPages(), pdfPath, batch)

	pages := make([]string, n)
	failed := make([]bool, n)
	var g errgroup.Group
	g.SetLimit(batch)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			pages[i], failed[i] = s.readPage(ctx, doc, i, langs, opts.MinConfidence)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", ModelInvocationFailed("PDF OCR interrupted", err)
	}

	text := strings.Join(pages, "\n\n")
	if slices.Contains(failed, true) {
		s.log.Debugf("not caching %s: some pages failed", pdfPath)
		return text, nil
	}
	s.store(ctx, opts.UseCache, key, pdfPath, text)
	return text, nil
}

// readPage renders and recognizes page i, returning its formatted block and
// whether the page failed.
func (s *Service) readPage(ctx context.Context, doc pdf.Document, i int, langs []string, minConf float64) (string, bool) {
	num := i + 1
	text, err := s.pageText(ctx, doc, i, langs, minConf)
	switch {
	case err != nil:
		s.log.Warnf("page %d: %v", num, err)
		return fmt.Sprintf("--- Page %d (error: %s) ---", num, err), true
	case text == "":
		return fmt.Sprintf("--- Page %d (No text detected) ---", num), false
	default:
		return fmt.Sprintf("--- Page %d ---\n%s", num, text), false
	}
}

func (s *Service) pageText(ctx context.Context, doc pdf.Document, i int, langs []string, minConf float64) (string, error) {
	img, err := doc.RenderPage(ctx, i)
	if err != nil {
		return "", err
	}
	frags, err := s.recognizer.Recognize(ctx, img, langs)
	if err != nil {
		return "", err
	}
	return ocr.Text(frags, minConf), nil
}

// languages resolves and validates the OCR languages for a call.
func (s *Service) languages(opts TextOptions) ([]string, error) {
	if opts.MinConfidence < 0 || opts.MinConfidence > 1 {
		return nil, InvalidArgument("min_confidence must be within [0, 1], got %v", opts.MinConfidence)
	}
	requested := opts.Languages
	if len(requested) == 0 {
		requested = s.defaultLanguages
	}
	langs, err := ocr.NormalizeLanguages(requested)
	if err != nil {
		return nil, &Error{Kind: KindInvalidArgument, Message: "invalid languages", Err: err}
	}
	return langs, nil
}

func (s *Service) cached(ctx context.Context, use bool, key cache.Key) (string, bool) {
	if !use || s.cache == nil {
		return "", false
	}
	text, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warnf("OCR cache lookup failed: %v", err)
		return "", false
	}
	if ok {
		s.log.Debugf("OCR cache hit for %s", key.Operation)
	}
	return text, ok
}

func (s *Service) store(ctx context.Context, use bool, key cache.Key, ref, text string) {
	if !use || s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, key, ref, text); err != nil {
		s.log.Warnf("OCR cache store failed: %v", err)
	}
}
