package vision

import (
	"context"
	"errors"
	"image"

	"github.com/ironsheep/vision-mcp/internal/cache"
	"github.com/ironsheep/vision-mcp/internal/detection"
	"github.com/ironsheep/vision-mcp/internal/imaging"
	"github.com/ironsheep/vision-mcp/internal/logging"
	"github.com/ironsheep/vision-mcp/internal/ocr"
	"github.com/ironsheep/vision-mcp/internal/pdf"
)

// SourceLoader fetches image and PDF content by path or URL.
type SourceLoader interface {
	Fetch(ctx context.Context, ref string) (*imaging.Source, error)
	LoadImage(ctx context.Context, ref string) (image.Image, *imaging.Source, error)
}

// Options configures a Service. Detector, Recognizer, Rasterizer and Loader
// are required.
type Options struct {
	Detector   detection.Detector
	Recognizer ocr.Recognizer
	Rasterizer pdf.Rasterizer
	Loader     SourceLoader

	// Cache stores OCR text. Nil disables caching.
	Cache *cache.Cache

	// DefaultModel is used when a call names no detection model.
	DefaultModel string

	// DefaultLanguages is used when a call names no OCR language.
	DefaultLanguages []string

	Logger logging.Logger
}

// Service implements the vision tools. It holds no mutable state and is safe
// for concurrent use.
type Service struct {
	detector   detection.Detector
	recognizer ocr.Recognizer
	rasterizer pdf.Rasterizer
	loader     SourceLoader
	cache      *cache.Cache

	defaultModel     string
	defaultLanguages []string

	log logging.Logger
}

// New validates opts and builds a Service.
func New(opts Options) (*Service, error) {
	switch {
	case opts.Detector == nil:
		return nil, errors.New("vision: detector is required")
	case opts.Recognizer == nil:
		return nil, errors.New("vision: recognizer is required")
	case opts.Rasterizer == nil:
		return nil, errors.New("vision: rasterizer is required")
	case opts.Loader == nil:
		return nil, errors.New("vision: loader is required")
	case opts.DefaultModel == "":
		return nil, errors.New("vision: default model is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default
	}
	langs := append([]string(nil), opts.DefaultLanguages...)
	if len(langs) == 0 {
		langs = []string{ocr.DefaultLanguage}
	}
	return &Service{
		detector:         opts.Detector,
		recognizer:       opts.Recognizer,
		rasterizer:       opts.Rasterizer,
		loader:           opts.Loader,
		cache:            opts.Cache,
		defaultModel:     opts.DefaultModel,
		defaultLanguages: langs,
		log:              opts.Logger,
	}, nil
}

// fetch loads ref and wraps failures as ImageLoadError.
func (s *Service) fetch(ctx context.Context, ref string) (*imaging.Source, error) {
	if ref == "" {
		return nil, InvalidArgument("a path or URL is required")
	}
	src, err := s.loader.Fetch(ctx, ref)
	if err != nil {
		return nil, ImageLoadFailed(ref, err)
	}
	return src, nil
}

// loadImage fetches and decodes an image source.
func (s *Service) loadImage(ctx context.Context, ref string) (image.Image, *imaging.Source, error) {
	if ref == "" {
		return nil, nil, InvalidArgument("a path or URL is required")
	}
	img, src, err := s.loader.LoadImage(ctx, ref)
	if err != nil {
		return nil, nil, ImageLoadFailed(ref, err)
	}
	return img, src, nil
}
