package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/hashicorp/go-retryablehttp"

	// Formats beyond the png/jpeg/gif/bmp/tiff set that imaging registers.
	_ "golang.org/x/image/webp"
)

// MaxSourceBytes caps how much of a local file or remote response is read.
const MaxSourceBytes = 256 << 20

// MIME types the loader distinguishes.
const (
	MIMEPDF     = "application/pdf"
	MIMEPNG     = "image/png"
	MIMEUnknown = "application/octet-stream"
)

var (
	// ErrNotFound is returned when a reference is neither an existing file nor an http(s) URL.
	ErrNotFound = errors.New("not a readable file or http(s) URL")

	// ErrUnsupportedType is returned when the content type does not match what the caller asked for.
	ErrUnsupportedType = errors.New("unsupported content type")
)

// Source is the raw content behind an image or PDF reference.
type Source struct {
	// Ref is the path or URL exactly as the caller supplied it.
	Ref string

	// Data is the full content.
	Data []byte

	// MIME is the sniffed content type, MIMEUnknown when nothing matched.
	MIME string
}

// IsImage reports whether the content sniffed as an image.
func (s *Source) IsImage() bool {
	return strings.HasPrefix(s.MIME, "image/")
}

// IsPDF reports whether the content sniffed as a PDF document.
func (s *Source) IsPDF() bool {
	return s.MIME == MIMEPDF
}

// Loader reads sources from local paths or http(s) URLs.
//
// A Loader holds no per-request state and is safe for concurrent use.
type Loader struct {
	client *retryablehttp.Client
}

// NewLoader returns a Loader whose remote fetches give up after timeout.
func NewLoader(timeout time.Duration) *Loader {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.HTTPClient.Timeout = timeout
	return &Loader{client: client}
}

// Fetch reads the content behind ref and sniffs its type.
//
// Existing local files win over URL interpretation, so a file literally
// named "http:..." in the working directory is still read from disk.
func (l *Loader) Fetch(ctx context.Context, ref string) (*Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty reference: %w", ErrNotFound)
	}

	var (
		data []byte
		err  error
	)
	switch {
	case isRegularFile(ref):
		data, err = readFile(ref)
	case isHTTPURL(ref):
		data, err = l.download(ctx, ref)
	default:
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &Source{Ref: ref, Data: data, MIME: sniff(data)}, nil
}

// LoadImage fetches ref and decodes it, failing unless it is an image.
func (l *Loader) LoadImage(ctx context.Context, ref string) (image.Image, *Source, error) {
	src, err := l.Fetch(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	img, err := Decode(src)
	if err != nil {
		return nil, nil, err
	}
	return img, src, nil
}

// Decode decodes an image source, applying any EXIF orientation so pixel
// coordinates match what a viewer shows.
func Decode(src *Source) (image.Image, error) {
	if !src.IsImage() {
		return nil, fmt.Errorf("%s is %s, expected an image: %w", src.Ref, src.MIME, ErrUnsupportedType)
	}
	img, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", url, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("content exceeds %d bytes", MaxSourceBytes)
	}
	return data, nil
}

// sniff identifies content from its magic bytes.
func sniff(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return MIMEUnknown
	}
	return kind.MIME.Value
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isHTTPURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
