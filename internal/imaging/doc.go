// Package imaging loads and manipulates the images handed to the vision tools.
//
// Sources are referenced by local path or http(s) URL. The Loader reads the
// bytes, sniffs the content type from magic bytes (so a PNG named ".jpg" or a
// PDF served as text/plain is still recognized) and decodes images with EXIF
// orientation applied.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner.
// Rectangles follow image.Rectangle: Min is inclusive, Max is exclusive.
// Detection boxes reported by models use the same convention.
//
// # Operations
//
//   - CropBox: cut a padded box out of an image, clamped to its bounds
//   - EncodePNG: serialize an image for an MCP image content block
//   - Annotate: draw labelled detection boxes on a copy of an image
//
// # Thread Safety
//
// Loader is safe for concurrent use. Image operations never modify their
// input and can run concurrently on the same image.
package imaging
