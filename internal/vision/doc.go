// Package vision implements the tool operations: object location, zoom to
// object, and OCR of images and PDFs.
//
// A Service is built once from Options and shared by every transport. It
// owns no mutable state; its collaborators (detector, recognizer, PDF
// rasterizer, source loader, optional OCR cache) are injected, which keeps
// model configuration explicit and lets tests substitute fakes.
//
// Failures are returned as *Error values carrying a Kind. The transports
// render them as error results rather than protocol failures.
package vision
