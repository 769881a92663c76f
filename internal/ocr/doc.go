// Package ocr extracts text from images.
//
// Recognizer is the seam between the tools and the OCR engine. The shipped
// implementation, Tesseract, wraps the Tesseract engine through gosseract/v2
// and reports one Fragment per text line, in reading order, with a
// confidence in [0, 1].
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract tesseract-lang
//
// Set TESSDATA_PREFIX (or ocr.tessdata_prefix in the config file) when the
// traineddata files live somewhere non-standard.
//
// # Languages
//
// Languages are Tesseract codes ("eng", "tha", "chi_sim"). Two-letter codes
// such as "en" and "th" are accepted and mapped by NormalizeLanguages.
//
// # Filtering
//
// Filter and Join turn raw fragments into tool output. A minimum confidence
// of zero keeps every non-blank fragment; any positive threshold keeps only
// fragments strictly above it, so 1.0 keeps nothing and raising the
// threshold never adds text.
package ocr
