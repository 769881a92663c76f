// Package pdf rasterizes PDF pages so they can be handed to OCR.
//
// Rasterizer opens a document held in memory; Document renders one page at a
// time. The MuPDF-backed implementation (Fitz) renders at 144 DPI, twice the
// 72 DPI PDF user space, which is the resolution page OCR is tuned for.
package pdf
