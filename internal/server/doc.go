// Package server implements the MCP (Model Context Protocol) server for the
// vision tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Requests are handled one at a time. Run returns when stdin closes. A line
// over 16 MiB is answered with an invalid request error and skipped; the
// loop keeps reading.
//
// # Tools
//
// Registry is a fixed table built once at startup:
//   - locate_objects: zero-shot object detection
//   - zoom_to_object: crop to the best match for a label
//   - read_text_from_image: OCR of an image
//   - read_text_from_pdf: OCR of the pages of a PDF
//
// Each tool's input schema is reflected from its argument struct, and
// arguments are validated against it before the tool runs.
//
// # Results
//
// Dispatcher runs tools on the shared worker pool and always produces a
// CallToolResult. Failures are reported inside the result with isError set
// and a "<Kind>: <message>" text block; they never become JSON-RPC errors.
// The HTTP adapter in internal/httpapi reuses the same Dispatcher.
package server
