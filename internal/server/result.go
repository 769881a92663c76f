package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/vision-mcp/internal/detection"
	"github.com/ironsheep/vision-mcp/internal/vision"
)

// ResultKind tags the variant held by a Result.
type ResultKind int

// Result variants.
const (
	ResultEmpty ResultKind = iota
	ResultText
	ResultDetections
	ResultImage
)

// Result is the successful outcome of one tool call.
type Result struct {
	Kind ResultKind

	// Text is set for ResultText and is the optional caption of ResultImage.
	Text string

	// Detections is set for ResultDetections.
	Detections []detection.Detection

	// Image and MIMEType are set for ResultImage. A ResultDetections may also
	// carry an annotated image.
	Image    []byte
	MIMEType string
}

// TextResult wraps plain text.
func TextResult(text string) *Result {
	return &Result{Kind: ResultText, Text: text}
}

// DetectionsResult wraps a detection list.
func DetectionsResult(dets []detection.Detection) *Result {
	if dets == nil {
		dets = []detection.Detection{}
	}
	return &Result{Kind: ResultDetections, Detections: dets}
}

// ImageResult wraps encoded image bytes with an optional caption.
func ImageResult(data []byte, mimeType, caption string) *Result {
	return &Result{Kind: ResultImage, Image: data, MIMEType: mimeType, Text: caption}
}

// EmptyResult is a success with nothing to show.
func EmptyResult() *Result {
	return &Result{Kind: ResultEmpty}
}

// Content is one MCP content block.
type Content struct {
	Type     string
	Text     string
	Data     string
	MIMEType string
}

// MarshalJSON emits only the fields that belong to the block type, so an
// empty text block still carries "text": "".
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case "image":
		return json.Marshal(struct {
			Type     string `json:"type"`
			Data     string `json:"data"`
			MIMEType string `json:"mimeType"`
		}{c.Type, c.Data, c.MIMEType})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{c.Type, c.Text})
	}
}

// UnmarshalJSON accepts any block shape.
func (c *Content) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Data     string `json:"data"`
		MIMEType string `json:"mimeType"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Content{Type: raw.Type, Text: raw.Text, Data: raw.Data, MIMEType: raw.MIMEType}
	return nil
}

// CallToolResult is the MCP tools/call result envelope. The HTTP adapter
// returns the same shape.
type CallToolResult struct {
	Content           []Content      `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError"`
}

func textContent(s string) Content {
	return Content{Type: "text", Text: s}
}

// Format converts a tool result into the MCP envelope.
func Format(r *Result) *CallToolResult {
	out := &CallToolResult{Content: []Content{}}
	if r == nil {
		return out
	}
	switch r.Kind {
	case ResultText:
		out.Content = append(out.Content, textContent(r.Text))
	case ResultDetections:
		out.Content = append(out.Content, textContent(mustMarshalJSON(r.Detections)))
		out.StructuredContent = map[string]any{"detections": r.Detections}
		if len(r.Image) > 0 {
			out.Content = append(out.Content, imageContent(r.Image, r.MIMEType))
		}
	case ResultImage:
		out.Content = append(out.Content, imageContent(r.Image, r.MIMEType))
		if r.Text != "" {
			out.Content = append(out.Content, textContent(r.Text))
		}
	}
	return out
}

// FormatError converts a failure into an error envelope. Only the kind and
// message reach the caller.
func FormatError(err error) *CallToolResult {
	return &CallToolResult{
		Content: []Content{textContent(fmt.Sprintf("%s: %v", vision.KindOf(err), err))},
		IsError: true,
	}
}

func imageContent(data []byte, mimeType string) Content {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return Content{Type: "image", Data: base64.StdEncoding.EncodeToString(data), MIMEType: mimeType}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
