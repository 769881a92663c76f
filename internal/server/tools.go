package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	invopopSchema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ironsheep/vision-mcp/internal/vision"
)

// Tool is an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Handler runs one tool against already validated arguments.
type Handler func(ctx context.Context, args json.RawMessage) (*Result, error)

type toolEntry struct {
	name        string
	description string
	args        any
	handler     func(svc *vision.Service) Handler
}

// toolTable lists the tools in the order tools/list reports them.
var toolTable = []toolEntry{
	{
		name: "locate_objects",
		description: "Detect and locate objects in an image using a zero-shot object detection model. " +
			"Returns every detection as {label, score, box} sorted by descending score, with box " +
			"coordinates in source image pixels. Set annotate to also get the image with the boxes drawn.",
		args:    locateObjectsArgs{},
		handler: handleLocateObjects,
	},
	{
		name: "zoom_to_object",
		description: "Find the single best match for a label in an image and return it cropped as a PNG. " +
			"Returns an empty result when the object is not found.",
		args:    zoomToObjectArgs{},
		handler: handleZoomToObject,
	},
	{
		name: "read_text_from_image",
		description: "Extract text from an image with OCR. Lines are returned in reading order, " +
			"one per line. Raise min_confidence to drop uncertain text.",
		args:    readTextFromImageArgs{},
		handler: handleReadTextFromImage,
	},
	{
		name: "read_text_from_pdf",
		description: "Extract text from a PDF by rendering each page and running OCR on it. " +
			"Each page is introduced by a \"--- Page N ---\" header. Use num_pages to read only the first pages.",
		args:    readTextFromPDFArgs{},
		handler: handleReadTextFromPDF,
	},
}

type registeredTool struct {
	def     Tool
	schema  *jsonschema.Schema
	handler Handler
}

// Registry is the fixed table of tools. It is immutable after NewRegistry
// and safe for concurrent use.
type Registry struct {
	tools []registeredTool
	index map[string]int
}

// NewRegistry builds the tool table for svc, generating and compiling the
// input schema of every tool.
func NewRegistry(svc *vision.Service) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(toolTable))}
	for _, entry := range toolTable {
		raw, err := GenerateSchema(entry.args)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", entry.name, err)
		}
		compiled, err := jsonschema.CompileString(entry.name+".json", string(raw))
		if err != nil {
			return nil, fmt.Errorf("tool %s: invalid schema: %w", entry.name, err)
		}
		r.index[entry.name] = len(r.tools)
		r.tools = append(r.tools, registeredTool{
			def:     Tool{Name: entry.name, Description: entry.description, InputSchema: raw},
			schema:  compiled,
			handler: entry.handler(svc),
		})
	}
	return r, nil
}

// List returns the tool definitions in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.def
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.def.Name
	}
	return out
}

// Lookup returns a handler that validates its arguments against the tool's
// schema before running it.
func (r *Registry) Lookup(name string) (Handler, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	t := r.tools[i]
	return func(ctx context.Context, args json.RawMessage) (*Result, error) {
		if err := validateArgs(t.schema, args); err != nil {
			return nil, err
		}
		return t.handler(ctx, args)
	}, true
}

// GenerateSchema reflects a JSON Schema from an argument struct.
func GenerateSchema(args any) (json.RawMessage, error) {
	reflector := invopopSchema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	schema := reflector.Reflect(args)
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return b, nil
}

// validateArgs checks raw arguments against schema. Missing arguments are
// treated as an empty object.
func validateArgs(schema *jsonschema.Schema, args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 || string(bytes.TrimSpace(args)) == "null" {
		args = json.RawMessage(`{}`)
	}
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return vision.InvalidArgument("arguments are not valid JSON: %v", err)
	}
	if err := schema.Validate(v); err != nil {
		return vision.InvalidArgument("%s", validationMessage(err))
	}
	return nil
}

// validationMessage flattens a schema validation error to its leaf causes.
func validationMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "arguments"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}

// decodeArgs unmarshals validated arguments into dst.
func decodeArgs(args json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return vision.InvalidArgument("malformed arguments: %v", err)
	}
	return nil
}
