package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vision-mcp/internal/vision"
	"github.com/ironsheep/vision-mcp/internal/vision/visiontest"
)

func newRegistry(t *testing.T, d *visiontest.Detector, r *visiontest.Recognizer, p *visiontest.Rasterizer) *Registry {
	t.Helper()
	reg, err := NewRegistry(visiontest.NewService(t, d, r, p))
	require.NoError(t, err)
	return reg
}

func TestRegistry_List(t *testing.T) {
	reg := newRegistry(t, nil, nil, nil)

	assert.Equal(t, []string{
		"locate_objects",
		"zoom_to_object",
		"read_text_from_image",
		"read_text_from_pdf",
	}, reg.Names())

	for _, tool := range reg.List() {
		t.Run(tool.Name, func(t *testing.T) {
			assert.NotEmpty(t, tool.Description)

			var schema map[string]any
			require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))
			assert.Equal(t, "object", schema["type"])
			assert.Equal(t, false, schema["additionalProperties"])

			props, ok := schema["properties"].(map[string]any)
			require.True(t, ok, "properties should be an object")
			assert.NotEmpty(t, props)
		})
	}
}

func TestRegistry_EveryToolHasHandler(t *testing.T) {
	reg := newRegistry(t, nil, nil, nil)
	for _, name := range reg.Names() {
		h, ok := reg.Lookup(name)
		assert.True(t, ok, name)
		assert.NotNil(t, h, name)
	}

	_, ok := reg.Lookup("image_load")
	assert.False(t, ok)
	_, ok = reg.Lookup("")
	assert.False(t, ok)
}

func TestRegistry_SchemaDetails(t *testing.T) {
	reg := newRegistry(t, nil, nil, nil)
	schemas := map[string]map[string]any{}
	for _, tool := range reg.List() {
		var s map[string]any
		require.NoError(t, json.Unmarshal(tool.InputSchema, &s))
		schemas[tool.Name] = s
	}

	required := func(name string) []any {
		r, _ := schemas[name]["required"].([]any)
		return r
	}
	prop := func(tool, name string) map[string]any {
		p, _ := schemas[tool]["properties"].(map[string]any)[name].(map[string]any)
		return p
	}

	assert.ElementsMatch(t, []any{"image_path", "candidate_labels"}, required("locate_objects"))
	assert.ElementsMatch(t, []any{"image_path", "label"}, required("zoom_to_object"))
	assert.ElementsMatch(t, []any{"image_path"}, required("read_text_from_image"))
	assert.ElementsMatch(t, []any{"pdf_path"}, required("read_text_from_pdf"))

	assert.Equal(t, "array", prop("locate_objects", "candidate_labels")["type"])
	assert.EqualValues(t, 1, prop("locate_objects", "candidate_labels")["minItems"])
	assert.Equal(t, "boolean", prop("read_text_from_image", "use_cache")["type"])
	assert.Equal(t, true, prop("read_text_from_image", "use_cache")["default"])
	assert.EqualValues(t, 1, prop("read_text_from_pdf", "num_pages")["minimum"])
	assert.EqualValues(t, 1, prop("read_text_from_image", "min_confidence")["maximum"])
}

func TestRegistry_ValidatesArguments(t *testing.T) {
	reg := newRegistry(t, nil, nil, nil)
	ctx := context.Background()

	tests := []struct {
		tool string
		args string
	}{
		{"locate_objects", `{}`},
		{"locate_objects", `{"image_path": "a.png", "candidate_labels": []}`},
		{"locate_objects", `{"image_path": 42, "candidate_labels": ["cat"]}`},
		{"locate_objects", `{"image_path": "a.png", "candidate_labels": ["cat"], "bogus": 1}`},
		{"zoom_to_object", `{"image_path": "a.png"}`},
		{"zoom_to_object", `{"image_path": "a.png", "label": "cat", "padding": -4}`},
		{"read_text_from_image", `{"image_path": "a.png", "min_confidence": 1.5}`},
		{"read_text_from_pdf", `{"pdf_path": "a.pdf", "num_pages": 0}`},
		{"read_text_from_pdf", `{"pdf_path": "a.pdf", "batch_size": 0}`},
		{"read_text_from_pdf", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.tool+" "+tt.args, func(t *testing.T) {
			h, ok := reg.Lookup(tt.tool)
			require.True(t, ok)
			_, err := h(ctx, json.RawMessage(tt.args))
			require.Error(t, err)
			assert.Equal(t, vision.KindInvalidArgument, vision.KindOf(err), err.Error())
		})
	}
}

func TestRegistry_NullArgumentsTreatedAsEmpty(t *testing.T) {
	reg := newRegistry(t, nil, nil, nil)
	h, _ := reg.Lookup("read_text_from_image")

	_, err := h(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image_path")
}
