package vision_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vision-mcp/internal/imaging"
	"github.com/ironsheep/vision-mcp/internal/vision"
	"github.com/ironsheep/vision-mcp/internal/vision/visiontest"
)

// writeCatImage writes a 200x100 PNG; the fake detector decides where the cat is.
func writeCatImage(t *testing.T) string {
	t.Helper()
	return visiontest.WriteImage(t, 200, 100)
}

func requireKind(t *testing.T, err error, kind vision.Kind) {
	t.Helper()
	require.Error(t, err)
	var e *vision.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind, err.Error())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := vision.New(vision.Options{})
	assert.Error(t, err)

	_, err = vision.New(vision.Options{
		Detector:   &visiontest.Detector{},
		Recognizer: &visiontest.Recognizer{},
		Rasterizer: &visiontest.Rasterizer{},
		Loader:     imaging.NewLoader(time.Second),
	})
	assert.Error(t, err, "default model is required")
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk on fire")
	assert.Equal(t, vision.KindImageLoad, vision.KindOf(vision.ImageLoadFailed("a.png", cause)))
	assert.Equal(t, vision.KindModelInvocation, vision.KindOf(cause))
	assert.ErrorIs(t, vision.ImageLoadFailed("a.png", cause), cause)
	assert.Equal(t, `unknown tool "nope"`, vision.ToolNotFound("nope").Error())
	assert.Equal(t, "OCR failed: disk on fire", vision.ModelInvocationFailed("OCR failed", cause).Error())
}
