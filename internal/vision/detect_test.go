package vision_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vision-mcp/internal/detection"
	"github.com/ironsheep/vision-mcp/internal/vision"
	"github.com/ironsheep/vision-mcp/internal/vision/visiontest"
)

func newDetectService(t *testing.T, dets ...detection.Detection) (*vision.Service, *visiontest.Detector) {
	t.Helper()
	det := &visiontest.Detector{Detections: dets}
	return visiontest.NewService(t, det, nil, nil), det
}

func TestLocateObjects_CatScenario(t *testing.T) {
	svc, det := newDetectService(t,
		detection.Detection{Label: "dog", Score: 0.08, Box: detection.Box{XMin: 100, YMin: 10, XMax: 150, YMax: 60}},
		detection.Detection{Label: "cat", Score: 0.93, Box: detection.Box{XMin: 20, YMin: 20, XMax: 80, YMax: 90}},
	)

	got, err := svc.LocateObjects(context.Background(), writeCatImage(t), []string{"cat", "dog"}, "", false)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(got.Detections), 1)
	assert.Equal(t, "cat", got.Detections[0].Label)
	assert.Greater(t, got.Detections[0].Score, 0.5)
	assert.Nil(t, got.Annotated)
	assert.Equal(t, visiontest.DefaultModel, det.Model())
	assert.Equal(t, []string{"cat", "dog"}, det.Labels())
}

func TestLocateObjects_ModelOverrideAndAnnotate(t *testing.T) {
	svc, det := newDetectService(t,
		detection.Detection{Label: "cat", Score: 0.7, Box: detection.Box{XMin: 20, YMin: 20, XMax: 80, YMax: 90}})

	got, err := svc.LocateObjects(context.Background(), writeCatImage(t), []string{"cat"}, "custom/model", true)
	require.NoError(t, err)
	assert.Equal(t, "custom/model", det.Model())

	img, err := png.Decode(bytes.NewReader(got.Annotated))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
}

func TestLocateObjects_Errors(t *testing.T) {
	svc, det := newDetectService(t)
	ctx := context.Background()

	_, err := svc.LocateObjects(ctx, writeCatImage(t), []string{" ", ""}, "", false)
	requireKind(t, err, vision.KindInvalidArgument)

	_, err = svc.LocateObjects(ctx, "", []string{"cat"}, "", false)
	requireKind(t, err, vision.KindInvalidArgument)

	_, err = svc.LocateObjects(ctx, "/no/such/image.jpg", []string{"cat"}, "", false)
	requireKind(t, err, vision.KindImageLoad)

	_, err = svc.LocateObjects(ctx, visiontest.WritePDF(t), []string{"cat"}, "", false)
	requireKind(t, err, vision.KindImageLoad)

	det.Err = errors.New("CUDA out of memory")
	_, err = svc.LocateObjects(ctx, writeCatImage(t), []string{"cat"}, "", false)
	requireKind(t, err, vision.KindModelInvocation)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestZoomToObject(t *testing.T) {
	svc, det := newDetectService(t,
		detection.Detection{Label: "cat", Score: 0.6, Box: detection.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10}},
		detection.Detection{Label: "cat", Score: 0.9, Box: detection.Box{XMin: 20, YMin: 20, XMax: 80, YMax: 90}},
		detection.Detection{Label: "cat", Score: 0.9, Box: detection.Box{XMin: 100, YMin: 0, XMax: 110, YMax: 5}},
	)

	got, err := svc.ZoomToObject(context.Background(), writeCatImage(t), "cat", "", 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 20, got.Detection.Box.XMin, "first of the tied best detections")

	img, err := png.Decode(bytes.NewReader(got.PNG))
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 70, img.Bounds().Dy())
	assert.Equal(t, []string{"cat"}, det.Labels())
}

func TestZoomToObject_PaddingClamped(t *testing.T) {
	svc, _ := newDetectService(t,
		detection.Detection{Label: "cat", Score: 0.9, Box: detection.Box{XMin: 20, YMin: 20, XMax: 80, YMax: 90}})

	got, err := svc.ZoomToObject(context.Background(), writeCatImage(t), "cat", "", 15)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(got.PNG))
	require.NoError(t, err)
	// x: 5..95, y: 5..100 (clamped at the bottom edge).
	assert.Equal(t, 90, img.Bounds().Dx())
	assert.Equal(t, 95, img.Bounds().Dy())
}

func TestZoomToObject_NoMatchIsEmpty(t *testing.T) {
	svc, _ := newDetectService(t, detection.Detection{Label: "dog", Score: 0.99})

	got, err := svc.ZoomToObject(context.Background(), writeCatImage(t), "cat", "", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestZoomToObject_BoxOutsideImageIsEmpty(t *testing.T) {
	svc, _ := newDetectService(t,
		detection.Detection{Label: "cat", Score: 0.9, Box: detection.Box{XMin: 500, YMin: 500, XMax: 600, YMax: 600}})

	got, err := svc.ZoomToObject(context.Background(), writeCatImage(t), "cat", "", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestZoomToObject_InvalidArguments(t *testing.T) {
	svc, _ := newDetectService(t)
	path := writeCatImage(t)

	_, err := svc.ZoomToObject(context.Background(), path, "  ", "", 0)
	requireKind(t, err, vision.KindInvalidArgument)

	_, err = svc.ZoomToObject(context.Background(), path, "cat", "", -1)
	requireKind(t, err, vision.KindInvalidArgument)
}
