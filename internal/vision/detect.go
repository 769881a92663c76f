package vision

import (
	"context"
	"errors"
	"image"

	"github.com/ironsheep/vision-mcp/internal/detection"
	"github.com/ironsheep/vision-mcp/internal/imaging"
)

// Located is the outcome of LocateObjects.
type Located struct {
	// Detections are sorted by descending score; ties keep pipeline order.
	Detections []detection.Detection

	// Annotated is a PNG of the source with every detection outlined. Only
	// set when requested.
	Annotated []byte
}

// Zoomed is the outcome of ZoomToObject.
type Zoomed struct {
	// Detection is the match the crop was taken from.
	Detection detection.Detection

	// PNG is the cropped region.
	PNG []byte
}

// LocateObjects runs zero-shot detection over imagePath for labels. An empty
// modelID selects the default model.
func (s *Service) LocateObjects(ctx context.Context, imagePath string, labels []string, modelID string, annotate bool) (*Located, error) {
	labels = detection.CleanLabels(labels)
	if len(labels) == 0 {
		return nil, InvalidArgument("candidate_labels must contain at least one label")
	}

	img, dets, err := s.detect(ctx, imagePath, labels, modelID)
	if err != nil {
		return nil, err
	}
	detection.SortByScore(dets)

	out := &Located{Detections: dets}
	if annotate {
		boxes := make([]imaging.LabeledBox, len(dets))
		for i, d := range dets {
			boxes[i] = imaging.LabeledBox{Label: d.Label, Score: d.Score, Rect: d.Box.Rect()}
		}
		out.Annotated, err = imaging.EncodePNG(imaging.Annotate(img, boxes))
		if err != nil {
			return nil, ModelInvocationFailed("failed to render annotations", err)
		}
	}
	return out, nil
}

// ZoomToObject crops imagePath to the highest scoring detection of label,
// grown by padding pixels. It returns nil, nil when nothing matches.
func (s *Service) ZoomToObject(ctx context.Context, imagePath, label, modelID string, padding int) (*Zoomed, error) {
	labels := detection.CleanLabels([]string{label})
	if len(labels) == 0 {
		return nil, InvalidArgument("label is required")
	}
	if padding < 0 {
		return nil, InvalidArgument("padding must not be negative, got %d", padding)
	}

	img, dets, err := s.detect(ctx, imagePath, labels, modelID)
	if err != nil {
		return nil, err
	}

	best, ok := detection.Best(dets, labels[0])
	if !ok {
		s.log.Debugf("zoom: no %q in %s", labels[0], imagePath)
		return nil, nil
	}

	crop, err := imaging.CropBox(img, best.Box.Rect(), padding)
	if errors.Is(err, imaging.ErrEmptyRegion) {
		s.log.Warnf("zoom: detection box %v lies outside %s", best.Box, imagePath)
		return nil, nil
	}
	if err != nil {
		return nil, ModelInvocationFailed("failed to crop detection", err)
	}
	png, err := imaging.EncodePNG(crop)
	if err != nil {
		return nil, ModelInvocationFailed("failed to encode crop", err)
	}
	return &Zoomed{Detection: best, PNG: png}, nil
}

func (s *Service) detect(ctx context.Context, imagePath string, labels []string, modelID string) (image.Image, []detection.Detection, error) {
	if modelID == "" {
		modelID = s.defaultModel
	}
	img, _, err := s.loadImage(ctx, imagePath)
	if err != nil {
		return nil, nil, err
	}

	s.log.Debugf("detecting %v in %s with %s", labels, imagePath, modelID)
	dets, err := s.detector.Detect(ctx, img, labels, modelID)
	if err != nil {
		return nil, nil, ModelInvocationFailed("object detection with "+modelID+" failed", err)
	}
	return img, dets, nil
}
