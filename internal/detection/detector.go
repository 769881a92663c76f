package detection

import (
	"context"
	"image"
	"sort"
	"strings"
)

// Box is an axis-aligned bounding box in source image pixels.
type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Detection is one object found by a zero-shot detector.
type Detection struct {
	// Label is the candidate label the detector matched.
	Label string `json:"label"`

	// Score is the detector's confidence in [0, 1].
	Score float64 `json:"score"`

	// Box locates the object in the source image.
	Box Box `json:"box"`
}

// Detector runs zero-shot object detection.
//
// Implementations return detections in pipeline output order and must be
// safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, img image.Image, labels []string, model string) ([]Detection, error)
}

// SortByScore orders detections by descending score. Ties keep pipeline order.
func SortByScore(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Score > dets[j].Score
	})
}

// Best returns the highest scoring detection for label.
// On equal scores the first one in pipeline order wins.
func Best(dets []Detection, label string) (Detection, bool) {
	var (
		best  Detection
		found bool
	)
	for _, d := range dets {
		if !SameLabel(d.Label, label) {
			continue
		}
		if !found || d.Score > best.Score {
			best = d
			found = true
		}
	}
	return best, found
}

// SameLabel compares labels ignoring case and surrounding space.
func SameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CleanLabels trims labels and drops blanks and case-insensitive duplicates,
// keeping the first spelling.
func CleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
