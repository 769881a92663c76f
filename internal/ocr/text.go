package ocr

import "strings"

// Filter drops blank fragments and, when minConfidence is positive, every
// fragment whose confidence is not strictly above it. Order is preserved.
func Filter(frags []Fragment, minConfidence float64) []Fragment {
	out := make([]Fragment, 0, len(frags))
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if minConfidence > 0 && f.Confidence <= minConfidence {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Join concatenates fragment text with newlines.
func Join(frags []Fragment) string {
	lines := make([]string, len(frags))
	for i, f := range frags {
		lines[i] = strings.TrimSpace(f.Text)
	}
	return strings.Join(lines, "\n")
}

// Text is Join(Filter(frags, minConfidence)).
func Text(frags []Fragment, minConfidence float64) string {
	return Join(Filter(frags, minConfidence))
}
