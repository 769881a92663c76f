// Package detection wraps zero-shot object detection models.
//
// The model itself is an external collaborator: InferenceClient sends an
// image and a caller-supplied label vocabulary to an inference endpoint and
// gets back scored bounding boxes. Anything that implements Detector can
// stand in for it, which is how the tools are tested without a model.
//
// # Ordering
//
// Detectors return results in pipeline output order. That order matters:
// SortByScore and Best both resolve equal scores in favour of the earlier
// detection.
//
// # Coordinate System
//
// Boxes are (xmin, ymin, xmax, ymax) in source image pixels with the origin at
// the top-left corner.
package detection
