// Package predictor wraps the external keypoint detection model. The model is
// an opaque collaborator reached over HTTP; when it cannot be constructed the
// service runs degraded, reporting predictor-unavailable instead of crashing.
package predictor

import (
	"context"

	"posescope/apperr"
	"posescope/keypoints"
)

// Result is one model inference for an image.
type Result struct {
	Keypoints keypoints.Set `json:"keypoints"`
	// BBox is the detection box as [x1, y1, x2, y2] pixels.
	BBox []float64 `json:"bbox"`
	// BBoxN is the detection box normalized as [cx, cy, w, h].
	BBoxN []float64 `json:"bbox_n"`
}

// Predictor produces initial keypoint guesses for an image on disk.
type Predictor interface {
	Predict(ctx context.Context, imagePath string) (Result, error)
}

// Unavailable is the degraded-mode predictor used when the model client could
// not be constructed. Every call fails with a PredictionError.
type Unavailable struct{}

func (Unavailable) Predict(context.Context, string) (Result, error) {
	return Result{}, &apperr.PredictionError{Msg: "predictor unavailable"}
}
