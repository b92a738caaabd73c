// Package keypoints defines the pose keypoint payload exchanged between the
// predictor, the annotation lifecycle and the overlay renderer.
package keypoints

import (
	"encoding/json"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"posescope/apperr"
)

// NumPoints is the fixed skeleton length: 17 detected COCO points, 2 extra
// model-detected points, and 7 derived anatomical landmarks.
const NumPoints = 26

// Point is one labeled 2D landmark in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Set is an ordered, fixed-length sequence of keypoints.
type Set []Point

// Skeleton lists the index pairs connected when rendering an overlay.
// The edge list is a domain constant, not configurable.
var Skeleton = [][2]int{
	{0, 1}, {0, 2}, {1, 3}, {2, 4}, {5, 7}, {7, 9},
	{6, 8}, {8, 10}, {11, 13}, {13, 15}, {12, 14}, {14, 16},
	{17, 18}, {18, 21}, {19, 21}, {19, 20}, {20, 11}, {20, 12},
	{15, 24}, {16, 25}, {9, 22}, {10, 23},
}

func finite(value interface{}) error {
	v := value.(float64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return validation.NewError("keypoints_finite", "coordinate must be a finite number")
	}
	return nil
}

// Validate checks that the set is a well-formed annotation payload:
// non-empty, exactly NumPoints long, every coordinate finite.
func (s Set) Validate() error {
	err := validation.Validate([]Point(s),
		validation.Required.Error("keypoint set must not be empty"),
		validation.Length(NumPoints, NumPoints).Error("keypoint set must hold the full skeleton"),
		validation.Each(validation.By(func(value interface{}) error {
			p := value.(Point)
			if err := validation.Validate(p.X, validation.By(finite)); err != nil {
				return err
			}
			return validation.Validate(p.Y, validation.By(finite))
		})),
	)
	if err != nil {
		return &apperr.ValidationError{Msg: err.Error()}
	}
	return nil
}

// Parse decodes a JSON-encoded keypoint payload and validates it.
func Parse(data []byte) (Set, error) {
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperr.Validationf("malformed keypoint payload: %v", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalPayload encodes the set for storage in the annotation row.
func (s Set) MarshalPayload() ([]byte, error) {
	return json.Marshal(s)
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	copy(out, s)
	return out
}
