package keypoints

import "posescope/apperr"

// ClampMargin is the minimum distance, in pixels, every point keeps from the
// image edges so markers never draw outside the canvas.
const ClampMargin = 5

type ruleKind int

const (
	ruleMidpoint ruleKind = iota
	ruleCopy
	ruleOffset
)

// rule derives the point at target from already-clamped source points.
type rule struct {
	target int
	kind   ruleKind
	a, b   int
	dx, dy float64
}

// corrections is evaluated in order. Sources are either detected points or
// landmarks derived earlier in the table from detected points only, so running
// the correction on its own output is a no-op.
var corrections = []rule{
	{target: 21, kind: ruleMidpoint, a: 5, b: 6},         // neck: between shoulders
	{target: 20, kind: ruleMidpoint, a: 11, b: 12},       // pelvis: between hips
	{target: 19, kind: ruleMidpoint, a: 20, b: 21},       // mid spine
	{target: 22, kind: ruleOffset, a: 9, dy: 10},         // left ankle extension
	{target: 23, kind: ruleOffset, a: 10, dy: 10},        // right ankle extension
	{target: 24, kind: ruleOffset, a: 15, dx: 10, dy: 5}, // left wrist extension
	{target: 25, kind: ruleOffset, a: 16, dx: 10, dy: 5}, // right wrist extension
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampSet(s Set, width, height int) {
	maxX := float64(width - ClampMargin)
	maxY := float64(height - ClampMargin)
	for i := range s {
		s[i].X = clamp(s[i].X, ClampMargin, maxX)
		s[i].Y = clamp(s[i].Y, ClampMargin, maxY)
	}
}

// Correct derives the anatomical landmark points from the raw predicted set
// and clamps everything into the image canvas. The input must be at least
// NumPoints long; the result is always exactly NumPoints.
//
// Detected points are clamped before any rule runs, so derived values are
// functions of stable inputs and Correct is idempotent on its own output.
func Correct(raw Set, width, height int) (Set, error) {
	if len(raw) < NumPoints {
		return nil, apperr.Validationf("expected %d keypoints, got %d", NumPoints, len(raw))
	}
	corrected := raw[:NumPoints].Clone()
	clampSet(corrected, width, height)

	for _, r := range corrections {
		switch r.kind {
		case ruleMidpoint:
			corrected[r.target] = Point{
				X: (corrected[r.a].X + corrected[r.b].X) / 2,
				Y: (corrected[r.a].Y + corrected[r.b].Y) / 2,
			}
		case ruleCopy:
			corrected[r.target] = corrected[r.a]
		case ruleOffset:
			corrected[r.target] = Point{
				X: corrected[r.a].X + r.dx,
				Y: corrected[r.a].Y + r.dy,
			}
		}
	}

	clampSet(corrected, width, height)
	return corrected, nil
}
