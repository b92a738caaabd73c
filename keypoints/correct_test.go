package keypoints

import (
	"testing"

	"posescope/apperr"
)

func samplePoints() Set {
	s := make(Set, NumPoints)
	for i := range s {
		s[i] = Point{X: float64(40 + i*10), Y: float64(60 + i*5)}
	}
	return s
}

func TestCorrectDerivesLandmarks(t *testing.T) {
	raw := samplePoints()
	got, err := Correct(raw, 640, 480)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if len(got) != NumPoints {
		t.Fatalf("len = %d, want %d", len(got), NumPoints)
	}

	neck := Point{X: (raw[5].X + raw[6].X) / 2, Y: (raw[5].Y + raw[6].Y) / 2}
	if got[21] != neck {
		t.Errorf("neck = %v, want %v", got[21], neck)
	}
	pelvis := Point{X: (raw[11].X + raw[12].X) / 2, Y: (raw[11].Y + raw[12].Y) / 2}
	if got[20] != pelvis {
		t.Errorf("pelvis = %v, want %v", got[20], pelvis)
	}
	spine := Point{X: (pelvis.X + neck.X) / 2, Y: (pelvis.Y + neck.Y) / 2}
	if got[19] != spine {
		t.Errorf("spine = %v, want %v", got[19], spine)
	}
	if want := (Point{X: raw[9].X, Y: raw[9].Y + 10}); got[22] != want {
		t.Errorf("left ankle extension = %v, want %v", got[22], want)
	}
	if want := (Point{X: raw[16].X + 10, Y: raw[16].Y + 5}); got[25] != want {
		t.Errorf("right wrist extension = %v, want %v", got[25], want)
	}
}

func TestCorrectClampsToCanvas(t *testing.T) {
	raw := samplePoints()
	raw[0] = Point{X: -20, Y: 3}
	raw[16] = Point{X: 5000, Y: 5000}
	got, err := Correct(raw, 640, 480)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	for i, p := range got {
		if p.X < ClampMargin || p.X > 640-ClampMargin {
			t.Errorf("point %d x=%v outside canvas", i, p.X)
		}
		if p.Y < ClampMargin || p.Y > 480-ClampMargin {
			t.Errorf("point %d y=%v outside canvas", i, p.Y)
		}
	}
}

func TestCorrectIdempotent(t *testing.T) {
	raw := samplePoints()
	raw[3] = Point{X: -100, Y: 900} // force clamping into the mix
	once, err := Correct(raw, 640, 480)
	if err != nil {
		t.Fatalf("first Correct: %v", err)
	}
	twice, err := Correct(once, 640, 480)
	if err != nil {
		t.Fatalf("second Correct: %v", err)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("point %d changed on second pass: %v -> %v", i, once[i], twice[i])
		}
	}
}

func TestCorrectRejectsShortInput(t *testing.T) {
	raw := samplePoints()[:NumPoints-1]
	got, err := Correct(raw, 640, 480)
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if got != nil {
		t.Errorf("expected no partial output, got %d points", len(got))
	}
}

func TestCorrectDoesNotMutateInput(t *testing.T) {
	raw := samplePoints()
	raw[0] = Point{X: -50, Y: -50}
	before := raw[0]
	if _, err := Correct(raw, 640, 480); err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if raw[0] != before {
		t.Errorf("input mutated: %v -> %v", before, raw[0])
	}
}

func TestCopyRuleEvaluation(t *testing.T) {
	s := samplePoints()
	clampSet(s, 640, 480)
	orig := corrections
	corrections = []rule{{target: 25, kind: ruleCopy, a: 3}}
	defer func() { corrections = orig }()

	got, err := Correct(s, 640, 480)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got[25] != s[3] {
		t.Errorf("copy rule: got %v, want %v", got[25], s[3])
	}
}
