package keypoints

import (
	"math"
	"testing"

	"posescope/apperr"
)

func TestValidateFullSet(t *testing.T) {
	if err := samplePoints().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	if err := (Set{}).Validate(); !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestValidateRejectsWrongLength(t *testing.T) {
	s := samplePoints()[:10]
	if err := s.Validate(); !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestValidateRejectsNonFinite(t *testing.T) {
	s := samplePoints()
	s[4].Y = math.NaN()
	if err := s.Validate(); !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	data, err := samplePoints().MarshalPayload()
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != NumPoints {
		t.Errorf("len = %d, want %d", len(got), NumPoints)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte(`{"not": "a list"}`)); !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSkeletonIndexesInRange(t *testing.T) {
	for _, edge := range Skeleton {
		for _, idx := range edge {
			if idx < 0 || idx >= NumPoints {
				t.Errorf("edge %v references index %d outside skeleton", edge, idx)
			}
		}
	}
}
