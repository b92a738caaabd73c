package models

import "gorm.io/gorm"

// Annotation is one submitted keypoint set for an image. Rows are append-only:
// corrections happen in place, a fresh submission gets the next version.
type Annotation struct {
	gorm.Model
	ImageID      uint          `json:"image_id" gorm:"uniqueIndex:idx_annotations_image_version,priority:1"`
	Version      int           `json:"version" gorm:"uniqueIndex:idx_annotations_image_version,priority:2"`
	AnnotatorID  uint          `json:"annotator_id"`
	Annotator    User          `json:"-" gorm:"foreignKey:AnnotatorID"`
	VerifierID   *uint         `json:"verifier_id"`
	Data         string        `json:"data"` // JSON keypoint payload
	OverlayPath  string        `json:"overlay_path"`
	Verification *Verification `json:"verification" gorm:"foreignKey:AnnotationID"`
}
