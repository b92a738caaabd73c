package models

import "gorm.io/gorm"

// Image statuses. Status moves forward only, except rejection which returns a
// verified-bound image to StatusAnnotated for re-annotation.
const (
	StatusUnlabeled      = "unlabeled"
	StatusMachineLabeled = "machine_labeled"
	StatusAnnotated      = "annotated"
	StatusVerified       = "verified"
)

type Image struct {
	gorm.Model
	Identifier   string       `json:"identifier" gorm:"uniqueIndex;size:64"`
	Path         string       `json:"path"` // relative to the media root
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	Status       string       `json:"status" gorm:"size:20;default:unlabeled"`
	UploadedByID uint         `json:"uploaded_by_id"`
	UploadedBy   User         `json:"-" gorm:"foreignKey:UploadedByID"`
	Annotations  []Annotation `json:"annotations" gorm:"foreignKey:ImageID"`
}
