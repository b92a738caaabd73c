package models

import (
	"time"

	"gorm.io/gorm"
)

// Verification statuses. Pending exists only as the initial default; verifier
// decisions are always approved or rejected.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Verification is a verifier's decision on exactly one annotation. The unique
// index on AnnotationID makes a second decision an overwrite, never a second row.
type Verification struct {
	gorm.Model
	AnnotationID uint      `json:"annotation_id" gorm:"uniqueIndex"`
	VerifierID   uint      `json:"verifier_id"`
	Verifier     User      `json:"-" gorm:"foreignKey:VerifierID"`
	Status       string    `json:"status" gorm:"size:20;default:pending"`
	Feedback     string    `json:"feedback"`
	DecidedAt    time.Time `json:"decided_at"`
}
