package models

import "gorm.io/gorm"

// AuditLogEntry is an immutable append-only record of a lifecycle-significant
// action. Written by the audit sink, never updated or deleted.
type AuditLogEntry struct {
	gorm.Model
	UserID uint   `json:"user_id" gorm:"index"`
	Action string `json:"action" gorm:"size:255"`
	URL    string `json:"url" gorm:"size:255"`
	Data   string `json:"data"`
}
