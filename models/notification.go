package models

import "gorm.io/gorm"

// Notification is a message for one user. Only the read flag ever changes.
type Notification struct {
	gorm.Model
	RecipientID uint   `json:"recipient_id" gorm:"index"`
	Message     string `json:"message"`
	Read        bool   `json:"read" gorm:"column:is_read;default:false"`
}
