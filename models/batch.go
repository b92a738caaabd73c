package models

import "gorm.io/gorm"

// Batch groups images for assignment and progress tracking.
type Batch struct {
	gorm.Model
	Name        string  `json:"name" gorm:"size:255"`
	Description string  `json:"description"`
	CreatedByID uint    `json:"created_by_id"`
	CreatedBy   User    `json:"-" gorm:"foreignKey:CreatedByID"`
	Images      []Image `json:"images" gorm:"many2many:batch_images"`
}
