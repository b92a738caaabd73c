// Package audit persists the audit trail and user notifications emitted by
// the lifecycle engine. Writes are best effort: a failed write is logged and
// never blocks the transition that triggered it.
package audit

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"posescope/models"
)

// Sink consumes lifecycle events.
type Sink interface {
	// Record appends an audit log entry for the user's action.
	Record(userID uint, action string)
	// Notify creates an unread notification for the user.
	Notify(userID uint, message string)
}

// DBSink stores audit entries and notifications in the database.
type DBSink struct {
	db *gorm.DB
}

func NewDBSink(db *gorm.DB) *DBSink {
	return &DBSink{db: db}
}

func (s *DBSink) Record(userID uint, action string) {
	entry := models.AuditLogEntry{UserID: userID, Action: action}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Warn(fmt.Sprintf("audit record failed for user %d: %s", userID, err.Error()))
	}
}

func (s *DBSink) Notify(userID uint, message string) {
	if userID == 0 {
		return
	}
	notification := models.Notification{RecipientID: userID, Message: message}
	if err := s.db.Create(&notification).Error; err != nil {
		log.Warn(fmt.Sprintf("notification failed for user %d: %s", userID, err.Error()))
	}
}

// RecordRequest appends a request-level audit entry with the URL and payload,
// used by the audit middleware.
func (s *DBSink) RecordRequest(userID uint, action, url, data string) {
	entry := models.AuditLogEntry{UserID: userID, Action: action, URL: url, Data: data}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Warn(fmt.Sprintf("audit record failed for user %d: %s", userID, err.Error()))
	}
}
