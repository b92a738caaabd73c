package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posescope/middlewares"
	"posescope/models"
)

// FindNotifications List the authenticated user's notifications, unread first
func FindNotifications(c *gin.Context) {
	var notifications []models.Notification
	models.DB.Where("recipient_id = ?", middlewares.CurrentUserID(c)).
		Order("is_read ASC, created_at DESC").
		Find(&notifications)

	c.JSON(http.StatusOK, gin.H{"data": notifications})
}

// MarkNotificationRead Flip the read flag on one of the user's notifications
func MarkNotificationRead(c *gin.Context) {
	var notification models.Notification
	err := models.DB.Where("id = ? AND recipient_id = ?", c.Param("id"), middlewares.CurrentUserID(c)).
		First(&notification).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
		return
	}

	if err := models.DB.Model(&notification).Update("is_read", true).Error; err != nil {
		respondError(c, err)
		return
	}
	notification.Read = true
	c.JSON(http.StatusOK, gin.H{"data": notification})
}
