package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posescope/lifecycle"
	"posescope/middlewares"
	"posescope/models"
)

type DecideInput struct {
	Status   string `json:"status" binding:"required"`
	Feedback string `json:"feedback"`
}

// DecideAnnotation Record a verifier decision on an annotation
func DecideAnnotation(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		annotationID, err := parseID(c)
		if err != nil {
			respondError(c, err)
			return
		}

		var input DecideInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		verification, err := engine.Decide(annotationID, middlewares.CurrentUserID(c), input.Status, input.Feedback)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": verification})
	}
}

// FindVerification Find the decision for an annotation
func FindVerification(c *gin.Context) {
	var verification models.Verification
	err := models.DB.Where("annotation_id = ?", c.Param("id")).First(&verification).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": verification})
}
