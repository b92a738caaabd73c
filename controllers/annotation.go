package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"posescope/apperr"
	"posescope/keypoints"
	"posescope/lifecycle"
	"posescope/middlewares"
	"posescope/models"
	"posescope/predictor"
	"posescope/storage"
)

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperr.Validationf("malformed id %q", c.Param("id"))
	}
	return uint(id), nil
}

// PredictKeypoints Run the external model on an image and return corrected
// keypoints as an annotation starting point. A failed inference degrades to an
// empty keypoint set with an error message, it never fails the request.
func PredictKeypoints(store storage.Store, model predictor.Predictor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var image models.Image
		if err := models.DB.Where("id = ?", c.Param("id")).First(&image).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
			return
		}

		absPath, err := store.Abs(image.Path)
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := model.Predict(c.Request.Context(), absPath)
		if err != nil {
			if apperr.IsPrediction(err) {
				log.Warn(fmt.Sprintf("prediction failed for image %d: %s", image.ID, err.Error()))
				c.JSON(http.StatusOK, gin.H{
					"keypoints":     keypoints.Set{},
					"bbox":          []float64{},
					"bbox_n":        []float64{},
					"error_message": err.Error(),
				})
				return
			}
			respondError(c, err)
			return
		}

		corrected, err := keypoints.Correct(result.Keypoints, image.Width, image.Height)
		if err != nil {
			respondError(c, err)
			return
		}

		if image.Status == models.StatusUnlabeled {
			if err := models.DB.Model(&image).Update("status", models.StatusMachineLabeled).Error; err != nil {
				respondError(c, err)
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"keypoints": corrected,
			"bbox":      result.BBox,
			"bbox_n":    result.BBoxN,
		})
	}
}

type CreateAnnotationInput struct {
	Keypoints  keypoints.Set `json:"keypoints" binding:"required"`
	VerifierID *uint         `json:"verifier_id"`
}

// CreateAnnotation Submit a new annotation version for an image
func CreateAnnotation(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		imageID, err := parseID(c)
		if err != nil {
			respondError(c, err)
			return
		}

		var input CreateAnnotationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		annotation, err := engine.CreateAnnotation(imageID, middlewares.CurrentUserID(c), input.Keypoints, input.VerifierID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": annotation})
	}
}

type EditAnnotationInput struct {
	Keypoints keypoints.Set `json:"keypoints" binding:"required"`
}

// EditAnnotation Correct an existing annotation in place
func EditAnnotation(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		annotationID, err := parseID(c)
		if err != nil {
			respondError(c, err)
			return
		}

		var input EditAnnotationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		annotation, err := engine.EditAnnotation(annotationID, middlewares.CurrentUserID(c), input.Keypoints)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": annotation})
	}
}

// FindAnnotation Find one annotation with its verification
func FindAnnotation(c *gin.Context) {
	var annotation models.Annotation
	err := models.DB.Preload("Verification").Where("id = ?", c.Param("id")).First(&annotation).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": annotation})
}

// FindPendingAnnotations List annotations awaiting a verifier decision
func FindPendingAnnotations(c *gin.Context) {
	var annotations []models.Annotation
	models.DB.Preload("Verification").
		Joins("LEFT JOIN verifications ON verifications.annotation_id = annotations.id").
		Where("verifications.id IS NULL OR verifications.status = ?", models.VerificationPending).
		Find(&annotations)

	c.JSON(http.StatusOK, gin.H{"data": annotations})
}

// FindApprovedAnnotations List approved annotations for the viewer dashboard
func FindApprovedAnnotations(c *gin.Context) {
	var annotations []models.Annotation
	models.DB.Preload("Verification").
		Joins("JOIN verifications ON verifications.annotation_id = annotations.id").
		Where("verifications.status = ?", models.VerificationApproved).
		Find(&annotations)

	c.JSON(http.StatusOK, gin.H{"data": annotations})
}
