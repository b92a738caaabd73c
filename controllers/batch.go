package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posescope/middlewares"
	"posescope/models"
)

type CreateBatchInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ImageIDs    []uint `json:"image_ids"`
}

// CreateBatch Group images into a named batch
func CreateBatch(c *gin.Context) {
	var input CreateBatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var images []models.Image
	if len(input.ImageIDs) > 0 {
		if err := models.DB.Find(&images, input.ImageIDs).Error; err != nil {
			respondError(c, err)
			return
		}
		if len(images) != len(input.ImageIDs) {
			c.JSON(http.StatusNotFound, gin.H{"error": "some images do not exist"})
			return
		}
	}

	batch := models.Batch{
		Name:        input.Name,
		Description: input.Description,
		CreatedByID: middlewares.CurrentUserID(c),
		Images:      images,
	}
	if err := models.DB.Create(&batch).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batch})
}

// FindBatches List all batches with their images
func FindBatches(c *gin.Context) {
	var batches []models.Batch
	models.DB.Preload("Images").Find(&batches)

	c.JSON(http.StatusOK, gin.H{"data": batches})
}

// FindBatch Find one batch
func FindBatch(c *gin.Context) {
	var batch models.Batch
	if err := models.DB.Preload("Images").Where("id = ?", c.Param("id")).First(&batch).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": batch})
}
