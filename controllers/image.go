package controllers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"

	"posescope/middlewares"
	"posescope/models"
	"posescope/render"
	"posescope/storage"
	"posescope/utils"
)

// FindImages Find all images with their annotations
func FindImages(c *gin.Context) {
	var images []models.Image
	query := models.DB.Preload("Annotations").Preload("Annotations.Verification")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	query.Find(&images)

	c.JSON(http.StatusOK, gin.H{"data": images})
}

// UploadImage Store an uploaded picture and create its record
func UploadImage(store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
			return
		}

		ext := strings.ToLower(path.Ext(fileHeader.Filename))
		if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only png or jpeg images are accepted"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		width, height, err := utils.DecodeImageSize(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a decodable image"})
			return
		}

		identifier := uuid.NewV4().String()
		imagePath := path.Join(storage.AreaImages, identifier+ext)
		if err := store.Write(imagePath, data); err != nil {
			respondError(c, err)
			return
		}

		image := models.Image{
			Identifier:   identifier,
			Path:         imagePath,
			Width:        width,
			Height:       height,
			Status:       models.StatusUnlabeled,
			UploadedByID: middlewares.CurrentUserID(c),
		}
		if err := models.DB.Create(&image).Error; err != nil {
			respondError(c, err)
			return
		}
		log.Info(fmt.Sprintf("Imported image %s (%dx%d)", identifier, width, height))

		c.JSON(http.StatusOK, gin.H{"data": image})
	}
}

// FindImage Find an image
func FindImage(c *gin.Context) {
	var image models.Image
	err := models.DB.Preload("Annotations").Preload("Annotations.Verification").
		Where("id = ?", c.Param("id")).First(&image).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": image})
}

// DeleteImage Delete an image record
func DeleteImage(c *gin.Context) {
	var image models.Image
	if err := models.DB.Where("id = ?", c.Param("id")).First(&image).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
		return
	}

	models.DB.Delete(&image)

	c.JSON(http.StatusOK, gin.H{"data": true})
}

func serveThumbnail(c *gin.Context, store storage.Store, ext, contentType string, render func(identifier, imagePath string) (string, error)) {
	var image models.Image
	if err := models.DB.Where("id = ?", c.Param("id")).First(&image).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
		return
	}

	thumbPath := path.Join(storage.AreaThumbnails, image.Identifier+ext)
	if !store.Exists(thumbPath) {
		var err error
		thumbPath, err = render(image.Identifier, image.Path)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	data, err := store.Read(thumbPath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// GetThumbnail Render (or reuse) a png thumbnail for the image
func GetThumbnail(store storage.Store, renderer *render.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		serveThumbnail(c, store, ".png", "image/png", func(identifier, imagePath string) (string, error) {
			return renderer.RenderThumbnail(identifier, imagePath, 256)
		})
	}
}

// GetThumbnailJpg Render (or reuse) a jpg thumbnail for the image
func GetThumbnailJpg(store storage.Store, renderer *render.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		serveThumbnail(c, store, ".jpg", "image/jpeg", func(identifier, imagePath string) (string, error) {
			return renderer.RenderThumbnailJpg(identifier, imagePath, 256)
		})
	}
}

// GetOverlay Serve the rendered overlay artifact for an annotation
func GetOverlay(store storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var annotation models.Annotation
		if err := models.DB.Where("id = ?", c.Param("id")).First(&annotation).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found!"})
			return
		}

		data, err := store.Read(annotation.OverlayPath)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", data)
	}
}
