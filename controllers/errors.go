package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"posescope/apperr"
)

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsPrediction(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Warn("internal error: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
