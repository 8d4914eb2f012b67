package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/jobs"
	"github.com/kendall-kelly/fabmarket-api/middleware"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/orderflow"
	"github.com/kendall-kelly/fabmarket-api/services"
	"github.com/kendall-kelly/fabmarket-api/utils"
)

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondErrorDetails(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// respondServiceError maps a service or domain error onto the JSON envelope
func respondServiceError(c *gin.Context, err error, fallback string) {
	var (
		permErr   *services.PermissionError
		validErr  *services.ValidationError
		uploadErr *utils.FileUploadError
	)

	if v, ok := orderflow.AsViolation(err); ok {
		status := http.StatusBadRequest
		if v.Code == orderflow.CodeForbidden || v.Code == orderflow.CodeFieldNotAllowed {
			status = http.StatusForbidden
		}
		if v.Field != "" {
			respondErrorDetails(c, status, string(v.Code), v.Message, gin.H{"field": v.Field})
			return
		}
		respondError(c, status, string(v.Code), v.Message)
		return
	}

	switch {
	case errors.As(err, &permErr):
		respondError(c, http.StatusForbidden, "FORBIDDEN", permErr.Message)
	case errors.As(err, &validErr):
		code := "INVALID_REQUEST"
		if len(validErr.Details) > 0 {
			code = "PRICING_ERROR"
		}
		details := gin.H{}
		if validErr.Field != "" {
			details["field"] = validErr.Field
		}
		if len(validErr.Details) > 0 {
			details["errors"] = validErr.Details
		}
		if len(details) == 0 {
			respondError(c, http.StatusBadRequest, code, validErr.Message)
			return
		}
		respondErrorDetails(c, http.StatusBadRequest, code, validErr.Message, details)
	case errors.As(err, &uploadErr):
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
	case errors.Is(err, services.ErrDesignNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Design not found")
	case errors.Is(err, services.ErrQuoteNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Quote not found")
	case errors.Is(err, services.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Order not found")
	case errors.Is(err, services.ErrProfileNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Manufacturer profile not found")
	case errors.Is(err, services.ErrManufacturerNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Manufacturer not found")
	case errors.Is(err, jobs.ErrJobNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis job not found")
	case errors.Is(err, jobs.ErrNotReplayable):
		respondError(c, http.StatusConflict, "INVALID_STATUS", "Only failed analysis jobs can be replayed")
	case errors.Is(err, services.ErrQuoteExists):
		respondError(c, http.StatusConflict, "QUOTE_EXISTS", "You have already quoted this design")
	default:
		requestLog(c).Error(fallback, "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", fallback)
	}
}

// currentUser resolves the authenticated caller's profile. It writes the
// error response itself and returns false when the request cannot proceed.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return nil, false
	}

	var user models.User
	if err := config.GetDB().WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil, false
	}
	return &user, true
}

// pathUUID parses a UUID path parameter, answering 400 when malformed
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
