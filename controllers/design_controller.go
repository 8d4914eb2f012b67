package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/analysis"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/services"
	"github.com/kendall-kelly/fabmarket-api/utils"
	"gorm.io/gorm"
)

// designVisible reports whether user may read design. Manufacturers browse
// every design that is open for quotes.
func designVisible(user *models.User, design *models.Design) bool {
	return user.IsStaff || design.CustomerID == user.ID || (user.IsManufacturer() && design.IsQuotable())
}

// attachFileURL fills FileURL for the design owner and staff
func attachFileURL(ctx context.Context, user *models.User, design *models.Design) {
	if !user.IsStaff && design.CustomerID != user.ID {
		return
	}
	files := services.GetDesignFileService()
	if files == nil {
		return
	}
	url, err := files.GetDesignURL(ctx, design.FileKey)
	if err != nil {
		handlerLog().Warn("Failed to presign design URL", "design_id", design.ID, "error", err)
		return
	}
	if url != "" {
		design.FileURL = &url
	}
}

// CreateDesign handles POST /api/v1/designs - uploads a CAD file and queues
// its geometric analysis
func CreateDesign(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsCustomer() && !user.IsStaff {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only customers can upload designs")
		return
	}

	name := strings.TrimSpace(c.PostForm("design_name"))
	if name == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "design_name is required")
		return
	}
	quantity := 1
	if raw := c.PostForm("quantity"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q < 1 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Quantity must be at least 1.")
			return
		}
		quantity = q
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "A design file is required")
		return
	}

	files := services.GetDesignFileService()
	if files == nil {
		respondError(c, http.StatusServiceUnavailable, "UPLOAD_FAILED", "File storage is not configured")
		return
	}

	ctx := c.Request.Context()
	key, ext, err := files.UploadDesign(ctx, fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
			return
		}
		requestLog(c).Error("Design upload failed", "error", err)
		respondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to upload design file")
		return
	}

	design := models.Design{
		CustomerID:    user.ID,
		DesignName:    name,
		FileKey:       key,
		FileExtension: ext,
		Material:      strings.TrimSpace(c.PostForm("material")),
		Quantity:      quantity,
		Status:        models.DesignStatusPendingAnalysis,
	}
	var job *models.AnalysisJob
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Customer").Create(&design).Error; err != nil {
			return err
		}
		queued, err := analysisQueue().WithTx(tx).Enqueue(ctx, analysis.TaskName, design.ID)
		if err != nil {
			return err
		}
		job = queued
		return nil
	})
	if err != nil {
		if delErr := files.DeleteDesign(context.WithoutCancel(ctx), key); delErr != nil {
			requestLog(c).Warn("Failed to clean up uploaded design", "key", key, "error", delErr)
		}
		respondServiceError(c, err, "Failed to create design")
		return
	}

	requestLog(c).Info("Design uploaded", "design_id", design.ID, "job_id", job.ID, "format", ext)
	respondSuccess(c, http.StatusCreated, gin.H{
		"design":          design,
		"analysis_job_id": job.ID,
	})
}

// ListDesigns handles GET /api/v1/designs
func ListDesigns(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	q := config.GetDB().WithContext(c.Request.Context()).Order("created_at DESC")
	switch {
	case user.IsStaff:
	case user.IsManufacturer():
		q = q.Where("status IN ?", []models.DesignStatus{models.DesignStatusAnalysisComplete, models.DesignStatusQuoted})
	default:
		q = q.Where("customer_id = ?", user.ID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var designs []models.Design
	if err := q.Find(&designs).Error; err != nil {
		respondServiceError(c, err, "Failed to list designs")
		return
	}
	respondSuccess(c, http.StatusOK, designs)
}

// GetDesign handles GET /api/v1/designs/:id
func GetDesign(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var design models.Design
	err := config.GetDB().WithContext(c.Request.Context()).First(&design, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !designVisible(user, &design)) {
		respondServiceError(c, services.ErrDesignNotFound, "")
		return
	}
	if err != nil {
		respondServiceError(c, err, "Failed to load design")
		return
	}

	attachFileURL(c.Request.Context(), user, &design)
	respondSuccess(c, http.StatusOK, design)
}
