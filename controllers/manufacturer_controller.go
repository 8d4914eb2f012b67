package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/pricing"
	"github.com/kendall-kelly/fabmarket-api/services"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UpsertManufacturerProfileRequest is the body of PUT /api/v1/manufacturers/me.
// Absent fields keep their stored value.
type UpsertManufacturerProfileRequest struct {
	Location       *string          `json:"location"`
	Capabilities   json.RawMessage  `json:"capabilities"`
	MarkupFactor   *decimal.Decimal `json:"markup_factor"`
	Certifications json.RawMessage  `json:"certifications"`
}

// ManufacturerProfileResponse pairs the stored profile with the per-material
// cost factors derived from it.
type ManufacturerProfileResponse struct {
	Profile     models.ManufacturerProfile     `json:"profile"`
	CostFactors map[string]pricing.CostFactors `json:"cost_factors"`
}

func newManufacturerProfileResponse(p models.ManufacturerProfile) ManufacturerProfileResponse {
	caps := pricing.ParseCapabilities(p.Capabilities)
	factors := make(map[string]pricing.CostFactors, len(caps.MaterialsSupported))
	for _, material := range caps.MaterialsSupported {
		factors[material] = pricing.MaterialCostFactors(caps, material)
	}
	return ManufacturerProfileResponse{Profile: p, CostFactors: factors}
}

// GetMyManufacturerProfile handles GET /api/v1/manufacturers/me
func GetMyManufacturerProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsManufacturer() {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only manufacturers have a manufacturer profile")
		return
	}

	var profile models.ManufacturerProfile
	err := config.GetDB().WithContext(c.Request.Context()).Where("user_id = ?", user.ID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondServiceError(c, services.ErrProfileNotFound, "")
		return
	}
	if err != nil {
		respondServiceError(c, err, "Failed to load manufacturer profile")
		return
	}
	respondSuccess(c, http.StatusOK, newManufacturerProfileResponse(profile))
}

// UpsertMyManufacturerProfile handles PUT /api/v1/manufacturers/me
func UpsertMyManufacturerProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsManufacturer() {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Only manufacturers can manage a manufacturer profile")
		return
	}

	var req UpsertManufacturerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	var fieldErrs []pricing.FieldError
	fieldErrs = append(fieldErrs, pricing.ValidateCapabilities(req.Capabilities)...)
	if req.MarkupFactor != nil {
		if fe := pricing.ValidateMarkupFactor(*req.MarkupFactor); fe != nil {
			fieldErrs = append(fieldErrs, *fe)
		}
	}
	if fe := pricing.ValidateCertifications(req.Certifications); fe != nil {
		fieldErrs = append(fieldErrs, *fe)
	}
	if len(fieldErrs) > 0 {
		respondErrorDetails(c, http.StatusBadRequest, "INVALID_CAPABILITIES", fieldErrs[0].Message, fieldErrs)
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var profile models.ManufacturerProfile
	status := http.StatusOK
	err := db.Where("user_id = ?", user.ID).First(&profile).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		profile = models.ManufacturerProfile{UserID: user.ID, MarkupFactor: pricing.DefaultMarkup}
		status = http.StatusCreated
	case err != nil:
		respondServiceError(c, err, "Failed to load manufacturer profile")
		return
	}

	if req.Location != nil {
		profile.Location = *req.Location
	}
	if len(req.Capabilities) > 0 {
		profile.Capabilities = datatypes.JSON(req.Capabilities)
	}
	if req.MarkupFactor != nil {
		profile.MarkupFactor = *req.MarkupFactor
	}
	if len(req.Certifications) > 0 {
		profile.Certifications = datatypes.JSON(req.Certifications)
	}

	if err := db.Omit("User").Save(&profile).Error; err != nil {
		respondServiceError(c, err, "Failed to save manufacturer profile")
		return
	}

	handlerLog().Info("Manufacturer profile saved", "user_id", user.ID, "created", status == http.StatusCreated)
	respondSuccess(c, status, newManufacturerProfileResponse(profile))
}
