package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/services"
)

// CreateReviewRequest is the body of POST /api/v1/manufacturers/:id/reviews
type CreateReviewRequest struct {
	OrderID *uuid.UUID `json:"order_id"`
	Rating  int        `json:"rating"`
	Comment string     `json:"comment" binding:"max=5000"`
}

// pathManufacturerID parses the numeric manufacturer id, answering 400 when malformed
func pathManufacturerID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid manufacturer id")
		return 0, false
	}
	return uint(id), true
}

// ListManufacturerReviews handles GET /api/v1/manufacturers/:id/reviews.
// Reviews are public.
func ListManufacturerReviews(c *gin.Context) {
	manufacturerID, ok := pathManufacturerID(c)
	if !ok {
		return
	}

	reviews, err := reviewService().ListReviews(c.Request.Context(), manufacturerID)
	if err != nil {
		respondServiceError(c, err, "Failed to list reviews")
		return
	}
	respondSuccess(c, http.StatusOK, reviews)
}

// CreateManufacturerReview handles POST /api/v1/manufacturers/:id/reviews
func CreateManufacturerReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	manufacturerID, ok := pathManufacturerID(c)
	if !ok {
		return
	}
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	review, err := reviewService().CreateReview(c.Request.Context(), user, manufacturerID, services.CreateReviewInput{
		OrderID: req.OrderID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to create review")
		return
	}
	respondSuccess(c, http.StatusCreated, review)
}
