package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/services"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PricePreviewRequest optionally overrides the design quantity
type PricePreviewRequest struct {
	Quantity *int `json:"quantity"`
}

// CreateQuoteRequest is a manufacturer's offer. Price and lead time are
// computed by the pricing engine when omitted.
type CreateQuoteRequest struct {
	Price                 *decimal.Decimal `json:"price"`
	EstimatedLeadTimeDays *int             `json:"estimated_lead_time_days"`
	Notes                 string           `json:"notes" binding:"max=2000"`
}

// AcceptQuoteRequest carries the shipping address for the new order
type AcceptQuoteRequest struct {
	ShippingAddress json.RawMessage `json:"shipping_address"`
}

// bindOptionalJSON binds a body that may be empty
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return false
	}
	return true
}

// PricePreview handles POST /api/v1/designs/:id/price-preview
func PricePreview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	designID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req PricePreviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := quoteService().PricePreview(c.Request.Context(), user, designID, req.Quantity)
	if err != nil {
		respondServiceError(c, err, "Failed to calculate price")
		return
	}
	if !result.OK() {
		respondErrorDetails(c, http.StatusBadRequest, "PRICING_ERROR", result.Errors[0], result)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// CreateQuote handles POST /api/v1/designs/:id/quotes
func CreateQuote(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	designID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req CreateQuoteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	quote, err := quoteService().CreateQuote(c.Request.Context(), user, designID, services.CreateQuoteInput{
		Price:                 req.Price,
		EstimatedLeadTimeDays: req.EstimatedLeadTimeDays,
		Notes:                 req.Notes,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to create quote")
		return
	}
	respondSuccess(c, http.StatusCreated, quote)
}

// ListQuotes handles GET /api/v1/designs/:id/quotes
func ListQuotes(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	designID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	quotes, err := quoteService().ListQuotes(c.Request.Context(), user, designID)
	if err != nil {
		respondServiceError(c, err, "Failed to list quotes")
		return
	}
	respondSuccess(c, http.StatusOK, quotes)
}

// GenerateQuotes handles POST /api/v1/designs/:id/generate-quotes
func GenerateQuotes(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	designID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := quoteService().GenerateQuotes(c.Request.Context(), user, designID)
	if errors.Is(err, services.ErrNoQuotesGenerated) {
		respondErrorDetails(c, http.StatusBadRequest, "PRICING_ERROR", result.Message, result.ErrorsByManufacturer)
		return
	}
	if err != nil {
		respondServiceError(c, err, "Failed to generate quotes")
		return
	}

	status := http.StatusOK
	if len(result.Quotes) > 0 {
		status = http.StatusCreated
	}
	respondSuccess(c, status, result)
}

// AcceptQuote handles POST /api/v1/quotes/:id/accept
func AcceptQuote(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	quoteID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req AcceptQuoteRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	var address datatypes.JSON
	if len(req.ShippingAddress) > 0 && string(req.ShippingAddress) != "null" {
		address = datatypes.JSON(req.ShippingAddress)
	}

	order, err := quoteService().AcceptQuote(c.Request.Context(), user, quoteID, address)
	if err != nil {
		respondServiceError(c, err, "Failed to accept quote")
		return
	}
	respondSuccess(c, http.StatusCreated, order)
}

// RejectQuote handles POST /api/v1/quotes/:id/reject
func RejectQuote(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	quoteID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	quote, err := quoteService().RejectQuote(c.Request.Context(), user, quoteID)
	if err != nil {
		respondServiceError(c, err, "Failed to reject quote")
		return
	}
	respondSuccess(c, http.StatusOK, quote)
}
