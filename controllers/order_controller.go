package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/orderflow"
	"gorm.io/datatypes"
)

// ProcessPaymentRequest represents the request body for paying an order
type ProcessPaymentRequest struct {
	PaymentToken string `json:"payment_token" binding:"required"`
}

// ListOrders handles GET /api/v1/orders - orders where the caller takes part
func ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := orderService().ListOrders(c.Request.Context(), user)
	if err != nil {
		respondServiceError(c, err, "Failed to list orders")
		return
	}
	respondSuccess(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	order, err := orderService().GetOrder(c.Request.Context(), user, id)
	if err != nil {
		respondServiceError(c, err, "Failed to load order")
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// UpdateOrder handles PATCH /api/v1/orders/:id - partial update checked
// against the caller's role on the order
func UpdateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}
	svc := orderService()
	// field permissions are checked before any value is decoded
	if err := svc.AuthorizeFields(c.Request.Context(), user, id, bodyKeys(body)); err != nil {
		respondServiceError(c, err, "Failed to update order")
		return
	}
	req, err := parseOrderUpdate(body)
	if err != nil {
		code := "VALIDATION_ERROR"
		if _, bad := err.(invalidStatusError); bad {
			code = "INVALID_STATUS"
		}
		respondError(c, http.StatusBadRequest, code, err.Error())
		return
	}

	order, err := svc.UpdateOrder(c.Request.Context(), user, id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update order")
		return
	}
	respondSuccess(c, http.StatusOK, order)
}

// ProcessPayment handles POST /api/v1/orders/:id/payment
func ProcessPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	result, err := orderService().ProcessPayment(c.Request.Context(), user, id, req.PaymentToken)
	if err != nil {
		respondServiceError(c, err, "Failed to process payment")
		return
	}
	if !result.Approved {
		respondErrorDetails(c, http.StatusPaymentRequired, "PAYMENT_FAILED", "Payment was declined.", gin.H{"order": result.Order})
		return
	}
	respondSuccess(c, http.StatusOK, result.Order)
}

type invalidStatusError struct{ status string }

func (e invalidStatusError) Error() string {
	return fmt.Sprintf("Invalid order status: '%s'.", e.status)
}

// parseOrderUpdate turns a PATCH body into an UpdateRequest. Keys that are
// not order fields are kept in Unknown so authorization can reject them.
func parseOrderUpdate(body map[string]json.RawMessage) (orderflow.UpdateRequest, error) {
	var req orderflow.UpdateRequest
	for _, key := range bodyKeys(body) {
		raw := body[key]
		switch key {
		case orderflow.FieldStatus:
			s, err := stringField(key, raw)
			if err != nil {
				return req, err
			}
			status := models.OrderStatus(*s)
			if !orderflow.IsValidStatus(status) {
				return req, invalidStatusError{status: *s}
			}
			req.Status = &status
		case orderflow.FieldTrackingNumber:
			s, err := stringField(key, raw)
			if err != nil {
				return req, err
			}
			req.TrackingNumber = s
		case orderflow.FieldShippingCarrier:
			s, err := stringField(key, raw)
			if err != nil {
				return req, err
			}
			req.ShippingCarrier = s
		case orderflow.FieldCancellationReason:
			s, err := stringField(key, raw)
			if err != nil {
				return req, err
			}
			req.CancellationReason = s
		case orderflow.FieldActualShipDate:
			s, err := stringField(key, raw)
			if err != nil {
				return req, err
			}
			d, err := parseDate(*s)
			if err != nil {
				return req, errors.New("actual_ship_date must be a date (YYYY-MM-DD).")
			}
			req.ActualShipDate = &d
		case orderflow.FieldShippingAddress:
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) == 0 || trimmed[0] != '{' {
				return req, errors.New("shipping_address must be an object.")
			}
			req.ShippingAddress = datatypes.JSON(trimmed)
		default:
			req.Unknown = append(req.Unknown, key)
		}
	}
	return req, nil
}

func bodyKeys(body map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringField decodes a string value; JSON null reads as the empty string
func stringField(key string, raw json.RawMessage) (*string, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s must be a string.", key)
	}
	if s == nil {
		empty := ""
		return &empty, nil
	}
	return s, nil
}

func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, s)
}
