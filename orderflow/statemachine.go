package orderflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kendall-kelly/fabmarket-api/models"
	"gorm.io/datatypes"
)

// Role is the capacity in which a user acts on an order
type Role string

const (
	RoleNone         Role = ""
	RoleCustomer     Role = "customer"
	RoleManufacturer Role = "manufacturer"
	RoleStaff        Role = "staff"
)

// Writable order fields, named as they appear in request bodies
const (
	FieldStatus             = "status"
	FieldTrackingNumber     = "tracking_number"
	FieldShippingCarrier    = "shipping_carrier"
	FieldActualShipDate     = "actual_ship_date"
	FieldShippingAddress    = "shipping_address"
	FieldCancellationReason = "cancellation_reason"
)

var manufacturerTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPendingManufacturerConfirmation: {models.OrderStatusProcessing, models.OrderStatusCancelledByManufacturer},
	models.OrderStatusProcessing:                      {models.OrderStatusInProduction, models.OrderStatusCancelledByManufacturer},
	models.OrderStatusInProduction:                    {models.OrderStatusShipped},
	models.OrderStatusShipped:                         {models.OrderStatusCompleted},
}

var customerCancellable = map[models.OrderStatus]bool{
	models.OrderStatusPendingManufacturerConfirmation: true,
	models.OrderStatusPendingPayment:                  true,
	models.OrderStatusProcessing:                      true,
}

var addressFrozen = map[models.OrderStatus]bool{
	models.OrderStatusShipped:                 true,
	models.OrderStatusInProduction:            true,
	models.OrderStatusCompleted:               true,
	models.OrderStatusCancelledByManufacturer: true,
}

var writableFields = map[Role]map[string]bool{
	RoleManufacturer: {
		FieldStatus:             true,
		FieldTrackingNumber:     true,
		FieldShippingCarrier:    true,
		FieldActualShipDate:     true,
		FieldCancellationReason: true,
	},
	RoleCustomer: {
		FieldStatus:             true,
		FieldShippingAddress:    true,
		FieldCancellationReason: true,
	},
}

var allStatuses = []models.OrderStatus{
	models.OrderStatusPendingManufacturerConfirmation,
	models.OrderStatusPendingPayment,
	models.OrderStatusProcessing,
	models.OrderStatusPaymentFailed,
	models.OrderStatusInProduction,
	models.OrderStatusShipped,
	models.OrderStatusCompleted,
	models.OrderStatusCancelledByCustomer,
	models.OrderStatusCancelledByManufacturer,
}

// IsValidStatus reports whether s names an order status
func IsValidStatus(s models.OrderStatus) bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave s
func IsTerminal(s models.OrderStatus) bool {
	switch s {
	case models.OrderStatusCompleted, models.OrderStatusCancelledByCustomer, models.OrderStatusCancelledByManufacturer:
		return true
	}
	return false
}

// ManufacturerTargets lists the statuses a manufacturer may move an order to from s
func ManufacturerTargets(s models.OrderStatus) []models.OrderStatus {
	return append([]models.OrderStatus(nil), manufacturerTransitions[s]...)
}

// RoleOn resolves the role user plays on order; RoleNone means no access
func RoleOn(user *models.User, order *models.Order) Role {
	switch {
	case user.IsStaff:
		return RoleStaff
	case user.ID == order.CustomerID:
		return RoleCustomer
	case user.ID == order.ManufacturerID:
		return RoleManufacturer
	default:
		return RoleNone
	}
}

// UpdateRequest is a partial order update. Nil fields were absent from the
// request; Unknown carries any other keys the caller tried to write.
type UpdateRequest struct {
	Status             *models.OrderStatus
	TrackingNumber     *string
	ShippingCarrier    *string
	ActualShipDate     *time.Time
	ShippingAddress    datatypes.JSON
	CancellationReason *string
	Unknown            []string
}

// Fields lists every field present in the request, sorted
func (r UpdateRequest) Fields() []string {
	var fields []string
	if r.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if r.TrackingNumber != nil {
		fields = append(fields, FieldTrackingNumber)
	}
	if r.ShippingCarrier != nil {
		fields = append(fields, FieldShippingCarrier)
	}
	if r.ActualShipDate != nil {
		fields = append(fields, FieldActualShipDate)
	}
	if r.ShippingAddress != nil {
		fields = append(fields, FieldShippingAddress)
	}
	if r.CancellationReason != nil {
		fields = append(fields, FieldCancellationReason)
	}
	fields = append(fields, r.Unknown...)
	sort.Strings(fields)
	return fields
}

// Authorize decides whether role may apply req to an order in status
// current. It returns nil or a *Violation. Field permissions are checked
// before any transition rule.
func Authorize(role Role, current models.OrderStatus, req UpdateRequest) error {
	if role == RoleStaff {
		return nil
	}
	if err := CheckFields(role, req.Fields()); err != nil {
		return err
	}

	switch role {
	case RoleManufacturer:
		return authorizeManufacturer(current, req)
	case RoleCustomer:
		return authorizeCustomer(current, req)
	}
	return nil
}

// CheckFields rejects any field role may not write, in the order given.
// It needs only the field names, so callers can run it before decoding values.
func CheckFields(role Role, fields []string) error {
	if role == RoleStaff {
		return nil
	}
	allowed, ok := writableFields[role]
	if !ok {
		return &Violation{Code: CodeForbidden, Message: "You do not have permission to modify this order."}
	}
	for _, field := range fields {
		if !allowed[field] {
			return &Violation{
				Code:    CodeFieldNotAllowed,
				Field:   field,
				Message: fmt.Sprintf("%s cannot update field: %s.", roleLabel(role), field),
			}
		}
	}
	return nil
}

func authorizeManufacturer(current models.OrderStatus, req UpdateRequest) error {
	if req.Status == nil || *req.Status == current {
		return nil
	}
	for _, next := range manufacturerTransitions[current] {
		if next == *req.Status {
			return nil
		}
	}
	return &Violation{
		Code:    CodeInvalidTransition,
		Field:   FieldStatus,
		Message: fmt.Sprintf("Manufacturer: Invalid status transition from '%s' to '%s'.", current, *req.Status),
	}
}

func authorizeCustomer(current models.OrderStatus, req UpdateRequest) error {
	if req.Status != nil && *req.Status == models.OrderStatusCancelledByCustomer {
		if !customerCancellable[current] {
			return &Violation{
				Code:    CodeInvalidTransition,
				Field:   FieldStatus,
				Message: fmt.Sprintf("Order cannot be cancelled by customer in its current status: '%s'.", current),
			}
		}
		if req.CancellationReason == nil || strings.TrimSpace(*req.CancellationReason) == "" {
			return &Violation{
				Code:    CodeReasonRequired,
				Field:   FieldCancellationReason,
				Message: "Please provide a reason for cancelling the order.",
			}
		}
	} else if req.Status != nil && *req.Status != current {
		return &Violation{
			Code:    CodeInvalidTransition,
			Field:   FieldStatus,
			Message: "Customer can only cancel orders in specific states or update shipping address.",
		}
	}

	if req.ShippingAddress != nil && addressFrozen[current] {
		return &Violation{
			Code:    CodeAddressFrozen,
			Field:   FieldShippingAddress,
			Message: fmt.Sprintf("Shipping address cannot be updated when order status is '%s'.", current),
		}
	}
	return nil
}

// Apply authorizes req and mutates order in place. Moving to shipped without
// a ship date stamps today's date (UTC) taken from now.
func Apply(order *models.Order, role Role, req UpdateRequest, now time.Time) error {
	if err := Authorize(role, order.Status, req); err != nil {
		return err
	}

	if req.TrackingNumber != nil {
		order.TrackingNumber = req.TrackingNumber
	}
	if req.ShippingCarrier != nil {
		order.ShippingCarrier = req.ShippingCarrier
	}
	if req.ActualShipDate != nil {
		d := dateOf(*req.ActualShipDate)
		order.ActualShipDate = &d
	}
	if req.ShippingAddress != nil {
		order.ShippingAddress = req.ShippingAddress
	}
	if req.CancellationReason != nil {
		reason := strings.TrimSpace(*req.CancellationReason)
		order.CancellationReason = &reason
	}
	if req.Status != nil {
		if *req.Status == models.OrderStatusShipped && order.Status != models.OrderStatusShipped && order.ActualShipDate == nil {
			today := dateOf(now)
			order.ActualShipDate = &today
		}
		order.Status = *req.Status
	}
	return nil
}

// ApplyPayment records a gateway outcome on an order awaiting payment
func ApplyPayment(order *models.Order, approved bool) error {
	if order.Status != models.OrderStatusPendingPayment {
		return &Violation{
			Code:    CodePaymentNotAllowed,
			Field:   FieldStatus,
			Message: fmt.Sprintf("Order is not pending payment. Current status: %s.", order.Status),
		}
	}
	if approved {
		order.Status = models.OrderStatusProcessing
	} else {
		order.Status = models.OrderStatusPaymentFailed
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func roleLabel(r Role) string {
	switch r {
	case RoleManufacturer:
		return "Manufacturer"
	case RoleCustomer:
		return "Customer"
	default:
		return "User"
	}
}
