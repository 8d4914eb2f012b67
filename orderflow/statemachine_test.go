package orderflow

import (
	"testing"
	"time"

	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func statusPtr(s models.OrderStatus) *models.OrderStatus { return &s }
func strPtr(s string) *string                            { return &s }

func requireViolation(t *testing.T, err error, code Code) *Violation {
	t.Helper()
	v, ok := AsViolation(err)
	require.True(t, ok, "expected a violation, got %v", err)
	assert.Equal(t, code, v.Code)
	return v
}

func TestManufacturerTransitionTable(t *testing.T) {
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPendingManufacturerConfirmation, models.OrderStatusProcessing}:              true,
		{models.OrderStatusPendingManufacturerConfirmation, models.OrderStatusCancelledByManufacturer}: true,
		{models.OrderStatusProcessing, models.OrderStatusInProduction}:                                 true,
		{models.OrderStatusProcessing, models.OrderStatusCancelledByManufacturer}:                      true,
		{models.OrderStatusInProduction, models.OrderStatusShipped}:                                    true,
		{models.OrderStatusShipped, models.OrderStatusCompleted}:                                       true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := Authorize(RoleManufacturer, from, UpdateRequest{Status: statusPtr(to)})
			switch {
			case from == to, allowed[[2]models.OrderStatus{from, to}]:
				assert.NoError(t, err, "%s -> %s", from, to)
			default:
				v := requireViolation(t, err, CodeInvalidTransition)
				assert.Equal(t, "Manufacturer: Invalid status transition from '"+string(from)+"' to '"+string(to)+"'.", v.Message)
			}
		}
	}
}

func TestManufacturerCannotSkipShipping(t *testing.T) {
	order := &models.Order{Status: models.OrderStatusInProduction}
	err := Apply(order, RoleManufacturer, UpdateRequest{Status: statusPtr(models.OrderStatusCompleted)}, time.Now())

	requireViolation(t, err, CodeInvalidTransition)
	assert.Equal(t, models.OrderStatusInProduction, order.Status, "rejected update must not mutate the order")
}

func TestShippingStampsToday(t *testing.T) {
	now := time.Date(2025, 3, 14, 22, 45, 0, 0, time.UTC)
	order := &models.Order{Status: models.OrderStatusInProduction}

	err := Apply(order, RoleManufacturer, UpdateRequest{
		Status:         statusPtr(models.OrderStatusShipped),
		TrackingNumber: strPtr("1Z999AA10123456784"),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusShipped, order.Status)
	require.NotNil(t, order.ActualShipDate)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), *order.ActualShipDate)
	assert.Equal(t, "1Z999AA10123456784", *order.TrackingNumber)
}

func TestShippingKeepsExplicitDate(t *testing.T) {
	shipped := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	order := &models.Order{Status: models.OrderStatusInProduction}

	err := Apply(order, RoleManufacturer, UpdateRequest{
		Status:         statusPtr(models.OrderStatusShipped),
		ActualShipDate: &shipped,
	}, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), *order.ActualShipDate)
}

func TestShippingKeepsEarlierDate(t *testing.T) {
	earlier := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	order := &models.Order{Status: models.OrderStatusInProduction, ActualShipDate: &earlier}

	err := Apply(order, RoleManufacturer, UpdateRequest{Status: statusPtr(models.OrderStatusShipped)},
		time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, earlier, *order.ActualShipDate)
}

func TestCustomerCancellation(t *testing.T) {
	tests := []struct {
		name     string
		current  models.OrderStatus
		reason   *string
		wantCode Code
	}{
		{name: "pending payment with reason", current: models.OrderStatusPendingPayment, reason: strPtr("changed my mind")},
		{name: "processing with reason", current: models.OrderStatusProcessing, reason: strPtr("found cheaper")},
		{name: "awaiting confirmation with reason", current: models.OrderStatusPendingManufacturerConfirmation, reason: strPtr("wrong part")},
		{name: "missing reason", current: models.OrderStatusPendingPayment, wantCode: CodeReasonRequired},
		{name: "blank reason", current: models.OrderStatusPendingPayment, reason: strPtr("   "), wantCode: CodeReasonRequired},
		{name: "shipped with reason", current: models.OrderStatusShipped, reason: strPtr("too late"), wantCode: CodeInvalidTransition},
		{name: "shipped without reason", current: models.OrderStatusShipped, wantCode: CodeInvalidTransition},
		{name: "in production", current: models.OrderStatusInProduction, reason: strPtr("x"), wantCode: CodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &models.Order{Status: tt.current}
			err := Apply(order, RoleCustomer, UpdateRequest{
				Status:             statusPtr(models.OrderStatusCancelledByCustomer),
				CancellationReason: tt.reason,
			}, time.Now())

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, models.OrderStatusCancelledByCustomer, order.Status)
				assert.Equal(t, *tt.reason, *order.CancellationReason)
				return
			}
			requireViolation(t, err, tt.wantCode)
			assert.Equal(t, tt.current, order.Status)
		})
	}
}

func TestCustomerShippedCancellationMessage(t *testing.T) {
	err := Authorize(RoleCustomer, models.OrderStatusShipped, UpdateRequest{
		Status:             statusPtr(models.OrderStatusCancelledByCustomer),
		CancellationReason: strPtr("please"),
	})
	v := requireViolation(t, err, CodeInvalidTransition)
	assert.Equal(t, "Order cannot be cancelled by customer in its current status: 'shipped'.", v.Message)
}

func TestCustomerOtherStatusChangesRejected(t *testing.T) {
	err := Authorize(RoleCustomer, models.OrderStatusProcessing, UpdateRequest{Status: statusPtr(models.OrderStatusCompleted)})
	v := requireViolation(t, err, CodeInvalidTransition)
	assert.Equal(t, "Customer can only cancel orders in specific states or update shipping address.", v.Message)

	// restating the current status is not a transition
	assert.NoError(t, Authorize(RoleCustomer, models.OrderStatusProcessing, UpdateRequest{Status: statusPtr(models.OrderStatusProcessing)}))
}

func TestFieldLevelAuthorization(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		req       UpdateRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "customer tracking number",
			role:      RoleCustomer,
			req:       UpdateRequest{TrackingNumber: strPtr("1Z")},
			wantField: FieldTrackingNumber,
			wantMsg:   "Customer cannot update field: tracking_number.",
		},
		{
			name:      "manufacturer shipping address",
			role:      RoleManufacturer,
			req:       UpdateRequest{ShippingAddress: datatypes.JSON(`{"city": "Oslo"}`)},
			wantField: FieldShippingAddress,
			wantMsg:   "Manufacturer cannot update field: shipping_address.",
		},
		{
			name:      "customer price",
			role:      RoleCustomer,
			req:       UpdateRequest{Unknown: []string{"order_total_price_usd"}},
			wantField: "order_total_price_usd",
			wantMsg:   "Customer cannot update field: order_total_price_usd.",
		},
		{
			name:      "field check runs before transition rules",
			role:      RoleManufacturer,
			req:       UpdateRequest{Status: statusPtr(models.OrderStatusCompleted), ShippingAddress: datatypes.JSON(`{}`)},
			wantField: FieldShippingAddress,
			wantMsg:   "Manufacturer cannot update field: shipping_address.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, status := range allStatuses {
				v := requireViolation(t, Authorize(tt.role, status, tt.req), CodeFieldNotAllowed)
				assert.Equal(t, tt.wantField, v.Field)
				assert.Equal(t, tt.wantMsg, v.Message)
			}
		})
	}
}

func TestCheckFieldsByName(t *testing.T) {
	v := requireViolation(t, CheckFields(RoleCustomer, []string{FieldStatus, FieldTrackingNumber}), CodeFieldNotAllowed)
	assert.Equal(t, FieldTrackingNumber, v.Field)
	assert.Equal(t, "Customer cannot update field: tracking_number.", v.Message)

	assert.NoError(t, CheckFields(RoleManufacturer, []string{FieldTrackingNumber, FieldShippingCarrier}))
	assert.NoError(t, CheckFields(RoleStaff, []string{"anything"}))
	requireViolation(t, CheckFields(RoleNone, nil), CodeForbidden)
}

func TestShippingAddressFreeze(t *testing.T) {
	address := datatypes.JSON(`{"line1": "1 Main St"}`)
	frozen := map[models.OrderStatus]bool{
		models.OrderStatusShipped:                 true,
		models.OrderStatusInProduction:            true,
		models.OrderStatusCompleted:               true,
		models.OrderStatusCancelledByManufacturer: true,
	}

	for _, status := range allStatuses {
		order := &models.Order{Status: status}
		err := Apply(order, RoleCustomer, UpdateRequest{ShippingAddress: address}, time.Now())
		if frozen[status] {
			v := requireViolation(t, err, CodeAddressFrozen)
			assert.Equal(t, "Shipping address cannot be updated when order status is '"+string(status)+"'.", v.Message)
			assert.Nil(t, order.ShippingAddress)
			continue
		}
		require.NoError(t, err, status)
		assert.JSONEq(t, string(address), string(order.ShippingAddress))
	}
}

func TestStaffBypassesRestrictions(t *testing.T) {
	order := &models.Order{Status: models.OrderStatusShipped}
	err := Apply(order, RoleStaff, UpdateRequest{
		Status:          statusPtr(models.OrderStatusCancelledByCustomer),
		ShippingAddress: datatypes.JSON(`{"line1": "2 Side St"}`),
		TrackingNumber:  strPtr("NEW"),
	}, time.Now())

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelledByCustomer, order.Status)
	assert.Equal(t, "NEW", *order.TrackingNumber)
}

func TestNoRoleIsForbidden(t *testing.T) {
	requireViolation(t, Authorize(RoleNone, models.OrderStatusProcessing, UpdateRequest{}), CodeForbidden)
}

func TestRoleOn(t *testing.T) {
	order := &models.Order{CustomerID: 1, ManufacturerID: 2}

	assert.Equal(t, RoleCustomer, RoleOn(&models.User{ID: 1}, order))
	assert.Equal(t, RoleManufacturer, RoleOn(&models.User{ID: 2}, order))
	assert.Equal(t, RoleNone, RoleOn(&models.User{ID: 3}, order))
	assert.Equal(t, RoleStaff, RoleOn(&models.User{ID: 3, IsStaff: true}, order))
}

func TestApplyPayment(t *testing.T) {
	approved := &models.Order{Status: models.OrderStatusPendingPayment}
	require.NoError(t, ApplyPayment(approved, true))
	assert.Equal(t, models.OrderStatusProcessing, approved.Status)

	declined := &models.Order{Status: models.OrderStatusPendingPayment}
	require.NoError(t, ApplyPayment(declined, false))
	assert.Equal(t, models.OrderStatusPaymentFailed, declined.Status)

	for _, status := range allStatuses {
		if status == models.OrderStatusPendingPayment {
			continue
		}
		order := &models.Order{Status: status}
		v := requireViolation(t, ApplyPayment(order, true), CodePaymentNotAllowed)
		assert.Equal(t, "Order is not pending payment. Current status: "+string(status)+".", v.Message)
		assert.Equal(t, status, order.Status)
	}
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, IsValidStatus(models.OrderStatusShipped))
	assert.False(t, IsValidStatus("lost_in_transit"))
	assert.True(t, IsTerminal(models.OrderStatusCompleted))
	assert.True(t, IsTerminal(models.OrderStatusCancelledByCustomer))
	assert.False(t, IsTerminal(models.OrderStatusPaymentFailed))
	assert.Equal(t, []models.OrderStatus{models.OrderStatusShipped}, ManufacturerTargets(models.OrderStatusInProduction))
}

func TestQuoteResponses(t *testing.T) {
	pending := &models.Quote{Status: models.QuoteStatusPending}
	analyzed := &models.Design{Status: models.DesignStatusAnalysisComplete}
	assert.NoError(t, CanAcceptQuote(pending, analyzed))

	expired := &models.Quote{Status: models.QuoteStatusExpired}
	v := requireViolation(t, CanRespondToQuote(expired), CodeQuoteNotPending)
	assert.Equal(t, "Quote is no longer pending. Current status: expired.", v.Message)

	ordered := &models.Design{Status: models.DesignStatusOrdered}
	requireViolation(t, CanAcceptQuote(pending, ordered), CodeDesignNotQuotable)
}
