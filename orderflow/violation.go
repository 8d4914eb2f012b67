package orderflow

import "errors"

// Code classifies a rejected order or quote operation
type Code string

const (
	CodeForbidden         Code = "FORBIDDEN"
	CodeFieldNotAllowed   Code = "FIELD_NOT_ALLOWED"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeReasonRequired    Code = "CANCELLATION_REASON_REQUIRED"
	CodeAddressFrozen     Code = "SHIPPING_ADDRESS_FROZEN"
	CodePaymentNotAllowed Code = "PAYMENT_NOT_ALLOWED"
	CodeQuoteNotPending   Code = "QUOTE_NOT_PENDING"
	CodeDesignNotQuotable Code = "DESIGN_NOT_QUOTABLE"
)

// Violation is a business-rule rejection attributed to a field
type Violation struct {
	Code    Code
	Field   string
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

// AsViolation extracts a Violation from err's chain
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
