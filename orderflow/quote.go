package orderflow

import (
	"fmt"

	"github.com/kendall-kelly/fabmarket-api/models"
)

// CanRespondToQuote checks that a quote is still open for acceptance or rejection
func CanRespondToQuote(q *models.Quote) error {
	if q.Status != models.QuoteStatusPending {
		return &Violation{
			Code:    CodeQuoteNotPending,
			Field:   "status",
			Message: fmt.Sprintf("Quote is no longer pending. Current status: %s.", q.Status),
		}
	}
	return nil
}

// CanAcceptQuote additionally requires the design to still be open for ordering
func CanAcceptQuote(q *models.Quote, d *models.Design) error {
	if err := CanRespondToQuote(q); err != nil {
		return err
	}
	if !d.IsQuotable() {
		return &Violation{
			Code:    CodeDesignNotQuotable,
			Field:   "design",
			Message: fmt.Sprintf("Design cannot be ordered in its current status: %s.", d.Status),
		}
	}
	return nil
}
