package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/geometry"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/orderflow"
	"github.com/kendall-kelly/fabmarket-api/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteService creates, generates and settles quotes. Accepting a quote is
// the only way an order comes into existence.
type QuoteService struct {
	db     *gorm.DB
	events EventBus
	log    *logger.Logger
	clock  func() time.Time
}

func NewQuoteService(db *gorm.DB, events EventBus, baseLog *logger.Logger) *QuoteService {
	if events == nil {
		events = NoopEventBus{}
	}
	return &QuoteService{
		db:     db,
		events: events,
		log:    baseLog.With("service", "QuoteService"),
		clock:  time.Now,
	}
}

// CreateQuoteInput is a manufacturer's manual offer. A nil Price or lead time
// is filled in from the pricing engine.
type CreateQuoteInput struct {
	Price                 *decimal.Decimal
	EstimatedLeadTimeDays *int
	Notes                 string
}

// GenerateResult summarizes an automated quoting run
type GenerateResult struct {
	Message              string              `json:"message"`
	Quotes               []models.Quote      `json:"generated_quotes"`
	ErrorsByManufacturer map[string][]string `json:"errors_by_manufacturer"`
}

// PricePreview runs the pricing engine for manufacturer against a design
// without persisting anything.
func (s *QuoteService) PricePreview(ctx context.Context, manufacturer *models.User, designID uuid.UUID, quantity *int) (pricing.Result, error) {
	if !manufacturer.IsManufacturer() {
		return pricing.Result{}, forbidden("Only manufacturers can preview quote prices.")
	}
	design, err := s.loadDesign(ctx, s.db, designID)
	if err != nil {
		return pricing.Result{}, err
	}
	profile, err := s.loadProfile(ctx, manufacturer.ID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return pricing.Result{}, err
	}

	qty := design.Quantity
	if quantity != nil {
		qty = *quantity
	}
	return pricing.Calculate(pricingInput(design, profile, qty)), nil
}

func (s *QuoteService) CreateQuote(ctx context.Context, manufacturer *models.User, designID uuid.UUID, in CreateQuoteInput) (*models.Quote, error) {
	if !manufacturer.IsManufacturer() {
		return nil, forbidden("Only manufacturers can create quotes.")
	}
	design, err := s.loadDesign(ctx, s.db, designID)
	if err != nil {
		return nil, err
	}
	if design.CustomerID == manufacturer.ID {
		return nil, forbidden("You cannot quote your own design.")
	}
	if !design.IsQuotable() {
		return nil, invalid("design", fmt.Sprintf("Design is not open for quotes. Current status: %s.", design.Status))
	}

	price := in.Price
	leadTime := in.EstimatedLeadTimeDays
	if price == nil || leadTime == nil {
		profile, err := s.loadProfile(ctx, manufacturer.ID)
		if err != nil && !errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		res := pricing.Calculate(pricingInput(design, profile, design.Quantity))
		if price == nil {
			if !res.OK() {
				return nil, &ValidationError{Field: "price", Message: strings.Join(res.Errors, " "), Details: res.Errors}
			}
			price = res.Price
		}
		if leadTime == nil {
			lt := res.LeadTimeDays
			leadTime = &lt
		}
		if in.Notes == "" {
			in.Notes = res.Details
		}
	}

	if !price.IsPositive() {
		return nil, invalid("price", "Price must be positive.")
	}
	if *leadTime < 0 {
		return nil, invalid("estimated_lead_time_days", "Estimated lead time cannot be negative.")
	}

	quote := &models.Quote{
		DesignID:              design.ID,
		ManufacturerID:        manufacturer.ID,
		Price:                 price.Round(2),
		EstimatedLeadTimeDays: *leadTime,
		Notes:                 in.Notes,
		Status:                models.QuoteStatusPending,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(quote).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrQuoteExists
		}
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	quote.Manufacturer = *manufacturer
	return quote, nil
}

// ListQuotes returns the quotes caller may see on a design: all of them for
// the owner and staff, only their own for a manufacturer.
func (s *QuoteService) ListQuotes(ctx context.Context, caller *models.User, designID uuid.UUID) ([]models.Quote, error) {
	design, err := s.loadDesign(ctx, s.db, designID)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Preload("Manufacturer").Where("design_id = ?", design.ID)
	switch {
	case caller.IsStaff, design.CustomerID == caller.ID:
	case caller.IsManufacturer():
		q = q.Where("manufacturer_id = ?", caller.ID)
	default:
		return []models.Quote{}, nil
	}

	var quotes []models.Quote
	if err := q.Order("created_at ASC").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, nil
}

// GenerateQuotes prices the design for every eligible manufacturer and
// stores the successful prices as pending quotes. ErrNoQuotesGenerated is
// returned together with the result when every candidate failed.
func (s *QuoteService) GenerateQuotes(ctx context.Context, caller *models.User, designID uuid.UUID) (*GenerateResult, error) {
	design, err := s.loadDesign(ctx, s.db, designID)
	if err != nil {
		return nil, err
	}
	if !caller.IsStaff && design.CustomerID != caller.ID {
		return nil, forbidden("You do not have permission to generate quotes for this design.")
	}
	if design.Status != models.DesignStatusAnalysisComplete {
		return nil, invalid("status", fmt.Sprintf("Design must be in 'Analysis Complete' status to generate quotes. Current status: %s.", design.Status))
	}
	metrics, ok := geometry.DecodeMetrics(design.GeometricData)
	if !ok {
		return nil, invalid("geometric_data", "Design geometric data is missing. Cannot generate quotes.")
	}

	var profiles []models.ManufacturerProfile
	if err := s.db.WithContext(ctx).Preload("User").Order("id ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to load manufacturers: %w", err)
	}

	log := s.log.With("design_id", design.ID)
	eligible := make([]models.ManufacturerProfile, 0, len(profiles))
	for _, p := range profiles {
		if reason := ineligibility(design, metrics, p); reason != "" {
			log.Debug("Manufacturer skipped", "manufacturer_id", p.UserID, "reason", reason)
			continue
		}
		eligible = append(eligible, p)
	}

	result := &GenerateResult{Quotes: []models.Quote{}, ErrorsByManufacturer: map[string][]string{}}
	if len(eligible) == 0 {
		result.Message = "No manufacturers found matching the design's material or size requirements."
		return result, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range eligible {
			key := strconv.FormatUint(uint64(p.UserID), 10)
			if p.UserID == design.CustomerID {
				continue
			}
			var existing int64
			if err := tx.Model(&models.Quote{}).Where("design_id = ? AND manufacturer_id = ?", design.ID, p.UserID).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}

			res := pricing.Calculate(pricingInput(design, &p, design.Quantity))
			if !res.OK() {
				log.Warn("Could not price design", "manufacturer_id", p.UserID, "errors", res.Errors)
				result.ErrorsByManufacturer[key] = res.Errors
				continue
			}

			quote := models.Quote{
				DesignID:              design.ID,
				ManufacturerID:        p.UserID,
				Price:                 *res.Price,
				EstimatedLeadTimeDays: res.LeadTimeDays,
				Notes:                 "Automated quote. Details: " + res.Details,
				Status:                models.QuoteStatusPending,
			}
			if err := tx.SavePoint("auto_quote").Error; err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Create(&quote).Error; err != nil {
				if rbErr := tx.RollbackTo("auto_quote").Error; rbErr != nil {
					return rbErr
				}
				result.ErrorsByManufacturer[key] = []string{"Error saving quote: " + err.Error()}
				continue
			}
			quote.Manufacturer = p.User
			result.Quotes = append(result.Quotes, quote)
		}

		if len(result.Quotes) > 0 {
			return tx.Model(&models.Design{}).
				Where("id = ? AND status = ?", design.ID, models.DesignStatusAnalysisComplete).
				Update("status", models.DesignStatusQuoted).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate quotes: %w", err)
	}

	if len(result.Quotes) == 0 && len(result.ErrorsByManufacturer) > 0 {
		result.Message = "No quotes could be generated."
		return result, ErrNoQuotesGenerated
	}
	result.Message = fmt.Sprintf("%d quote(s) generated successfully for design '%s'.", len(result.Quotes), design.DesignName)
	if len(result.Quotes) > 0 {
		log.Info("Automated quotes generated", "count", len(result.Quotes))
		s.publish(ctx, NewEvent(EventQuotesGenerated, design.ID.String(), string(models.DesignStatusQuoted)))
	}
	return result, nil
}

// AcceptQuote turns a pending quote into an order awaiting payment. The
// quote row is locked so two acceptances cannot both create orders.
func (s *QuoteService) AcceptQuote(ctx context.Context, caller *models.User, quoteID uuid.UUID, shippingAddress datatypes.JSON) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, design, err := s.lockQuote(ctx, tx, caller, quoteID)
		if err != nil {
			return err
		}
		if err := orderflow.CanAcceptQuote(quote, design); err != nil {
			return err
		}

		today := dateOf(s.clock())
		delivery := today.AddDate(0, 0, quote.EstimatedLeadTimeDays)
		order = models.Order{
			DesignID:              design.ID,
			AcceptedQuoteID:       quote.ID,
			CustomerID:            design.CustomerID,
			ManufacturerID:        quote.ManufacturerID,
			Status:                models.OrderStatusPendingPayment,
			TotalPriceUSD:         quote.Price,
			EstimatedDeliveryDate: &delivery,
			ShippingAddress:       shippingAddress,
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if err := tx.Model(&models.Quote{}).Where("id = ?", quote.ID).
			Update("status", models.QuoteStatusAccepted).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Quote{}).
			Where("design_id = ? AND id <> ? AND status = ?", design.ID, quote.ID, models.QuoteStatusPending).
			Update("status", models.QuoteStatusRejected).Error; err != nil {
			return err
		}
		return tx.Model(&models.Design{}).Where("id = ?", design.ID).
			Update("status", models.DesignStatusOrdered).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Quote accepted", "quote_id", quoteID, "order_id", order.ID)
	s.publish(ctx, NewEvent(EventOrderCreated, order.ID.String(), string(order.Status)))
	return &order, nil
}

func (s *QuoteService) RejectQuote(ctx context.Context, caller *models.User, quoteID uuid.UUID) (*models.Quote, error) {
	var quote *models.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, _, err := s.lockQuote(ctx, tx, caller, quoteID)
		if err != nil {
			return err
		}
		if err := orderflow.CanRespondToQuote(q); err != nil {
			return err
		}
		if err := tx.Model(&models.Quote{}).Where("id = ?", q.ID).
			Update("status", models.QuoteStatusRejected).Error; err != nil {
			return err
		}
		q.Status = models.QuoteStatusRejected
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// lockQuote loads a quote and its design under row locks and checks that
// caller owns the design.
func (s *QuoteService) lockQuote(ctx context.Context, tx *gorm.DB, caller *models.User, quoteID uuid.UUID) (*models.Quote, *models.Design, error) {
	var quote models.Quote
	if err := config.ForUpdate(tx).First(&quote, "id = ?", quoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrQuoteNotFound
		}
		return nil, nil, err
	}
	design, err := s.loadDesign(ctx, config.ForUpdate(tx), quote.DesignID)
	if err != nil {
		return nil, nil, err
	}
	if !caller.IsStaff && design.CustomerID != caller.ID {
		return nil, nil, forbidden("Only the owner of the design can respond to its quotes.")
	}
	return &quote, design, nil
}

func (s *QuoteService) loadDesign(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Design, error) {
	var design models.Design
	if err := db.WithContext(ctx).First(&design, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDesignNotFound
		}
		return nil, err
	}
	return &design, nil
}

func (s *QuoteService) loadProfile(ctx context.Context, userID uint) (*models.ManufacturerProfile, error) {
	var profile models.ManufacturerProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *QuoteService) publish(ctx context.Context, evt Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("Failed to publish event", "event", evt.Type, "error", err)
	}
}

// pricingInput assembles engine input; a missing profile prices with
// empty capabilities and the default markup.
func pricingInput(design *models.Design, profile *models.ManufacturerProfile, quantity int) pricing.Input {
	in := pricing.Input{Quantity: quantity}
	if m, ok := geometry.DecodeMetrics(design.GeometricData); ok {
		in.Metrics = m
	}
	if profile != nil {
		in.Capabilities = pricing.ParseCapabilities(profile.Capabilities)
		in.MarkupFactor = profile.MarkupFactor
	}
	return in
}

// ineligibility explains why a manufacturer cannot auto-quote a design, or
// returns "" when it can.
func ineligibility(design *models.Design, metrics *geometry.Metrics, p models.ManufacturerProfile) string {
	caps := pricing.ParseCapabilities(p.Capabilities)
	if !caps.SupportsMaterial(design.Material) {
		return "material not supported"
	}
	if len(caps.MaxSizeMM) != 3 {
		return "invalid max_size_mm"
	}
	if !pricing.FitsWithin(metrics.BBoxMM, caps.MaxSizeMM) {
		return "design does not fit build envelope"
	}
	if caps.CNC != nil && !*caps.CNC {
		return "cnc explicitly unavailable"
	}
	return ""
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
