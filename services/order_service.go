package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/orderflow"
	"gorm.io/gorm"
)

// OrderService reads and mutates orders on behalf of a participant. All
// writes go through the orderflow state machine under a row lock.
type OrderService struct {
	db      *gorm.DB
	gateway PaymentGateway
	events  EventBus
	log     *logger.Logger
	clock   func() time.Time
}

func NewOrderService(db *gorm.DB, gateway PaymentGateway, events EventBus, baseLog *logger.Logger) *OrderService {
	if events == nil {
		events = NoopEventBus{}
	}
	return &OrderService{
		db:      db,
		gateway: gateway,
		events:  events,
		log:     baseLog.With("service", "OrderService"),
		clock:   time.Now,
	}
}

// PaymentResult reports the gateway decision and the resulting order
type PaymentResult struct {
	Order    *models.Order
	Approved bool
}

// ListOrders returns every order for staff, otherwise the orders where the
// caller is customer or manufacturer.
func (s *OrderService) ListOrders(ctx context.Context, caller *models.User) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	switch {
	case caller.IsStaff:
	case caller.IsManufacturer():
		q = q.Where("manufacturer_id = ?", caller.ID)
	default:
		q = q.Where("customer_id = ?", caller.ID)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, caller *models.User, id uuid.UUID) (*models.Order, error) {
	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if orderflow.RoleOn(caller, order) == orderflow.RoleNone {
		return nil, forbidden("You do not have permission to view this order.")
	}
	return order, nil
}

// AuthorizeFields checks that the caller's role on the order may write
// every named field
func (s *OrderService) AuthorizeFields(ctx context.Context, caller *models.User, id uuid.UUID, fields []string) error {
	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	return orderflow.CheckFields(orderflow.RoleOn(caller, order), fields)
}

// UpdateOrder applies a partial update as the caller's role on the order
func (s *OrderService) UpdateOrder(ctx context.Context, caller *models.User, id uuid.UUID, req orderflow.UpdateRequest) (*models.Order, error) {
	var (
		order    *models.Order
		previous models.OrderStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(config.ForUpdate(tx), id)
		if err != nil {
			return err
		}
		role := orderflow.RoleOn(caller, o)
		if role == orderflow.RoleNone {
			return forbidden("You do not have permission to modify this order.")
		}

		previous = o.Status
		if err := orderflow.Apply(o, role, req, s.clock()); err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
			"status":              o.Status,
			"tracking_number":     o.TrackingNumber,
			"shipping_carrier":    o.ShippingCarrier,
			"actual_ship_date":    o.ActualShipDate,
			"shipping_address":    o.ShippingAddress,
			"cancellation_reason": o.CancellationReason,
		}).Error; err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.Status != previous {
		s.log.Info("Order status changed", "order_id", order.ID, "from", previous, "to", order.Status)
		s.publish(ctx, NewEvent(EventOrderStatusChanged, order.ID.String(), string(order.Status)))
	}
	return order, nil
}

// ProcessPayment charges token for an order awaiting payment. Only the
// order's customer or staff may pay. A declined charge is not an error; it
// moves the order to payment_failed.
func (s *OrderService) ProcessPayment(ctx context.Context, caller *models.User, id uuid.UUID, token string) (*PaymentResult, error) {
	var result PaymentResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(config.ForUpdate(tx), id)
		if err != nil {
			return err
		}
		if !caller.IsStaff && o.CustomerID != caller.ID {
			return forbidden("You do not have permission to process payment for this order.")
		}
		if o.Status != models.OrderStatusPendingPayment {
			return orderflow.ApplyPayment(o, false)
		}

		approved, err := s.gateway.Charge(ctx, token)
		if err != nil {
			return fmt.Errorf("payment gateway error: %w", err)
		}
		if err := orderflow.ApplyPayment(o, approved); err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", o.ID).
			Update("status", o.Status).Error; err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		result = PaymentResult{Order: o, Approved: approved}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Payment processed", "order_id", id, "approved", result.Approved)
	s.publish(ctx, NewEvent(EventOrderStatusChanged, id.String(), string(result.Order.Status)))
	return &result, nil
}

func (s *OrderService) publish(ctx context.Context, evt Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("Failed to publish event", "event", evt.Type, "error", err)
	}
}

func loadOrder(db *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}
