package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus is a fulfilment state; transitions are governed by the orderflow package
type OrderStatus string

const (
	OrderStatusPendingManufacturerConfirmation OrderStatus = "pending_manuf_confirm"
	OrderStatusPendingPayment                  OrderStatus = "pending_payment"
	OrderStatusProcessing                      OrderStatus = "processing"
	OrderStatusPaymentFailed                   OrderStatus = "payment_failed"
	OrderStatusInProduction                    OrderStatus = "in_production"
	OrderStatusShipped                         OrderStatus = "shipped"
	OrderStatusCompleted                       OrderStatus = "completed"
	OrderStatusCancelledByCustomer             OrderStatus = "cancelled_customer"
	OrderStatusCancelledByManufacturer         OrderStatus = "cancelled_manufacturer"
)

// Order is the fulfilment record created from exactly one accepted quote
type Order struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DesignID              uuid.UUID       `gorm:"type:uuid;not null;index" json:"design_id"`
	Design                Design          `gorm:"foreignKey:DesignID" json:"-"`
	AcceptedQuoteID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"accepted_quote_id"`
	AcceptedQuote         Quote           `gorm:"foreignKey:AcceptedQuoteID" json:"-"`
	CustomerID            uint            `gorm:"not null;index" json:"customer_id"`
	Customer              User            `gorm:"foreignKey:CustomerID" json:"-"`
	ManufacturerID        uint            `gorm:"not null;index" json:"manufacturer_id"`
	Manufacturer          User            `gorm:"foreignKey:ManufacturerID" json:"-"`
	Status                OrderStatus     `gorm:"not null;default:'pending_payment';index" json:"status"`
	TotalPriceUSD         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"order_total_price_usd"`
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date"`
	ActualShipDate        *time.Time      `json:"actual_ship_date"`
	ShippingAddress       datatypes.JSON  `json:"shipping_address"`
	TrackingNumber        *string         `json:"tracking_number"`
	ShippingCarrier       *string         `json:"shipping_carrier"`
	CancellationReason    *string         `gorm:"type:text" json:"cancellation_reason"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns a UUID when none was set
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsParticipant reports whether userID is the order's customer or manufacturer
func (o *Order) IsParticipant(userID uint) bool {
	return o.CustomerID == userID || o.ManufacturerID == userID
}
