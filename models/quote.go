package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteStatus is the lifecycle of a manufacturer's offer
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// Quote is a manufacturer's price and lead-time offer against a design.
// One quote per (design, manufacturer) pair.
type Quote struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DesignID              uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_quotes_design_manufacturer" json:"design_id"`
	Design                Design          `gorm:"foreignKey:DesignID" json:"-"`
	ManufacturerID        uint            `gorm:"not null;uniqueIndex:idx_quotes_design_manufacturer;index" json:"manufacturer_id"`
	Manufacturer          User            `gorm:"foreignKey:ManufacturerID" json:"manufacturer"`
	Price                 decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	EstimatedLeadTimeDays int             `gorm:"not null;check:estimated_lead_time_days >= 0" json:"estimated_lead_time_days"`
	Notes                 string          `gorm:"type:text" json:"notes"`
	Status                QuoteStatus     `gorm:"not null;default:'pending';index" json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Quote model
func (Quote) TableName() string {
	return "quotes"
}

// BeforeCreate assigns a UUID when none was set
func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
