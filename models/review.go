package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a customer's 1-5 rating of a manufacturer, optionally tied to
// one of their orders with that manufacturer
type Review struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID     uint       `gorm:"not null;index" json:"customer_id"`
	Customer       User       `gorm:"foreignKey:CustomerID" json:"-"`
	ManufacturerID uint       `gorm:"not null;index" json:"manufacturer_id"`
	Manufacturer   User       `gorm:"foreignKey:ManufacturerID" json:"-"`
	OrderID        *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	Rating         int        `gorm:"not null;check:rating BETWEEN 1 AND 5" json:"rating"`
	Comment        *string    `gorm:"type:text" json:"comment"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	CustomerDisplayName string `gorm:"-" json:"customer_display_name"`
}

// TableName specifies the table name for the Review model
func (Review) TableName() string {
	return "reviews"
}

// BeforeCreate assigns a UUID when none was set
func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
