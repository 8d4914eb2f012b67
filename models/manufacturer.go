package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ManufacturerProfile holds the capability and pricing document of a manufacturer
type ManufacturerProfile struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	UserID         uint             `gorm:"uniqueIndex;not null" json:"user_id"`
	User           User             `gorm:"foreignKey:UserID" json:"-"`
	Location       string           `json:"location"`
	Capabilities   datatypes.JSON   `json:"capabilities"`
	MarkupFactor   decimal.Decimal  `gorm:"type:decimal(6,3);not null;default:1.2" json:"markup_factor"`
	Certifications datatypes.JSON   `json:"certifications"`
	AverageRating  *decimal.Decimal `gorm:"type:decimal(2,1)" json:"average_rating,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName specifies the table name for the ManufacturerProfile model
func (ManufacturerProfile) TableName() string {
	return "manufacturer_profiles"
}
