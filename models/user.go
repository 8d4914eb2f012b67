package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleCustomer     = "customer"
	RoleManufacturer = "manufacturer"
)

// User represents a marketplace account (customer or manufacturer)
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Auth0ID     string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name        string         `gorm:"not null" json:"name"`
	Email       string         `gorm:"uniqueIndex;not null" json:"email"`
	Role        string         `gorm:"not null;default:'customer'" json:"role"` // "customer" or "manufacturer"
	IsStaff     bool           `gorm:"not null;default:false" json:"is_staff"`
	CompanyName *string        `json:"company_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsManufacturer reports whether the user sells manufacturing capacity
func (u *User) IsManufacturer() bool {
	return u.Role == RoleManufacturer
}

// IsCustomer reports whether the user buys parts
func (u *User) IsCustomer() bool {
	return u.Role == RoleCustomer
}

// DisplayName is the company name when set, otherwise the email
func (u *User) DisplayName() string {
	if u.CompanyName != nil && *u.CompanyName != "" {
		return *u.CompanyName
	}
	return u.Email
}
