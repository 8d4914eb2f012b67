package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DesignStatus tracks a design from upload through ordering
type DesignStatus string

const (
	DesignStatusPendingAnalysis  DesignStatus = "pending_analysis"
	DesignStatusAnalysisComplete DesignStatus = "analysis_complete"
	DesignStatusAnalysisFailed   DesignStatus = "analysis_failed"
	DesignStatusQuoted           DesignStatus = "quoted"
	DesignStatusOrdered          DesignStatus = "ordered"
)

// Design is a customer-uploaded CAD file plus its analysis state.
// GeometricData stays null until analysis finishes, then holds either the
// metrics document or an error document with an "error" key.
type Design struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID    uint           `gorm:"not null;index" json:"customer_id"`
	Customer      User           `gorm:"foreignKey:CustomerID" json:"-"`
	DesignName    string         `gorm:"not null" json:"design_name"`
	FileKey       string         `gorm:"not null" json:"file_key"`       // object storage key
	FileExtension string         `gorm:"not null" json:"file_extension"` // declared extension, e.g. ".stl"
	Material      string         `json:"material"`
	Quantity      int            `gorm:"not null;default:1;check:quantity > 0" json:"quantity"`
	Status        DesignStatus   `gorm:"not null;default:'pending_analysis';index" json:"status"`
	GeometricData datatypes.JSON `json:"geometric_data"`
	FileURL       *string        `gorm:"-" json:"file_url,omitempty"` // computed field, presigned URL for the CAD file
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Design model
func (Design) TableName() string {
	return "designs"
}

// BeforeCreate assigns a UUID when none was set
func (d *Design) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// IsQuotable reports whether manufacturers may quote this design
func (d *Design) IsQuotable() bool {
	return d.Status == DesignStatusAnalysisComplete || d.Status == DesignStatusQuoted
}
