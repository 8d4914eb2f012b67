package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the scheduling state of a background job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// AnalysisJob is one scheduled invocation of a design task. Attempts counts
// executions; a failed attempt is requeued while Attempts <= MaxRetries.
type AnalysisJob struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TaskName   string     `gorm:"not null;index" json:"task_name"`
	DesignID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"design_id"`
	Status     JobStatus  `gorm:"not null;default:'queued';index" json:"status"`
	Attempts   int        `gorm:"not null;default:0" json:"attempts"`
	MaxRetries int        `gorm:"not null" json:"max_retries"`
	RunAfter   time.Time  `gorm:"not null;index" json:"run_after"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	LastError  string     `gorm:"type:text" json:"last_error,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the AnalysisJob model
func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// BeforeCreate assigns a UUID when none was set
func (j *AnalysisJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
