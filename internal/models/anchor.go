// internal/models/anchor.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AnchorTask is a durable request to anchor a registration's data hash.
type AnchorTask struct {
	BaseModel
	RegistrationID uuid.UUID        `json:"registration_id" gorm:"type:uuid;uniqueIndex;not null"`
	Digest         string           `json:"digest" gorm:"size:64;not null"`
	Status         AnchorTaskStatus `json:"status" gorm:"type:varchar(20);default:'QUEUED';index"`
	Attempts       int              `json:"attempts" gorm:"default:0"`
	NextAttemptAt  time.Time        `json:"next_attempt_at" gorm:"index"`
	ClaimedAt      *time.Time       `json:"claimed_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	LastError      string           `json:"last_error,omitempty" gorm:"type:text"`
}
