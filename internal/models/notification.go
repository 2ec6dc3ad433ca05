// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationRegistrationConfirmed NotificationType = "REGISTRATION_CONFIRMED"
	NotificationRegistrationDisputed  NotificationType = "REGISTRATION_DISPUTED"
	NotificationRegistrationFailed    NotificationType = "REGISTRATION_FAILED"
	NotificationVerificationApproved  NotificationType = "VERIFICATION_APPROVED"
	NotificationVerificationRejected  NotificationType = "VERIFICATION_REJECTED"
	NotificationBondForfeited         NotificationType = "BOND_FORFEITED"
	NotificationCreditsGranted        NotificationType = "CREDITS_GRANTED"
)

type Notification struct {
	BaseModel
	UserID  uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Type    NotificationType `json:"type" gorm:"type:varchar(50);not null"`
	Title   string           `json:"title" gorm:"size:255;not null"`
	Message string           `json:"message" gorm:"type:text"`
	Data    JSONB            `json:"data,omitempty" gorm:"type:jsonb"`
	ReadAt  *time.Time       `json:"read_at,omitempty"`
}
