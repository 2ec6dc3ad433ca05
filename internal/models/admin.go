// internal/models/admin.go
package models

import (
	"github.com/google/uuid"
)

type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   *uuid.UUID `json:"resource_id" gorm:"type:uuid;index"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
	StatusCode   int        `json:"status_code"`
}

// RegistryStats is the admin dashboard summary.
type RegistryStats struct {
	Users                int64  `json:"users"`
	Animals              int64  `json:"animals"`
	PendingVerifications int64  `json:"pending_verifications"`
	OpenRequests         int64  `json:"open_requests"`
	TotalCredits         int64  `json:"total_credits"`
	AnchorMode           string `json:"anchor_mode"`
}
