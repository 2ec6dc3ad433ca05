// internal/models/verification.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// VerificationRequest is a professional's claim awaiting review. One per user.
type VerificationRequest struct {
	BaseModel
	UserID           uuid.UUID      `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	ProfessionalID   string         `json:"professional_id" gorm:"size:100;not null"`
	ProfessionalType string         `json:"professional_type" gorm:"size:50;not null"`
	Notes            string         `json:"notes,omitempty" gorm:"type:text"`
	EvidenceKeys     pq.StringArray `json:"evidence_keys" gorm:"type:text[]"`
	Status           RequestStatus  `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	ReviewedByID     *uuid.UUID     `json:"reviewed_by_id,omitempty" gorm:"type:uuid"`
	ReviewedAt       *time.Time     `json:"reviewed_at,omitempty"`
	ReviewNote       string         `json:"review_note,omitempty" gorm:"type:text"`

	// Presigned download links, filled in for reviewers.
	EvidenceURLs []string `json:"evidence_urls,omitempty" gorm:"-"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// PeerVerification records one professional vouching for another with a bond.
type PeerVerification struct {
	BaseModel
	VerifierID      uuid.UUID              `json:"verifier_id" gorm:"type:uuid;not null;index"`
	VerifiedID      uuid.UUID              `json:"verified_id" gorm:"type:uuid;not null;index"`
	RequestID       uuid.UUID              `json:"request_id" gorm:"type:uuid;not null;index"`
	BondAmount      int                    `json:"bond_amount" gorm:"not null"`
	BondLockedUntil time.Time              `json:"bond_locked_until" gorm:"not null"`
	BondStatus      BondStatus             `json:"bond_status" gorm:"type:varchar(20);default:'LOCKED';index"`
	Status          PeerVerificationStatus `json:"status" gorm:"type:varchar(20);default:'ACTIVE';index"`
	ReleasedAt      *time.Time             `json:"released_at,omitempty"`
	ForfeitedAt     *time.Time             `json:"forfeited_at,omitempty"`
	ForfeitReason   string                 `json:"forfeit_reason,omitempty" gorm:"type:text"`
}
