// internal/models/animal.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Animal is identified only by the hash of its normalized chip number.
type Animal struct {
	BaseModel
	ChipHash       string          `json:"chip_hash" gorm:"size:64;uniqueIndex;not null"`
	Species        string          `json:"species" gorm:"size:50;not null"`
	Breed          string          `json:"breed,omitempty" gorm:"size:100"`
	BirthDate      *datatypes.Date `json:"birth_date,omitempty"`
	MotherChipHash *string         `json:"mother_chip_hash,omitempty" gorm:"size:64;index"`
}

func (a *Animal) MotherKnown() bool {
	return a.MotherChipHash != nil && *a.MotherChipHash != ""
}

type Registration struct {
	BaseModel
	UserID                uuid.UUID          `json:"user_id" gorm:"type:uuid;not null;index"`
	AnimalID              uuid.UUID          `json:"animal_id" gorm:"type:uuid;not null;index"`
	Payload               datatypes.JSON     `json:"payload" gorm:"not null"`
	DataHash              string             `json:"data_hash" gorm:"size:64;not null"`
	ExternalReference     *string            `json:"external_reference,omitempty" gorm:"size:255"`
	Status                RegistrationStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	BreederProfessionalID string             `json:"breeder_professional_id,omitempty" gorm:"size:100;index"`
	BreederConfirmed      bool               `json:"breeder_confirmed" gorm:"default:false"`
	BreederConfirmedAt    *time.Time         `json:"breeder_confirmed_at,omitempty"`
	BreederUserID         *uuid.UUID         `json:"breeder_user_id,omitempty" gorm:"type:uuid;index"`
	DisputeReason         string             `json:"dispute_reason,omitempty" gorm:"type:text"`
	DisputedAt            *time.Time         `json:"disputed_at,omitempty"`
	ConfirmedAt           *time.Time         `json:"confirmed_at,omitempty"`
	FailedAt              *time.Time         `json:"failed_at,omitempty"`

	// Relationships
	Animal *Animal `json:"animal,omitempty" gorm:"foreignKey:AnimalID"`
}

// RegistrationPayload is the canonical record whose hash is stored and anchored.
type RegistrationPayload struct {
	ChipHash     string    `json:"chipHash"`
	Species      string    `json:"species"`
	Breed        string    `json:"breed"`
	RegisteredBy uuid.UUID `json:"registeredBy"`
	Timestamp    time.Time `json:"timestamp"`
}

type HealthRecord struct {
	BaseModel
	AnimalID     uuid.UUID        `json:"animal_id" gorm:"type:uuid;not null;index"`
	RecordedByID uuid.UUID        `json:"recorded_by_id" gorm:"type:uuid;not null;index"`
	RecordType   HealthRecordType `json:"record_type" gorm:"type:varchar(20);not null"`
	RecordHash   string           `json:"record_hash" gorm:"size:64;not null"`
}
