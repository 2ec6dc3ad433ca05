// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the primary key client side so rows created inside a
// transaction can be referenced before commit.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type Role string

const (
	RoleBuyer   Role = "BUYER"
	RoleBreeder Role = "BREEDER"
	RoleVet     Role = "VET"
	RoleChipper Role = "CHIPPER"
	RoleAdmin   Role = "ADMIN"
)

// IsProfessional reports whether the role may register animals and vouch for peers.
func (r Role) IsProfessional() bool {
	return r == RoleBreeder || r == RoleVet || r == RoleChipper
}

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "PENDING"
	VerificationStatusVerified VerificationStatus = "VERIFIED"
	VerificationStatusRejected VerificationStatus = "REJECTED"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "PENDING"
	RegistrationStatusConfirmed RegistrationStatus = "CONFIRMED"
	RegistrationStatusFailed    RegistrationStatus = "FAILED"
	RegistrationStatusDisputed  RegistrationStatus = "DISPUTED"
)

type CreditTransactionKind string

const (
	CreditKindPurchase      CreditTransactionKind = "PURCHASE"
	CreditKindUsage         CreditTransactionKind = "USAGE"
	CreditKindRefund        CreditTransactionKind = "REFUND"
	CreditKindBondLocked    CreditTransactionKind = "BOND_LOCKED"
	CreditKindBondReleased  CreditTransactionKind = "BOND_RELEASED"
	CreditKindBondForfeited CreditTransactionKind = "BOND_FORFEITED"
)

type BondStatus string

const (
	BondStatusLocked    BondStatus = "LOCKED"
	BondStatusReleased  BondStatus = "RELEASED"
	BondStatusForfeited BondStatus = "FORFEITED"
)

type PeerVerificationStatus string

const (
	PeerVerificationStatusActive    PeerVerificationStatus = "ACTIVE"
	PeerVerificationStatusCompleted PeerVerificationStatus = "COMPLETED"
)

type AnchorTaskStatus string

const (
	AnchorTaskStatusQueued     AnchorTaskStatus = "QUEUED"
	AnchorTaskStatusProcessing AnchorTaskStatus = "PROCESSING"
	AnchorTaskStatusDone       AnchorTaskStatus = "DONE"
	AnchorTaskStatusFailed     AnchorTaskStatus = "FAILED"
)

type HealthRecordType string

const (
	HealthRecordVaccination HealthRecordType = "VACCINATION"
	HealthRecordHealthCheck HealthRecordType = "HEALTH_CHECK"
	HealthRecordGeneticTest HealthRecordType = "GENETIC_TEST"
	HealthRecordTreatment   HealthRecordType = "TREATMENT"
	HealthRecordSurgery     HealthRecordType = "SURGERY"
)

// Valid reports whether t is one of the known record types.
func (t HealthRecordType) Valid() bool {
	switch t {
	case HealthRecordVaccination, HealthRecordHealthCheck, HealthRecordGeneticTest,
		HealthRecordTreatment, HealthRecordSurgery:
		return true
	}
	return false
}
