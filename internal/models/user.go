// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Email              string             `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash       string             `json:"-" gorm:"size:255;not null"`
	Role               Role               `json:"role" gorm:"type:varchar(20);not null;index"`
	ProfessionalID     *string            `json:"professional_id,omitempty" gorm:"size:100"`
	ProfessionalType   string             `json:"professional_type,omitempty" gorm:"size:50"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"type:varchar(20);default:'PENDING';index"`
	EmailVerified      bool               `json:"email_verified" gorm:"default:false"`
	EmailVerifyToken   *string            `json:"-" gorm:"size:64;index"` // sha256 of the emailed token
	EmailVerifyExpires *time.Time         `json:"-"`
	Credits            int                `json:"credits" gorm:"not null;default:0"`
	LockedCredits      int                `json:"locked_credits" gorm:"not null;default:0"`
	IsSuspended        bool               `json:"is_suspended" gorm:"default:false"`
	VerifiedByID       *uuid.UUID         `json:"verified_by_id,omitempty" gorm:"type:uuid"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerificationBond   int                `json:"verification_bond" gorm:"default:0"`
	LastLoginAt        *time.Time         `json:"last_login_at,omitempty"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// AvailableCredits is the spendable part of the balance.
func (u *User) AvailableCredits() int {
	return u.Credits - u.LockedCredits
}

// ProfessionalNumber returns the professional registration number or "".
func (u *User) ProfessionalNumber() string {
	if u.ProfessionalID == nil {
		return ""
	}
	return *u.ProfessionalID
}

// Actor builds the identity value handed to service operations.
func (u *User) Actor() Actor {
	return Actor{
		ID:                 u.ID,
		Role:               u.Role,
		ProfessionalID:     u.ProfessionalNumber(),
		VerificationStatus: u.VerificationStatus,
		IsSuspended:        u.IsSuspended,
		Credits:            u.Credits,
		LockedCredits:      u.LockedCredits,
	}
}

// Actor is the authenticated caller of a core operation. Services trust it as
// given and never read identity from request-scoped state.
type Actor struct {
	ID                 uuid.UUID
	Role               Role
	ProfessionalID     string
	VerificationStatus VerificationStatus
	IsSuspended        bool
	Credits            int
	LockedCredits      int
}

// IsVerifiedProfessional reports whether the actor may register animals and vouch for peers.
func (a Actor) IsVerifiedProfessional() bool {
	return a.Role.IsProfessional() && a.VerificationStatus == VerificationStatusVerified
}
