// internal/models/credit.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditTransaction is an immutable ledger entry. Rows are only ever inserted.
type CreditTransaction struct {
	ID          uuid.UUID             `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID      uuid.UUID             `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount      int                   `json:"amount" gorm:"not null"`
	Kind        CreditTransactionKind `json:"kind" gorm:"type:varchar(20);not null;index"`
	Description string                `json:"description" gorm:"type:text"`
	CreatedAt   time.Time             `json:"created_at" gorm:"index"`
}

// CreditBundle is a purchasable package of credits. Prices are in euro cents.
type CreditBundle struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	PriceCents int    `json:"price_cents"`
}

var CreditBundles = []CreditBundle{
	{ID: "starter", Name: "Starter", Credits: 10, PriceCents: 900},
	{ID: "professional", Name: "Professional", Credits: 50, PriceCents: 4000},
	{ID: "enterprise", Name: "Enterprise", Credits: 200, PriceCents: 14000},
}

func FindCreditBundle(id string) (CreditBundle, bool) {
	for _, b := range CreditBundles {
		if b.ID == id {
			return b, true
		}
	}
	return CreditBundle{}, false
}

func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
