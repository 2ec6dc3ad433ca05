// internal/services/credit_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

// CreditService is the account-facing side of the ledger: balances, history
// and bundle purchases. Purchases are only granted when purchaseEnabled is
// set, which is the development setup; there is no payment provider.
type CreditService struct {
	ledger          *LedgerService
	purchaseEnabled bool
}

type PurchaseRequest struct {
	BundleID string `json:"bundle_id" validate:"required"`
}

type PurchaseResult struct {
	Bundle  models.CreditBundle `json:"bundle"`
	Balance *Balance            `json:"balance"`
}

func NewCreditService(ledger *LedgerService, purchaseEnabled bool) *CreditService {
	return &CreditService{
		ledger:          ledger,
		purchaseEnabled: purchaseEnabled,
	}
}

func (s *CreditService) Bundles() []models.CreditBundle {
	return models.CreditBundles
}

func (s *CreditService) Balance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *CreditService) Transactions(ctx context.Context, userID uuid.UUID, page repository.Page) ([]models.CreditTransaction, error) {
	return s.ledger.Transactions(ctx, userID, page)
}

func (s *CreditService) Purchase(ctx context.Context, actor models.Actor, req *PurchaseRequest) (*PurchaseResult, error) {
	bundle, ok := models.FindCreditBundle(req.BundleID)
	if !ok {
		return nil, ErrBundleNotFound
	}
	if !s.purchaseEnabled {
		return nil, ErrPurchaseUnavailable
	}

	description := fmt.Sprintf("Purchase: %s bundle", bundle.Name)
	if err := s.ledger.Credit(ctx, actor.ID, bundle.Credits, models.CreditKindPurchase, description); err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id": actor.ID,
		"bundle":  bundle.ID,
	}).Info("Credits purchased")
	return &PurchaseResult{Bundle: bundle, Balance: balance}, nil
}
