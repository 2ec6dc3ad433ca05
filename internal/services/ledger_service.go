// internal/services/ledger_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/idsee/registry-backend/internal/metrics"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

// LedgerService owns user balances. Every mutation appends exactly one
// CreditTransaction in the same unit of work, and every mutation keeps
// LockedCredits <= Credits.
//
// The ...Tx variants run inside a caller's unit of work so a balance change can
// be committed together with the state change it pays for.
type LedgerService struct {
	store   repository.Store
	metrics *metrics.Metrics
}

type Balance struct {
	Credits       int `json:"credits"`
	LockedCredits int `json:"locked_credits"`
	Available     int `json:"available"`
}

func NewLedgerService(store repository.Store, m *metrics.Metrics) *LedgerService {
	return &LedgerService{
		store:   store,
		metrics: m,
	}
}

func (s *LedgerService) Balance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	var balance *Balance
	err := s.store.View(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		balance = &Balance{
			Credits:       user.Credits,
			LockedCredits: user.LockedCredits,
			Available:     user.AvailableCredits(),
		}
		return nil
	})
	return balance, err
}

func (s *LedgerService) Transactions(ctx context.Context, userID uuid.UUID, page repository.Page) ([]models.CreditTransaction, error) {
	var entries []models.CreditTransaction
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		entries, err = tx.Credits().ListByUser(ctx, userID, page)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return entries, nil
}

// LockCredits reserves amount of the user's available balance.
func (s *LedgerService) LockCredits(ctx context.Context, userID uuid.UUID, amount int, description string) error {
	return s.run(ctx, models.CreditKindBondLocked, func(tx repository.Tx) error {
		return s.LockTx(ctx, tx, userID, amount, description)
	})
}

// ReleaseCredits returns amount of locked credits to the available balance.
func (s *LedgerService) ReleaseCredits(ctx context.Context, userID uuid.UUID, amount int, description string) error {
	return s.run(ctx, models.CreditKindBondReleased, func(tx repository.Tx) error {
		return s.ReleaseTx(ctx, tx, userID, amount, description)
	})
}

// ForfeitCredits removes amount of locked credits from the balance entirely.
func (s *LedgerService) ForfeitCredits(ctx context.Context, userID uuid.UUID, amount int, description string) error {
	return s.run(ctx, models.CreditKindBondForfeited, func(tx repository.Tx) error {
		return s.ForfeitTx(ctx, tx, userID, amount, description)
	})
}

// Debit spends amount of the available balance.
func (s *LedgerService) Debit(ctx context.Context, userID uuid.UUID, amount int, description string) error {
	return s.run(ctx, models.CreditKindUsage, func(tx repository.Tx) error {
		return s.DebitTx(ctx, tx, userID, amount, description)
	})
}

// Credit adds amount to the balance. kind must be Purchase or Refund.
func (s *LedgerService) Credit(ctx context.Context, userID uuid.UUID, amount int, kind models.CreditTransactionKind, description string) error {
	return s.run(ctx, kind, func(tx repository.Tx) error {
		return s.CreditTx(ctx, tx, userID, amount, kind, description)
	})
}

func (s *LedgerService) run(ctx context.Context, kind models.CreditTransactionKind, fn func(tx repository.Tx) error) error {
	if err := s.store.RunInTx(ctx, fn); err != nil {
		return err
	}
	s.metrics.LedgerEntry(string(kind))
	return nil
}

func (s *LedgerService) LockTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, amount int, description string) error {
	return s.mutate(ctx, tx, userID, amount, func(u *models.User) (*models.CreditTransaction, error) {
		if u.AvailableCredits() < amount {
			return nil, ErrInsufficientCredits
		}
		u.LockedCredits += amount
		return entry(u.ID, -amount, models.CreditKindBondLocked, description), nil
	})
}

func (s *LedgerService) ReleaseTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, amount int, description string) error {
	return s.mutate(ctx, tx, userID, amount, func(u *models.User) (*models.CreditTransaction, error) {
		if u.LockedCredits < amount {
			return nil, ErrNotLocked
		}
		u.LockedCredits -= amount
		return entry(u.ID, amount, models.CreditKindBondReleased, description), nil
	})
}

// ForfeitTx burns locked credits. The available balance does not move, since
// the BondLocked entry already took the amount out of it, so the forfeit entry
// carries a zero amount and the log keeps summing to the available balance.
func (s *LedgerService) ForfeitTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, amount int, description string) error {
	return s.mutate(ctx, tx, userID, amount, func(u *models.User) (*models.CreditTransaction, error) {
		if u.LockedCredits < amount {
			return nil, ErrNotLocked
		}
		u.LockedCredits -= amount
		u.Credits -= amount
		return entry(u.ID, 0, models.CreditKindBondForfeited, description), nil
	})
}

// DebitTx draws from the available balance only, so a usage debit can never
// eat into credits that back a bond.
func (s *LedgerService) DebitTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, amount int, description string) error {
	return s.mutate(ctx, tx, userID, amount, func(u *models.User) (*models.CreditTransaction, error) {
		if u.AvailableCredits() < amount {
			return nil, ErrInsufficientCredits
		}
		u.Credits -= amount
		return entry(u.ID, -amount, models.CreditKindUsage, description), nil
	})
}

func (s *LedgerService) CreditTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, amount int, kind models.CreditTransactionKind, description string) error {
	if kind != models.CreditKindPurchase && kind != models.CreditKindRefund {
		return fmt.Errorf("credit kind %s is not a top-up", kind)
	}
	return s.mutate(ctx, tx, userID, amount, func(u *models.User) (*models.CreditTransaction, error) {
		u.Credits += amount
		return entry(u.ID, amount, kind, description), nil
	})
}

// AuditTx appends a zero-amount entry that documents a balance change made by
// another entry in the same unit of work.
func (s *LedgerService) AuditTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, kind models.CreditTransactionKind, description string) error {
	if err := tx.Credits().Create(ctx, entry(userID, 0, kind, description)); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *LedgerService) mutate(ctx context.Context, tx repository.Tx, userID uuid.UUID, amount int, apply func(u *models.User) (*models.CreditTransaction, error)) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	user, err := tx.Users().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return mapNotFound(err, ErrUserNotFound)
	}

	logEntry, err := apply(user)
	if err != nil {
		return err
	}

	if err := tx.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if err := tx.Credits().Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func entry(userID uuid.UUID, amount int, kind models.CreditTransactionKind, description string) *models.CreditTransaction {
	return &models.CreditTransaction{
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
	}
}

// mapNotFound swaps repository.ErrNotFound for the domain error and wraps
// anything else.
func mapNotFound(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("repository failure: %w", err)
}
