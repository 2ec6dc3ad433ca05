// internal/services/admin_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/idsee/registry-backend/internal/metrics"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

const maxAdminRegistrations = 100

type AdminService struct {
	store    repository.Store
	ledger   *LedgerService
	peers    *PeerVerificationService
	anchor   *AnchorService
	notifier *NotificationService
	metrics  *metrics.Metrics
	now      func() time.Time
}

type AdminUserFilter struct {
	Role   models.Role
	Status models.VerificationStatus
	Page   repository.Page
}

type SetVerificationStatusRequest struct {
	Status models.VerificationStatus `json:"status" validate:"required,oneof=VERIFIED REJECTED"`
	Reason string                    `json:"reason,omitempty" validate:"max=1000"`
}

type SetSuspensionRequest struct {
	Suspended bool `json:"suspended"`
}

type GrantCreditsRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Amount int       `json:"amount" validate:"required,gt=0"`
	Reason string    `json:"reason" validate:"required,max=500"`
}

type ForfeitBondRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func NewAdminService(store repository.Store, ledger *LedgerService, peers *PeerVerificationService, anchor *AnchorService, notifier *NotificationService, m *metrics.Metrics) *AdminService {
	return &AdminService{
		store:    store,
		ledger:   ledger,
		peers:    peers,
		anchor:   anchor,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// Dashboard Statistics
func (s *AdminService) Stats(ctx context.Context) (*models.RegistryStats, error) {
	stats := &models.RegistryStats{AnchorMode: s.anchor.Mode()}
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		if stats.Users, err = tx.Users().Count(ctx); err != nil {
			return err
		}
		if stats.Animals, err = tx.Animals().Count(ctx); err != nil {
			return err
		}
		_, stats.PendingVerifications, err = tx.Users().List(ctx, repository.UserFilter{
			Status: models.VerificationStatusPending,
			Page:   repository.Page{Limit: 1},
		})
		if err != nil {
			return err
		}
		if stats.OpenRequests, err = tx.VerificationRequests().CountPending(ctx); err != nil {
			return err
		}
		stats.TotalCredits, err = tx.Users().SumCredits(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return stats, nil
}

// User Management
func (s *AdminService) ListUsers(ctx context.Context, filter AdminUserFilter) ([]models.User, int64, error) {
	var users []models.User
	var total int64
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		users, total, err = tx.Users().List(ctx, repository.UserFilter{
			Role:   filter.Role,
			Status: filter.Status,
			Page:   filter.Page,
		})
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (s *AdminService) PendingUsers(ctx context.Context) ([]models.User, error) {
	users, _, err := s.ListUsers(ctx, AdminUserFilter{Status: models.VerificationStatusPending})
	return users, err
}

// SetVerificationStatus is the administrator verification path. A pending
// verification request of the user is closed with the same decision.
func (s *AdminService) SetVerificationStatus(ctx context.Context, admin models.Actor, userID uuid.UUID, req *SetVerificationStatusRequest) (*models.User, error) {
	if req.Status != models.VerificationStatusVerified && req.Status != models.VerificationStatusRejected {
		return nil, ErrInvalidStatus
	}

	var updated *models.User
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}

		now := s.now()
		reviewer := admin.ID
		user.VerificationStatus = req.Status
		if req.Status == models.VerificationStatusVerified {
			user.VerifiedByID = &reviewer
			user.VerifiedAt = &now
		}
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		request, err := tx.VerificationRequests().GetByUserID(ctx, userID)
		if err == nil && request.Status == models.RequestStatusPending {
			request.Status = models.RequestStatusApproved
			if req.Status == models.VerificationStatusRejected {
				request.Status = models.RequestStatusRejected
			}
			request.ReviewedByID = &reviewer
			request.ReviewedAt = &now
			request.ReviewNote = req.Reason
			if err := tx.VerificationRequests().Update(ctx, request); err != nil {
				return fmt.Errorf("failed to close verification request: %w", err)
			}
		}

		if err := s.notifier.VerificationDecidedTx(ctx, tx, user.ID, req.Status, req.Reason); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"status":  req.Status,
		"admin":   admin.ID,
	}).Info("Verification status set by admin")
	return updated, nil
}

func (s *AdminService) SetSuspension(ctx context.Context, admin models.Actor, userID uuid.UUID, suspended bool) (*models.User, error) {
	if userID == admin.ID {
		return nil, ErrForbidden
	}

	var updated *models.User
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		user.IsSuspended = suspended
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"suspended": suspended,
		"admin":     admin.ID,
	}).Warn("User suspension changed")
	return updated, nil
}

// GrantCredits adds credits with a Refund entry described "Admin: <reason>".
func (s *AdminService) GrantCredits(ctx context.Context, admin models.Actor, req *GrantCreditsRequest) (*Balance, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if err := s.ledger.CreditTx(ctx, tx, req.UserID, req.Amount, models.CreditKindRefund, "Admin: "+reason); err != nil {
			return err
		}
		return s.notifier.CreditsGrantedTx(ctx, tx, req.UserID, req.Amount, reason)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntry(string(models.CreditKindRefund))
	logrus.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"amount":  req.Amount,
		"admin":   admin.ID,
	}).Info("Credits granted")
	return s.ledger.Balance(ctx, req.UserID)
}

func (s *AdminService) ForfeitBond(ctx context.Context, admin models.Actor, verificationID uuid.UUID, reason string) (*models.PeerVerification, error) {
	return s.peers.ForfeitBond(ctx, admin, verificationID, reason)
}

// ListRegistrations returns at most 100 registrations, newest first.
func (s *AdminService) ListRegistrations(ctx context.Context, status models.RegistrationStatus) ([]RegistrationView, error) {
	var views []RegistrationView
	err := s.store.View(ctx, func(tx repository.Tx) error {
		regs, err := tx.Registrations().List(ctx, status, maxAdminRegistrations)
		if err != nil {
			return err
		}
		views = withSubmitters(ctx, tx, regs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return views, nil
}
