// internal/services/peer_verification_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/metrics"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

const evidenceLinkTTL = 15 * time.Minute

// PeerVerificationService implements professional verification requests and
// the bonded peer-verification protocol. A verified professional vouches for
// a peer by locking a bond that only the voucher can release, and only after
// the lock period.
type PeerVerificationService struct {
	store    repository.Store
	ledger   *LedgerService
	storage  *StorageService
	notifier *NotificationService
	config   config.RegistryConfig
	metrics  *metrics.Metrics
	now      func() time.Time
}

type SubmitVerificationRequest struct {
	ProfessionalID   string `json:"professional_id" validate:"required,max=100"`
	ProfessionalType string `json:"professional_type" validate:"required,max=50"`
	Notes            string `json:"notes,omitempty" validate:"max=2000"`
}

type PeerVerifyResult struct {
	VerificationID  uuid.UUID `json:"verification_id"`
	VerifiedUserID  uuid.UUID `json:"verified_user_id"`
	BondAmount      int       `json:"bond_amount"`
	BondLockedUntil time.Time `json:"bond_locked_until"`
}

func NewPeerVerificationService(store repository.Store, ledger *LedgerService, storage *StorageService, notifier *NotificationService, cfg config.RegistryConfig, m *metrics.Metrics) *PeerVerificationService {
	return &PeerVerificationService{
		store:    store,
		ledger:   ledger,
		storage:  storage,
		notifier: notifier,
		config:   cfg,
		metrics:  m,
		now:      time.Now,
	}
}

// SubmitRequest files the caller's verification request and records the
// claimed professional id on the account. A rejected request is reopened.
func (s *PeerVerificationService) SubmitRequest(ctx context.Context, actor models.Actor, req *SubmitVerificationRequest) (*models.VerificationRequest, error) {
	if !actor.Role.IsProfessional() {
		return nil, ErrInvalidRole
	}
	if actor.VerificationStatus == models.VerificationStatusVerified {
		return nil, ErrAlreadyVerified
	}

	professionalID := strings.TrimSpace(req.ProfessionalID)
	var request *models.VerificationRequest
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, actor.ID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		if !user.EmailVerified {
			return ErrEmailNotVerified
		}
		if user.VerificationStatus == models.VerificationStatusVerified {
			return ErrAlreadyVerified
		}

		owner, err := tx.Users().GetByProfessionalID(ctx, professionalID)
		switch {
		case err == nil && owner.ID != user.ID:
			return ErrDuplicateProfessionalID
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("failed to look up professional id: %w", err)
		}

		existing, err := tx.VerificationRequests().GetByUserID(ctx, user.ID)
		switch {
		case err == nil && existing.Status != models.RequestStatusRejected:
			return ErrDuplicateRequest
		case err == nil:
			existing.ProfessionalID = professionalID
			existing.ProfessionalType = req.ProfessionalType
			existing.Notes = req.Notes
			existing.Status = models.RequestStatusPending
			existing.ReviewedByID = nil
			existing.ReviewedAt = nil
			existing.ReviewNote = ""
			if err := tx.VerificationRequests().Update(ctx, existing); err != nil {
				return fmt.Errorf("failed to reopen verification request: %w", err)
			}
			request = existing
		case errors.Is(err, repository.ErrNotFound):
			request = &models.VerificationRequest{
				UserID:           user.ID,
				ProfessionalID:   professionalID,
				ProfessionalType: req.ProfessionalType,
				Notes:            req.Notes,
				Status:           models.RequestStatusPending,
			}
			if err := tx.VerificationRequests().Create(ctx, request); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return ErrDuplicateRequest
				}
				return fmt.Errorf("failed to create verification request: %w", err)
			}
		default:
			return fmt.Errorf("failed to look up verification request: %w", err)
		}

		user.ProfessionalID = &professionalID
		user.ProfessionalType = req.ProfessionalType
		user.VerificationStatus = models.VerificationStatusPending
		if err := tx.Users().Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateProfessionalID
			}
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// AddEvidence stores a supporting document and attaches its key to the
// caller's pending request.
func (s *PeerVerificationService) AddEvidence(ctx context.Context, actor models.Actor, filename, contentType string, r io.Reader) (*models.VerificationRequest, error) {
	var pending *models.VerificationRequest
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		pending, err = tx.VerificationRequests().GetByUserID(ctx, actor.ID)
		if err != nil {
			return mapNotFound(err, ErrRequestNotFound)
		}
		if pending.Status != models.RequestStatusPending {
			return ErrAlreadyHandled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	object, err := s.storage.StoreEvidence(ctx, actor.ID, filename, contentType, r)
	if err != nil {
		return nil, err
	}

	var updated *models.VerificationRequest
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		request, err := tx.VerificationRequests().GetByIDForUpdate(ctx, pending.ID)
		if err != nil {
			return mapNotFound(err, ErrRequestNotFound)
		}
		if request.Status != models.RequestStatusPending {
			return ErrAlreadyHandled
		}
		request.EvidenceKeys = append(request.EvidenceKeys, object.Key)
		if err := tx.VerificationRequests().Update(ctx, request); err != nil {
			return fmt.Errorf("failed to attach evidence: %w", err)
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListPendingRequests is visible to verified professionals only.
func (s *PeerVerificationService) ListPendingRequests(ctx context.Context, actor models.Actor) ([]models.VerificationRequest, error) {
	if !actor.IsVerifiedProfessional() && actor.Role != models.RoleAdmin {
		return nil, ErrNotVerified
	}

	var out []models.VerificationRequest
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.VerificationRequests().ListPending(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list verification requests: %w", err)
	}

	if s.storage.UsesS3() {
		for i := range out {
			for _, key := range out[i].EvidenceKeys {
				url, err := s.storage.EvidenceURL(key, evidenceLinkTTL)
				if err != nil {
					logrus.WithError(err).WithField("key", key).Warn("Failed to presign evidence link")
					continue
				}
				out[i].EvidenceURLs = append(out[i].EvidenceURLs, url)
			}
		}
	}
	return out, nil
}

// PeerVerify approves requestID on behalf of verifier and locks the bond.
// All effects commit together or not at all.
func (s *PeerVerificationService) PeerVerify(ctx context.Context, verifier models.Actor, requestID uuid.UUID) (*PeerVerifyResult, error) {
	if !verifier.IsVerifiedProfessional() {
		return nil, ErrNotVerified
	}
	if verifier.IsSuspended {
		return nil, ErrSuspended
	}

	bond := s.config.VerificationBond
	var result PeerVerifyResult
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		voucher, err := tx.Users().GetByIDForUpdate(ctx, verifier.ID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		if voucher.VerificationStatus != models.VerificationStatusVerified || !voucher.Role.IsProfessional() {
			return ErrNotVerified
		}
		if voucher.IsSuspended {
			return ErrSuspended
		}
		if voucher.AvailableCredits() < bond {
			return ErrInsufficientBond
		}

		request, err := tx.VerificationRequests().GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return mapNotFound(err, ErrRequestNotFound)
		}
		if request.Status != models.RequestStatusPending {
			return ErrAlreadyHandled
		}
		if request.UserID == voucher.ID {
			return ErrSelfVerification
		}

		if err := s.ledger.LockTx(ctx, tx, voucher.ID, bond, fmt.Sprintf("Verification bond for user %s", request.UserID)); err != nil {
			if errors.Is(err, ErrInsufficientCredits) {
				return ErrInsufficientBond
			}
			return err
		}

		now := s.now()
		verification := &models.PeerVerification{
			VerifierID:      voucher.ID,
			VerifiedID:      request.UserID,
			RequestID:       request.ID,
			BondAmount:      bond,
			BondLockedUntil: now.Add(s.config.BondLockPeriod()),
			BondStatus:      models.BondStatusLocked,
			Status:          models.PeerVerificationStatusActive,
		}
		if err := tx.PeerVerifications().Create(ctx, verification); err != nil {
			return fmt.Errorf("failed to create peer verification: %w", err)
		}

		reviewer := voucher.ID
		request.Status = models.RequestStatusApproved
		request.ReviewedByID = &reviewer
		request.ReviewedAt = &now
		if err := tx.VerificationRequests().Update(ctx, request); err != nil {
			return fmt.Errorf("failed to approve verification request: %w", err)
		}

		target, err := tx.Users().GetByIDForUpdate(ctx, request.UserID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		target.VerificationStatus = models.VerificationStatusVerified
		target.VerifiedByID = &reviewer
		target.VerifiedAt = &now
		target.VerificationBond = bond
		if err := tx.Users().Update(ctx, target); err != nil {
			return fmt.Errorf("failed to verify user: %w", err)
		}

		if err := s.ledger.AuditTx(ctx, tx, voucher.ID, models.CreditKindBondLocked,
			fmt.Sprintf("Bond for verification of user %s", target.ID)); err != nil {
			return err
		}
		if err := s.notifier.VerificationDecidedTx(ctx, tx, target.ID, models.VerificationStatusVerified, ""); err != nil {
			return err
		}

		result = PeerVerifyResult{
			VerificationID:  verification.ID,
			VerifiedUserID:  target.ID,
			BondAmount:      bond,
			BondLockedUntil: verification.BondLockedUntil,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntry(string(models.CreditKindBondLocked))
	s.metrics.BondEvent("locked")
	s.metrics.PeerVerified()
	logrus.WithFields(logrus.Fields{
		"verifier": verifier.ID,
		"verified": result.VerifiedUserID,
	}).Info("Peer verification completed")
	return &result, nil
}

// ReleaseBond returns a bond to its voucher once the lock period is over.
func (s *PeerVerificationService) ReleaseBond(ctx context.Context, requester models.Actor, verificationID uuid.UUID) (*models.PeerVerification, error) {
	var released *models.PeerVerification
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		pv, err := tx.PeerVerifications().GetByIDForUpdate(ctx, verificationID)
		if err != nil {
			return mapNotFound(err, ErrVerificationNotFound)
		}
		if pv.VerifierID != requester.ID {
			return ErrNotBondOwner
		}
		if pv.BondStatus != models.BondStatusLocked {
			return ErrNotLocked
		}
		now := s.now()
		if now.Before(pv.BondLockedUntil) {
			return ErrTooEarly
		}

		if err := s.ledger.ReleaseTx(ctx, tx, pv.VerifierID, pv.BondAmount, "Verification bond released"); err != nil {
			return err
		}
		pv.BondStatus = models.BondStatusReleased
		pv.Status = models.PeerVerificationStatusCompleted
		pv.ReleasedAt = &now
		if err := tx.PeerVerifications().Update(ctx, pv); err != nil {
			return fmt.Errorf("failed to release bond: %w", err)
		}
		released = pv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntry(string(models.CreditKindBondReleased))
	s.metrics.BondEvent("released")
	return released, nil
}

// ForfeitBond is the manual administrator path. It removes the locked bond
// from the voucher's balance.
func (s *PeerVerificationService) ForfeitBond(ctx context.Context, admin models.Actor, verificationID uuid.UUID, reason string) (*models.PeerVerification, error) {
	if admin.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var forfeited *models.PeerVerification
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		pv, err := tx.PeerVerifications().GetByIDForUpdate(ctx, verificationID)
		if err != nil {
			return mapNotFound(err, ErrVerificationNotFound)
		}
		if pv.BondStatus != models.BondStatusLocked {
			return ErrNotLocked
		}

		if err := s.ledger.ForfeitTx(ctx, tx, pv.VerifierID, pv.BondAmount, "Verification bond forfeited: "+reason); err != nil {
			return err
		}
		now := s.now()
		pv.BondStatus = models.BondStatusForfeited
		pv.Status = models.PeerVerificationStatusCompleted
		pv.ForfeitedAt = &now
		pv.ForfeitReason = reason
		if err := tx.PeerVerifications().Update(ctx, pv); err != nil {
			return fmt.Errorf("failed to forfeit bond: %w", err)
		}
		if err := s.notifier.BondForfeitedTx(ctx, tx, pv); err != nil {
			return err
		}
		forfeited = pv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntry(string(models.CreditKindBondForfeited))
	s.metrics.BondEvent("forfeited")
	logrus.WithFields(logrus.Fields{
		"verification_id": verificationID,
		"admin":           admin.ID,
	}).Warn("Verification bond forfeited")
	return forfeited, nil
}

func (s *PeerVerificationService) MyVerifications(ctx context.Context, actor models.Actor) ([]models.PeerVerification, error) {
	var out []models.PeerVerification
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.PeerVerifications().ListByVerifier(ctx, actor.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list peer verifications: %w", err)
	}
	return out, nil
}
