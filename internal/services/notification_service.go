// internal/services/notification_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

// NotificationService writes in-app notifications. Notifications tied to a
// state change are written in the same unit of work as that change.
type NotificationService struct {
	store repository.Store
	now   func() time.Time
}

func NewNotificationService(store repository.Store) *NotificationService {
	return &NotificationService{
		store: store,
		now:   time.Now,
	}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, page repository.Page) ([]models.Notification, error) {
	var out []models.Notification
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Notifications().ListByUser(ctx, userID, page)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return s.store.RunInTx(ctx, func(tx repository.Tx) error {
		err := tx.Notifications().MarkRead(ctx, id, actor.ID, s.now())
		if err != nil {
			return mapNotFound(err, ErrNotificationNotFound)
		}
		return nil
	})
}

// Registration outcomes
func (s *NotificationService) RegistrationConfirmedTx(ctx context.Context, tx repository.Tx, reg *models.Registration) error {
	return s.notifyTx(ctx, tx, reg.UserID, models.NotificationRegistrationConfirmed,
		"Registration confirmed",
		"The breeder confirmed your animal registration.",
		models.JSONB{"registration_id": reg.ID.String()})
}

func (s *NotificationService) RegistrationDisputedTx(ctx context.Context, tx repository.Tx, reg *models.Registration) error {
	return s.notifyTx(ctx, tx, reg.UserID, models.NotificationRegistrationDisputed,
		"Registration disputed",
		fmt.Sprintf("The breeder disputed your animal registration: %s", reg.DisputeReason),
		models.JSONB{"registration_id": reg.ID.String(), "reason": reg.DisputeReason})
}

func (s *NotificationService) RegistrationFailedTx(ctx context.Context, tx repository.Tx, reg *models.Registration) error {
	return s.notifyTx(ctx, tx, reg.UserID, models.NotificationRegistrationFailed,
		"Registration failed",
		"Your animal registration could not be anchored and has been marked as failed.",
		models.JSONB{"registration_id": reg.ID.String()})
}

// Verification outcomes
func (s *NotificationService) VerificationDecidedTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, status models.VerificationStatus, reason string) error {
	if status == models.VerificationStatusVerified {
		return s.notifyTx(ctx, tx, userID, models.NotificationVerificationApproved,
			"Account verified",
			"Your professional account has been verified. You can now register animals.",
			nil)
	}
	return s.notifyTx(ctx, tx, userID, models.NotificationVerificationRejected,
		"Verification rejected",
		fmt.Sprintf("Your verification request was rejected: %s", reason),
		models.JSONB{"reason": reason})
}

func (s *NotificationService) BondForfeitedTx(ctx context.Context, tx repository.Tx, pv *models.PeerVerification) error {
	return s.notifyTx(ctx, tx, pv.VerifierID, models.NotificationBondForfeited,
		"Bond forfeited",
		fmt.Sprintf("Your verification bond of %d credits was forfeited: %s", pv.BondAmount, pv.ForfeitReason),
		models.JSONB{"verification_id": pv.ID.String()})
}

func (s *NotificationService) CreditsGrantedTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, amount int, reason string) error {
	return s.notifyTx(ctx, tx, userID, models.NotificationCreditsGranted,
		"Credits added",
		fmt.Sprintf("%d credits were added to your account: %s", amount, reason),
		models.JSONB{"amount": amount})
}

func (s *NotificationService) notifyTx(ctx context.Context, tx repository.Tx, userID uuid.UUID, kind models.NotificationType, title, message string, data models.JSONB) error {
	n := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Data:    data,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
