// internal/services/confirmation_service.go
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

// ConfirmationService drives the breeder side of the registration state
// machine: Pending -> Confirmed by confirm, Pending -> Disputed by reject.
type ConfirmationService struct {
	store    repository.Store
	anchor   *AnchorService
	notifier *NotificationService
	metrics  *metrics.Metrics
	now      func() time.Time
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func NewConfirmationService(store repository.Store, anchor *AnchorService, notifier *NotificationService, m *metrics.Metrics) *ConfirmationService {
	return &ConfirmationService{
		store:    store,
		anchor:   anchor,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// ListPending returns the registrations waiting for this breeder.
func (s *ConfirmationService) ListPending(ctx context.Context, actor models.Actor) ([]RegistrationView, error) {
	if actor.ProfessionalID == "" {
		return nil, ErrForbidden
	}
	return s.list(ctx, func(tx repository.Tx) ([]models.Registration, error) {
		return tx.Registrations().ListPendingForBreeder(ctx, actor.ProfessionalID)
	})
}

// History returns registrations linked to the breeder's professional id or
// acted on by the breeder, newest first.
func (s *ConfirmationService) History(ctx context.Context, actor models.Actor) ([]RegistrationView, error) {
	if actor.ProfessionalID == "" {
		return nil, ErrForbidden
	}
	return s.list(ctx, func(tx repository.Tx) ([]models.Registration, error) {
		return tx.Registrations().ListBreederHistory(ctx, actor.ProfessionalID, actor.ID)
	})
}

func (s *ConfirmationService) list(ctx context.Context, load func(tx repository.Tx) ([]models.Registration, error)) ([]RegistrationView, error) {
	var views []RegistrationView
	err := s.store.View(ctx, func(tx repository.Tx) error {
		regs, err := load(tx)
		if err != nil {
			return err
		}
		views = withSubmitters(ctx, tx, regs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmations: %w", err)
	}
	return views, nil
}

// Confirm records the breeder's confirmation. Anchoring runs before the unit
// of work and is best effort: when it fails the registration is confirmed with
// a nil external reference.
func (s *ConfirmationService) Confirm(ctx context.Context, actor models.Actor, registrationID uuid.UUID) (*models.Registration, error) {
	if actor.IsSuspended {
		return nil, ErrSuspended
	}

	var current *models.Registration
	err := s.store.View(ctx, func(tx repository.Tx) error {
		reg, err := tx.Registrations().GetByID(ctx, registrationID)
		if err != nil {
			return mapNotFound(err, ErrRegistrationNotFound)
		}
		if err := checkConfirmable(reg, actor); err != nil {
			return err
		}
		current = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	reference := current.ExternalReference
	if reference == nil {
		ref, err := s.anchor.Anchor(ctx, current.DataHash)
		if err != nil {
			logrus.WithError(err).WithField("registration_id", registrationID).
				Warn("Anchoring failed during confirmation, confirming without reference")
			s.metrics.AnchorOutcome("confirm", "failure")
		} else {
			reference = &ref
			s.metrics.AnchorOutcome("confirm", "success")
		}
	}

	var confirmed *models.Registration
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, registrationID)
		if err != nil {
			return mapNotFound(err, ErrRegistrationNotFound)
		}
		// A concurrent confirm or reject may have won since the precheck.
		if err := checkConfirmable(reg, actor); err != nil {
			return err
		}

		now := s.now()
		breederID := actor.ID
		reg.BreederConfirmed = true
		reg.BreederConfirmedAt = &now
		reg.BreederUserID = &breederID
		reg.Status = models.RegistrationStatusConfirmed
		reg.ConfirmedAt = &now
		if reg.ExternalReference == nil {
			reg.ExternalReference = reference
		}

		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return fmt.Errorf("failed to confirm registration: %w", err)
		}
		if err := s.notifier.RegistrationConfirmedTx(ctx, tx, reg); err != nil {
			return err
		}
		confirmed = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RegistrationConfirmed()
	logrus.WithFields(logrus.Fields{
		"registration_id": registrationID,
		"breeder":         actor.ID,
		"anchored":        confirmed.ExternalReference != nil,
	}).Info("Registration confirmed")
	return confirmed, nil
}

// Reject disputes a Pending registration. Disputed is terminal.
func (s *ConfirmationService) Reject(ctx context.Context, actor models.Actor, registrationID uuid.UUID, reason string) (*models.Registration, error) {
	if actor.IsSuspended {
		return nil, ErrSuspended
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var disputed *models.Registration
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, registrationID)
		if err != nil {
			return mapNotFound(err, ErrRegistrationNotFound)
		}
		if actor.ProfessionalID == "" || reg.BreederProfessionalID != actor.ProfessionalID {
			return ErrNotLinkedBreeder
		}
		if reg.Status != models.RegistrationStatusPending {
			return ErrNotPending
		}

		now := s.now()
		breederID := actor.ID
		reg.Status = models.RegistrationStatusDisputed
		reg.DisputeReason = reason
		reg.DisputedAt = &now
		reg.BreederUserID = &breederID

		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return fmt.Errorf("failed to dispute registration: %w", err)
		}
		if err := s.notifier.RegistrationDisputedTx(ctx, tx, reg); err != nil {
			return err
		}
		disputed = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RegistrationDisputed()
	logrus.WithFields(logrus.Fields{
		"registration_id": registrationID,
		"breeder":         actor.ID,
	}).Info("Registration disputed")
	return disputed, nil
}

func checkConfirmable(reg *models.Registration, actor models.Actor) error {
	if actor.ProfessionalID == "" || reg.BreederProfessionalID != actor.ProfessionalID {
		return ErrNotLinkedBreeder
	}
	if reg.BreederConfirmed {
		return ErrAlreadyConfirmed
	}
	switch reg.Status {
	case models.RegistrationStatusDisputed:
		return ErrDisputed
	case models.RegistrationStatusFailed:
		return ErrNotPending
	}
	return nil
}
