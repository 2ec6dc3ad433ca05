// internal/services/registry_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/metrics"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
	"github.com/idsee/registry-backend/internal/utils"
)

// RegistryService maps chip hashes to animals and their registrations.
type RegistryService struct {
	store   repository.Store
	ledger  *LedgerService
	anchor  *AnchorService
	config  config.RegistryConfig
	metrics *metrics.Metrics
	now     func() time.Time
}

type RegisterAnimalRequest struct {
	ChipID                string `json:"chip_id" validate:"required,chip_id"`
	Species               string `json:"species" validate:"required,max=50"`
	Breed                 string `json:"breed,omitempty" validate:"max=100"`
	BirthDate             string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MotherChipID          string `json:"mother_chip_id,omitempty" validate:"omitempty,chip_id"`
	BreederProfessionalID string `json:"breeder_professional_id,omitempty" validate:"max=100"`
}

type RegisterAnimalResult struct {
	AnimalID       uuid.UUID                 `json:"animal_id"`
	RegistrationID uuid.UUID                 `json:"registration_id"`
	Status         models.RegistrationStatus `json:"status"`
}

type RegistrationSummary struct {
	RegistrationID        uuid.UUID                 `json:"registration_id"`
	AnimalID              uuid.UUID                 `json:"animal_id"`
	Species               string                    `json:"species"`
	Breed                 string                    `json:"breed,omitempty"`
	BirthDate             *datatypes.Date           `json:"birth_date,omitempty"`
	MotherKnown           bool                      `json:"mother_known"`
	Status                models.RegistrationStatus `json:"status"`
	BreederProfessionalID string                    `json:"breeder_professional_id,omitempty"`
	BreederConfirmed      bool                      `json:"breeder_confirmed"`
	ExternalReference     *string                   `json:"external_reference,omitempty"`
	DisputeReason         string                    `json:"dispute_reason,omitempty"`
	RegisteredAt          time.Time                 `json:"registered_at"`
	ConfirmedAt           *time.Time                `json:"confirmed_at,omitempty"`
}

// RegistrationView is a registration summary with the submitter's contact
// details, shown to breeders and administrators.
type RegistrationView struct {
	RegistrationSummary
	SubmitterEmail string      `json:"submitter_email,omitempty"`
	SubmitterRole  models.Role `json:"submitter_role,omitempty"`
}

type PublicVerifyResult struct {
	Found                 bool       `json:"found"`
	ConfirmedAndCertified bool       `json:"confirmed_and_certified"`
	BreederVerified       bool       `json:"breeder_verified"`
	MotherKnown           bool       `json:"mother_known"`
	RegistrationDate      *time.Time `json:"registration_date,omitempty"`
}

type AddHealthRecordRequest struct {
	RecordType models.HealthRecordType `json:"record_type" validate:"required"`
	RecordHash string                  `json:"record_hash" validate:"required,sha256_hex"`
}

func NewRegistryService(store repository.Store, ledger *LedgerService, anchor *AnchorService, cfg config.RegistryConfig, m *metrics.Metrics) *RegistryService {
	return &RegistryService{
		store:   store,
		ledger:  ledger,
		anchor:  anchor,
		config:  cfg,
		metrics: m,
		now:     time.Now,
	}
}

// ResolveChip normalizes a raw chip number and returns its hash. The same
// function serves registration and public lookup.
func (s *RegistryService) ResolveChip(rawChipID string) (string, error) {
	normalized := utils.NormalizeChipID(rawChipID)
	if len(normalized) < s.config.MinChipIDLength {
		return "", ErrInvalidChipID
	}
	return utils.HashString(normalized), nil
}

// RegisterAnimal creates the animal and a Pending registration, debits the
// registration cost and queues the anchoring task, all in one unit of work.
func (s *RegistryService) RegisterAnimal(ctx context.Context, actor models.Actor, req *RegisterAnimalRequest) (*RegisterAnimalResult, error) {
	if !actor.Role.IsProfessional() {
		return nil, ErrForbidden
	}
	if actor.VerificationStatus != models.VerificationStatusVerified {
		return nil, ErrNotVerified
	}
	if actor.IsSuspended {
		return nil, ErrSuspended
	}

	chipHash, err := s.ResolveChip(req.ChipID)
	if err != nil {
		return nil, err
	}

	animal := &models.Animal{
		ChipHash: chipHash,
		Species:  strings.TrimSpace(req.Species),
		Breed:    strings.TrimSpace(req.Breed),
	}
	if req.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return nil, newError(KindValidation, "INVALID_BIRTH_DATE", "birth date must be YYYY-MM-DD")
		}
		date := datatypes.Date(birth)
		animal.BirthDate = &date
	}
	if req.MotherChipID != "" {
		motherHash, err := s.ResolveChip(req.MotherChipID)
		if err != nil {
			return nil, err
		}
		animal.MotherChipHash = &motherHash
	}

	breederPID := strings.TrimSpace(req.BreederProfessionalID)
	if breederPID == "" && actor.Role == models.RoleBreeder {
		breederPID = actor.ProfessionalID
	}
	if breederPID == "" {
		return nil, ErrMissingBreeder
	}

	payload, err := json.Marshal(models.RegistrationPayload{
		ChipHash:     chipHash,
		Species:      animal.Species,
		Breed:        animal.Breed,
		RegisteredBy: actor.ID,
		Timestamp:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration payload: %w", err)
	}
	dataHash := s.anchor.Hash(payload)

	var result RegisterAnimalResult
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Animals().GetByChipHash(ctx, chipHash); err == nil {
			return ErrDuplicateChip
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up chip: %w", err)
		}

		submitter, err := tx.Users().GetByIDForUpdate(ctx, actor.ID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		if submitter.AvailableCredits() < s.config.RegistrationCost {
			return ErrInsufficientCredits
		}

		if err := tx.Animals().Create(ctx, animal); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateChip
			}
			return fmt.Errorf("failed to create animal: %w", err)
		}

		reg := &models.Registration{
			UserID:                actor.ID,
			AnimalID:              animal.ID,
			Payload:               datatypes.JSON(payload),
			DataHash:              dataHash,
			Status:                models.RegistrationStatusPending,
			BreederProfessionalID: breederPID,
		}
		if err := tx.Registrations().Create(ctx, reg); err != nil {
			return fmt.Errorf("failed to create registration: %w", err)
		}

		if err := s.ledger.DebitTx(ctx, tx, actor.ID, s.config.RegistrationCost, "Animal registration"); err != nil {
			return err
		}

		task := &models.AnchorTask{
			RegistrationID: reg.ID,
			Digest:         dataHash,
			Status:         models.AnchorTaskStatusQueued,
			NextAttemptAt:  s.now(),
		}
		if err := tx.AnchorTasks().Create(ctx, task); err != nil {
			return fmt.Errorf("failed to queue anchoring: %w", err)
		}

		result = RegisterAnimalResult{
			AnimalID:       animal.ID,
			RegistrationID: reg.ID,
			Status:         reg.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RegistrationSubmitted()
	s.metrics.LedgerEntry(string(models.CreditKindUsage))
	logrus.WithFields(logrus.Fields{
		"registration_id": result.RegistrationID,
		"submitter":       actor.ID,
	}).Info("Animal registered")
	return &result, nil
}

func (s *RegistryService) ListOwnRegistrations(ctx context.Context, actor models.Actor) ([]RegistrationSummary, error) {
	var regs []models.Registration
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		regs, err = tx.Registrations().ListBySubmitter(ctx, actor.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return summarize(regs), nil
}

// GetAnimal returns the submitter's view of an animal they registered.
// Other users get ErrAnimalNotFound.
func (s *RegistryService) GetAnimal(ctx context.Context, actor models.Actor, animalID uuid.UUID) (*RegistrationSummary, error) {
	var regs []models.Registration
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		regs, err = tx.Registrations().ListBySubmitter(ctx, actor.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load animal: %w", err)
	}

	for _, reg := range regs {
		if reg.AnimalID == animalID {
			summary := summarize([]models.Registration{reg})[0]
			return &summary, nil
		}
	}
	return nil, ErrAnimalNotFound
}

// FindByChipHash returns the animal and its most recent Confirmed
// registration. The registration is nil while nothing is confirmed.
func (s *RegistryService) FindByChipHash(ctx context.Context, chipHash string) (*models.Animal, *models.Registration, error) {
	var animal *models.Animal
	var confirmed *models.Registration
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		animal, err = tx.Animals().GetByChipHash(ctx, chipHash)
		if err != nil {
			return mapNotFound(err, ErrAnimalNotFound)
		}
		confirmed, err = tx.Registrations().LatestConfirmedForAnimal(ctx, animal.ID)
		if errors.Is(err, repository.ErrNotFound) {
			confirmed = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return animal, confirmed, nil
}

// PublicVerify answers an anonymous lookup. Only confirmed registrations
// contribute to the answer.
func (s *RegistryService) PublicVerify(ctx context.Context, rawChipID string) (*PublicVerifyResult, error) {
	chipHash, err := s.ResolveChip(rawChipID)
	if err != nil {
		return nil, err
	}

	animal, confirmed, err := s.FindByChipHash(ctx, chipHash)
	if errors.Is(err, ErrAnimalNotFound) {
		return &PublicVerifyResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &PublicVerifyResult{
		Found:       true,
		MotherKnown: animal.MotherKnown(),
	}
	if confirmed == nil {
		return result, nil
	}

	var submitter *models.User
	err = s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		submitter, err = tx.Users().GetByID(ctx, confirmed.UserID)
		return err
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load submitter: %w", err)
	}

	registeredAt := confirmed.CreatedAt
	result.RegistrationDate = &registeredAt
	result.BreederVerified = submitter != nil && submitter.VerificationStatus == models.VerificationStatusVerified
	result.ConfirmedAndCertified = result.BreederVerified && confirmed.ExternalReference != nil
	return result, nil
}

// AddHealthRecord attaches a typed, hashed record to an animal. Only verified
// vets may add records and each one costs HealthRecordCost credits.
func (s *RegistryService) AddHealthRecord(ctx context.Context, actor models.Actor, animalID uuid.UUID, req *AddHealthRecordRequest) (*models.HealthRecord, error) {
	if actor.Role != models.RoleVet || actor.VerificationStatus != models.VerificationStatusVerified {
		return nil, ErrNotVerified
	}
	if actor.IsSuspended {
		return nil, ErrSuspended
	}
	if !req.RecordType.Valid() {
		return nil, ErrInvalidRecordType
	}

	record := &models.HealthRecord{
		AnimalID:     animalID,
		RecordedByID: actor.ID,
		RecordType:   req.RecordType,
		RecordHash:   strings.ToLower(req.RecordHash),
	}
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Animals().GetByID(ctx, animalID); err != nil {
			return mapNotFound(err, ErrAnimalNotFound)
		}
		if err := tx.HealthRecords().Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create health record: %w", err)
		}
		return s.ledger.DebitTx(ctx, tx, actor.ID, s.config.HealthRecordCost,
			fmt.Sprintf("Health record: %s", req.RecordType))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LedgerEntry(string(models.CreditKindUsage))
	return record, nil
}

func (s *RegistryService) ListHealthRecords(ctx context.Context, actor models.Actor, animalID uuid.UUID) ([]models.HealthRecord, error) {
	if !actor.Role.IsProfessional() && actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	var records []models.HealthRecord
	err := s.store.View(ctx, func(tx repository.Tx) error {
		if _, err := tx.Animals().GetByID(ctx, animalID); err != nil {
			return mapNotFound(err, ErrAnimalNotFound)
		}
		var err error
		records, err = tx.HealthRecords().ListByAnimal(ctx, animalID)
		return err
	})
	return records, err
}

func summarize(regs []models.Registration) []RegistrationSummary {
	out := make([]RegistrationSummary, 0, len(regs))
	for _, reg := range regs {
		summary := RegistrationSummary{
			RegistrationID:        reg.ID,
			AnimalID:              reg.AnimalID,
			Status:                reg.Status,
			BreederProfessionalID: reg.BreederProfessionalID,
			BreederConfirmed:      reg.BreederConfirmed,
			ExternalReference:     reg.ExternalReference,
			DisputeReason:         reg.DisputeReason,
			RegisteredAt:          reg.CreatedAt,
			ConfirmedAt:           reg.ConfirmedAt,
		}
		if reg.Animal != nil {
			summary.Species = reg.Animal.Species
			summary.Breed = reg.Animal.Breed
			summary.BirthDate = reg.Animal.BirthDate
			summary.MotherKnown = reg.Animal.MotherKnown()
		}
		out = append(out, summary)
	}
	return out
}

func withSubmitters(ctx context.Context, tx repository.Tx, regs []models.Registration) []RegistrationView {
	submitters := make(map[uuid.UUID]*models.User)
	summaries := summarize(regs)
	views := make([]RegistrationView, 0, len(regs))
	for i, reg := range regs {
		view := RegistrationView{RegistrationSummary: summaries[i]}
		u, ok := submitters[reg.UserID]
		if !ok {
			u, _ = tx.Users().GetByID(ctx, reg.UserID)
			submitters[reg.UserID] = u
		}
		if u != nil {
			view.SubmitterEmail = u.Email
			view.SubmitterRole = u.Role
		}
		views = append(views, view)
	}
	return views
}
