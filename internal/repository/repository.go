// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/idsee/registry-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the transactional boundary of the registry. Every mutation of
// balances, registrations or bonds happens inside RunInTx; if fn returns an
// error nothing it wrote is visible afterwards.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Users() UserRepository
	Credits() CreditRepository
	Animals() AnimalRepository
	Registrations() RegistrationRepository
	HealthRecords() HealthRecordRepository
	VerificationRequests() VerificationRequestRepository
	PeerVerifications() PeerVerificationRepository
	AnchorTasks() AnchorTaskRepository
	Notifications() NotificationRepository
	AuditLogs() AuditLogRepository
}

type Page struct {
	Limit  int
	Offset int
}

type UserFilter struct {
	Role   models.Role
	Status models.VerificationStatus
	Page   Page
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetByIDForUpdate reads the row and holds it until the unit of work ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByProfessionalID(ctx context.Context, professionalID string) (*models.User, error)
	GetByEmailVerifyToken(ctx context.Context, tokenHash string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	Count(ctx context.Context) (int64, error)
	SumCredits(ctx context.Context) (int64, error)
}

type CreditRepository interface {
	Create(ctx context.Context, t *models.CreditTransaction) error
	// ListByUser returns entries newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, page Page) ([]models.CreditTransaction, error)
}

type AnimalRepository interface {
	Create(ctx context.Context, a *models.Animal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Animal, error)
	GetByChipHash(ctx context.Context, chipHash string) (*models.Animal, error)
	Count(ctx context.Context) (int64, error)
}

// Registration reads populate the Animal relation.
type RegistrationRepository interface {
	Create(ctx context.Context, r *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	Update(ctx context.Context, r *models.Registration) error
	ListBySubmitter(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
	ListPendingForBreeder(ctx context.Context, professionalID string) ([]models.Registration, error)
	ListBreederHistory(ctx context.Context, professionalID string, breederUserID uuid.UUID) ([]models.Registration, error)
	LatestConfirmedForAnimal(ctx context.Context, animalID uuid.UUID) (*models.Registration, error)
	List(ctx context.Context, status models.RegistrationStatus, limit int) ([]models.Registration, error)
}

type HealthRecordRepository interface {
	Create(ctx context.Context, r *models.HealthRecord) error
	ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]models.HealthRecord, error)
}

type VerificationRequestRepository interface {
	Create(ctx context.Context, r *models.VerificationRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.VerificationRequest, error)
	Update(ctx context.Context, r *models.VerificationRequest) error
	// ListPending populates the User relation.
	ListPending(ctx context.Context) ([]models.VerificationRequest, error)
	CountPending(ctx context.Context) (int64, error)
}

type PeerVerificationRepository interface {
	Create(ctx context.Context, v *models.PeerVerification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PeerVerification, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PeerVerification, error)
	ListByVerifier(ctx context.Context, verifierID uuid.UUID) ([]models.PeerVerification, error)
	Update(ctx context.Context, v *models.PeerVerification) error
}

type AnchorTaskRepository interface {
	Create(ctx context.Context, t *models.AnchorTask) error
	// ClaimDue moves up to limit due tasks to Processing and returns them.
	// Queued tasks are due once NextAttemptAt has passed; Processing tasks are
	// due again once their claim is older than lease.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.AnchorTask, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.AnchorTask, error)
	Update(ctx context.Context, t *models.AnchorTask) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, page Page) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
}

type AuditLogRepository interface {
	Create(ctx context.Context, l *models.AuditLog) error
}
