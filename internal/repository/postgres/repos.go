// internal/repository/postgres/repos.go
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

type userRepo struct{ db *gorm.DB }

func (r userRepo) Create(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := forUpdate(r.db.WithContext(ctx)).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) GetByEmailVerifyToken(ctx context.Context, tokenHash string) (*models.User, error) {
	var u models.User
	if err := forUpdate(r.db.WithContext(ctx)).Where("email_verify_token = ?", tokenHash).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) GetByProfessionalID(ctx context.Context, professionalID string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("professional_id = ?", professionalID).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) Update(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Save(u).Error)
}

func (r userRepo) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		query = query.Where("verification_status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := paginate(query.Order("created_at DESC"), filter.Page).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r userRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (r userRepo) SumCredits(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("COALESCE(SUM(credits), 0)").Scan(&total).Error
	return total, err
}

type creditRepo struct{ db *gorm.DB }

func (r creditRepo) Create(ctx context.Context, t *models.CreditTransaction) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r creditRepo) ListByUser(ctx context.Context, userID uuid.UUID, p repository.Page) ([]models.CreditTransaction, error) {
	var out []models.CreditTransaction
	err := paginate(r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC"), p).
		Find(&out).Error
	return out, err
}

type animalRepo struct{ db *gorm.DB }

func (r animalRepo) Create(ctx context.Context, a *models.Animal) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r animalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Animal, error) {
	var a models.Animal
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r animalRepo) GetByChipHash(ctx context.Context, chipHash string) (*models.Animal, error) {
	var a models.Animal
	if err := r.db.WithContext(ctx).Where("chip_hash = ?", chipHash).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r animalRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Animal{}).Count(&n).Error
	return n, err
}

type registrationRepo struct{ db *gorm.DB }

func (r registrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(reg).Error)
}

func (r registrationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.WithContext(ctx).Preload("Animal").First(&reg, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &reg, nil
}

// Preload runs as a separate query so the row lock only covers registrations.
func (r registrationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	if err := forUpdate(r.db.WithContext(ctx)).Preload("Animal").First(&reg, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &reg, nil
}

func (r registrationRepo) Update(ctx context.Context, reg *models.Registration) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(reg).Error)
}

func (r registrationRepo) ListBySubmitter(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	var out []models.Registration
	err := r.db.WithContext(ctx).Preload("Animal").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r registrationRepo) ListPendingForBreeder(ctx context.Context, professionalID string) ([]models.Registration, error) {
	var out []models.Registration
	err := r.db.WithContext(ctx).Preload("Animal").
		Where("breeder_professional_id = ? AND status = ? AND breeder_confirmed = ?",
			professionalID, models.RegistrationStatusPending, false).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r registrationRepo) ListBreederHistory(ctx context.Context, professionalID string, breederUserID uuid.UUID) ([]models.Registration, error) {
	var out []models.Registration
	query := r.db.WithContext(ctx).Preload("Animal")
	if professionalID != "" {
		query = query.Where("breeder_professional_id = ? OR breeder_user_id = ?", professionalID, breederUserID)
	} else {
		query = query.Where("breeder_user_id = ?", breederUserID)
	}
	err := query.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r registrationRepo) LatestConfirmedForAnimal(ctx context.Context, animalID uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.WithContext(ctx).Preload("Animal").
		Where("animal_id = ? AND status = ?", animalID, models.RegistrationStatusConfirmed).
		Order("created_at DESC").
		First(&reg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &reg, nil
}

func (r registrationRepo) List(ctx context.Context, status models.RegistrationStatus, limit int) ([]models.Registration, error) {
	var out []models.Registration
	query := r.db.WithContext(ctx).Preload("Animal")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("created_at DESC").Find(&out).Error
	return out, err
}

type healthRecordRepo struct{ db *gorm.DB }

func (r healthRecordRepo) Create(ctx context.Context, rec *models.HealthRecord) error {
	return translate(r.db.WithContext(ctx).Create(rec).Error)
}

func (r healthRecordRepo) ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]models.HealthRecord, error) {
	var out []models.HealthRecord
	err := r.db.WithContext(ctx).Where("animal_id = ?", animalID).Order("created_at DESC").Find(&out).Error
	return out, err
}

type requestRepo struct{ db *gorm.DB }

func (r requestRepo) Create(ctx context.Context, req *models.VerificationRequest) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error)
}

func (r requestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r requestRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	if err := forUpdate(r.db.WithContext(ctx)).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r requestRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r requestRepo) Update(ctx context.Context, req *models.VerificationRequest) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(req).Error)
}

func (r requestRepo) ListPending(ctx context.Context) ([]models.VerificationRequest, error) {
	var out []models.VerificationRequest
	err := r.db.WithContext(ctx).Preload("User").
		Where("status = ?", models.RequestStatusPending).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r requestRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.VerificationRequest{}).
		Where("status = ?", models.RequestStatusPending).Count(&n).Error
	return n, err
}

type peerRepo struct{ db *gorm.DB }

func (r peerRepo) Create(ctx context.Context, v *models.PeerVerification) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

func (r peerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PeerVerification, error) {
	var v models.PeerVerification
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r peerRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PeerVerification, error) {
	var v models.PeerVerification
	if err := forUpdate(r.db.WithContext(ctx)).First(&v, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r peerRepo) ListByVerifier(ctx context.Context, verifierID uuid.UUID) ([]models.PeerVerification, error) {
	var out []models.PeerVerification
	err := r.db.WithContext(ctx).Where("verifier_id = ?", verifierID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r peerRepo) Update(ctx context.Context, v *models.PeerVerification) error {
	return translate(r.db.WithContext(ctx).Save(v).Error)
}

type anchorTaskRepo struct{ db *gorm.DB }

func (r anchorTaskRepo) Create(ctx context.Context, t *models.AnchorTask) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

// ClaimDue must run inside RunInTx. SKIP LOCKED keeps concurrent workers from
// claiming the same rows.
func (r anchorTaskRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.AnchorTask, error) {
	var tasks []models.AnchorTask
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("(status = ? AND next_attempt_at <= ?) OR (status = ? AND claimed_at < ?)",
			models.AnchorTaskStatusQueued, now,
			models.AnchorTaskStatusProcessing, now.Add(-lease)).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	ids := make([]uuid.UUID, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
		tasks[i].Status = models.AnchorTaskStatusProcessing
		tasks[i].ClaimedAt = &now
	}
	err = r.db.WithContext(ctx).Model(&models.AnchorTask{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     models.AnchorTaskStatusProcessing,
			"claimed_at": now,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r anchorTaskRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.AnchorTask, error) {
	var t models.AnchorTask
	if err := forUpdate(r.db.WithContext(ctx)).First(&t, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r anchorTaskRepo) Update(ctx context.Context, t *models.AnchorTask) error {
	return translate(r.db.WithContext(ctx).Save(t).Error)
}

type notificationRepo struct{ db *gorm.DB }

func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r notificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, p repository.Page) ([]models.Notification, error) {
	var out []models.Notification
	err := paginate(r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC"), p).
		Find(&out).Error
	return out, err
}

func (r notificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("COALESCE(read_at, ?)", at))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type auditLogRepo struct{ db *gorm.DB }

func (r auditLogRepo) Create(ctx context.Context, l *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}
