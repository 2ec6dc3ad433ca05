// internal/repository/memory/repos.go
package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

type userRepo struct{ t *memTx }

func (r userRepo) Create(ctx context.Context, u *models.User) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, existing := range r.t.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicate
		}
		if u.ProfessionalID != nil && existing.ProfessionalNumber() == *u.ProfessionalID {
			return repository.ErrDuplicate
		}
	}
	r.t.stamp(&u.BaseModel, true)
	r.t.st.users[u.ID] = *u
	r.t.st.userOrder = append(r.t.st.userOrder, u.ID)
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.t.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// The store-wide lock already serialises units of work.
func (r userRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.t.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByEmailVerifyToken(ctx context.Context, tokenHash string) (*models.User, error) {
	for _, u := range r.t.st.users {
		if u.EmailVerifyToken != nil && *u.EmailVerifyToken == tokenHash {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByProfessionalID(ctx context.Context, professionalID string) (*models.User, error) {
	for _, u := range r.t.st.users {
		if u.ProfessionalID != nil && *u.ProfessionalID == professionalID {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) Update(ctx context.Context, u *models.User) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if u.ProfessionalID != nil {
		for id, existing := range r.t.st.users {
			if id != u.ID && existing.ProfessionalNumber() == *u.ProfessionalID {
				return repository.ErrDuplicate
			}
		}
	}
	r.t.stamp(&u.BaseModel, false)
	r.t.st.users[u.ID] = *u
	return nil
}

func (r userRepo) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	var out []models.User
	for i := len(r.t.st.userOrder) - 1; i >= 0; i-- {
		u := r.t.st.users[r.t.st.userOrder[i]]
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.VerificationStatus != filter.Status {
			continue
		}
		out = append(out, u)
	}
	return page(out, filter.Page), int64(len(out)), nil
}

func (r userRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.t.st.users)), nil
}

func (r userRepo) SumCredits(ctx context.Context) (int64, error) {
	var total int64
	for _, u := range r.t.st.users {
		total += int64(u.Credits)
	}
	return total, nil
}

type creditRepo struct{ t *memTx }

func (r creditRepo) Create(ctx context.Context, e *models.CreditTransaction) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.t.now()
	}
	r.t.st.credits = append(r.t.st.credits, *e)
	return nil
}

func (r creditRepo) ListByUser(ctx context.Context, userID uuid.UUID, p repository.Page) ([]models.CreditTransaction, error) {
	var out []models.CreditTransaction
	for i := len(r.t.st.credits) - 1; i >= 0; i-- {
		if r.t.st.credits[i].UserID == userID {
			out = append(out, r.t.st.credits[i])
		}
	}
	return page(out, p), nil
}

type animalRepo struct{ t *memTx }

func (r animalRepo) Create(ctx context.Context, a *models.Animal) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, existing := range r.t.st.animals {
		if existing.ChipHash == a.ChipHash {
			return repository.ErrDuplicate
		}
	}
	r.t.stamp(&a.BaseModel, true)
	r.t.st.animals[a.ID] = *a
	return nil
}

func (r animalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Animal, error) {
	a, ok := r.t.st.animals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r animalRepo) GetByChipHash(ctx context.Context, chipHash string) (*models.Animal, error) {
	for _, a := range r.t.st.animals {
		if a.ChipHash == chipHash {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r animalRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.t.st.animals)), nil
}

type registrationRepo struct{ t *memTx }

func (r registrationRepo) withAnimal(reg models.Registration) models.Registration {
	if a, ok := r.t.st.animals[reg.AnimalID]; ok {
		reg.Animal = &a
	}
	return reg
}

func (r registrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.stamp(&reg.BaseModel, true)
	stored := *reg
	stored.Animal = nil
	r.t.st.registrations[reg.ID] = stored
	r.t.st.regOrder = append(r.t.st.regOrder, reg.ID)
	return nil
}

func (r registrationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, ok := r.t.st.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	reg = r.withAnimal(reg)
	return &reg, nil
}

func (r registrationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return r.GetByID(ctx, id)
}

func (r registrationRepo) Update(ctx context.Context, reg *models.Registration) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.registrations[reg.ID]; !ok {
		return repository.ErrNotFound
	}
	r.t.stamp(&reg.BaseModel, false)
	stored := *reg
	stored.Animal = nil
	r.t.st.registrations[reg.ID] = stored
	return nil
}

// newestFirst walks registrations in reverse insertion order.
func (r registrationRepo) newestFirst(keep func(models.Registration) bool, limit int) []models.Registration {
	var out []models.Registration
	for i := len(r.t.st.regOrder) - 1; i >= 0; i-- {
		reg := r.t.st.registrations[r.t.st.regOrder[i]]
		if !keep(reg) {
			continue
		}
		out = append(out, r.withAnimal(reg))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (r registrationRepo) ListBySubmitter(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	return r.newestFirst(func(reg models.Registration) bool {
		return reg.UserID == userID
	}, 0), nil
}

func (r registrationRepo) ListPendingForBreeder(ctx context.Context, professionalID string) ([]models.Registration, error) {
	return r.newestFirst(func(reg models.Registration) bool {
		return reg.BreederProfessionalID == professionalID &&
			reg.Status == models.RegistrationStatusPending &&
			!reg.BreederConfirmed
	}, 0), nil
}

func (r registrationRepo) ListBreederHistory(ctx context.Context, professionalID string, breederUserID uuid.UUID) ([]models.Registration, error) {
	return r.newestFirst(func(reg models.Registration) bool {
		if reg.BreederUserID != nil && *reg.BreederUserID == breederUserID {
			return true
		}
		return professionalID != "" && reg.BreederProfessionalID == professionalID
	}, 0), nil
}

func (r registrationRepo) LatestConfirmedForAnimal(ctx context.Context, animalID uuid.UUID) (*models.Registration, error) {
	found := r.newestFirst(func(reg models.Registration) bool {
		return reg.AnimalID == animalID && reg.Status == models.RegistrationStatusConfirmed
	}, 1)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (r registrationRepo) List(ctx context.Context, status models.RegistrationStatus, limit int) ([]models.Registration, error) {
	return r.newestFirst(func(reg models.Registration) bool {
		return status == "" || reg.Status == status
	}, limit), nil
}

type healthRecordRepo struct{ t *memTx }

func (r healthRecordRepo) Create(ctx context.Context, rec *models.HealthRecord) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.stamp(&rec.BaseModel, true)
	r.t.st.healthRecords = append(r.t.st.healthRecords, *rec)
	return nil
}

func (r healthRecordRepo) ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]models.HealthRecord, error) {
	var out []models.HealthRecord
	for i := len(r.t.st.healthRecords) - 1; i >= 0; i-- {
		if r.t.st.healthRecords[i].AnimalID == animalID {
			out = append(out, r.t.st.healthRecords[i])
		}
	}
	return out, nil
}

type requestRepo struct{ t *memTx }

func (r requestRepo) Create(ctx context.Context, req *models.VerificationRequest) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, existing := range r.t.st.requests {
		if existing.UserID == req.UserID {
			return repository.ErrDuplicate
		}
	}
	r.t.stamp(&req.BaseModel, true)
	stored := *req
	stored.User = nil
	r.t.st.requests[req.ID] = stored
	r.t.st.reqOrder = append(r.t.st.reqOrder, req.ID)
	return nil
}

func (r requestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	req, ok := r.t.st.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r requestRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	return r.GetByID(ctx, id)
}

func (r requestRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.VerificationRequest, error) {
	for _, req := range r.t.st.requests {
		if req.UserID == userID {
			return &req, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r requestRepo) Update(ctx context.Context, req *models.VerificationRequest) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.requests[req.ID]; !ok {
		return repository.ErrNotFound
	}
	r.t.stamp(&req.BaseModel, false)
	stored := *req
	stored.User = nil
	r.t.st.requests[req.ID] = stored
	return nil
}

func (r requestRepo) ListPending(ctx context.Context) ([]models.VerificationRequest, error) {
	var out []models.VerificationRequest
	for _, id := range r.t.st.reqOrder {
		req := r.t.st.requests[id]
		if req.Status != models.RequestStatusPending {
			continue
		}
		if u, ok := r.t.st.users[req.UserID]; ok {
			req.User = &u
		}
		out = append(out, req)
	}
	return out, nil
}

func (r requestRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	for _, req := range r.t.st.requests {
		if req.Status == models.RequestStatusPending {
			n++
		}
	}
	return n, nil
}

type peerRepo struct{ t *memTx }

func (r peerRepo) Create(ctx context.Context, v *models.PeerVerification) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.stamp(&v.BaseModel, true)
	r.t.st.peers[v.ID] = *v
	r.t.st.peerOrder = append(r.t.st.peerOrder, v.ID)
	return nil
}

func (r peerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PeerVerification, error) {
	v, ok := r.t.st.peers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r peerRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PeerVerification, error) {
	return r.GetByID(ctx, id)
}

func (r peerRepo) ListByVerifier(ctx context.Context, verifierID uuid.UUID) ([]models.PeerVerification, error) {
	var out []models.PeerVerification
	for i := len(r.t.st.peerOrder) - 1; i >= 0; i-- {
		v := r.t.st.peers[r.t.st.peerOrder[i]]
		if v.VerifierID == verifierID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r peerRepo) Update(ctx context.Context, v *models.PeerVerification) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.peers[v.ID]; !ok {
		return repository.ErrNotFound
	}
	r.t.stamp(&v.BaseModel, false)
	r.t.st.peers[v.ID] = *v
	return nil
}

type anchorTaskRepo struct{ t *memTx }

func (r anchorTaskRepo) Create(ctx context.Context, task *models.AnchorTask) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, existing := range r.t.st.anchorTasks {
		if existing.RegistrationID == task.RegistrationID {
			return repository.ErrDuplicate
		}
	}
	r.t.stamp(&task.BaseModel, true)
	r.t.st.anchorTasks[task.ID] = *task
	r.t.st.taskOrder = append(r.t.st.taskOrder, task.ID)
	return nil
}

func (r anchorTaskRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.AnchorTask, error) {
	if err := r.t.writable(); err != nil {
		return nil, err
	}
	var claimed []models.AnchorTask
	for _, id := range r.t.st.taskOrder {
		if limit > 0 && len(claimed) == limit {
			break
		}
		task := r.t.st.anchorTasks[id]
		due := task.Status == models.AnchorTaskStatusQueued && !task.NextAttemptAt.After(now)
		stale := task.Status == models.AnchorTaskStatusProcessing &&
			task.ClaimedAt != nil && task.ClaimedAt.Add(lease).Before(now)
		if !due && !stale {
			continue
		}
		claimedAt := now
		task.Status = models.AnchorTaskStatusProcessing
		task.ClaimedAt = &claimedAt
		task.UpdatedAt = now
		r.t.st.anchorTasks[id] = task
		claimed = append(claimed, task)
	}
	return claimed, nil
}

func (r anchorTaskRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.AnchorTask, error) {
	task, ok := r.t.st.anchorTasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &task, nil
}

func (r anchorTaskRepo) Update(ctx context.Context, task *models.AnchorTask) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.anchorTasks[task.ID]; !ok {
		return repository.ErrNotFound
	}
	r.t.stamp(&task.BaseModel, false)
	r.t.st.anchorTasks[task.ID] = *task
	return nil
}

type notificationRepo struct{ t *memTx }

func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.stamp(&n.BaseModel, true)
	r.t.st.notifications = append(r.t.st.notifications, *n)
	return nil
}

func (r notificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, p repository.Page) ([]models.Notification, error) {
	var out []models.Notification
	for i := len(r.t.st.notifications) - 1; i >= 0; i-- {
		if r.t.st.notifications[i].UserID == userID {
			out = append(out, r.t.st.notifications[i])
		}
	}
	return page(out, p), nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for i := range r.t.st.notifications {
		n := &r.t.st.notifications[i]
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				n.ReadAt = &at
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

type auditLogRepo struct{ t *memTx }

func (r auditLogRepo) Create(ctx context.Context, l *models.AuditLog) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.stamp(&l.BaseModel, true)
	r.t.st.auditLogs = append(r.t.st.auditLogs, *l)
	return nil
}
