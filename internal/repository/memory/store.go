// internal/repository/memory/store.go
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

var errReadOnly = errors.New("write attempted in read-only view")

// Store is an in-process repository.Store. A single mutex serialises units
// of work. Each unit runs against a copy of the state which replaces the live
// state only when the unit succeeds.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{state: newState(), now: time.Now}
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memTx{st: s.state, now: s.now, readOnly: true})
}

type state struct {
	users         map[uuid.UUID]models.User
	userOrder     []uuid.UUID
	credits       []models.CreditTransaction
	animals       map[uuid.UUID]models.Animal
	registrations map[uuid.UUID]models.Registration
	regOrder      []uuid.UUID
	healthRecords []models.HealthRecord
	requests      map[uuid.UUID]models.VerificationRequest
	reqOrder      []uuid.UUID
	peers         map[uuid.UUID]models.PeerVerification
	peerOrder     []uuid.UUID
	anchorTasks   map[uuid.UUID]models.AnchorTask
	taskOrder     []uuid.UUID
	notifications []models.Notification
	auditLogs     []models.AuditLog
}

func newState() *state {
	return &state{
		users:         make(map[uuid.UUID]models.User),
		animals:       make(map[uuid.UUID]models.Animal),
		registrations: make(map[uuid.UUID]models.Registration),
		requests:      make(map[uuid.UUID]models.VerificationRequest),
		peers:         make(map[uuid.UUID]models.PeerVerification),
		anchorTasks:   make(map[uuid.UUID]models.AnchorTask),
	}
}

func (s *state) clone() *state {
	return &state{
		users:         cloneMap(s.users),
		userOrder:     append([]uuid.UUID(nil), s.userOrder...),
		credits:       append([]models.CreditTransaction(nil), s.credits...),
		animals:       cloneMap(s.animals),
		registrations: cloneMap(s.registrations),
		regOrder:      append([]uuid.UUID(nil), s.regOrder...),
		healthRecords: append([]models.HealthRecord(nil), s.healthRecords...),
		requests:      cloneMap(s.requests),
		reqOrder:      append([]uuid.UUID(nil), s.reqOrder...),
		peers:         cloneMap(s.peers),
		peerOrder:     append([]uuid.UUID(nil), s.peerOrder...),
		anchorTasks:   cloneMap(s.anchorTasks),
		taskOrder:     append([]uuid.UUID(nil), s.taskOrder...),
		notifications: append([]models.Notification(nil), s.notifications...),
		auditLogs:     append([]models.AuditLog(nil), s.auditLogs...),
	}
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memTx struct {
	st       *state
	now      func() time.Time
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// stamp fills the identity and timestamps a database would assign.
func (t *memTx) stamp(base *models.BaseModel, creating bool) {
	now := t.now()
	if creating {
		if base.ID == uuid.Nil {
			base.ID = uuid.New()
		}
		if base.CreatedAt.IsZero() {
			base.CreatedAt = now
		}
	}
	base.UpdatedAt = now
}

func (t *memTx) Users() repository.UserRepository         { return userRepo{t} }
func (t *memTx) Credits() repository.CreditRepository     { return creditRepo{t} }
func (t *memTx) Animals() repository.AnimalRepository     { return animalRepo{t} }
func (t *memTx) HealthRecords() repository.HealthRecordRepository {
	return healthRecordRepo{t}
}
func (t *memTx) Registrations() repository.RegistrationRepository {
	return registrationRepo{t}
}
func (t *memTx) VerificationRequests() repository.VerificationRequestRepository {
	return requestRepo{t}
}
func (t *memTx) PeerVerifications() repository.PeerVerificationRepository {
	return peerRepo{t}
}
func (t *memTx) AnchorTasks() repository.AnchorTaskRepository     { return anchorTaskRepo{t} }
func (t *memTx) Notifications() repository.NotificationRepository { return notificationRepo{t} }
func (t *memTx) AuditLogs() repository.AuditLogRepository         { return auditLogRepo{t} }

func page[V any](items []V, p repository.Page) []V {
	if p.Offset >= len(items) {
		return []V{}
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}
