// internal/repository/postgres/store.go
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/idsee/registry-backend/internal/repository"
)

const uniqueViolation = "23505"

// Store implements repository.Store on top of gorm and PostgreSQL.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgTx{db: tx})
	})
}

// View runs fn in a read-only repeatable-read transaction, so every query in
// fn sees one snapshot.
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

type pgTx struct {
	db *gorm.DB
}

func (t *pgTx) Users() repository.UserRepository     { return userRepo{t.db} }
func (t *pgTx) Credits() repository.CreditRepository { return creditRepo{t.db} }
func (t *pgTx) Animals() repository.AnimalRepository { return animalRepo{t.db} }
func (t *pgTx) Registrations() repository.RegistrationRepository {
	return registrationRepo{t.db}
}
func (t *pgTx) HealthRecords() repository.HealthRecordRepository {
	return healthRecordRepo{t.db}
}
func (t *pgTx) VerificationRequests() repository.VerificationRequestRepository {
	return requestRepo{t.db}
}
func (t *pgTx) PeerVerifications() repository.PeerVerificationRepository {
	return peerRepo{t.db}
}
func (t *pgTx) AnchorTasks() repository.AnchorTaskRepository {
	return anchorTaskRepo{t.db}
}
func (t *pgTx) Notifications() repository.NotificationRepository {
	return notificationRepo{t.db}
}
func (t *pgTx) AuditLogs() repository.AuditLogRepository { return auditLogRepo{t.db} }

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	return err
}

func paginate(db *gorm.DB, p repository.Page) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}
