// internal/database/connection.go
package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/utils"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("host", cfg.Host).Info("Database connection established")
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"pgcrypto\"").Error; err != nil {
		return fmt.Errorf("failed to create pgcrypto extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.CreditTransaction{},
		&models.Animal{},
		&models.Registration{},
		&models.HealthRecord{},
		&models.VerificationRequest{},
		&models.PeerVerification{},
		&models.AnchorTask{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Professional ids are optional but unique when present.
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_users_professional_id ON users(professional_id) WHERE professional_id IS NOT NULL").Error; err != nil {
		return fmt.Errorf("failed to create professional id index: %w", err)
	}

	createIndexes(db)

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_role_status ON users(role, verification_status)",
		"CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_created ON credit_transactions(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_registrations_breeder_status ON registrations(breeder_professional_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_registrations_animal_status ON registrations(animal_id, status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_registrations_created_at ON registrations(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_anchor_tasks_due ON anchor_tasks(status, next_attempt_at)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
		}
	}
}

type seedUser struct {
	email          string
	password       string
	role           models.Role
	professionalID string
	credits        int
}

var seedUsers = []seedUser{
	{email: "admin@idsee.nl", password: "admin123", role: models.RoleAdmin, credits: 9999},
	{email: "fokker@test.nl", password: "fokker123", role: models.RoleBreeder, professionalID: "KVK-12345678", credits: 50},
	{email: "vet@test.nl", password: "dierenarts123", role: models.RoleVet, professionalID: "BIG-99123456789", credits: 100},
	{email: "chipper@test.nl", password: "chipper123", role: models.RoleChipper, professionalID: "NVWA-2024-001", credits: 50},
}

type seedAnimal struct {
	chipID     string
	species    string
	breed      string
	birthDate  string
	motherChip string
}

var seedAnimals = []seedAnimal{
	{chipID: "528140000123456", species: "dog", breed: "Labrador Retriever", birthDate: "2024-03-15"},
	{chipID: "528140000234567", species: "dog", breed: "Golden Retriever", birthDate: "2024-05-20", motherChip: "528140000111111"},
	{chipID: "528140000345678", species: "cat", breed: "Maine Coon", birthDate: "2024-01-10"},
}

// SeedInitialData creates the development accounts and a few confirmed
// animals. Starting balances are written through Purchase ledger entries so
// the log stays consistent with the balance.
func SeedInitialData(db *gorm.DB) error {
	logrus.Info("Seeding initial data...")

	return db.Transaction(func(tx *gorm.DB) error {
		var breeder *models.User
		for _, su := range seedUsers {
			user, err := seedAccount(tx, su)
			if err != nil {
				return err
			}
			if su.role == models.RoleBreeder {
				breeder = user
			}
		}
		if breeder == nil {
			return nil
		}

		for _, sa := range seedAnimals {
			if err := seedConfirmedAnimal(tx, breeder, sa); err != nil {
				return err
			}
		}

		logrus.Info("Initial data seeding completed")
		return nil
	})
}

func seedAccount(tx *gorm.DB, su seedUser) (*models.User, error) {
	var existing models.User
	if err := tx.Where("email = ?", su.email).First(&existing).Error; err == nil {
		return &existing, nil
	}

	now := time.Now()
	user := &models.User{
		Email:              su.email,
		Role:               su.role,
		VerificationStatus: models.VerificationStatusVerified,
		EmailVerified:      true,
		VerifiedAt:         &now,
		Credits:            su.credits,
	}
	if su.professionalID != "" {
		pid := su.professionalID
		user.ProfessionalID = &pid
		user.ProfessionalType = string(su.role)
	}
	if err := user.SetPassword(su.password); err != nil {
		return nil, fmt.Errorf("failed to set password for %s: %w", su.email, err)
	}
	if err := tx.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", su.email, err)
	}

	entry := &models.CreditTransaction{
		UserID:      user.ID,
		Amount:      su.credits,
		Kind:        models.CreditKindPurchase,
		Description: "Seed credits",
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record seed credits for %s: %w", su.email, err)
	}

	logrus.WithField("email", su.email).Info("Seed account created")
	return user, nil
}

func seedConfirmedAnimal(tx *gorm.DB, breeder *models.User, sa seedAnimal) error {
	chipHash := utils.HashChipID(sa.chipID)

	var count int64
	tx.Model(&models.Animal{}).Where("chip_hash = ?", chipHash).Count(&count)
	if count > 0 {
		return nil
	}

	birth, err := time.Parse("2006-01-02", sa.birthDate)
	if err != nil {
		return err
	}
	birthDate := datatypes.Date(birth)
	animal := &models.Animal{
		ChipHash:  chipHash,
		Species:   sa.species,
		Breed:     sa.breed,
		BirthDate: &birthDate,
	}
	if sa.motherChip != "" {
		mother := utils.HashChipID(sa.motherChip)
		animal.MotherChipHash = &mother
	}
	if err := tx.Create(animal).Error; err != nil {
		return fmt.Errorf("failed to create seed animal: %w", err)
	}

	now := time.Now()
	payload, err := json.Marshal(models.RegistrationPayload{
		ChipHash:     chipHash,
		Species:      sa.species,
		Breed:        sa.breed,
		RegisteredBy: breeder.ID,
		Timestamp:    now.UTC(),
	})
	if err != nil {
		return err
	}
	dataHash := utils.HashBytes(payload)
	reference := "demo_tx_" + dataHash[:32]
	registration := &models.Registration{
		UserID:                breeder.ID,
		AnimalID:              animal.ID,
		Payload:               datatypes.JSON(payload),
		DataHash:              dataHash,
		ExternalReference:     &reference,
		Status:                models.RegistrationStatusConfirmed,
		BreederProfessionalID: breeder.ProfessionalNumber(),
		BreederConfirmed:      true,
		BreederConfirmedAt:    &now,
		BreederUserID:         &breeder.ID,
		ConfirmedAt:           &now,
	}
	return tx.Omit("Animal").Create(registration).Error
}
