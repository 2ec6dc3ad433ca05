package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
	"github.com/idsee/registry-backend/internal/repository/memory"
	"github.com/idsee/registry-backend/internal/utils"
)

type mockAnchorClient struct {
	mock.Mock
}

func (m *mockAnchorClient) ComputeCanonicalHash(data []byte) string {
	return utils.HashBytes(data)
}

func (m *mockAnchorClient) AnchorRecord(ctx context.Context, digest string) (string, error) {
	args := m.Called(ctx, digest)
	return args.String(0), args.Error(1)
}

var testRegistryConfig = config.RegistryConfig{
	RegistrationCost: 1,
	HealthRecordCost: 1,
	VerificationBond: 10,
	BondLockDays:     30,
	StarterCredits:   5,
	MinChipIDLength:  10,
	PurchaseEnabled:  true,
}

var testAnchorConfig = config.AnchorConfig{
	Mode:        "demo",
	Timeout:     time.Second,
	MaxRetries:  0,
	MaxAttempts: 3,
	BatchSize:   10,
	Lease:       time.Minute,
}

type fixture struct {
	t             *testing.T
	ctx           context.Context
	store         *memory.Store
	ledger        *LedgerService
	anchor        *AnchorService
	notifier      *NotificationService
	storage       *StorageService
	registry      *RegistryService
	confirmations *ConfirmationService
	peers         *PeerVerificationService
	admin         *AdminService
	worker        *AnchorWorker
}

// newFixture wires every service against a fresh in-memory store. A nil
// client anchors instantly through the demo client.
func newFixture(t *testing.T, client AnchorClient) *fixture {
	t.Helper()
	if client == nil {
		client = NewDemoAnchorClient(0)
	}

	store := memory.NewStore()
	storage, err := NewStorageService(config.AWSConfig{LocalUploadDir: t.TempDir()})
	require.NoError(t, err)

	ledger := NewLedgerService(store, nil)
	anchor := NewAnchorService(client, testAnchorConfig)
	notifier := NewNotificationService(store)
	peers := NewPeerVerificationService(store, ledger, storage, notifier, testRegistryConfig, nil)

	return &fixture{
		t:             t,
		ctx:           context.Background(),
		store:         store,
		ledger:        ledger,
		anchor:        anchor,
		notifier:      notifier,
		storage:       storage,
		registry:      NewRegistryService(store, ledger, anchor, testRegistryConfig, nil),
		confirmations: NewConfirmationService(store, anchor, notifier, nil),
		peers:         peers,
		admin:         NewAdminService(store, ledger, peers, anchor, notifier, nil),
		worker:        NewAnchorWorker(store, anchor, notifier, testAnchorConfig, nil),
	}
}

// createUser inserts an account and funds it through a Purchase entry.
func (f *fixture) createUser(email string, role models.Role, status models.VerificationStatus, credits int, professionalID string) models.Actor {
	f.t.Helper()
	user := &models.User{
		Email:              email,
		PasswordHash:       "x",
		Role:               role,
		VerificationStatus: status,
		EmailVerified:      true,
	}
	if professionalID != "" {
		user.ProfessionalID = &professionalID
	}
	err := f.store.RunInTx(f.ctx, func(tx repository.Tx) error {
		if err := tx.Users().Create(f.ctx, user); err != nil {
			return err
		}
		if credits > 0 {
			return f.ledger.CreditTx(f.ctx, tx, user.ID, credits, models.CreditKindPurchase, "Test funding")
		}
		return nil
	})
	require.NoError(f.t, err)
	return f.actor(user.ID)
}

// actor reloads the current identity of a user, as the auth middleware does.
func (f *fixture) actor(id uuid.UUID) models.Actor {
	f.t.Helper()
	var actor models.Actor
	err := f.store.View(f.ctx, func(tx repository.Tx) error {
		u, err := tx.Users().GetByID(f.ctx, id)
		if err != nil {
			return err
		}
		actor = u.Actor()
		return nil
	})
	require.NoError(f.t, err)
	return actor
}

func (f *fixture) balance(actor models.Actor) *Balance {
	f.t.Helper()
	b, err := f.ledger.Balance(f.ctx, actor.ID)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) registration(id uuid.UUID) *models.Registration {
	f.t.Helper()
	var reg *models.Registration
	err := f.store.View(f.ctx, func(tx repository.Tx) error {
		var err error
		reg, err = tx.Registrations().GetByID(f.ctx, id)
		return err
	})
	require.NoError(f.t, err)
	return reg
}

// breederAndRegistration registers one animal by a verified vet that names
// breeder KVK-1 and returns the breeder and the registration id.
func (f *fixture) breederAndRegistration(chipID string) (models.Actor, *RegisterAnimalResult) {
	f.t.Helper()
	breeder := f.createUser("breeder@example.com", models.RoleBreeder, models.VerificationStatusVerified, 5, "KVK-1")
	vet := f.createUser("vet@example.com", models.RoleVet, models.VerificationStatusVerified, 5, "VET-1")

	result, err := f.registry.RegisterAnimal(f.ctx, vet, &RegisterAnimalRequest{
		ChipID:                chipID,
		Species:               "dog",
		BreederProfessionalID: "KVK-1",
	})
	require.NoError(f.t, err)
	return breeder, result
}
