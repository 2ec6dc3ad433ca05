package services

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

func TestLedger_LockRespectsAvailableBalance(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 10, "")

	require.NoError(t, f.ledger.LockCredits(f.ctx, user.ID, 8, "bond"))
	err := f.ledger.LockCredits(f.ctx, user.ID, 3, "bond")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	assert.Equal(t, &Balance{Credits: 10, LockedCredits: 8, Available: 2}, f.balance(user))
}

func TestLedger_DebitCannotSpendLockedCredits(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 10, "")
	require.NoError(t, f.ledger.LockCredits(f.ctx, user.ID, 8, "bond"))

	err := f.ledger.Debit(f.ctx, user.ID, 3, "usage")
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	require.NoError(t, f.ledger.Debit(f.ctx, user.ID, 2, "usage"))
	assert.Equal(t, &Balance{Credits: 8, LockedCredits: 8, Available: 0}, f.balance(user))
}

func TestLedger_LockThenReleaseRestoresBalance(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 10, "")
	before := f.balance(user)

	require.NoError(t, f.ledger.LockCredits(f.ctx, user.ID, 5, "bond"))
	require.NoError(t, f.ledger.ReleaseCredits(f.ctx, user.ID, 5, "bond back"))

	assert.Equal(t, before, f.balance(user))

	entries, err := f.ledger.Transactions(f.ctx, user.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	net := 0
	for _, e := range entries {
		if e.Kind == models.CreditKindBondLocked || e.Kind == models.CreditKindBondReleased {
			net += e.Amount
		}
	}
	assert.Zero(t, net)
	// newest first
	assert.Equal(t, models.CreditKindBondReleased, entries[0].Kind)
	assert.Equal(t, models.CreditKindBondLocked, entries[1].Kind)
}

func TestLedger_ForfeitRemovesLockedCredits(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 15, "")
	require.NoError(t, f.ledger.LockCredits(f.ctx, user.ID, 10, "bond"))

	require.NoError(t, f.ledger.ForfeitCredits(f.ctx, user.ID, 10, "fraud"))
	assert.Equal(t, &Balance{Credits: 5, LockedCredits: 0, Available: 5}, f.balance(user))

	entries, err := f.ledger.Transactions(f.ctx, user.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.CreditKindBondForfeited, entries[0].Kind)
	assert.Zero(t, entries[0].Amount)
	assert.Equal(t, 5, ledgerSum(entries), "log reconciles with the available balance after a forfeit")

	err = f.ledger.ForfeitCredits(f.ctx, user.ID, 1, "again")
	assert.ErrorIs(t, err, ErrNotLocked)
}

func ledgerSum(entries []models.CreditTransaction) int {
	sum := 0
	for _, e := range entries {
		sum += e.Amount
	}
	return sum
}

func TestLedger_ReleaseMoreThanLocked(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 10, "")
	require.NoError(t, f.ledger.LockCredits(f.ctx, user.ID, 2, "bond"))

	err := f.ledger.ReleaseCredits(f.ctx, user.ID, 3, "too much")
	assert.ErrorIs(t, err, ErrNotLocked)
	assert.Equal(t, 2, f.balance(user).LockedCredits)
}

func TestLedger_RejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 10, "")

	assert.ErrorIs(t, f.ledger.Debit(f.ctx, user.ID, 0, "zero"), ErrInvalidAmount)
	assert.ErrorIs(t, f.ledger.LockCredits(f.ctx, user.ID, -1, "negative"), ErrInvalidAmount)
	assert.Error(t, f.ledger.Credit(f.ctx, user.ID, 5, models.CreditKindUsage, "wrong kind"))

	_, err := f.ledger.Balance(f.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedger_FailedMutationLeavesNoEntry(t *testing.T) {
	f := newFixture(t, nil)
	user := f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 1, "")

	require.ErrorIs(t, f.ledger.Debit(f.ctx, user.ID, 2, "usage"), ErrInsufficientCredits)

	entries, err := f.ledger.Transactions(f.ctx, user.ID, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// Random interleavings of lock, release, forfeit, debit and credit from concurrent
// callers never break lockedCredits <= credits, and the log always sums to
// the available balance.
func TestLedger_RandomInterleavingsKeepInvariants(t *testing.T) {
	f := newFixture(t, nil)
	users := []models.Actor{
		f.createUser("a@example.com", models.RoleVet, models.VerificationStatusVerified, 20, ""),
		f.createUser("b@example.com", models.RoleBreeder, models.VerificationStatusVerified, 5, ""),
	}

	const workers = 4
	const opsPerWorker = 150

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < opsPerWorker; i++ {
				user := users[rng.Intn(len(users))]
				amount := rng.Intn(12) + 1
				switch rng.Intn(5) {
				case 0:
					_ = f.ledger.LockCredits(f.ctx, user.ID, amount, "lock")
				case 1:
					_ = f.ledger.ReleaseCredits(f.ctx, user.ID, amount, "release")
				case 2:
					_ = f.ledger.Debit(f.ctx, user.ID, amount, "debit")
				case 4:
					_ = f.ledger.ForfeitCredits(f.ctx, user.ID, amount, "forfeit")
				case 3:
					_ = f.ledger.Credit(f.ctx, user.ID, amount, models.CreditKindPurchase, "top up")
				}
			}
		}(int64(42 + w))
	}
	wg.Wait()

	for _, user := range users {
		b := f.balance(user)
		assert.GreaterOrEqual(t, b.LockedCredits, 0)
		assert.LessOrEqual(t, b.LockedCredits, b.Credits)
		assert.Equal(t, b.Credits-b.LockedCredits, b.Available)

		entries, err := f.ledger.Transactions(f.ctx, user.ID, repository.Page{})
		require.NoError(t, err)
		assert.Equal(t, b.Available, ledgerSum(entries), "ledger log must reconcile with the available balance")
	}
}
