package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

// applicant creates a pending chipper with an open verification request.
func (f *fixture) applicant(email, professionalID string) (models.Actor, *models.VerificationRequest) {
	f.t.Helper()
	user := f.createUser(email, models.RoleChipper, models.VerificationStatusPending, 0, "")
	request, err := f.peers.SubmitRequest(f.ctx, user, &SubmitVerificationRequest{
		ProfessionalID:   professionalID,
		ProfessionalType: "chipper",
	})
	require.NoError(f.t, err)
	return f.actor(user.ID), request
}

func (f *fixture) freezeClock(at time.Time) {
	f.peers.now = func() time.Time { return at }
}

func TestPeerVerify_BondBoundary(t *testing.T) {
	f := newFixture(t, nil)
	short := f.createUser("short@example.com", models.RoleVet, models.VerificationStatusVerified, 9, "VET-1")
	exact := f.createUser("exact@example.com", models.RoleVet, models.VerificationStatusVerified, 10, "VET-2")
	_, request := f.applicant("new@example.com", "CH-1")

	_, err := f.peers.PeerVerify(f.ctx, short, request.ID)
	assert.ErrorIs(t, err, ErrInsufficientBond)
	assert.Equal(t, 0, f.balance(short).LockedCredits)

	result, err := f.peers.PeerVerify(f.ctx, exact, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, result.BondAmount)
	assert.Equal(t, &Balance{Credits: 10, LockedCredits: 10, Available: 0}, f.balance(exact))
}

func TestPeerVerify_LockAndRelease(t *testing.T) {
	f := newFixture(t, nil)
	start := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	f.freezeClock(start)

	verifier := f.createUser("vet@example.com", models.RoleVet, models.VerificationStatusVerified, 15, "VET-1")
	applicant, request := f.applicant("new@example.com", "CH-1")
	assert.Equal(t, models.VerificationStatusPending, applicant.VerificationStatus)

	result, err := f.peers.PeerVerify(f.ctx, verifier, request.ID)
	require.NoError(t, err)
	assert.Equal(t, applicant.ID, result.VerifiedUserID)
	assert.Equal(t, start.Add(30*24*time.Hour), result.BondLockedUntil)

	assert.Equal(t, models.VerificationStatusVerified, f.actor(applicant.ID).VerificationStatus)
	assert.Equal(t, &Balance{Credits: 15, LockedCredits: 10, Available: 5}, f.balance(verifier))

	mine, err := f.peers.MyVerifications(f.ctx, verifier)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.BondStatusLocked, mine[0].BondStatus)

	entries, err := f.ledger.Transactions(f.ctx, verifier.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.CreditKindBondLocked, entries[0].Kind)
	assert.Zero(t, entries[0].Amount, "the audit entry carries no amount")
	assert.Equal(t, -10, entries[1].Amount)

	_, err = f.peers.ReleaseBond(f.ctx, verifier, result.VerificationID)
	assert.ErrorIs(t, err, ErrTooEarly)

	f.freezeClock(start.Add(30*24*time.Hour - time.Second))
	_, err = f.peers.ReleaseBond(f.ctx, verifier, result.VerificationID)
	assert.ErrorIs(t, err, ErrTooEarly)

	f.freezeClock(start.Add(30 * 24 * time.Hour))
	released, err := f.peers.ReleaseBond(f.ctx, verifier, result.VerificationID)
	require.NoError(t, err)
	assert.Equal(t, models.BondStatusReleased, released.BondStatus)
	assert.Equal(t, models.PeerVerificationStatusCompleted, released.Status)
	assert.Equal(t, &Balance{Credits: 15, LockedCredits: 0, Available: 15}, f.balance(verifier))

	_, err = f.peers.ReleaseBond(f.ctx, verifier, result.VerificationID)
	assert.ErrorIs(t, err, ErrNotLocked)
}

func TestReleaseBond_OnlyOwner(t *testing.T) {
	f := newFixture(t, nil)
	verifier := f.createUser("vet@example.com", models.RoleVet, models.VerificationStatusVerified, 15, "VET-1")
	other := f.createUser("other@example.com", models.RoleVet, models.VerificationStatusVerified, 15, "VET-2")
	_, request := f.applicant("new@example.com", "CH-1")

	result, err := f.peers.PeerVerify(f.ctx, verifier, request.ID)
	require.NoError(t, err)

	_, err = f.peers.ReleaseBond(f.ctx, other, result.VerificationID)
	assert.ErrorIs(t, err, ErrNotBondOwner)

	_, err = f.peers.ReleaseBond(f.ctx, verifier, uuid.New())
	assert.ErrorIs(t, err, ErrVerificationNotFound)
}

func TestPeerVerify_Preconditions(t *testing.T) {
	f := newFixture(t, nil)
	verifier := f.createUser("vet@example.com", models.RoleVet, models.VerificationStatusVerified, 30, "VET-1")
	unverified := f.createUser("u@example.com", models.RoleVet, models.VerificationStatusPending, 30, "VET-2")
	applicant, request := f.applicant("new@example.com", "CH-1")

	_, err := f.peers.PeerVerify(f.ctx, unverified, request.ID)
	assert.ErrorIs(t, err, ErrNotVerified)

	suspended := verifier
	suspended.IsSuspended = true
	_, err = f.peers.PeerVerify(f.ctx, suspended, request.ID)
	assert.ErrorIs(t, err, ErrSuspended)

	_, err = f.peers.PeerVerify(f.ctx, verifier, uuid.New())
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.peers.PeerVerify(f.ctx, verifier, request.ID)
	require.NoError(t, err)

	_, err = f.peers.PeerVerify(f.ctx, verifier, request.ID)
	assert.ErrorIs(t, err, ErrAlreadyHandled)
	assert.Equal(t, 10, f.balance(verifier).LockedCredits, "a refused verification locks nothing")

	// Verified users cannot file another request.
	_, err = f.peers.SubmitRequest(f.ctx, f.actor(applicant.ID), &SubmitVerificationRequest{
		ProfessionalID: "CH-1", ProfessionalType: "chipper",
	})
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestPeerVerify_SelfVerification(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.createUser("admin@example.com", models.RoleAdmin, models.VerificationStatusVerified, 0, "")
	applicant, request := f.applicant("new@example.com", "CH-1")

	_, err := f.admin.SetVerificationStatus(f.ctx, admin, applicant.ID, &SetVerificationStatusRequest{
		Status: models.VerificationStatusRejected,
		Reason: "blurry scan",
	})
	require.NoError(t, err)

	reopened, err := f.peers.SubmitRequest(f.ctx, f.actor(applicant.ID), &SubmitVerificationRequest{
		ProfessionalID: "CH-1", ProfessionalType: "chipper",
	})
	require.NoError(t, err)
	assert.Equal(t, request.ID, reopened.ID)

	// Give the applicant verified status and credits, then let them vouch
	// for their own reopened request.
	err = f.store.RunInTx(f.ctx, func(tx repository.Tx) error {
		u, err := tx.Users().GetByIDForUpdate(f.ctx, applicant.ID)
		if err != nil {
			return err
		}
		u.VerificationStatus = models.VerificationStatusVerified
		if err := tx.Users().Update(f.ctx, u); err != nil {
			return err
		}
		return f.ledger.CreditTx(f.ctx, tx, applicant.ID, 20, models.CreditKindPurchase, "Test funding")
	})
	require.NoError(t, err)

	_, err = f.peers.PeerVerify(f.ctx, f.actor(applicant.ID), request.ID)
	assert.ErrorIs(t, err, ErrSelfVerification)
	assert.Equal(t, 0, f.balance(applicant).LockedCredits)
}

func TestSubmitRequest_DuplicateAndReopen(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.createUser("admin@example.com", models.RoleAdmin, models.VerificationStatusVerified, 0, "")
	applicant, request := f.applicant("new@example.com", "CH-1")
	assert.Equal(t, models.RequestStatusPending, request.Status)

	_, err := f.peers.SubmitRequest(f.ctx, applicant, &SubmitVerificationRequest{
		ProfessionalID: "CH-1", ProfessionalType: "chipper",
	})
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	other := f.createUser("other@example.com", models.RoleVet, models.VerificationStatusPending, 0, "")
	_, err = f.peers.SubmitRequest(f.ctx, other, &SubmitVerificationRequest{
		ProfessionalID: "CH-1", ProfessionalType: "vet",
	})
	assert.ErrorIs(t, err, ErrDuplicateProfessionalID)

	buyer := f.createUser("buyer@example.com", models.RoleBuyer, models.VerificationStatusPending, 0, "")
	_, err = f.peers.SubmitRequest(f.ctx, buyer, &SubmitVerificationRequest{
		ProfessionalID: "B-1", ProfessionalType: "buyer",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.admin.SetVerificationStatus(f.ctx, admin, applicant.ID, &SetVerificationStatusRequest{
		Status: models.VerificationStatusRejected,
		Reason: "blurry scan",
	})
	require.NoError(t, err)

	reopened, err := f.peers.SubmitRequest(f.ctx, f.actor(applicant.ID), &SubmitVerificationRequest{
		ProfessionalID: "CH-1", ProfessionalType: "chipper", Notes: "better scan attached",
	})
	require.NoError(t, err)
	assert.Equal(t, request.ID, reopened.ID)
	assert.Equal(t, models.RequestStatusPending, reopened.Status)
	assert.Empty(t, reopened.ReviewNote)
	assert.Equal(t, models.VerificationStatusPending, f.actor(applicant.ID).VerificationStatus)
}

func TestAddEvidence(t *testing.T) {
	f := newFixture(t, nil)
	applicant, _ := f.applicant("new@example.com", "CH-1")

	updated, err := f.peers.AddEvidence(f.ctx, applicant, "diploma.PDF", "application/pdf", strings.NewReader("%PDF-1.4 test"))
	require.NoError(t, err)
	require.Len(t, updated.EvidenceKeys, 1)

	key := updated.EvidenceKeys[0]
	assert.True(t, strings.HasPrefix(key, "evidence/"+applicant.ID.String()+"/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	body, err := os.ReadFile(filepath.Join(f.storage.config.LocalUploadDir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(body))

	_, err = f.peers.AddEvidence(f.ctx, applicant, "setup.exe", "application/octet-stream", strings.NewReader("MZ"))
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	_, err = f.peers.AddEvidence(f.ctx, applicant, "empty.png", "image/png", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidEvidence)

	stranger := f.createUser("s@example.com", models.RoleVet, models.VerificationStatusPending, 0, "")
	_, err = f.peers.AddEvidence(f.ctx, stranger, "a.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestForfeitBond_AdminOnly(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.createUser("admin@example.com", models.RoleAdmin, models.VerificationStatusVerified, 0, "")
	verifier := f.createUser("vet@example.com", models.RoleVet, models.VerificationStatusVerified, 15, "VET-1")
	_, request := f.applicant("new@example.com", "CH-1")

	result, err := f.peers.PeerVerify(f.ctx, verifier, request.ID)
	require.NoError(t, err)

	_, err = f.admin.ForfeitBond(f.ctx, verifier, result.VerificationID, "fraud")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.admin.ForfeitBond(f.ctx, admin, result.VerificationID, " ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	pv, err := f.admin.ForfeitBond(f.ctx, admin, result.VerificationID, "fraudulent diploma")
	require.NoError(t, err)
	assert.Equal(t, models.BondStatusForfeited, pv.BondStatus)
	assert.Equal(t, "fraudulent diploma", pv.ForfeitReason)
	assert.Equal(t, &Balance{Credits: 5, LockedCredits: 0, Available: 5}, f.balance(verifier))

	_, err = f.peers.ReleaseBond(f.ctx, verifier, result.VerificationID)
	assert.ErrorIs(t, err, ErrNotLocked)

	notifications, err := f.notifier.List(f.ctx, verifier.ID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationBondForfeited, notifications[0].Type)
}

func TestListPendingRequests_VerifiedOnly(t *testing.T) {
	f := newFixture(t, nil)
	verifier := f.createUser("vet@example.com", models.RoleVet, models.VerificationStatusVerified, 0, "VET-1")
	applicant, _ := f.applicant("new@example.com", "CH-1")

	requests, err := f.peers.ListPendingRequests(f.ctx, verifier)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, applicant.ID, requests[0].UserID)

	_, err = f.peers.ListPendingRequests(f.ctx, applicant)
	assert.ErrorIs(t, err, ErrNotVerified)
}
