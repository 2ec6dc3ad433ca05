package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

func TestAnchorWorker_ConfirmsPendingRegistration(t *testing.T) {
	f := newFixture(t, nil)
	_, result := f.breederAndRegistration("528000000000001")

	claimed, err := f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)

	reg := f.registration(result.RegistrationID)
	assert.Equal(t, models.RegistrationStatusConfirmed, reg.Status)
	assert.False(t, reg.BreederConfirmed, "anchoring alone does not count as breeder confirmation")
	require.NotNil(t, reg.ExternalReference)
	assert.NotNil(t, reg.ConfirmedAt)

	claimed, err = f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed, "finished tasks are not claimed again")
}

func TestAnchorWorker_KeepsBreederReference(t *testing.T) {
	f := newFixture(t, nil)
	breeder, result := f.breederAndRegistration("528000000000001")

	confirmed, err := f.confirmations.Confirm(f.ctx, breeder, result.RegistrationID)
	require.NoError(t, err)
	require.NotNil(t, confirmed.ExternalReference)
	ref := *confirmed.ExternalReference

	claimed, err := f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)

	reg := f.registration(result.RegistrationID)
	assert.Equal(t, ref, *reg.ExternalReference)
	assert.True(t, reg.BreederConfirmed)
}

func TestAnchorWorker_RetriesThenFails(t *testing.T) {
	client := new(mockAnchorClient)
	client.On("AnchorRecord", mock.Anything, mock.Anything).Return("", errors.New("ledger offline"))

	f := newFixture(t, client)
	_, result := f.breederAndRegistration("528000000000001")

	clock := time.Now().Add(time.Minute)
	f.worker.now = func() time.Time { return clock }

	claimed, err := f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, models.RegistrationStatusPending, f.registration(result.RegistrationID).Status)

	claimed, err = f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed, "a failed task waits for its backoff")

	for attempt := 2; attempt <= testAnchorConfig.MaxAttempts; attempt++ {
		clock = clock.Add(10 * time.Second)
		claimed, err = f.worker.ProcessDue(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, claimed, "attempt %d", attempt)
	}

	reg := f.registration(result.RegistrationID)
	assert.Equal(t, models.RegistrationStatusFailed, reg.Status)
	assert.NotNil(t, reg.FailedAt)
	assert.Nil(t, reg.ExternalReference)

	clock = clock.Add(time.Hour)
	claimed, err = f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed)

	client.AssertNumberOfCalls(t, "AnchorRecord", testAnchorConfig.MaxAttempts)

	notifications, err := f.notifier.List(f.ctx, reg.UserID, repository.Page{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationRegistrationFailed, notifications[0].Type)
}

func TestAnchorWorker_ReclaimsExpiredLease(t *testing.T) {
	f := newFixture(t, nil)
	_, result := f.breederAndRegistration("528000000000001")

	now := time.Now().Add(time.Second)
	err := f.store.RunInTx(f.ctx, func(tx repository.Tx) error {
		tasks, err := tx.AnchorTasks().ClaimDue(f.ctx, now, testAnchorConfig.Lease, 10)
		require.Len(t, tasks, 1)
		return err
	})
	require.NoError(t, err)

	f.worker.now = func() time.Time { return now.Add(30 * time.Second) }
	claimed, err := f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed, "a live claim belongs to the other worker")

	f.worker.now = func() time.Time { return now.Add(2 * testAnchorConfig.Lease) }
	claimed, err = f.worker.ProcessDue(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, models.RegistrationStatusConfirmed, f.registration(result.RegistrationID).Status)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, 256 * time.Second},
		{50, 256 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestAnchorScheduler_InvalidSchedule(t *testing.T) {
	f := newFixture(t, nil)
	scheduler := NewAnchorScheduler(f.worker, "every now and then")

	err := scheduler.Run(context.Background())
	assert.Error(t, err)
}
