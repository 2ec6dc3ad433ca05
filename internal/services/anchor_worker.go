// internal/services/anchor_worker.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/metrics"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
)

// AnchorWorker drains the anchoring queue written by RegisterAnimal. Each
// outcome is applied in its own unit of work: success confirms a still
// Pending registration, and the final failed attempt marks it Failed.
type AnchorWorker struct {
	store    repository.Store
	anchor   *AnchorService
	notifier *NotificationService
	config   config.AnchorConfig
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAnchorWorker(store repository.Store, anchor *AnchorService, notifier *NotificationService, cfg config.AnchorConfig, m *metrics.Metrics) *AnchorWorker {
	return &AnchorWorker{
		store:    store,
		anchor:   anchor,
		notifier: notifier,
		config:   cfg,
		metrics:  m,
		now:      time.Now,
	}
}

// ProcessDue claims one batch of due tasks and anchors them. It returns the
// number of tasks claimed.
func (w *AnchorWorker) ProcessDue(ctx context.Context) (int, error) {
	var tasks []models.AnchorTask
	err := w.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		tasks, err = tx.AnchorTasks().ClaimDue(ctx, w.now(), w.config.Lease, w.config.BatchSize)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to claim anchor tasks: %w", err)
	}
	w.metrics.TasksClaimed(len(tasks))

	for i := range tasks {
		task := tasks[i]
		ref, anchorErr := w.anchor.Anchor(ctx, task.Digest)
		if anchorErr != nil {
			w.metrics.AnchorOutcome("queue", "failure")
		} else {
			w.metrics.AnchorOutcome("queue", "success")
		}

		if err := w.complete(ctx, &task, ref, anchorErr); err != nil {
			logrus.WithError(err).WithField("task_id", task.ID).Error("Failed to record anchoring outcome")
		}
	}
	return len(tasks), nil
}

func (w *AnchorWorker) complete(ctx context.Context, claimed *models.AnchorTask, ref string, anchorErr error) error {
	return w.store.RunInTx(ctx, func(tx repository.Tx) error {
		task, err := tx.AnchorTasks().GetByIDForUpdate(ctx, claimed.ID)
		if err != nil {
			return err
		}
		// Another worker reclaimed the task after our lease ran out.
		if task.Status != models.AnchorTaskStatusProcessing || !sameClaim(task.ClaimedAt, claimed.ClaimedAt) {
			return nil
		}

		reg, err := tx.Registrations().GetByIDForUpdate(ctx, task.RegistrationID)
		if err != nil {
			return mapNotFound(err, ErrRegistrationNotFound)
		}

		now := w.now()
		task.Attempts++
		if anchorErr == nil {
			task.Status = models.AnchorTaskStatusDone
			task.CompletedAt = &now
			task.LastError = ""
			if err := w.applySuccess(ctx, tx, reg, ref, now); err != nil {
				return err
			}
			return tx.AnchorTasks().Update(ctx, task)
		}

		task.LastError = anchorErr.Error()
		task.ClaimedAt = nil
		if task.Attempts < w.config.MaxAttempts {
			task.Status = models.AnchorTaskStatusQueued
			task.NextAttemptAt = now.Add(retryDelay(task.Attempts))
			return tx.AnchorTasks().Update(ctx, task)
		}

		task.Status = models.AnchorTaskStatusFailed
		task.CompletedAt = &now
		if err := tx.AnchorTasks().Update(ctx, task); err != nil {
			return err
		}
		if reg.Status != models.RegistrationStatusPending {
			return nil
		}
		reg.Status = models.RegistrationStatusFailed
		reg.FailedAt = &now
		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return fmt.Errorf("failed to mark registration failed: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"registration_id": reg.ID,
			"attempts":        task.Attempts,
		}).Warn("Anchoring gave up, registration failed")
		return w.notifier.RegistrationFailedTx(ctx, tx, reg)
	})
}

func (w *AnchorWorker) applySuccess(ctx context.Context, tx repository.Tx, reg *models.Registration, ref string, now time.Time) error {
	switch {
	case reg.Status == models.RegistrationStatusPending:
		reg.Status = models.RegistrationStatusConfirmed
		reg.ConfirmedAt = &now
	case reg.Status == models.RegistrationStatusConfirmed && reg.ExternalReference == nil:
	default:
		return nil
	}
	reg.ExternalReference = &ref
	if err := tx.Registrations().Update(ctx, reg); err != nil {
		return fmt.Errorf("failed to record anchoring: %w", err)
	}
	return nil
}

func sameClaim(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return time.Second
	}
	delay := time.Duration(1<<min(attempt, 8)) * time.Second
	if delay > 300*time.Second {
		return 300 * time.Second
	}
	return delay
}

// AnchorScheduler runs the worker on the configured cron schedule.
type AnchorScheduler struct {
	cron     *cron.Cron
	worker   *AnchorWorker
	schedule string
}

func NewAnchorScheduler(worker *AnchorWorker, schedule string) *AnchorScheduler {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &AnchorScheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		worker:   worker,
		schedule: schedule,
	}
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running batch to finish.
func (s *AnchorScheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		claimed, err := s.worker.ProcessDue(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithError(err).Error("Anchoring batch failed")
			return
		}
		if claimed > 0 {
			logrus.WithField("claimed", claimed).Debug("Anchoring batch processed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid anchor worker schedule %q: %w", s.schedule, err)
	}

	logrus.WithField("schedule", s.schedule).Info("Anchor worker scheduled")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
