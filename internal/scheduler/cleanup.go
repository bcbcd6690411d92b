// Package scheduler runs the periodic maintenance jobs that live outside the
// request path.
package scheduler

import (
	"context"
	"time"

	"github.com/natsukage/task-tracker-api/internal/constants"
	"github.com/natsukage/task-tracker-api/internal/repository"
	"github.com/sirupsen/logrus"
)

const defaultSweepInterval = time.Hour

// Cleanup deletes tasks older than the retention window. It is the only
// automatic transition in the task lifecycle; everything else is an explicit
// client request.
type Cleanup struct {
	taskRepo  repository.TaskRepository
	logger    *logrus.Logger
	interval  time.Duration
	retention time.Duration
}

// NewCleanup creates the retention sweep with the default hourly cadence.
func NewCleanup(taskRepo repository.TaskRepository, logger *logrus.Logger) *Cleanup {
	return &Cleanup{
		taskRepo:  taskRepo,
		logger:    logger,
		interval:  defaultSweepInterval,
		retention: constants.TaskRetentionWindow,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (c *Cleanup) Run(ctx context.Context) {
	c.Sweep(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep removes every task created before the retention cutoff.
func (c *Cleanup) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-c.retention)

	c.logger.WithField("cutoff", cutoff.Format(time.RFC3339)).Info("starting task cleanup")

	deleted, err := c.taskRepo.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		c.logger.WithError(err).Error("task cleanup failed")
		return
	}

	for _, task := range deleted {
		c.logger.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"task_title": task.Title,
			"user_id":    task.UserID,
			"created_at": task.CreatedAt.Format(time.RFC3339),
		}).Info("deleted old task")
	}

	c.logger.WithField("tasks_deleted", len(deleted)).Info("task cleanup completed")
}
