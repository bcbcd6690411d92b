package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/natsukage/task-tracker-api/internal/database"
	"github.com/natsukage/task-tracker-api/internal/models"
	"github.com/natsukage/task-tracker-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// opTimeout bounds every store transaction so no caller blocks indefinitely;
// hitting it surfaces as ErrConflict.
const opTimeout = 5 * time.Second

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Append inserts the task at the end of the owner's list. The max-order read
// and the insert share one transaction, with the owner's rows locked so two
// concurrent appends never receive the same order value.
func (r *GormTaskRepository) Append(ctx context.Context, ownerID uint64, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		query := tx.Model(&models.Task{}).
			Where("user_id = ?", ownerID).
			Select("COALESCE(MAX(sort_order), -1) + 1")
		if err := lockForUpdate(query).Scan(&next).Error; err != nil {
			return err
		}

		task.UserID = ownerID
		task.Order = next
		if task.Status == models.TaskStatusCompleted && task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		}

		return tx.Create(task).Error
	})

	return translateError(err)
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// ListByOwner returns the owner's tasks ordered by their order key.
func (r *GormTaskRepository) ListByOwner(ctx context.Context, ownerID uint64, filter TaskFilter) ([]models.Task, error) {
	var tasks []models.Task

	query := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("user_id = ?", ownerID)
	query = applyTaskFilters(query, filter.Status, filter.Priority, filter.Search)

	if err := query.Order("sort_order ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// ListAll returns tasks across all users with filtering and pagination.
func (r *GormTaskRepository) ListAll(ctx context.Context, filter AdminTaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.WithContext(ctx).Model(&models.Task{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	query = applyTaskFilters(query, filter.Status, filter.Priority, filter.Search)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("sort_order ASC").Order("id ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Page:   filter.Page,
			Limit:  filter.PageSize,
			Offset: (filter.Page - 1) * filter.PageSize,
		}))
	}

	if err := listQuery.Preload("User").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update applies field changes. Entering completed stamps CompletedAt,
// leaving it clears the stamp; a completed→pending→completed round trip gets
// a fresh timestamp. Order never moves through this path.
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task, changes TaskChanges) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if changes.Title != nil {
		task.Title = *changes.Title
	}
	if changes.Description != nil {
		task.Description = *changes.Description
	}
	if changes.Priority != nil {
		task.Priority = *changes.Priority
	}
	if changes.Status != nil && *changes.Status != task.Status {
		if *changes.Status == models.TaskStatusCompleted {
			now := time.Now()
			task.CompletedAt = &now
		} else if task.Status == models.TaskStatusCompleted {
			task.CompletedAt = nil
		}
		task.Status = *changes.Status
	}

	// Save instead of Updates: CompletedAt must be writable back to NULL.
	return translateError(r.db.WithContext(ctx).Save(task).Error)
}

// Delete removes the task row. Remaining order values are left untouched; the
// next client-issued reorder supplies the fresh mapping.
func (r *GormTaskRepository) Delete(ctx context.Context, id uint64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return translateError(r.db.WithContext(ctx).Delete(&models.Task{}, id).Error)
}

// Reorder replaces order values for the owner's tasks in one transaction.
func (r *GormTaskRepository) Reorder(ctx context.Context, ownerID uint64, mapping map[uint64]int) error {
	if len(mapping) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ownedIDs []uint64
		query := tx.Model(&models.Task{}).Where("user_id = ?", ownerID)
		if err := lockForUpdate(query).Pluck("id", &ownedIDs).Error; err != nil {
			return err
		}

		owned := make(map[uint64]struct{}, len(ownedIDs))
		for _, id := range ownedIDs {
			owned[id] = struct{}{}
		}

		// Reject the whole mapping before writing anything.
		for taskID := range mapping {
			if _, ok := owned[taskID]; !ok {
				return ErrForeignTask
			}
		}

		for taskID, order := range mapping {
			if err := tx.Model(&models.Task{}).
				Where("id = ? AND user_id = ?", taskID, ownerID).
				Update("sort_order", order).Error; err != nil {
				return err
			}
		}

		return nil
	})

	return translateError(err)
}

// Statistics aggregates counts for one owner.
func (r *GormTaskRepository) Statistics(ctx context.Context, ownerID uint64) (*TaskStatistics, error) {
	return r.aggregate(ctx, &ownerID)
}

// GlobalStatistics aggregates counts across all users.
func (r *GormTaskRepository) GlobalStatistics(ctx context.Context) (*TaskStatistics, error) {
	return r.aggregate(ctx, nil)
}

// Recent returns the newest tasks across all users with owners preloaded.
func (r *GormTaskRepository) Recent(ctx context.Context, limit int) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// DeleteCreatedBefore removes tasks created before the cutoff and returns the
// deleted rows for audit logging.
func (r *GormTaskRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var deleted []models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", cutoff).Find(&deleted).Error; err != nil {
			return err
		}
		if len(deleted) == 0 {
			return nil
		}
		return tx.Where("created_at < ?", cutoff).Delete(&models.Task{}).Error
	})
	if err != nil {
		return nil, translateError(err)
	}

	return deleted, nil
}

func (r *GormTaskRepository) aggregate(ctx context.Context, ownerID *uint64) (*TaskStatistics, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Task{})
		if ownerID != nil {
			q = q.Where("user_id = ?", *ownerID)
		}
		return q
	}

	type bucket struct {
		Key   string `gorm:"column:bucket_key"`
		Count int64  `gorm:"column:bucket_count"`
	}

	var byStatus []bucket
	err := scoped().
		Select("status AS bucket_key, COUNT(*) AS bucket_count").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}

	var byPriority []bucket
	err = scoped().
		Select("priority AS bucket_key, COUNT(*) AS bucket_count").
		Group("priority").
		Scan(&byPriority).Error
	if err != nil {
		return nil, err
	}

	stats := &TaskStatistics{}
	for _, b := range byStatus {
		stats.Total += b.Count
		switch models.TaskStatus(b.Key) {
		case models.TaskStatusPending:
			stats.ByStatus.Pending = b.Count
		case models.TaskStatusInProgress:
			stats.ByStatus.InProgress = b.Count
		case models.TaskStatusCompleted:
			stats.ByStatus.Completed = b.Count
		}
	}
	for _, b := range byPriority {
		switch models.TaskPriority(b.Key) {
		case models.TaskPriorityLow:
			stats.ByPriority.Low = b.Count
		case models.TaskPriorityMedium:
			stats.ByPriority.Medium = b.Count
		case models.TaskPriorityHigh:
			stats.ByPriority.High = b.Count
		}
	}

	return stats, nil
}

// applyTaskFilters adds the optional status/priority/search predicates shared
// by owner and admin listings. Search is a case-insensitive substring match
// across title and description.
func applyTaskFilters(query *gorm.DB, status *models.TaskStatus, priority *models.TaskPriority, search string) *gorm.DB {
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if priority != nil {
		query = query.Where("priority = ?", *priority)
	}
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	return query
}

// lockForUpdate adds a row lock on the selected range. SQLite (used by the
// test suites) serializes writers on its own and rejects FOR UPDATE syntax,
// so the clause is only added for server databases.
func lockForUpdate(query *gorm.DB) *gorm.DB {
	if query.Dialector.Name() == "sqlite" {
		return query
	}
	return query.Clauses(clause.Locking{Strength: "UPDATE"})
}

// translateError maps driver-level concurrency failures onto ErrConflict.
// MySQL 1205 is a lock wait timeout, 1213 a deadlock; a transaction that
// outlives opTimeout counts as a conflict too, per the store contract.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrConflict
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && (mysqlErr.Number == 1205 || mysqlErr.Number == 1213) {
		return ErrConflict
	}
	return err
}
