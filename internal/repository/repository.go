package repository

import (
	"context"
	"errors"
	"time"

	"github.com/natsukage/task-tracker-api/internal/models"
)

var (
	// ErrForeignTask is returned by Reorder when the mapping references a task
	// that does not belong to the owner. The whole mapping is rejected.
	ErrForeignTask = errors.New("task repository: task does not belong to owner")
	// ErrConflict is returned when a concurrent transaction invalidated a
	// read-then-write sequence (lock wait, deadlock, transaction timeout).
	// The caller may retry with fresh state.
	ErrConflict = errors.New("task repository: concurrent modification")
)

// TaskChanges holds the mutable fields of a task for Update. A nil field is
// left unchanged. Order is deliberately absent: it only moves through Append
// and Reorder.
type TaskChanges struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
}

// TaskFilter narrows an owner-scoped listing.
type TaskFilter struct {
	Status   *models.TaskStatus
	Priority *models.TaskPriority
	Search   string
}

// AdminTaskFilter narrows the cross-user listing available to admins.
type AdminTaskFilter struct {
	UserID   *uint64
	Status   *models.TaskStatus
	Priority *models.TaskPriority
	Search   string
	Page     int
	PageSize int
}

// StatusCounts breaks task totals down by status.
type StatusCounts struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
}

// PriorityCounts breaks task totals down by priority.
type PriorityCounts struct {
	Low    int64 `json:"low"`
	Medium int64 `json:"medium"`
	High   int64 `json:"high"`
}

// TaskStatistics aggregates task counts for one owner or the whole system.
type TaskStatistics struct {
	Total      int64          `json:"total"`
	ByStatus   StatusCounts   `json:"by_status"`
	ByPriority PriorityCounts `json:"by_priority"`
}

// TaskRepository is the ordering store: it owns the per-user dense order
// sequence. Append and Reorder for the same owner serialize on that owner's
// rows; operations for different owners run independently. Delete does not
// renumber the remaining orders.
type TaskRepository interface {
	// Append inserts the task at the end of the owner's list, computing the
	// next order value inside the same transaction.
	Append(ctx context.Context, ownerID uint64, task *models.Task) error

	// FindByID finds a task by ID with optional preloading.
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// ListByOwner returns the owner's tasks ordered by their order key.
	ListByOwner(ctx context.Context, ownerID uint64, filter TaskFilter) ([]models.Task, error)

	// ListAll returns tasks across all users with filtering and pagination.
	ListAll(ctx context.Context, filter AdminTaskFilter) ([]models.Task, int64, error)

	// Update applies field changes to the task. A status transition into
	// completed stamps CompletedAt; a transition out of completed clears it.
	Update(ctx context.Context, task *models.Task, changes TaskChanges) error

	// Delete removes the task row. Remaining orders are left as-is.
	Delete(ctx context.Context, id uint64) error

	// Reorder replaces order values for the owner's tasks in one transaction.
	// Every mapping key must belong to the owner or the whole call fails with
	// ErrForeignTask. The mapping is taken as-is; contiguity of the result is
	// the caller's contract.
	Reorder(ctx context.Context, ownerID uint64, mapping map[uint64]int) error

	// Statistics aggregates counts for one owner.
	Statistics(ctx context.Context, ownerID uint64) (*TaskStatistics, error)

	// GlobalStatistics aggregates counts across all users.
	GlobalStatistics(ctx context.Context) (*TaskStatistics, error)

	// Recent returns the newest tasks across all users with owners preloaded.
	Recent(ctx context.Context, limit int) ([]models.Task, error)

	// DeleteCreatedBefore removes tasks created before the cutoff and returns
	// the deleted rows.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Task, error)
}

// UserCounts pairs a user with aggregate task counts for admin listings.
type UserCounts struct {
	User           models.User `json:"user"`
	TasksCount     int64       `json:"tasks_count"`
	CompletedCount int64       `json:"completed_tasks_count"`
	PendingCount   int64       `json:"pending_tasks_count"`
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// Count returns the total number of users
	Count(ctx context.Context) (int64, error)

	// CountAdmins returns the number of admin users
	CountAdmins(ctx context.Context) (int64, error)
}
