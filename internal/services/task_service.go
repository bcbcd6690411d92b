package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/natsukage/task-tracker-api/internal/constants"
	"github.com/natsukage/task-tracker-api/internal/events"
	"github.com/natsukage/task-tracker-api/internal/models"
	"github.com/natsukage/task-tracker-api/internal/policy"
	"github.com/natsukage/task-tracker-api/internal/repository"
	"gorm.io/gorm"
)

// TaskService is the single authority for task mutations: it runs the
// authorization policy before every owner-scoped operation, delegates to the
// ordering store, and publishes an event once the mutation has committed.
type TaskService struct {
	taskRepo repository.TaskRepository
	notifier events.Notifier
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, notifier events.Notifier) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		notifier: notifier,
	}
}

// TaskFilters narrows an owner-scoped task listing. Zero values mean "no
// filter"; non-empty enum values are validated.
type TaskFilters struct {
	Status   string
	Priority string
	Search   string
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
}

// UpdateTaskInput represents input for updating a task. Nil fields are left
// unchanged; order is not updatable through this path.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
}

// ListTasks returns the actor's own tasks ordered by their order key. The
// query is pre-scoped to the owner, so no per-row policy check is needed.
func (s *TaskService) ListTasks(ctx context.Context, actor Actor, filters TaskFilters) ([]models.Task, error) {
	repoFilter, err := buildTaskFilter(filters)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.ListByOwner(ctx, actor.ID, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

// GetTask returns a single task after a view-policy check.
func (s *TaskService) GetTask(ctx context.Context, actor Actor, taskID uint64) (*models.Task, error) {
	task, err := s.findTask(ctx, taskID, policy.ActionView, actor)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CreateTask validates the fields and appends a task at the end of the
// actor's list. Tasks are always created for the actor themselves.
func (s *TaskService) CreateTask(ctx context.Context, actor Actor, input CreateTaskInput) (*models.Task, error) {
	fields := make(fieldErrors)
	validateTitle(fields, input.Title)
	validateDescription(fields, input.Description)

	if input.Status == "" {
		input.Status = models.TaskStatusPending
	} else if !models.ValidTaskStatus(input.Status) {
		fields.add("status", "Status must be pending, in_progress, or completed.")
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	} else if !models.ValidTaskPriority(input.Priority) {
		fields.add("priority", "Priority must be low, medium, or high.")
	}
	if err := fields.asError(); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
	}

	if err := s.taskRepo.Append(ctx, actor.ID, task); err != nil {
		return nil, s.translate(err)
	}

	s.notifier.Publish(ctx, events.NewTaskCreated(task, actor.SocketID))

	return task, nil
}

// UpdateTask applies field changes to a task the actor may update. Entering
// completed stamps the completion time, leaving it clears the stamp.
func (s *TaskService) UpdateTask(ctx context.Context, actor Actor, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.findTask(ctx, taskID, policy.ActionUpdate, actor)
	if err != nil {
		return nil, err
	}

	fields := make(fieldErrors)
	if input.Title != nil {
		validateTitle(fields, *input.Title)
	}
	if input.Description != nil {
		validateDescription(fields, *input.Description)
	}
	if input.Status != nil && !models.ValidTaskStatus(*input.Status) {
		fields.add("status", "Status must be pending, in_progress, or completed.")
	}
	if input.Priority != nil && !models.ValidTaskPriority(*input.Priority) {
		fields.add("priority", "Priority must be low, medium, or high.")
	}
	if err := fields.asError(); err != nil {
		return nil, err
	}

	changes := repository.TaskChanges{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
	}
	if err := s.taskRepo.Update(ctx, task, changes); err != nil {
		return nil, s.translate(err)
	}

	s.notifier.Publish(ctx, events.NewTaskUpdated(task, actor.SocketID))

	return task, nil
}

// DeleteTask removes a task the actor may delete. Remaining order values keep
// their gaps until the client reorders.
func (s *TaskService) DeleteTask(ctx context.Context, actor Actor, taskID uint64) error {
	task, err := s.findTask(ctx, taskID, policy.ActionDelete, actor)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return s.translate(err)
	}

	s.notifier.Publish(ctx, events.NewTaskDeleted(task.ID, task.UserID, actor.SocketID))

	return nil
}

// ReorderTasks replaces the actor's own order mapping atomically. Reordering
// is always self-scoped: unlike view/update/delete there is no admin
// override, so the owner scope is simply actor.ID.
func (s *TaskService) ReorderTasks(ctx context.Context, actor Actor, mapping map[uint64]int) error {
	if len(mapping) == 0 {
		return validationError("tasks", "Task order data is required.")
	}
	for _, order := range mapping {
		if order < 0 {
			return validationError("tasks", "Each task order must be a non-negative number.")
		}
	}

	if err := s.taskRepo.Reorder(ctx, actor.ID, mapping); err != nil {
		if errors.Is(err, repository.ErrForeignTask) {
			return validationError("tasks", "You can only reorder your own tasks.")
		}
		return s.translate(err)
	}

	s.notifier.Publish(ctx, events.NewTasksReordered(actor.ID, mapping, actor.SocketID))

	return nil
}

// GetUserStatistics aggregates task counts for one user. Pure read.
func (s *TaskService) GetUserStatistics(ctx context.Context, userID uint64) (*repository.TaskStatistics, error) {
	stats, err := s.taskRepo.Statistics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate statistics: %w", err)
	}
	return stats, nil
}

// findTask loads a task and runs the policy. A missing row is NotFound; an
// existing row the actor may not touch is Forbidden. The denial happens
// before any mutation reaches the store.
func (s *TaskService) findTask(ctx context.Context, taskID uint64, action policy.Action, actor Actor) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if !policy.Can(actor.Capability(), task, action) {
		return nil, ErrForbidden
	}

	return task, nil
}

func (s *TaskService) translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrTaskNotFound
	default:
		return err
	}
}

func buildTaskFilter(filters TaskFilters) (repository.TaskFilter, error) {
	var repoFilter repository.TaskFilter
	fields := make(fieldErrors)

	if filters.Status != "" {
		status := models.TaskStatus(filters.Status)
		if !models.ValidTaskStatus(status) {
			fields.add("status", "Status must be pending, in_progress, or completed.")
		} else {
			repoFilter.Status = &status
		}
	}
	if filters.Priority != "" {
		priority := models.TaskPriority(filters.Priority)
		if !models.ValidTaskPriority(priority) {
			fields.add("priority", "Priority must be low, medium, or high.")
		} else {
			repoFilter.Priority = &priority
		}
	}
	if len(filters.Search) > constants.MaxSearchLength {
		fields.add("search", "Search term is too long.")
	} else {
		repoFilter.Search = filters.Search
	}

	if err := fields.asError(); err != nil {
		return repository.TaskFilter{}, err
	}
	return repoFilter, nil
}

func validateTitle(fields fieldErrors, title string) {
	if title == "" {
		fields.add("title", "Task title is required.")
		return
	}
	if len(title) > constants.MaxTitleLength {
		fields.add("title", "Task title cannot exceed 255 characters.")
	}
}

func validateDescription(fields fieldErrors, description string) {
	if len(description) > constants.MaxDescriptionLength {
		fields.add("description", "Task description cannot exceed 1000 characters.")
	}
}
