package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/natsukage/task-tracker-api/internal/models"
	"github.com/natsukage/task-tracker-api/internal/repository"
	"gorm.io/gorm"
)

const recentTasksLimit = 10

// AdminService exposes the aggregate views admins get over all users' tasks.
// These are pure reads; admin mutations of individual tasks go through
// TaskService like everyone else's.
type AdminService struct {
	taskRepo repository.TaskRepository
	userRepo repository.UserRepository
}

// NewAdminService creates a new AdminService
func NewAdminService(taskRepo repository.TaskRepository, userRepo repository.UserRepository) *AdminService {
	return &AdminService{
		taskRepo: taskRepo,
		userRepo: userRepo,
	}
}

// ListAllTasksInput narrows the cross-user task listing.
type ListAllTasksInput struct {
	UserID   *uint64
	Filters  TaskFilters
	Page     int
	PageSize int
}

// SystemStatistics is the whole-system aggregate view.
type SystemStatistics struct {
	TotalUsers  int64                     `json:"total_users"`
	TotalAdmins int64                     `json:"total_admins"`
	Tasks       repository.TaskStatistics `json:"tasks"`
	RecentTasks []models.Task             `json:"recent_tasks"`
}

// ListAllTasks returns tasks across every user. The route is admin-gated by
// middleware; the service still refuses non-admin actors.
func (s *AdminService) ListAllTasks(ctx context.Context, actor Actor, input ListAllTasksInput) ([]models.Task, int64, error) {
	if !actor.IsAdmin {
		return nil, 0, ErrForbidden
	}

	repoFilter, err := buildTaskFilter(input.Filters)
	if err != nil {
		return nil, 0, err
	}

	tasks, total, err := s.taskRepo.ListAll(ctx, repository.AdminTaskFilter{
		UserID:   input.UserID,
		Status:   repoFilter.Status,
		Priority: repoFilter.Priority,
		Search:   repoFilter.Search,
		Page:     input.Page,
		PageSize: input.PageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// UserStatistics returns one user's task statistics for an admin observer.
func (s *AdminService) UserStatistics(ctx context.Context, actor Actor, userID uint64) (*models.User, *repository.TaskStatistics, error) {
	if !actor.IsAdmin {
		return nil, nil, ErrForbidden
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}

	stats, err := s.taskRepo.Statistics(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to aggregate statistics: %w", err)
	}

	return user, stats, nil
}

// SystemStatistics returns totals across all users and tasks plus the most
// recently created tasks.
func (s *AdminService) SystemStatistics(ctx context.Context, actor Actor) (*SystemStatistics, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	totalUsers, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	totalAdmins, err := s.userRepo.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count admins: %w", err)
	}
	taskStats, err := s.taskRepo.GlobalStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate task statistics: %w", err)
	}
	recent, err := s.taskRepo.Recent(ctx, recentTasksLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent tasks: %w", err)
	}

	return &SystemStatistics{
		TotalUsers:  totalUsers,
		TotalAdmins: totalAdmins,
		Tasks:       *taskStats,
		RecentTasks: recent,
	}, nil
}
