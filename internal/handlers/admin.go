package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/natsukage/task-tracker-api/internal/dto"
	apierrors "github.com/natsukage/task-tracker-api/internal/errors"
	"github.com/natsukage/task-tracker-api/internal/middleware"
	"github.com/natsukage/task-tracker-api/internal/services"
	"github.com/natsukage/task-tracker-api/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// ListAllTasks returns tasks from every user, filterable and paginated
func (h *AdminHandler) ListAllTasks(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	input := services.ListAllTasksInput{
		Filters: services.TaskFilters{
			Status:   c.Query("status"),
			Priority: c.Query("priority"),
			Search:   c.Query("search"),
		},
	}

	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid user_id")
			return
		}
		input.UserID = &userID
	}

	params := utils.GetPaginationParams(c)
	input.Page = params.Page
	input.PageSize = params.Limit

	tasks, total, err := h.adminService.ListAllTasks(c.Request.Context(), actor, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": dto.ToTaskDTOs(tasks),
		"pagination": utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// UserStatistics returns one user's task counts for an admin observer
func (h *AdminHandler) UserStatistics(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid user ID")
		return
	}

	user, stats, err := h.adminService.UserStatistics(c.Request.Context(), actor, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       dto.ToUserDTO(*user),
		"statistics": stats,
	})
}

// SystemStatistics returns whole-system aggregates
func (h *AdminHandler) SystemStatistics(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	stats, err := h.adminService.SystemStatistics(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_users":  stats.TotalUsers,
		"total_admins": stats.TotalAdmins,
		"tasks":        stats.Tasks,
		"recent_tasks": dto.ToTaskDTOs(stats.RecentTasks),
	})
}
