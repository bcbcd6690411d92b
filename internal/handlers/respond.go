package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	apierrors "github.com/natsukage/task-tracker-api/internal/errors"
	"github.com/natsukage/task-tracker-api/internal/services"
)

// respondServiceError maps the service error taxonomy onto HTTP statuses:
// Forbidden 403, NotFound 404, validation 422 with per-field details,
// Conflict 409. Anything else is an internal error.
func respondServiceError(c *gin.Context, err error) {
	var validationErr *services.ValidationError

	switch {
	case errors.As(err, &validationErr):
		apierrors.UnprocessableEntity(c, "Validation failed", validationErr.Fields)
	case errors.Is(err, services.ErrForbidden):
		apierrors.Forbidden(c, "")
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrConflict):
		apierrors.Conflict(c, "The task list changed concurrently, please retry")
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.RespondWithError(c, 409, apierrors.NewAPIError(apierrors.ErrCodeAlreadyExists, "Email already registered"))
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.Unauthorized(c, "Email or password is incorrect")
	default:
		apierrors.InternalError(c, "")
	}
}
