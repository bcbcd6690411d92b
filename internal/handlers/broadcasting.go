package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/natsukage/task-tracker-api/internal/errors"
	"github.com/natsukage/task-tracker-api/internal/events"
	"github.com/natsukage/task-tracker-api/internal/middleware"
)

// BroadcastingHandler authorizes private-channel subscriptions for the
// realtime relay: a user channel admits its owner and admins.
type BroadcastingHandler struct{}

func NewBroadcastingHandler() *BroadcastingHandler {
	return &BroadcastingHandler{}
}

// Authorize grants or denies a subscription to the named channel
func (h *BroadcastingHandler) Authorize(c *gin.Context) {
	actor, exists := middleware.GetActor(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type AuthorizeRequest struct {
		ChannelName string `json:"channel_name" binding:"required"`
	}

	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "")
		return
	}

	if !events.CanSubscribe(actor.Capability(), req.ChannelName) {
		apierrors.Forbidden(c, "Not authorized for this channel")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": req.ChannelName,
		"status":  "authorized",
	})
}
