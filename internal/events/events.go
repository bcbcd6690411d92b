// Package events carries committed mutations out to subscribed sessions.
// Each event targets the owning user's private channel; the envelope carries
// the originating socket id so the delivery edge can skip echoing the event
// back to the connection that caused it.
package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natsukage/task-tracker-api/internal/models"
	"github.com/natsukage/task-tracker-api/internal/policy"
)

// Event names, one per committed mutation kind.
const (
	NameTaskCreated    = "TaskCreated"
	NameTaskUpdated    = "TaskUpdated"
	NameTaskDeleted    = "TaskDeleted"
	NameTasksReordered = "TasksReordered"
)

// AdminChannel receives nothing today but stays a valid subscription target
// for admin observers.
const AdminChannel = "admin"

const userChannelPrefix = "user."

// Event is the wire envelope published to a private channel.
type Event struct {
	ID       string      `json:"id"`
	Name     string      `json:"event"`
	Channel  string      `json:"channel"`
	SocketID string      `json:"socket_id,omitempty"`
	Data     interface{} `json:"data"`
	At       time.Time   `json:"emitted_at"`
}

type taskPayload struct {
	Task *models.Task `json:"task"`
}

type taskDeletedPayload struct {
	TaskID uint64 `json:"task_id"`
}

type reorderedPayload struct {
	TaskOrders map[uint64]int `json:"task_orders"`
}

// UserChannel is the private channel name for one user's task events.
func UserChannel(userID uint64) string {
	return fmt.Sprintf("%s%d", userChannelPrefix, userID)
}

// NewTaskCreated builds the event for a freshly appended task.
func NewTaskCreated(task *models.Task, socketID string) Event {
	return newEvent(NameTaskCreated, UserChannel(task.UserID), socketID, taskPayload{Task: task})
}

// NewTaskUpdated builds the event for a committed field update.
func NewTaskUpdated(task *models.Task, socketID string) Event {
	return newEvent(NameTaskUpdated, UserChannel(task.UserID), socketID, taskPayload{Task: task})
}

// NewTaskDeleted builds the event for a committed delete. Only the id
// survives the row, so the owner must be passed alongside.
func NewTaskDeleted(taskID, ownerID uint64, socketID string) Event {
	return newEvent(NameTaskDeleted, UserChannel(ownerID), socketID, taskDeletedPayload{TaskID: taskID})
}

// NewTasksReordered builds the event for a committed order replacement.
func NewTasksReordered(ownerID uint64, mapping map[uint64]int, socketID string) Event {
	return newEvent(NameTasksReordered, UserChannel(ownerID), socketID, reorderedPayload{TaskOrders: mapping})
}

func newEvent(name, channel, socketID string, data interface{}) Event {
	return Event{
		ID:       uuid.NewString(),
		Name:     name,
		Channel:  channel,
		SocketID: socketID,
		Data:     data,
		At:       time.Now(),
	}
}

// CanSubscribe authorizes a channel subscription: a user channel admits its
// owner and admins, the admin channel admits admins only.
func CanSubscribe(actor policy.Actor, channel string) bool {
	if channel == AdminChannel {
		return actor.Admin
	}
	if ownerID, ok := parseUserChannel(channel); ok {
		return actor.ID == ownerID || actor.Admin
	}
	return false
}

func parseUserChannel(channel string) (uint64, bool) {
	raw, found := strings.CutPrefix(channel, userChannelPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
