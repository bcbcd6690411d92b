// Package policy decides whether an actor may touch a task. It is pure: no
// I/O, no globals. The actor is resolved once per request by the auth
// middleware and passed down explicitly.
package policy

import (
	"github.com/natsukage/task-tracker-api/internal/models"
)

// Action is one of the owner-scoped operations on a task.
type Action string

const (
	ActionView   Action = "view"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actor is the authenticated caller's capability view: identity plus the
// admin flag, nothing else.
type Actor struct {
	ID    uint64
	Admin bool
}

// Can reports whether the actor may perform the action on the task: the owner
// and admins may, nobody else. Every action shares the same rule today; the
// action parameter keeps call sites honest about what they are asking for.
func Can(actor Actor, task *models.Task, action Action) bool {
	switch action {
	case ActionView, ActionUpdate, ActionDelete:
		return actor.ID == task.UserID || actor.Admin
	}
	return false
}
