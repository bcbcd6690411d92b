package services

import (
	"github.com/natsukage/task-tracker-api/internal/policy"
)

// Actor is the authenticated caller, resolved once per request by the auth
// middleware and passed explicitly through every service call. SocketID
// identifies the originating realtime connection, when the client sent one,
// so its own events are not echoed back to it.
type Actor struct {
	ID       uint64
	IsAdmin  bool
	SocketID string
}

// Capability strips the actor down to what the authorization policy needs.
func (a Actor) Capability() policy.Actor {
	return policy.Actor{ID: a.ID, Admin: a.IsAdmin}
}
